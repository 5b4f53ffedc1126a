package agents

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/dyike/CortexOffice/internal/llm"
	"github.com/dyike/CortexOffice/internal/models"
	"github.com/dyike/CortexOffice/pkg/errors"
)

// DefaultApprovalThreshold is the score a recommendation must exceed to be approved.
const DefaultApprovalThreshold = 88

// The score must be the first token of the line, optionally labelled "Score:" and wrapped in markup.
var scorePattern = regexp.MustCompile(`(?i)^\W*(?:score\s*[:=]?\s*)?(\d+)(\.\d+)?\b`)

// Reviewer plays the CEO: it sets the day's tasks and scores the strategist's recommendation.
type Reviewer struct {
	Role
	threshold atomic.Int64
}

func NewReviewer(reasoner llm.Reasoner, threshold int) (*Reviewer, error) {
	role, err := NewRole(RoleReviewer, "reviewer/persona", reasoner)
	if err != nil {
		return nil, err
	}
	r := &Reviewer{Role: role}
	r.SetThreshold(threshold)
	return r, nil
}

func (r *Reviewer) Threshold() int { return int(r.threshold.Load()) }

// SetThreshold changes the approval threshold for later evaluations. Non-positive values reset it.
func (r *Reviewer) SetThreshold(threshold int) {
	if threshold <= 0 {
		threshold = DefaultApprovalThreshold
	}
	r.threshold.Store(int64(threshold))
}

// AssignTasks turns the performance report into objectives for the strategist.
func (r *Reviewer) AssignTasks(ctx context.Context, performanceReport string) (string, error) {
	prompt, err := render("reviewer/tasks", map[string]string{"PerformanceReport": performanceReport})
	if err != nil {
		return "", err
	}
	return r.Ask(ctx, prompt)
}

// Evaluate scores recommendation against the rubric. The whole evaluation text becomes the feedback.
func (r *Reviewer) Evaluate(ctx context.Context, recommendation, performanceReport string) (models.Review, error) {
	threshold := r.Threshold()
	rubric, err := render("reviewer/rubric", map[string]string{
		"Threshold":         strconv.Itoa(threshold),
		"Recommendation":    recommendation,
		"PerformanceReport": performanceReport,
	})
	if err != nil {
		return models.Review{}, err
	}
	evaluation, err := r.AskWith(ctx, rubric, recommendation)
	if err != nil {
		return models.Review{}, err
	}

	score, err := ParseScore(evaluation)
	if err != nil {
		return models.Review{}, err
	}
	review := Decide(score, threshold)
	review.Feedback = evaluation
	r.log.Infow("recommendation reviewed", "score", score, "decision", review.Decision)
	return review, nil
}

// Decide applies the approval rule: strictly above threshold approves.
func Decide(score, threshold int) models.Review {
	decision := models.DecisionRevise
	if score > threshold {
		decision = models.DecisionApprove
	}
	return models.Review{Score: score, Decision: decision}
}

// ParseScore reads the integer score that opens the first non-empty line of an evaluation.
// A line that does not start with a 0-100 integer, including decimals such as "9.5/10",
// fails with ErrEvaluationParse.
func ParseScore(evaluation string) (int, error) {
	for _, line := range strings.Split(evaluation, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		m := scorePattern.FindStringSubmatch(line)
		if m == nil {
			return 0, fmt.Errorf("%w: no score on first line %q", errors.ErrEvaluationParse, truncate(line, 80))
		}
		if m[2] != "" {
			return 0, fmt.Errorf("%w: score %q is not an integer", errors.ErrEvaluationParse, m[1]+m[2])
		}
		score, err := strconv.Atoi(m[1])
		if err != nil || score > 100 {
			return 0, fmt.Errorf("%w: score %q out of range", errors.ErrEvaluationParse, m[1])
		}
		return score, nil
	}
	return 0, fmt.Errorf("%w: empty evaluation", errors.ErrEvaluationParse)
}

// RevisedTasks builds the next round's tasks from the rejected recommendation and its feedback.
func RevisedTasks(recommendation, feedback string) (string, error) {
	return render("reviewer/revision", map[string]string{
		"Recommendation": recommendation,
		"Feedback":       feedback,
	})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
