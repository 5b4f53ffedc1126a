package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/time/rate"

	"github.com/dyike/CortexOffice/internal/metrics"
	"github.com/dyike/CortexOffice/pkg/errors"
	"github.com/dyike/CortexOffice/pkg/logger"
)

// Reasoner turns an instruction and a prompt into free text.
type Reasoner interface {
	Generate(ctx context.Context, instruction, prompt string) (string, error)
}

type roleKey struct{}

// WithRole tags ctx with the agent role making the call, for logs and metrics.
func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, roleKey{}, role)
}

func RoleFrom(ctx context.Context) string {
	if r, ok := ctx.Value(roleKey{}).(string); ok && r != "" {
		return r
	}
	return "unknown"
}

// ChainReasoner runs system-instruction + user-prompt through an eino chain:
// chat template, chat model, then content extraction.
type ChainReasoner struct {
	runnable compose.Runnable[map[string]any, string]
	limiter  *rate.Limiter
	callback *LoggerCallback
	log      *logger.Logger
}

type ReasonerOption func(*ChainReasoner)

// WithRatePerMinute caps reasoning calls. Zero leaves calls unlimited.
func WithRatePerMinute(n int) ReasonerOption {
	return func(r *ChainReasoner) {
		if n > 0 {
			r.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), 1)
		}
	}
}

func NewChainReasoner(ctx context.Context, cm model.ChatModel, opts ...ReasonerOption) (*ChainReasoner, error) {
	tpl := prompt.FromMessages(schema.FString,
		schema.SystemMessage("{instruction}"),
		schema.UserMessage("{prompt}"),
	)

	chain := compose.NewChain[map[string]any, string]()
	chain.
		AppendChatTemplate(tpl).
		AppendChatModel(cm).
		AppendLambda(compose.InvokableLambda(extractContent))

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile reasoning chain: %w", err)
	}

	log := logger.Get().Named("llm")
	r := &ChainReasoner{
		runnable: runnable,
		callback: &LoggerCallback{log: log},
		log:      log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func extractContent(_ context.Context, msg *schema.Message) (string, error) {
	if msg == nil {
		return "", fmt.Errorf("empty completion")
	}
	content := strings.TrimSpace(msg.Content)
	if content == "" {
		return "", fmt.Errorf("empty completion")
	}
	return content, nil
}

func (r *ChainReasoner) Generate(ctx context.Context, instruction, prompt string) (string, error) {
	role := RoleFrom(ctx)
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	started := time.Now()
	out, err := r.runnable.Invoke(ctx, map[string]any{
		"instruction": strings.TrimSpace(instruction),
		"prompt":      prompt,
	}, compose.WithCallbacks(r.callback))
	metrics.RecordLLMCall(role, time.Since(started), err)
	if err != nil {
		return "", errors.External("reasoning", fmt.Errorf("%s: %w", role, err))
	}
	r.log.Debugw("reasoning complete", "role", role, "latency", time.Since(started), "chars", len(out))
	return out, nil
}
