package agents

import (
	"context"

	"github.com/dyike/CortexOffice/internal/llm"
	"github.com/dyike/CortexOffice/internal/models"
)

const secretaryInstruction = "Secretary"

// Secretary condenses a round into meeting notes.
type Secretary struct {
	Role
}

func NewSecretary(reasoner llm.Reasoner) (*Secretary, error) {
	role, err := NewRole(RoleSecretary, "", reasoner)
	if err != nil {
		return nil, err
	}
	role.Persona = secretaryInstruction
	return &Secretary{Role: role}, nil
}

// Summarize writes notes covering every artifact of the round in st.
func (s *Secretary) Summarize(ctx context.Context, st *models.NegotiationState) (string, error) {
	prompt, err := render("secretary/notes", map[string]string{
		"Tasks":           st.Tasks,
		"MarketQuestions": st.MarketQuestions,
		"MarketInfo":      st.MarketInfo,
		"TrendRequest":    st.StockTrendRequest,
		"AnalysisReport":  st.AnalysisReport,
		"Recommendation":  st.Recommendation,
		"Feedback":        st.Feedback(),
	})
	if err != nil {
		return "", err
	}
	return s.Ask(ctx, prompt)
}
