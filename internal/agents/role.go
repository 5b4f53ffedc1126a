package agents

import (
	"context"
	"fmt"

	"github.com/dyike/CortexOffice/internal/llm"
	"github.com/dyike/CortexOffice/internal/utils"
	"github.com/dyike/CortexOffice/pkg/logger"
)

// Role names, used for transcripts, logs and metrics.
const (
	RoleReviewer   = "reviewer"
	RoleStrategist = "strategist"
	RoleResearcher = "researcher"
	RoleAnalyst    = "analyst"
	RoleSecretary  = "secretary"
	RoleOperator   = "operator"
)

// Role is a persona over the shared reasoning capability. Roles differ only by their text.
type Role struct {
	Name     string
	Persona  string
	reasoner llm.Reasoner
	log      *logger.Logger
}

// NewRole loads the persona for name from the embedded prompt set. personaPath may be empty
// for roles whose instruction changes per call.
func NewRole(name, personaPath string, reasoner llm.Reasoner) (Role, error) {
	r := Role{Name: name, reasoner: reasoner, log: logger.Get().Named(name)}
	if personaPath != "" {
		persona, err := utils.LoadPrompt(personaPath)
		if err != nil {
			return Role{}, err
		}
		r.Persona = persona
	}
	return r, nil
}

// Ask runs prompt under the role's persona.
func (r Role) Ask(ctx context.Context, prompt string) (string, error) {
	return r.AskWith(ctx, r.Persona, prompt)
}

// AskWith runs prompt under an explicit instruction.
func (r Role) AskWith(ctx context.Context, instruction, prompt string) (string, error) {
	out, err := r.reasoner.Generate(llm.WithRole(ctx, r.Name), instruction, prompt)
	if err != nil {
		return "", fmt.Errorf("%s: %w", r.Name, err)
	}
	return out, nil
}

func render(path string, vars map[string]string) (string, error) {
	return utils.LoadPromptWithContext(path, vars)
}
