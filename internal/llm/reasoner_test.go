package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/dyike/CortexOffice/pkg/errors"
)

type fakeChatModel struct {
	reply string
	err   error
	seen  []*schema.Message
}

func (f *fakeChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.seen = input
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := f.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (f *fakeChatModel) BindTools([]*schema.ToolInfo) error { return nil }

func TestChainReasonerPassesInstructionAndPrompt(t *testing.T) {
	ctx := context.Background()
	fm := &fakeChatModel{reply: "  92\nSolid plan.  "}
	r, err := NewChainReasoner(ctx, fm, WithRatePerMinute(6000))
	require.NoError(t, err)

	out, err := r.Generate(WithRole(ctx, "reviewer"), "  You are a CEO. ", "Evaluate {this} plan")
	require.NoError(t, err)
	assert.Equal(t, "92\nSolid plan.", out)

	require.Len(t, fm.seen, 2)
	assert.Equal(t, schema.System, fm.seen[0].Role)
	assert.Equal(t, "You are a CEO.", fm.seen[0].Content)
	assert.Equal(t, schema.User, fm.seen[1].Role)
	assert.Equal(t, "Evaluate {this} plan", fm.seen[1].Content)
}

func TestChainReasonerWrapsFailures(t *testing.T) {
	ctx := context.Background()

	r, err := NewChainReasoner(ctx, &fakeChatModel{err: errors.New("rate limited")})
	require.NoError(t, err)
	_, err = r.Generate(ctx, "i", "p")
	assert.ErrorIs(t, err, pkgerrors.ErrExternalService)

	r, err = NewChainReasoner(ctx, &fakeChatModel{reply: "   "})
	require.NoError(t, err)
	_, err = r.Generate(ctx, "i", "p")
	assert.ErrorIs(t, err, pkgerrors.ErrExternalService)
}

func TestRoleFromDefaults(t *testing.T) {
	assert.Equal(t, "unknown", RoleFrom(context.Background()))
	assert.Equal(t, "analyst", RoleFrom(WithRole(context.Background(), "analyst")))
}

func TestNewChatModelValidation(t *testing.T) {
	ctx := context.Background()
	_, err := NewChatModel(ctx, Settings{Provider: "deepseek"})
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput)

	_, err = NewChatModel(ctx, Settings{Provider: "llama", APIKey: "k"})
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput)
}
