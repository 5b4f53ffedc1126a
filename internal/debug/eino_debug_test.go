package debug

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dyike/CortexOffice/config"
)

func TestDisabledDebuggerDoesNothing(t *testing.T) {
	cfg := config.DefaultConfigWithRoot(t.TempDir())
	d := NewEinoDebugger(cfg)

	assert.False(t, d.IsEnabled())
	assert.Empty(t, d.URL())
	assert.NoError(t, d.Initialize(context.Background()))
}

func TestEnabledDebuggerURL(t *testing.T) {
	cfg := config.DefaultConfigWithRoot(t.TempDir())
	cfg.EinoDebugEnabled = true
	cfg.EinoDebugPort = 6000
	assert.Equal(t, "http://localhost:6000", NewEinoDebugger(cfg).URL())
}
