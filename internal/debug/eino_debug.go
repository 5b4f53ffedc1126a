package debug

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/devops"

	"github.com/dyike/CortexOffice/config"
	"github.com/dyike/CortexOffice/pkg/logger"
)

// EinoDebugger starts the eino visual debug server so the reasoning chains can be
// inspected while a day runs.
type EinoDebugger struct {
	enabled bool
	port    int
	log     *logger.Logger
}

func NewEinoDebugger(cfg *config.Config) *EinoDebugger {
	return &EinoDebugger{
		enabled: cfg.EinoDebugEnabled,
		port:    cfg.EinoDebugPort,
		log:     logger.Get().Named("eino_debug"),
	}
}

// Initialize is a no-op unless eino debugging is enabled.
func (d *EinoDebugger) Initialize(ctx context.Context) error {
	if !d.enabled {
		return nil
	}
	d.log.Infow("initializing eino visual debug plugin", "port", d.port)
	if err := devops.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize Eino debug plugin: %w", err)
	}
	d.log.Infow("eino debug server ready", "url", d.URL())
	return nil
}

func (d *EinoDebugger) IsEnabled() bool {
	return d.enabled
}

func (d *EinoDebugger) URL() string {
	if !d.enabled {
		return ""
	}
	return fmt.Sprintf("http://localhost:%d", d.port)
}
