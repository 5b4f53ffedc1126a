package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"

	"github.com/dyike/CortexOffice/pkg/logger"
)

const (
	configFileName  = "config.json"
	defaultDebounce = 300 * time.Millisecond
)

// Manager owns the on-disk JSON config. The stored copy never carries the environment
// overlay; callbacks receive the overlaid view.
type Manager struct {
	path     string
	debounce time.Duration
	initial  *Config

	mu       sync.RWMutex
	cfg      Config
	onChange func(Config)
	watching bool
}

type ManagerOption func(*Manager)

// WithConfigDir places config.json in dir.
func WithConfigDir(dir string) ManagerOption {
	return func(m *Manager) {
		if dir != "" {
			m.path = filepath.Join(dir, configFileName)
		}
	}
}

func WithConfigPath(path string) ManagerOption {
	return func(m *Manager) {
		if path != "" {
			m.path = path
		}
	}
}

func WithDebounce(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.debounce = d
		}
	}
}

// WithInitialConfig is written when the file does not exist yet.
func WithInitialConfig(cfg *Config) ManagerOption {
	return func(m *Manager) { m.initial = cfg }
}

func NewManager(opts ...ManagerOption) (*Manager, error) {
	m := &Manager{debounce: defaultDebounce}
	for _, opt := range opts {
		opt(m)
	}
	if m.path == "" {
		path, err := userConfigPath()
		if err != nil {
			return nil, err
		}
		m.path = path
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}

	cfg, err := m.readOrSeed()
	if err != nil {
		return nil, err
	}
	m.cfg = cfg
	return m, nil
}

func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *Manager) Path() string { return m.path }

func (m *Manager) UpdateFromJSON(jsonStr string) error {
	var cfg Config
	if err := json.Unmarshal([]byte(jsonStr), &cfg); err != nil {
		return fmt.Errorf("parse config json: %w", err)
	}
	return m.Update(cfg)
}

// Update validates and persists newCfg. The watcher sees the write but finds nothing new.
func (m *Manager) Update(newCfg Config) error {
	if err := newCfg.Validate(); err != nil {
		return err
	}
	if reflect.DeepEqual(m.Get(), newCfg) {
		return nil
	}
	if err := writeConfigFile(m.path, newCfg); err != nil {
		return err
	}
	m.apply(newCfg)
	return nil
}

// Watch reloads the file on change and calls onChange with each accepted config.
// Invalid edits are logged and ignored. A second call only replaces the callback.
func (m *Manager) Watch(ctx context.Context, onChange func(Config)) error {
	m.mu.Lock()
	m.onChange = onChange
	if m.watching {
		m.mu.Unlock()
		return nil
	}
	m.watching = true
	m.mu.Unlock()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Editors replace the file, so the directory is watched rather than the file.
	if err := watcher.Add(filepath.Dir(m.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch config dir: %w", err)
	}
	go m.watch(ctx, watcher)
	return nil
}

func (m *Manager) watch(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()
	log := logger.Get().Named("config")

	settle := time.NewTimer(m.debounce)
	settle.Stop()
	defer settle.Stop()

	target := filepath.Clean(m.path)
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(evt.Name) != target || !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Create) && !evt.Has(fsnotify.Rename) {
				continue
			}
			settle.Reset(m.debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Warnw("config watcher error", "error", err)
		case <-settle.C:
			if err := m.reload(); err != nil {
				log.Errorw("config reload rejected", "path", m.path, "error", err)
			}
		}
	}
}

func (m *Manager) reload() error {
	var cfg Config
	if err := loadConfigFromFile(m.path, &cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// deleted mid-rename; the create event that follows triggers another reload
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if reflect.DeepEqual(m.Get(), cfg) {
		return nil
	}
	m.apply(cfg)
	return nil
}

func (m *Manager) apply(cfg Config) {
	m.mu.Lock()
	m.cfg = cfg
	cb := m.onChange
	m.mu.Unlock()
	if cb == nil {
		return
	}
	view := cfg
	if err := view.LoadEnv(); err != nil {
		logger.Get().Named("config").Warnw("env overlay failed, using file values", "error", err)
		view = cfg
	}
	cb(view)
}

func (m *Manager) readOrSeed() (Config, error) {
	var cfg Config
	err := loadConfigFromFile(m.path, &cfg)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist):
		if m.initial != nil {
			cfg = *m.initial
		} else {
			cfg = *DefaultConfigWithRoot(filepath.Dir(m.path))
		}
		if err := writeConfigFile(m.path, cfg); err != nil {
			return Config{}, fmt.Errorf("write initial config: %w", err)
		}
	default:
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", m.path, err)
	}
	return cfg, nil
}

func userConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		if dir, err = os.Getwd(); err != nil {
			return "", err
		}
	}
	return filepath.Join(dir, "CortexOffice", configFileName), nil
}

// writeConfigFile replaces path atomically.
func writeConfigFile(path string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*.json")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp config: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// Load opens the config file at path (the user config dir when empty), creating it from
// defaults on first use, and overlays the environment on the returned copy.
func Load(path string) (*Manager, Config, error) {
	_ = godotenv.Load()

	var opts []ManagerOption
	if path != "" {
		opts = append(opts, WithConfigPath(path))
	} else if wd, err := os.Getwd(); err == nil {
		opts = append(opts, WithInitialConfig(DefaultConfigWithRoot(wd)))
	}
	mgr, err := NewManager(opts...)
	if err != nil {
		return nil, Config{}, err
	}
	cfg := mgr.Get()
	if err := cfg.LoadEnv(); err != nil {
		return nil, Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, Config{}, err
	}
	return mgr, cfg, nil
}
