package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dyike/CortexOffice/internal/portfolio"
	"github.com/dyike/CortexOffice/pkg/logger"
)

const (
	// StateFileName is where the portfolio is saved under the data directory.
	StateFileName = "portfolio_state.json"

	TranscriptDBName = "office.db"
	MarketDBName     = "market_data.db"

	stateVersion = "1"
)

// ErrDataDirNotConfigured indicates config.DataDir is empty.
var ErrDataDirNotConfigured = errors.New("data_dir is not configured")

type stateFile struct {
	Version   string             `json:"version"`
	Portfolio portfolio.Snapshot `json:"portfolio"`
}

// StateStore persists portfolio snapshots between runs.
type StateStore struct {
	path string
	log  *logger.Logger
}

func NewStateStore(dataDir string) (*StateStore, error) {
	if strings.TrimSpace(dataDir) == "" {
		return nil, ErrDataDirNotConfigured
	}
	return &StateStore{
		path: filepath.Join(dataDir, StateFileName),
		log:  logger.Get().Named("state"),
	}, nil
}

func (s *StateStore) Path() string { return s.path }

// Load returns the saved snapshot. found is false when no state has been saved yet.
func (s *StateStore) Load() (snap portfolio.Snapshot, found bool, err error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.log.Infow("state file missing, starting fresh", "path", s.path)
		return portfolio.Snapshot{}, false, nil
	}
	if err != nil {
		return portfolio.Snapshot{}, false, fmt.Errorf("read state: %w", err)
	}

	var f stateFile
	if err := json.Unmarshal(b, &f); err != nil {
		return portfolio.Snapshot{}, false, fmt.Errorf("decode state %s: %w", s.path, err)
	}
	if f.Version != stateVersion {
		return portfolio.Snapshot{}, false, fmt.Errorf("unsupported state version %q", f.Version)
	}
	return f.Portfolio, true, nil
}

// Save writes snap atomically.
func (s *StateStore) Save(snap portfolio.Snapshot) error {
	b, err := json.MarshalIndent(stateFile{Version: stateVersion, Portfolio: snap}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	return portfolio.WriteFileAtomic(s.path, b)
}

// LoadInto restores the saved state into p, leaving p untouched when nothing was saved.
func (s *StateStore) LoadInto(p *portfolio.Portfolio) (bool, error) {
	snap, found, err := s.Load()
	if err != nil || !found {
		return false, err
	}
	if err := p.Restore(snap); err != nil {
		return false, fmt.Errorf("restore state: %w", err)
	}
	return true, nil
}

// TranscriptDBPath returns the sqlite file holding negotiation transcripts.
func TranscriptDBPath(dataDir string) (string, error) {
	if strings.TrimSpace(dataDir) == "" {
		return "", ErrDataDirNotConfigured
	}
	return filepath.Join(dataDir, TranscriptDBName), nil
}

// MarketDBPath returns the sqlite file holding the market-data cache.
func MarketDBPath(cacheDir string) (string, error) {
	if strings.TrimSpace(cacheDir) == "" {
		return "", ErrDataDirNotConfigured
	}
	return filepath.Join(cacheDir, MarketDBName), nil
}
