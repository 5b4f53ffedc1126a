package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	pkgsqlite "github.com/dyike/CortexOffice/pkg/sqlite"
)

const (
	StatusRunning   = "running"
	StatusApproved  = "approved"
	StatusExhausted = "exhausted"
	StatusError     = "error"
)

// Store keeps the transcript of every negotiation day: one session per day and one
// message per agent output.
type Store struct {
	db *sqlx.DB
}

type SessionRecord struct {
	ID        string `db:"id"`
	TradeDate string `db:"trade_date"`
	Status    string `db:"status"`
	Rounds    int    `db:"rounds"`
	Summary   string `db:"summary"`
}

type MessageRecord struct {
	ID        string `db:"id"`
	SessionID string `db:"session_id"`
	Round     int    `db:"round"`
	Phase     string `db:"phase"`
	Agent     string `db:"agent"`
	Role      string `db:"role"`
	Content   string `db:"content"`
	Seq       int    `db:"seq"`
}

type SessionWithMeta struct {
	SessionRecord
	RowID     int64  `db:"rowid"`
	CreatedAt string `db:"created_at"`
	UpdatedAt string `db:"updated_at"`
}

type MessageWithMeta struct {
	MessageRecord
	CreatedAt string `db:"created_at"`
}

func Open(dbPath string) (*Store, error) {
	db, err := pkgsqlite.Open(dbPath)
	if err != nil {
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func initSchema(db *sqlx.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    trade_date TEXT NOT NULL,
    status TEXT NOT NULL,
    rounds INTEGER NOT NULL DEFAULT 0,
    summary TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS messages (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    round INTEGER NOT NULL,
    phase TEXT NOT NULL,
    agent TEXT NOT NULL,
    role TEXT NOT NULL,
    content TEXT NOT NULL DEFAULT '',
    seq INTEGER NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(session_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_messages_session_seq ON messages(session_id, seq);
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (s *Store) CreateSession(ctx context.Context, session SessionRecord) error {
	if strings.TrimSpace(session.ID) == "" {
		return fmt.Errorf("session id is required")
	}
	if session.Status == "" {
		session.Status = StatusRunning
	}
	_, err := s.db.NamedExecContext(ctx, `
INSERT INTO sessions (id, trade_date, status, rounds, summary)
VALUES (:id, :trade_date, :status, :rounds, :summary)
ON CONFLICT(id) DO UPDATE SET
    trade_date=excluded.trade_date,
    status=excluded.status,
    updated_at=CURRENT_TIMESTAMP
`, session)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// FinishSession records the terminal status of a day.
func (s *Store) FinishSession(ctx context.Context, sessionID, status string, rounds int, summary string) error {
	if strings.TrimSpace(sessionID) == "" || strings.TrimSpace(status) == "" {
		return fmt.Errorf("session id and status are required")
	}
	res, err := s.db.ExecContext(ctx, `
UPDATE sessions
SET status = ?, rounds = ?, summary = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?
`, status, rounds, summary, sessionID)
	if err != nil {
		return fmt.Errorf("finish session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish session: session %s not found", sessionID)
	}
	return nil
}

func (s *Store) InsertMessage(ctx context.Context, msg MessageRecord) error {
	if msg.Seq <= 0 {
		return fmt.Errorf("message seq must be positive")
	}
	if strings.TrimSpace(msg.Role) == "" {
		return fmt.Errorf("message role is required")
	}
	_, err := s.db.NamedExecContext(ctx, `
INSERT INTO messages (id, session_id, round, phase, agent, role, content, seq)
VALUES (:id, :session_id, :round, :phase, :agent, :role, :content, :seq)
ON CONFLICT(id) DO NOTHING
`, msg)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// ListSessions pages sessions newest first. cursor is the rowid of the last session already seen, 0 for the first page.
func (s *Store) ListSessions(ctx context.Context, cursor int64, limit int) ([]SessionWithMeta, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	var sessions []SessionWithMeta
	err := s.db.SelectContext(ctx, &sessions, `
SELECT rowid, id, trade_date, status, rounds, summary, created_at, updated_at
FROM sessions
WHERE (? = 0 OR rowid < ?)
ORDER BY rowid DESC
LIMIT ?
`, cursor, cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// GetSession returns nil, nil when the session does not exist.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*SessionWithMeta, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("session id is required")
	}
	var rec SessionWithMeta
	err := s.db.GetContext(ctx, &rec, `
SELECT rowid, id, trade_date, status, rounds, summary, created_at, updated_at
FROM sessions
WHERE id = ?
LIMIT 1
`, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &rec, nil
}

func (s *Store) ListMessages(ctx context.Context, sessionID string) ([]MessageWithMeta, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("session id is required")
	}
	var msgs []MessageWithMeta
	err := s.db.SelectContext(ctx, &msgs, `
SELECT id, session_id, round, phase, agent, role, content, seq, created_at
FROM messages
WHERE session_id = ?
ORDER BY seq ASC
`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}
