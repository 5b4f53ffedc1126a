package storage

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/dyike/CortexOffice/internal/models"
	"github.com/dyike/CortexOffice/internal/storage/sqlite"
	"github.com/dyike/CortexOffice/pkg/logger"
)

type recordKind int

const (
	recordMessage recordKind = iota + 1
	recordFinish
)

type recordEvent struct {
	kind    recordKind
	message sqlite.MessageRecord
	status  string
	rounds  int
	summary string
}

// TranscriptRecorder writes agent outputs of one trading day to the transcript store
// on a background goroutine so the negotiation never waits on disk.
type TranscriptRecorder struct {
	store     *sqlite.Store
	sessionID string
	log       *logger.Logger

	events chan recordEvent
	sendMu sync.Mutex
	closed bool
	wg     sync.WaitGroup

	mu  sync.Mutex
	seq int
}

func NewTranscriptRecorder(ctx context.Context, store *sqlite.Store, sessionID, tradeDate string) (*TranscriptRecorder, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if strings.TrimSpace(sessionID) == "" {
		sessionID = uuid.NewString()
	}
	if err := store.CreateSession(ctx, sqlite.SessionRecord{
		ID:        sessionID,
		TradeDate: tradeDate,
		Status:    sqlite.StatusRunning,
	}); err != nil {
		return nil, err
	}

	r := &TranscriptRecorder{
		store:     store,
		sessionID: sessionID,
		log:       logger.Get().Named("recorder"),
		events:    make(chan recordEvent, 256),
	}
	r.wg.Add(1)
	go r.loop()
	return r, nil
}

func (r *TranscriptRecorder) SessionID() string { return r.sessionID }

func (r *TranscriptRecorder) loop() {
	defer r.wg.Done()
	ctx := context.Background()
	for ev := range r.events {
		switch ev.kind {
		case recordMessage:
			if err := r.store.InsertMessage(ctx, ev.message); err != nil {
				r.log.Warnw("record message failed", "session", r.sessionID, "agent", ev.message.Agent, "error", err)
			}
		case recordFinish:
			if err := r.store.FinishSession(ctx, r.sessionID, ev.status, ev.rounds, ev.summary); err != nil {
				r.log.Warnw("finish session failed", "session", r.sessionID, "error", err)
			}
		}
	}
}

// Record queues one agent output. Empty content is skipped.
func (r *TranscriptRecorder) Record(round int, phase models.Phase, agent, role, content string) {
	if r == nil || strings.TrimSpace(content) == "" {
		return
	}
	if role == "" {
		role = "assistant"
	}
	r.mu.Lock()
	r.seq++
	seq := r.seq
	r.mu.Unlock()

	r.enqueue(recordEvent{
		kind: recordMessage,
		message: sqlite.MessageRecord{
			ID:        uuid.NewString(),
			SessionID: r.sessionID,
			Round:     round,
			Phase:     string(phase),
			Agent:     agent,
			Role:      role,
			Content:   content,
			Seq:       seq,
		},
	})
}

func (r *TranscriptRecorder) enqueue(ev recordEvent) {
	r.sendMu.Lock()
	defer r.sendMu.Unlock()
	if r.closed {
		return
	}
	r.events <- ev
}

// Finish records the terminal status and waits for every queued write.
func (r *TranscriptRecorder) Finish(status string, rounds int, summary string) {
	if r == nil {
		return
	}
	r.enqueue(recordEvent{kind: recordFinish, status: status, rounds: rounds, summary: summary})
	r.Close()
}

func (r *TranscriptRecorder) Close() {
	if r == nil {
		return
	}
	r.sendMu.Lock()
	if !r.closed {
		r.closed = true
		close(r.events)
	}
	r.sendMu.Unlock()
	r.wg.Wait()
}
