package office

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dyike/CortexOffice/pkg/logger"
)

// DayRunner runs one trading day.
type DayRunner interface {
	RunDay(ctx context.Context) (*DayResult, error)
}

// Scheduler runs a day immediately and then once per interval until ctx is cancelled.
// A failing or panicking day is logged and the next day still runs.
type Scheduler struct {
	runner   DayRunner
	onResult func(*DayResult)
	now      func() time.Time
	log      *logger.Logger

	mu       sync.Mutex
	interval time.Duration
	changed  chan struct{}
}

func NewScheduler(runner DayRunner, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Scheduler{
		runner:   runner,
		interval: interval,
		changed:  make(chan struct{}, 1),
		now:      time.Now,
		log:      logger.Get().Named("scheduler"),
	}
}

// OnResult registers a callback for every successful day.
func (s *Scheduler) OnResult(fn func(*DayResult)) {
	s.mu.Lock()
	s.onResult = fn
	s.mu.Unlock()
}

// SetInterval changes the cadence. The pending wait is re-armed against the new interval.
func (s *Scheduler) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	s.mu.Lock()
	s.interval = d
	s.mu.Unlock()
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// Run blocks until ctx is done and returns ctx.Err().
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Infow("scheduler started", "interval", s.Interval())
	for {
		s.runDay(ctx)
		finished := s.now()

		timer := time.NewTimer(s.Interval())
	wait:
		for {
			select {
			case <-ctx.Done():
				timer.Stop()
				s.log.Infow("scheduler stopped")
				return ctx.Err()
			case <-s.changed:
				remaining := time.Until(finished.Add(s.Interval()))
				if remaining < 0 {
					remaining = 0
				}
				timer.Reset(remaining)
				s.log.Infow("next day rescheduled", "in", remaining)
			case <-timer.C:
				break wait
			}
		}
	}
}

func (s *Scheduler) runDay(ctx context.Context) {
	start := s.now()
	res, err := s.safeRun(ctx)
	if err != nil {
		s.log.Errorw("trading day failed, continuing with next schedule", "error", err, "duration", time.Since(start))
		return
	}
	if res == nil {
		return
	}
	s.log.Infow("trading day completed", "outcome", res.Outcome, "rounds", res.Rounds, "duration", time.Since(start))

	s.mu.Lock()
	fn := s.onResult
	s.mu.Unlock()
	if fn != nil {
		fn(res)
	}
}

func (s *Scheduler) safeRun(ctx context.Context) (res *DayResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("trading day panicked: %v", r)
		}
	}()
	return s.runner.RunDay(ctx)
}
