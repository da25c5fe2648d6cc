package engine

import (
	"context"
	"sync"
	"time"
)

// Scheduler arms a single future wake-up for the active question. The fire
// side calls back into Session.TimeUp; an armed timer is never cancelled,
// a stale fire is simply ignored by the question-id guard.
type Scheduler interface {
	// Schedule arms a wake-up for questionID after delay. It returns once
	// the wake-up is acknowledged as armed.
	Schedule(ctx context.Context, questionID string, delay time.Duration) error
	// ArmedQuestionID reports which question the scheduler was last armed for.
	ArmedQuestionID() (string, bool)
}

// WallClockScheduler arms wake-ups on the process clock. The fire callback
// runs on a timer goroutine, so it must route back through whatever
// serializes session mutations.
type WallClockScheduler struct {
	mu         sync.Mutex
	questionID string
	armed      bool
	fire       func(questionID string)
}

// NewWallClockScheduler builds a scheduler that invokes fire when a wake-up
// elapses.
func NewWallClockScheduler(fire func(questionID string)) *WallClockScheduler {
	return &WallClockScheduler{fire: fire}
}

func (s *WallClockScheduler) Schedule(_ context.Context, questionID string, delay time.Duration) error {
	s.mu.Lock()
	s.questionID = questionID
	s.armed = true
	s.mu.Unlock()

	time.AfterFunc(delay, func() {
		s.fire(questionID)
	})
	return nil
}

func (s *WallClockScheduler) ArmedQuestionID() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.questionID, s.armed
}
