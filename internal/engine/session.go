package engine

import (
	"context"
	"fmt"
	"time"
)

// State is the lifecycle phase of a session.
type State string

const (
	StatePreparing        State = "PREPARE"
	StateInQuestion       State = "QUESTION"
	StateBetweenQuestions State = "BETWEEN_QUESTIONS"
	StateFinished         State = "FINISH"
)

// Session is the state machine for one quiz run: it owns the question
// queues, the participant registry, the score table and the round timer,
// and pushes a snapshot to every sink after each observable change.
//
// Sessions perform no internal locking. The host must serialize all calls
// on one session, including timer fires.
type Session struct {
	id    string
	topic string
	state State

	unused  []*Question
	used    []*Question
	current *Question

	participants *Registry
	scores       map[string]int

	scheduler Scheduler
	now       func() time.Time
}

// NewSession builds a session in the Preparing state. The question order is
// the play order and is never reshuffled.
func NewSession(id, topic string, questions []*Question, scheduler Scheduler) *Session {
	return NewSessionWithClock(id, topic, questions, scheduler, time.Now)
}

// NewSessionWithClock allows deterministic timestamps in tests.
func NewSessionWithClock(id, topic string, questions []*Question, scheduler Scheduler, now func() time.Time) *Session {
	return &Session{
		id:           id,
		topic:        topic,
		state:        StatePreparing,
		unused:       questions,
		participants: NewRegistry(),
		scores:       make(map[string]int),
		scheduler:    scheduler,
		now:          now,
	}
}

func (s *Session) ID() string    { return s.id }
func (s *Session) Topic() string { return s.topic }
func (s *Session) State() State  { return s.state }

// CurrentQuestion returns the live question, nil unless state is InQuestion.
func (s *Session) CurrentQuestion() *Question { return s.current }

// Participants exposes the registry for hosts that need to reattach sinks
// after a restore.
func (s *Session) Participants() *Registry { return s.participants }

// Join adds a player or, for a known id, swaps their notification sink.
// Either way the score table is refreshed and a snapshot goes out.
func (s *Session) Join(playerID string, sink EventSink) {
	s.participants.Upsert(playerID, sink)
	s.computeScores()
	s.changed()
}

// SetSpectator toggles a participant's role. Unknown ids are ignored.
func (s *Session) SetSpectator(playerID string, spectator bool) {
	if !s.participants.SetSpectator(playerID, spectator) {
		return
	}
	s.computeScores()
	s.changed()
}

// NextQuestion pops the head of the unused queue, activates it and arms the
// timer. With the queue empty it transitions straight to Finished and
// returns nil. Called while a question is live or after the session
// finished, it is a no-op returning nil.
func (s *Session) NextQuestion(ctx context.Context) (*Question, error) {
	if s.state == StateInQuestion || s.state == StateFinished {
		return nil, nil
	}
	if len(s.unused) == 0 {
		s.state = StateFinished
		s.changed()
		return nil, nil
	}

	q := s.unused[0]

	// Arm the timer before touching any state so a scheduler failure
	// leaves the session unchanged.
	if err := s.scheduler.Schedule(ctx, q.ID, q.TimeBudget); err != nil {
		return nil, fmt.Errorf("arm round timer: %w", err)
	}

	s.unused = s.unused[1:]
	s.used = append(s.used, q)
	s.current = q
	if err := q.Start(s.now()); err != nil {
		return nil, err
	}
	s.state = StateInQuestion
	s.changed()
	return q, nil
}

// SubmitAnswer records an answer against the live question. It returns
// false, touching nothing, when no question is live, the question id does
// not match, or the player already answered. Once every active participant
// has answered, the question closes without waiting for the timer.
func (s *Session) SubmitAnswer(playerID, questionID, text string) bool {
	if s.current == nil || s.current.ID != questionID {
		return false
	}
	accepted := s.current.Submit(playerID, text, s.now())
	if accepted {
		s.changed()
	}
	if s.allAnswered() {
		s.finishQuestion()
	}
	return accepted
}

// TimeUp is the round-timer callback. A fire for anything but the live
// question is stale (the question already closed early) and is ignored.
func (s *Session) TimeUp(questionID string) {
	if s.current == nil || s.current.ID != questionID {
		return
	}
	s.finishQuestion()
}

// finishQuestion closes the live question, recomputes scores and moves to
// BetweenQuestions, or Finished when the queue is empty. Safe to call with
// no live question.
func (s *Session) finishQuestion() {
	if s.current == nil {
		return
	}
	s.current = nil
	if len(s.unused) == 0 {
		s.state = StateFinished
	} else {
		s.state = StateBetweenQuestions
	}
	s.computeScores()
	s.changed()
}

// allAnswered reports whether every active participant has answered the
// live question. Spectators do not count.
func (s *Session) allAnswered() bool {
	if s.current == nil {
		return false
	}
	answered := make(map[string]struct{})
	for _, id := range s.current.AnsweredPlayerIDs() {
		answered[id] = struct{}{}
	}
	for _, id := range s.participants.ActiveIDs() {
		if _, ok := answered[id]; !ok {
			return false
		}
	}
	return true
}

// computeScores rebuilds the score table from scratch: every active player
// starts at 0 and collects their rank points from each closed question. The
// live question contributes nothing until it finishes.
func (s *Session) computeScores() {
	scores := make(map[string]int)
	for _, id := range s.participants.ActiveIDs() {
		scores[id] = 0
	}
	for _, q := range s.used {
		if q == s.current {
			continue
		}
		for id, points := range q.Scores() {
			if _, active := scores[id]; active {
				scores[id] += points
			}
		}
	}
	s.scores = scores
}

// Scores returns the current score table keyed by player id.
func (s *Session) Scores() map[string]int {
	out := make(map[string]int, len(s.scores))
	for id, sc := range s.scores {
		out[id] = sc
	}
	return out
}

// lastFinished returns the most recently closed question, nil if none has
// closed yet. The live question is never the reveal.
func (s *Session) lastFinished() *Question {
	for i := len(s.used) - 1; i >= 0; i-- {
		if s.used[i] != s.current {
			return s.used[i]
		}
	}
	return nil
}

// changed builds a snapshot of the session and pushes it to every attached
// sink, spectators included.
func (s *Session) changed() {
	snap := s.BuildSnapshot()
	for _, p := range s.participants.All() {
		p.Sink().Send(snap)
	}
}
