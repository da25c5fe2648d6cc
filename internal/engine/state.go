package engine

import (
	"encoding/json"
	"fmt"
	"time"
)

// The persisted form of a session. Notification sinks are not serializable;
// restored participants carry NopSink until the host reattaches live ones.

type sessionState struct {
	ID                string             `json:"id"`
	Topic             string             `json:"topic"`
	State             State              `json:"state"`
	Unused            []questionState    `json:"unusedQuestions"`
	Used              []questionState    `json:"usedQuestions"`
	CurrentQuestionID string             `json:"currentQuestionId,omitempty"`
	Participants      []participantState `json:"participants"`
}

type questionState struct {
	ID            string        `json:"id"`
	Text          string        `json:"text"`
	SourceURL     string        `json:"sourceUrl,omitempty"`
	CorrectAnswer string        `json:"correctAnswer"`
	Alternatives  []string      `json:"alternativeAnswers"`
	ScoreBudget   int           `json:"scoreBudget"`
	TimeMillis    int64         `json:"timeMillis"`
	StartedAt     *time.Time    `json:"startedAt,omitempty"`
	Deadline      *time.Time    `json:"deadline,omitempty"`
	Answers       []answerState `json:"answers"`
}

type answerState struct {
	PlayerID        string    `json:"playerId"`
	Text            string    `json:"answer"`
	AnsweredAt      time.Time `json:"answeredAt"`
	TimeSpentMillis int64     `json:"timeSpentMillis"`
	Distance        int       `json:"distanceFromCorrect"`
}

type participantState struct {
	PlayerID  string `json:"playerId"`
	Spectator bool   `json:"spectator"`
}

// MarshalState serializes the full session: lifecycle state, both question
// queues with their answers and activation timestamps, and participant
// roles. The score table is not persisted; it is recomputed on restore.
func (s *Session) MarshalState() ([]byte, error) {
	st := sessionState{
		ID:     s.id,
		Topic:  s.topic,
		State:  s.state,
		Unused: make([]questionState, 0, len(s.unused)),
		Used:   make([]questionState, 0, len(s.used)),
	}
	for _, q := range s.unused {
		st.Unused = append(st.Unused, marshalQuestion(q))
	}
	for _, q := range s.used {
		st.Used = append(st.Used, marshalQuestion(q))
	}
	if s.current != nil {
		st.CurrentQuestionID = s.current.ID
	}
	for _, p := range s.participants.All() {
		st.Participants = append(st.Participants, participantState{PlayerID: p.ID, Spectator: p.Spectator})
	}
	return json.Marshal(st)
}

func marshalQuestion(q *Question) questionState {
	st := questionState{
		ID:            q.ID,
		Text:          q.Text,
		SourceURL:     q.SourceURL,
		CorrectAnswer: q.CorrectAnswer,
		Alternatives:  q.Alternatives,
		ScoreBudget:   q.ScoreBudget,
		TimeMillis:    q.TimeBudget.Milliseconds(),
	}
	if q.Started() {
		started, deadline := q.StartedAt(), q.Deadline()
		st.StartedAt = &started
		st.Deadline = &deadline
	}
	for _, a := range q.Answers() {
		st.Answers = append(st.Answers, answerState{
			PlayerID:        a.PlayerID,
			Text:            a.Text,
			AnsweredAt:      a.AnsweredAt,
			TimeSpentMillis: a.TimeSpent.Milliseconds(),
			Distance:        a.Distance,
		})
	}
	return st
}

// RestoreSession rebuilds a session from persisted state. Malformed or
// inconsistent data fails loudly: answer history cannot be recovered, so a
// silently corrupt session is worse than a startup error.
func RestoreSession(data []byte, scheduler Scheduler) (*Session, error) {
	var st sessionState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decode session state: %w", err)
	}
	if st.ID == "" {
		return nil, fmt.Errorf("session state missing id")
	}
	switch st.State {
	case StatePreparing, StateInQuestion, StateBetweenQuestions, StateFinished:
	default:
		return nil, fmt.Errorf("session state %q unknown", st.State)
	}

	s := NewSession(st.ID, st.Topic, nil, scheduler)
	s.state = st.State
	for _, qs := range st.Unused {
		q, err := restoreQuestion(qs)
		if err != nil {
			return nil, err
		}
		s.unused = append(s.unused, q)
	}
	for _, qs := range st.Used {
		q, err := restoreQuestion(qs)
		if err != nil {
			return nil, err
		}
		s.used = append(s.used, q)
	}

	if st.CurrentQuestionID != "" {
		if len(s.used) == 0 || s.used[len(s.used)-1].ID != st.CurrentQuestionID {
			return nil, fmt.Errorf("current question %q is not the last used question", st.CurrentQuestionID)
		}
		s.current = s.used[len(s.used)-1]
	}
	if (s.current != nil) != (st.State == StateInQuestion) {
		return nil, fmt.Errorf("state %s inconsistent with current question", st.State)
	}

	for _, ps := range st.Participants {
		if ps.PlayerID == "" {
			return nil, fmt.Errorf("participant missing player id")
		}
		s.participants.restore(ps.PlayerID, ps.Spectator)
	}

	s.computeScores()
	return s, nil
}

func restoreQuestion(st questionState) (*Question, error) {
	if st.ID == "" {
		return nil, fmt.Errorf("question state missing id")
	}
	q := NewQuestion(st.ID, st.Text, st.SourceURL, st.CorrectAnswer, st.Alternatives)
	if st.ScoreBudget > 0 {
		q.ScoreBudget = st.ScoreBudget
	}
	if st.TimeMillis > 0 {
		q.TimeBudget = time.Duration(st.TimeMillis) * time.Millisecond
	}
	if st.StartedAt != nil {
		q.startedAt = *st.StartedAt
		if st.Deadline != nil {
			q.deadline = *st.Deadline
		} else {
			q.deadline = st.StartedAt.Add(q.TimeBudget)
		}
	}
	for _, as := range st.Answers {
		if as.PlayerID == "" {
			return nil, fmt.Errorf("question %s: answer missing player id", st.ID)
		}
		if _, dup := q.answers[as.PlayerID]; dup {
			return nil, fmt.Errorf("question %s: duplicate answer for player %s", st.ID, as.PlayerID)
		}
		if !q.Started() {
			return nil, fmt.Errorf("question %s: has answers but never started", st.ID)
		}
		q.answers[as.PlayerID] = Answer{
			PlayerID:   as.PlayerID,
			Text:       as.Text,
			AnsweredAt: as.AnsweredAt,
			TimeSpent:  time.Duration(as.TimeSpentMillis) * time.Millisecond,
			Distance:   as.Distance,
		}
		q.answerOrder = append(q.answerOrder, as.PlayerID)
	}
	return q, nil
}
