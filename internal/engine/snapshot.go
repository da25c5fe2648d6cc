package engine

// Snapshot is the immutable view of a session pushed to every sink after a
// mutation. The live question never carries its correct answer; the last
// finished question does, for reveal.
type Snapshot struct {
	GameID          string         `json:"gameId"`
	State           State          `json:"gameState"`
	Topic           string         `json:"topic"`
	CurrentQuestion *LiveQuestion  `json:"currentQuestion"`
	LastQuestion    *QuestionReveal `json:"lastQuestion"`
	Scores          []ScoreEntry   `json:"score"`
}

// LiveQuestion is the redacted view of the question currently accepting
// answers.
type LiveQuestion struct {
	ID              string   `json:"id"`
	Text            string   `json:"text"`
	Alternatives    []string `json:"alternativeAnswers,omitempty"`
	RemainingMillis int64    `json:"remainingMillis"`
	Answered        []string `json:"answeredPlayerIds"`
}

// QuestionReveal is the full view of a closed question, correct answer and
// per-player results included.
type QuestionReveal struct {
	ID            string         `json:"id"`
	Text          string         `json:"text"`
	SourceURL     string         `json:"sourceUrl,omitempty"`
	CorrectAnswer string         `json:"correctAnswer"`
	Alternatives  []string       `json:"alternativeAnswers,omitempty"`
	Answers       []AnswerResult `json:"answers"`
}

// AnswerResult is one player's outcome on a closed question.
type AnswerResult struct {
	PlayerID        string `json:"playerId"`
	Text            string `json:"answer"`
	Distance        int    `json:"distanceFromCorrect"`
	TimeSpentMillis int64  `json:"timeSpentMillis"`
	Points          int    `json:"points"`
}

// ScoreEntry is one row of the score table. Entries keep the registry's
// join order so output is reproducible.
type ScoreEntry struct {
	PlayerID string `json:"playerId"`
	Score    int    `json:"score"`
}

// BuildSnapshot assembles the outbound view of the session.
func (s *Session) BuildSnapshot() Snapshot {
	snap := Snapshot{
		GameID: s.id,
		State:  s.state,
		Topic:  s.topic,
	}

	if s.current != nil {
		remaining := s.current.Deadline().Sub(s.now()).Milliseconds()
		if remaining < 0 {
			remaining = 0
		}
		snap.CurrentQuestion = &LiveQuestion{
			ID:              s.current.ID,
			Text:            s.current.Text,
			Alternatives:    s.current.Alternatives,
			RemainingMillis: remaining,
			Answered:        s.current.AnsweredPlayerIDs(),
		}
	}

	if last := s.lastFinished(); last != nil {
		points := last.Scores()
		reveal := &QuestionReveal{
			ID:            last.ID,
			Text:          last.Text,
			SourceURL:     last.SourceURL,
			CorrectAnswer: last.CorrectAnswer,
			Alternatives:  last.Alternatives,
		}
		for _, a := range last.Answers() {
			reveal.Answers = append(reveal.Answers, AnswerResult{
				PlayerID:        a.PlayerID,
				Text:            a.Text,
				Distance:        a.Distance,
				TimeSpentMillis: a.TimeSpent.Milliseconds(),
				Points:          points[a.PlayerID],
			})
		}
		snap.LastQuestion = reveal
	}

	for _, id := range s.participants.ActiveIDs() {
		snap.Scores = append(snap.Scores, ScoreEntry{PlayerID: id, Score: s.scores[id]})
	}
	return snap
}
