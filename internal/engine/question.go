package engine

import (
	"errors"
	"math"
	"sort"
	"strconv"
	"time"
)

const (
	// DefaultScoreBudget is the number of points the winner of a question earns.
	DefaultScoreBudget = 100
	// DefaultTimeBudget is how long a question stays open once started.
	DefaultTimeBudget = 20 * time.Second
	// MaxDistance is assigned to numeric answers that do not parse, so they
	// still take part in ranking but sort behind every parseable answer.
	MaxDistance = math.MaxInt32
)

// ErrAlreadyStarted is returned when a question is activated twice.
var ErrAlreadyStarted = errors.New("question already started")

// Answer is one player's submission against a question. First submission
// wins; later ones are rejected.
type Answer struct {
	PlayerID   string
	Text       string
	AnsweredAt time.Time
	// TimeSpent is the elapsed time between question start and submission.
	TimeSpent time.Duration
	// Distance is 0 for a correct answer. Choice questions use 0/1, numeric
	// questions use the absolute difference from the correct value.
	Distance int
}

// Correct reports whether the answer matched exactly.
func (a Answer) Correct() bool { return a.Distance == 0 }

// Question is a single trivia item together with the answers submitted
// against it. Once a question stops being the session's current question it
// is never mutated again.
type Question struct {
	ID            string
	Text          string
	SourceURL     string
	CorrectAnswer string
	// Alternatives are the multiple-choice options. Empty means free-form
	// numeric answer.
	Alternatives []string
	ScoreBudget  int
	TimeBudget   time.Duration

	startedAt time.Time
	deadline  time.Time

	answers     map[string]Answer
	answerOrder []string
}

// NewQuestion builds a question with the default score and time budgets.
func NewQuestion(id, text, sourceURL, correctAnswer string, alternatives []string) *Question {
	return &Question{
		ID:            id,
		Text:          text,
		SourceURL:     sourceURL,
		CorrectAnswer: correctAnswer,
		Alternatives:  alternatives,
		ScoreBudget:   DefaultScoreBudget,
		TimeBudget:    DefaultTimeBudget,
		answers:       make(map[string]Answer),
	}
}

// Start activates the question, fixing its start time and deadline.
func (q *Question) Start(now time.Time) error {
	if q.Started() {
		return ErrAlreadyStarted
	}
	q.startedAt = now
	q.deadline = now.Add(q.TimeBudget)
	return nil
}

// Started reports whether the question has been activated.
func (q *Question) Started() bool { return !q.startedAt.IsZero() }

// StartedAt returns the activation time, zero if not started.
func (q *Question) StartedAt() time.Time { return q.startedAt }

// Deadline returns the time the question expires, zero if not started.
func (q *Question) Deadline() time.Time { return q.deadline }

// HasAlternatives reports whether this is a multiple-choice question.
func (q *Question) HasAlternatives() bool { return len(q.Alternatives) > 0 }

// Submit records a player's answer. It returns false without mutating
// anything if the question has not started or the player already answered.
func (q *Question) Submit(playerID, text string, at time.Time) bool {
	if !q.Started() {
		return false
	}
	if _, answered := q.answers[playerID]; answered {
		return false
	}
	q.answers[playerID] = Answer{
		PlayerID:   playerID,
		Text:       text,
		AnsweredAt: at,
		TimeSpent:  at.Sub(q.startedAt),
		Distance:   q.Distance(text),
	}
	q.answerOrder = append(q.answerOrder, playerID)
	return true
}

// Distance measures how far an answer is from correct. Multiple-choice
// questions yield 0 or 1; numeric questions yield the absolute difference,
// or MaxDistance when the submission does not parse.
func (q *Question) Distance(text string) int {
	if q.HasAlternatives() {
		if text == q.CorrectAnswer {
			return 0
		}
		return 1
	}
	submitted, err := strconv.Atoi(text)
	if err != nil {
		return MaxDistance
	}
	correct, err := strconv.Atoi(q.CorrectAnswer)
	if err != nil {
		return MaxDistance
	}
	d := submitted - correct
	if d < 0 {
		d = -d
	}
	return d
}

// AnswerOf returns the recorded answer for a player, if any.
func (q *Question) AnswerOf(playerID string) (Answer, bool) {
	a, ok := q.answers[playerID]
	return a, ok
}

// Answers returns all recorded answers in submission order.
func (q *Question) Answers() []Answer {
	out := make([]Answer, 0, len(q.answerOrder))
	for _, id := range q.answerOrder {
		out = append(out, q.answers[id])
	}
	return out
}

// AnsweredPlayerIDs returns the ids that have answered, in submission order.
func (q *Question) AnsweredPlayerIDs() []string {
	out := make([]string, len(q.answerOrder))
	copy(out, q.answerOrder)
	return out
}

// Scores ranks the submitted answers and assigns points per rank. Answers
// sort by distance ascending, ties broken by submission time ascending. The
// answer at place n earns ScoreBudget/n, except that on multiple-choice
// questions only exact answers score; wrong choices always get 0. Numeric
// questions pay every responder by place, closer guesses placing higher.
func (q *Question) Scores() map[string]int {
	ranked := q.Answers()
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Distance != ranked[j].Distance {
			return ranked[i].Distance < ranked[j].Distance
		}
		return ranked[i].AnsweredAt.Before(ranked[j].AnsweredAt)
	})

	scores := make(map[string]int, len(ranked))
	for i, a := range ranked {
		place := i + 1
		if q.HasAlternatives() && !a.Correct() {
			scores[a.PlayerID] = 0
			continue
		}
		scores[a.PlayerID] = q.ScoreBudget / place
	}
	return scores
}
