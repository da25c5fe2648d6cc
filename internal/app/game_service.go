package app

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"quizcroc-service/internal/domain"
	"quizcroc-service/internal/engine"
)

// GameStateStore persists serialized sessions (in-memory, Redis, etc).
type GameStateStore interface {
	Save(ctx context.Context, gameID string, state []byte) error
	// Load returns domain.ErrGameNotFound when no state exists for the id.
	Load(ctx context.Context, gameID string) ([]byte, error)
}

// QuizSource supplies quiz content for a topic (from cache/backing store).
type QuizSource interface {
	GetQuiz(ctx context.Context, topic string) (domain.Quiz, error)
}

// GameService hosts the session engines. It serializes every mutation on a
// game behind a per-game mutex and persists the session after each one, so a
// mutation is only acknowledged once its state change is durable.
type GameService struct {
	store   GameStateStore
	quizzes QuizSource

	mu    sync.Mutex
	games map[string]*liveGame
}

type liveGame struct {
	id string
	mu sync.Mutex
	// session access requires mu: the engine performs no internal locking.
	session *engine.Session
}

func NewGameService(store GameStateStore, quizzes QuizSource) *GameService {
	return &GameService{
		store:   store,
		quizzes: quizzes,
		games:   make(map[string]*liveGame),
	}
}

// CreatedGame describes a freshly created game for the caller.
type CreatedGame struct {
	GameID        string `json:"gameId"`
	QuizName      string `json:"quizName"`
	QuestionCount int    `json:"questionCount"`
}

// CreateGame loads the quiz for a topic, builds a session around it and
// persists the initial state.
func (s *GameService) CreateGame(ctx context.Context, topic string) (CreatedGame, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, topic)
	if err != nil {
		return CreatedGame{}, err
	}
	if len(quiz.Questions) == 0 {
		return CreatedGame{}, domain.ErrEmptyQuiz
	}

	gameID := uuid.NewString()
	questions := make([]*engine.Question, 0, len(quiz.Questions))
	for i, q := range quiz.Questions {
		questions = append(questions, engine.NewQuestion(strconv.Itoa(i), q.Text, q.SourceURL, q.CorrectAnswer, q.Alternatives))
	}

	g := &liveGame{
		id:      gameID,
		session: engine.NewSession(gameID, quiz.Name, questions, s.schedulerFor(gameID)),
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if err := s.persist(ctx, g); err != nil {
		return CreatedGame{}, err
	}

	s.mu.Lock()
	s.games[gameID] = g
	s.mu.Unlock()

	return CreatedGame{GameID: gameID, QuizName: quiz.Name, QuestionCount: len(questions)}, nil
}

// Join attaches a player (or reattaches a reconnecting one) with a live sink.
func (s *GameService) Join(ctx context.Context, gameID, playerID string, sink engine.EventSink) error {
	g, err := s.resolve(ctx, gameID)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.session.Join(playerID, sink)
	return s.persist(ctx, g)
}

// NextQuestion advances the session to its next question.
func (s *GameService) NextQuestion(ctx context.Context, gameID string) error {
	g, err := s.resolve(ctx, gameID)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, err := g.session.NextQuestion(ctx); err != nil {
		return err
	}
	return s.persist(ctx, g)
}

// SubmitAnswer records a player's answer. The accepted flag mirrors the
// engine's verdict; rejected submissions are not persisted.
func (s *GameService) SubmitAnswer(ctx context.Context, gameID, playerID, questionID, answer string) (bool, error) {
	g, err := s.resolve(ctx, gameID)
	if err != nil {
		return false, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	hadCurrent := g.session.CurrentQuestion() != nil
	accepted := g.session.SubmitAnswer(playerID, questionID, answer)
	closed := hadCurrent && g.session.CurrentQuestion() == nil
	if !accepted && !closed {
		// Nothing changed, nothing to save.
		return false, nil
	}
	return accepted, s.persist(ctx, g)
}

// SetSpectator toggles a participant between playing and spectating.
func (s *GameService) SetSpectator(ctx context.Context, gameID, playerID string, spectator bool) error {
	g, err := s.resolve(ctx, gameID)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.session.SetSpectator(playerID, spectator)
	return s.persist(ctx, g)
}

// TimeUp is the round-timer callback. It runs on a timer goroutine, so it
// takes the game lock like any other mutation and saves best-effort.
func (s *GameService) TimeUp(gameID, questionID string) {
	ctx := context.Background()
	g, err := s.resolve(ctx, gameID)
	if err != nil {
		log.Printf("time up for unknown game %s: %v", gameID, err)
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	hadCurrent := g.session.CurrentQuestion() != nil
	g.session.TimeUp(questionID)
	if !hadCurrent || g.session.CurrentQuestion() != nil {
		// Stale fire, nothing changed.
		return
	}
	if err := s.persist(ctx, g); err != nil {
		log.Printf("persist game %s after time up: %v", gameID, err)
	}
}

// resolve returns the live game, restoring it from the state store when the
// process has no runtime copy (host restart). Restored participants carry
// no-op sinks until their clients rejoin.
func (s *GameService) resolve(ctx context.Context, gameID string) (*liveGame, error) {
	s.mu.Lock()
	g, ok := s.games[gameID]
	s.mu.Unlock()
	if ok {
		return g, nil
	}

	data, err := s.store.Load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	session, err := engine.RestoreSession(data, s.schedulerFor(gameID))
	if err != nil {
		return nil, fmt.Errorf("restore game %s: %w", gameID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.games[gameID]; ok {
		// Another caller restored it first.
		return g, nil
	}
	g = &liveGame{id: gameID, session: session}
	s.games[gameID] = g
	return g, nil
}

func (s *GameService) persist(ctx context.Context, g *liveGame) error {
	data, err := g.session.MarshalState()
	if err != nil {
		return fmt.Errorf("marshal game %s: %w", g.id, err)
	}
	if err := s.store.Save(ctx, g.id, data); err != nil {
		return fmt.Errorf("save game %s: %w", g.id, err)
	}
	return nil
}

func (s *GameService) schedulerFor(gameID string) engine.Scheduler {
	return engine.NewWallClockScheduler(func(questionID string) {
		s.TimeUp(gameID, questionID)
	})
}
