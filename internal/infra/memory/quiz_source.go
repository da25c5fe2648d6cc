package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quizcroc-service/internal/domain"
)

// QuizLoader fetches quiz content from a backing store (e.g., Postgres).
type QuizLoader interface {
	LoadQuiz(ctx context.Context, topic string) (domain.Quiz, error)
}

// QuizSource caches quizzes per topic with TTL to avoid repeated loads.
type QuizSource struct {
	loader QuizLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedQuiz
}

type cachedQuiz struct {
	quiz      domain.Quiz
	expiresAt time.Time
}

func NewQuizSource(loader QuizLoader, ttl time.Duration) *QuizSource {
	return &QuizSource{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedQuiz),
	}
}

func (r *QuizSource) GetQuiz(ctx context.Context, topic string) (domain.Quiz, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[topic]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.quiz, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(topic, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[topic]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.quiz, nil
		}
		r.mu.RUnlock()

		quiz, err := r.loader.LoadQuiz(ctx, topic)
		if err != nil {
			return domain.Quiz{}, err
		}

		r.mu.Lock()
		r.cache[topic] = cachedQuiz{
			quiz:      quiz,
			expiresAt: now.Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

func (r *QuizSource) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticQuizLoader is a loader backed by an in-memory map (useful for
// tests/demos).
type StaticQuizLoader struct {
	quizzes map[string]domain.Quiz
	// fallback is served for topics with no authored quiz; zero value
	// disables the fallback.
	fallback domain.Quiz
}

func NewStaticQuizLoader(quizzes map[string]domain.Quiz) *StaticQuizLoader {
	return &StaticQuizLoader{quizzes: quizzes}
}

// NewStaticQuizLoaderWithFallback serves fallback for unknown topics.
func NewStaticQuizLoaderWithFallback(quizzes map[string]domain.Quiz, fallback domain.Quiz) *StaticQuizLoader {
	return &StaticQuizLoader{quizzes: quizzes, fallback: fallback}
}

func (l *StaticQuizLoader) LoadQuiz(_ context.Context, topic string) (domain.Quiz, error) {
	if quiz, ok := l.quizzes[topic]; ok {
		return quiz, nil
	}
	if len(l.fallback.Questions) > 0 {
		return l.fallback, nil
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}
