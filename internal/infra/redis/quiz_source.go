package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quizcroc-service/internal/domain"
)

// QuizLoader fetches quiz content from a backing store (e.g., Postgres).
type QuizLoader interface {
	LoadQuiz(ctx context.Context, topic string) (domain.Quiz, error)
}

// QuizSource caches quiz JSON in Redis (one key per topic) and falls back to
// a loader on cache miss, so multiple service instances share one cache.
type QuizSource struct {
	client *redis.Client
	loader QuizLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuizSource(client *redis.Client, loader QuizLoader, ttl time.Duration) *QuizSource {
	return &QuizSource{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuizSource) GetQuiz(ctx context.Context, topic string) (domain.Quiz, error) {
	if quiz, ok := r.cached(ctx, topic); ok {
		return quiz, nil
	}

	result, err, _ := r.sf.Do(topic, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if quiz, ok := r.cached(ctx, topic); ok {
			return quiz, nil
		}

		quiz, err := r.loader.LoadQuiz(ctx, topic)
		if err != nil {
			return domain.Quiz{}, err
		}

		data, err := json.Marshal(quiz)
		if err != nil {
			return domain.Quiz{}, fmt.Errorf("marshal quiz: %w", err)
		}
		// best-effort cache fill
		_ = r.client.Set(ctx, r.key(topic), data, r.ttlWithJitter()).Err()

		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

func (r *QuizSource) cached(ctx context.Context, topic string) (domain.Quiz, bool) {
	data, err := r.client.Get(ctx, r.key(topic)).Bytes()
	if err != nil {
		return domain.Quiz{}, false
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(data, &quiz); err != nil {
		return domain.Quiz{}, false
	}
	return quiz, true
}

func (r *QuizSource) key(topic string) string {
	return "quizcroc:quiz:" + topic
}

func (r *QuizSource) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
