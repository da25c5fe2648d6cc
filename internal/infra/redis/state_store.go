package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"quizcroc-service/internal/domain"
)

// StateStore keeps serialized game sessions in Redis so a game survives a
// host restart. One key per game, refreshed with a TTL on every save.
type StateStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStateStore(client *redis.Client, ttl time.Duration) *StateStore {
	return &StateStore{client: client, ttl: ttl}
}

func (s *StateStore) Save(ctx context.Context, gameID string, state []byte) error {
	return s.client.Set(ctx, s.key(gameID), state, s.ttl).Err()
}

func (s *StateStore) Load(ctx context.Context, gameID string) ([]byte, error) {
	state, err := s.client.Get(ctx, s.key(gameID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrGameNotFound
	}
	if err != nil {
		return nil, err
	}
	return state, nil
}

func (s *StateStore) key(gameID string) string {
	return "quizcroc:game:" + gameID
}
