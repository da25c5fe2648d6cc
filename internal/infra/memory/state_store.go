package memory

import (
	"context"
	"sync"

	"quizcroc-service/internal/domain"
)

// StateStore is an in-memory implementation of app.GameStateStore.
type StateStore struct {
	mu     sync.RWMutex
	states map[string][]byte
}

func NewStateStore() *StateStore {
	return &StateStore{states: make(map[string][]byte)}
}

func (s *StateStore) Save(_ context.Context, gameID string, state []byte) error {
	buf := make([]byte, len(state))
	copy(buf, state)
	s.mu.Lock()
	s.states[gameID] = buf
	s.mu.Unlock()
	return nil
}

func (s *StateStore) Load(_ context.Context, gameID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[gameID]
	if !ok {
		return nil, domain.ErrGameNotFound
	}
	buf := make([]byte, len(state))
	copy(buf, state)
	return buf, nil
}
