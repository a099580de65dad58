package store

import (
	"context"
	"sync"
	"time"

	"gatewarden/internal/presence"
	id "gatewarden/pkg/domain"
)

// MemoryStore is the in-process presence store used in development and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[id.IdentityID]presence.State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[id.IdentityID]presence.State)}
}

func (s *MemoryStore) Get(_ context.Context, identityID id.IdentityID) (presence.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if state, ok := s.states[identityID]; ok {
		return state, nil
	}
	return presence.State{IdentityID: identityID, Status: presence.StatusOut}, nil
}

func (s *MemoryStore) Flip(_ context.Context, identityID id.IdentityID, expected presence.Status, transitionAt time.Time) (presence.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.states[identityID]
	if !ok {
		current = presence.State{IdentityID: identityID, Status: presence.StatusOut}
	}
	if current.Status != expected {
		return presence.State{}, ErrStaleState
	}

	current.Status = expected.Toggled()
	current.LastTransitionAt = transitionAt
	s.states[identityID] = current
	return current, nil
}

func (s *MemoryStore) CountIn(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, state := range s.states {
		if state.Status == presence.StatusIn {
			count++
		}
	}
	return count, nil
}
