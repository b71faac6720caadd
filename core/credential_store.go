package core

import (
	"context"
	"fmt"
	"sync"
)

// MemoryCredentialStore keeps the token in process memory.
type MemoryCredentialStore struct {
	mu    sync.RWMutex
	token AccessToken
	found bool
}

func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{}
}

func (s *MemoryCredentialStore) Load(context.Context) (AccessToken, bool, error) {
	if s == nil {
		return AccessToken{}, false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.found {
		return AccessToken{}, false, nil
	}
	return s.token.Clone(), true, nil
}

func (s *MemoryCredentialStore) Save(_ context.Context, token AccessToken) error {
	if s == nil {
		return fmt.Errorf("core: credential store is not configured")
	}
	if token.IsZero() {
		return fmt.Errorf("core: access token is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token.Clone()
	s.found = true
	return nil
}
