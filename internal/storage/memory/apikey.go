package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/xenking/couponables/internal/domain/auth"
)

var _ auth.Repository = (*APIKeys)(nil)

// APIKeys holds API keys by ID.
type APIKeys struct {
	mu   sync.RWMutex
	byID map[string]auth.APIKeyInfo
}

// NewAPIKeys returns an APIKeys seeded with keys.
func NewAPIKeys(keys ...auth.APIKeyInfo) *APIKeys {
	s := &APIKeys{byID: make(map[string]auth.APIKeyInfo, len(keys))}
	for _, k := range keys {
		s.byID[k.ID] = k
	}
	return s
}

// FindByHash implements auth.Repository.
func (s *APIKeys) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, k := range s.byID {
		if k.KeyHash == hash {
			k.Scopes = slices.Clone(k.Scopes)
			return &k, nil
		}
	}
	return nil, auth.ErrNotFound
}

// Upsert stores info, replacing any key with the same ID.
func (s *APIKeys) Upsert(_ context.Context, info auth.APIKeyInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	info.Scopes = slices.Clone(info.Scopes)
	s.byID[info.ID] = info
	return nil
}
