package cache

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"
)

const (
	stateKeyPrefix = "oauth_state:"
	StateTTL       = 10 * time.Minute
)

var ErrStateNotFound = errors.New("oauth state not found or expired")

type StateStore struct {
	client Client
}

func NewStateStore(client Client) *StateStore {
	return &StateStore{client: client}
}

// Issue creates a random state value and remembers the provider it was
// issued for.
func (s *StateStore) Issue(ctx context.Context, provider string) (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	state := base64.RawURLEncoding.EncodeToString(buf)

	if err := s.client.Set(ctx, stateKeyPrefix+state, provider, StateTTL); err != nil {
		return "", err
	}
	return state, nil
}

// Consume validates a state exactly once.
func (s *StateStore) Consume(ctx context.Context, state, provider string) error {
	if state == "" {
		return ErrStateNotFound
	}

	got, err := s.client.GetDel(ctx, stateKeyPrefix+state)
	if errors.Is(err, ErrCacheMiss) {
		return ErrStateNotFound
	}
	if err != nil {
		return err
	}
	if got != provider {
		return ErrStateNotFound
	}
	return nil
}
