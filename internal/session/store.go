package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"fwk-assistant/internal/kv"
	"fwk-assistant/internal/model"
)

const (
	KeyUser   = "user"
	KeyAPIKey = "api_key"
)

// Store reads and writes the two session values of one client.
type Store struct {
	kv     kv.Store
	prefix string
}

func NewStore(backend kv.Store, prefix string) *Store {
	return &Store{kv: backend, prefix: prefix}
}

func (s *Store) userKey() string   { return s.prefix + KeyUser }
func (s *Store) apiKeyKey() string { return s.prefix + KeyAPIKey }

// Session returns nil when no session is stored.
func (s *Store) Session(ctx context.Context) (*model.Session, error) {
	raw, ok, err := s.kv.Get(ctx, s.userKey())
	if err != nil {
		return nil, fmt.Errorf("read session failed: %w", err)
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var sess model.Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, fmt.Errorf("decode session failed: %w", err)
	}
	return &sess, nil
}

func (s *Store) SaveSession(ctx context.Context, sess model.Session) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session failed: %w", err)
	}
	if err := s.kv.Set(ctx, s.userKey(), string(payload)); err != nil {
		return fmt.Errorf("write session failed: %w", err)
	}
	return nil
}

// APIKey returns the saved key verbatim.
func (s *Store) APIKey(ctx context.Context) (string, bool, error) {
	key, ok, err := s.kv.Get(ctx, s.apiKeyKey())
	if err != nil {
		return "", false, fmt.Errorf("read api key failed: %w", err)
	}
	if !ok || key == "" {
		return "", false, nil
	}
	return key, true, nil
}

func (s *Store) SaveAPIKey(ctx context.Context, key string) error {
	if err := s.kv.Set(ctx, s.apiKeyKey(), key); err != nil {
		return fmt.Errorf("write api key failed: %w", err)
	}
	return nil
}

// Clear removes both values. Both deletes are attempted even if the first
// one fails.
func (s *Store) Clear(ctx context.Context) error {
	userErr := s.kv.Delete(ctx, s.userKey())
	keyErr := s.kv.Delete(ctx, s.apiKeyKey())
	if err := errors.Join(userErr, keyErr); err != nil {
		return fmt.Errorf("clear session failed: %w", err)
	}
	return nil
}
