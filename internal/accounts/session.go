package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/acme/storefront/internal/domain"
)

const sessionTTL = 24 * time.Hour

// SessionStore maps bearer tokens to principals in Redis. Tokens are opaque
// uuids; expiry is handled by the key TTL.
type SessionStore struct {
	client *redis.Client
}

func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

func (s *SessionStore) Issue(ctx context.Context, p domain.Principal) (string, error) {
	token := uuid.New().String()

	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal principal: %w", err)
	}

	if err := s.client.Set(ctx, sessionKey(token), data, sessionTTL).Err(); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}

	return token, nil
}

func (s *SessionStore) Resolve(ctx context.Context, token string) (domain.Principal, error) {
	data, err := s.client.Get(ctx, sessionKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return domain.Principal{}, domain.ErrInvalidToken
	}
	if err != nil {
		return domain.Principal{}, fmt.Errorf("load session: %w", err)
	}

	var p domain.Principal
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return domain.Principal{}, fmt.Errorf("unmarshal principal: %w", err)
	}

	return p, nil
}

func (s *SessionStore) Revoke(ctx context.Context, token string) error {
	return s.client.Del(ctx, sessionKey(token)).Err()
}

func sessionKey(token string) string {
	return "session:" + token
}
