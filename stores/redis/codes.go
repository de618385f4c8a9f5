// Package redis provides a TTL-native confirmation code store. Redis
// expires codes on its own clock, SETNX enforces code uniqueness while
// live, and GETDEL makes consumption at-most-once.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CodeStore implements celauth.CodeStore on a redis client. Compose it into
// a durable registry store, e.g. gorm.NewRegistryStore(db, acct,
// gorm.WithCodeStore(codes)).
type CodeStore struct {
	client *redis.Client
	prefix string
	ctx    context.Context
}

// NewCodeStore creates a redis-backed code store. Keys are namespaced under
// "celauth:code:".
func NewCodeStore(client *redis.Client) *CodeStore {
	return &CodeStore{
		client: client,
		prefix: "celauth:code:",
		ctx:    context.Background(),
	}
}

// WithContext returns a copy of the store bound to the given context.
func (s *CodeStore) WithContext(ctx context.Context) *CodeStore {
	return &CodeStore{client: s.client, prefix: s.prefix, ctx: ctx}
}

func (s *CodeStore) key(code string) string {
	return s.prefix + code
}

func (s *CodeStore) SaveConfirmationCode(code, address string, ttl time.Duration) error {
	ok, err := s.client.SetNX(s.ctx, s.key(code), address, ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to save confirmation code: %w", err)
	}
	if !ok {
		return fmt.Errorf("confirmation code collision for %q", code)
	}
	return nil
}

func (s *CodeStore) ConsumeConfirmationCode(code string) (string, error) {
	address, err := s.client.GetDel(s.ctx, s.key(code)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to consume confirmation code: %w", err)
	}
	return address, nil
}
