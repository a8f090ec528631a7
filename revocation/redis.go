package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps denylist entries in Redis with native key expiry
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// Option configures a store
type Option func(*RedisStore)

// WithPrefix overrides DefaultPrefix
func WithPrefix(prefix string) Option {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// NewRedisStore creates a new denylist over client.
func NewRedisStore(client redis.UniversalClient, opts ...Option) *RedisStore {
	s := &RedisStore{
		client: client,
		prefix: DefaultPrefix,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// NewRedisClient parses a redis:// URL
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("revocation: parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func (s *RedisStore) key(token string) string {
	return s.prefix + Fingerprint(token)
}

// Blacklist stores the token for exactly ttl, overwriting any previous
// entry. ttl <= 0 is a no-op.
func (s *RedisStore) Blacklist(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	expiresAt := s.now().Add(ttl).Unix()
	if err := s.client.Set(ctx, s.key(token), expiresAt, ttl).Err(); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to blacklist token")
	}
	return nil
}

// IsBlacklisted reports whether the token has a live entry
func (s *RedisStore) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(token)).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.CategoryInternal, "failed to check token blacklist")
	}
	return n > 0, nil
}

// Claim atomically blacklists the token if it is not already present.
// It returns false when another caller got there first.
func (s *RedisStore) Claim(ctx context.Context, token string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return true, nil
	}
	expiresAt := s.now().Add(ttl).Unix()
	ok, err := s.client.SetNX(ctx, s.key(token), expiresAt, ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.CategoryInternal, "failed to claim token")
	}
	return ok, nil
}
