// Package resettoken stores one-time password-reset tokens in an
// externally-owned, time-bounded key-value store. Tokens survive process
// restarts and are visible to every server instance, unlike the in-process
// map this replaces; eviction is handled by the store's TTL, not by us.
package resettoken

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/apannell/go-secure-api/internal/errors"
)

const resetKeyPrefix = "prt"

// Store is the time-bounded token store surface the auth handlers need.
type Store interface {
	// Save records tokenID -> accountID with the given TTL.
	Save(ctx context.Context, tokenID, accountID string, ttl time.Duration) error

	// Consume atomically retrieves and deletes the token, so each token is
	// redeemable exactly once. Unknown or expired tokens yield
	// ErrResetTokenInvalid.
	Consume(ctx context.Context, tokenID string) (accountID string, err error)
}

var _ Store = (*RedisStore)(nil)

// RedisStore implements Store on a Redis instance.
type RedisStore struct {
	redis  *redis.Client
	prefix string
}

func NewRedisStore(redisClient *redis.Client) *RedisStore {
	return &RedisStore{
		redis:  redisClient,
		prefix: resetKeyPrefix,
	}
}

func (s *RedisStore) key(tokenID string) string {
	return s.prefix + ":" + tokenID
}

func (s *RedisStore) Save(ctx context.Context, tokenID, accountID string, ttl time.Duration) error {
	if tokenID == "" || accountID == "" {
		return fmt.Errorf("resettoken.Save: empty token or account id")
	}
	if err := s.redis.Set(ctx, s.key(tokenID), accountID, ttl).Err(); err != nil {
		return errors.Wrapf(err, "resettoken.Save")
	}
	return nil
}

func (s *RedisStore) Consume(ctx context.Context, tokenID string) (string, error) {
	accountID, err := s.redis.GetDel(ctx, s.key(tokenID)).Result()
	if err == redis.Nil {
		return "", errors.ErrResetTokenInvalid
	}
	if err != nil {
		return "", errors.Wrapf(err, "resettoken.Consume")
	}
	return accountID, nil
}
