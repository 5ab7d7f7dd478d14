package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lostmarbl3/fai-trainsmart/internal/apperr"
	"github.com/redis/go-redis/v9"
)

// TokenStore keeps the server-side token state: live refresh tokens and the
// ids of access tokens revoked before their expiry.
type TokenStore interface {
	SaveRefresh(ctx context.Context, token, userID string, ttl time.Duration) error
	// ConsumeRefresh removes token and returns its owner. Unknown or expired
	// tokens yield apperr.ErrUnauthorized.
	ConsumeRefresh(ctx context.Context, token string) (string, error)
	RevokeRefresh(ctx context.Context, userID string) error
	Blacklist(ctx context.Context, jti string, ttl time.Duration) error
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}

type RedisTokenStore struct {
	client *redis.Client
}

func NewRedisTokenStore(client *redis.Client) *RedisTokenStore {
	return &RedisTokenStore{client: client}
}

func refreshKey(token string) string {
	return fmt.Sprintf("refresh:%s", token)
}

func userRefreshKey(userID string) string {
	return fmt.Sprintf("refresh:user:%s", userID)
}

func blacklistKey(jti string) string {
	return fmt.Sprintf("blacklist:%s", jti)
}

func (s *RedisTokenStore) SaveRefresh(ctx context.Context, token, userID string, ttl time.Duration) error {
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, refreshKey(token), userID, ttl)
	pipe.SAdd(ctx, userRefreshKey(userID), token)
	pipe.Expire(ctx, userRefreshKey(userID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return apperr.Transport(fmt.Errorf("failed to store refresh token: %w", err))
	}
	return nil
}

func (s *RedisTokenStore) ConsumeRefresh(ctx context.Context, token string) (string, error) {
	userID, err := s.client.GetDel(ctx, refreshKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", apperr.Wrap(apperr.ErrUnauthorized, "refresh token not recognised")
	}
	if err != nil {
		return "", apperr.Transport(fmt.Errorf("failed to consume refresh token: %w", err))
	}
	if err := s.client.SRem(ctx, userRefreshKey(userID), token).Err(); err != nil {
		return "", apperr.Transport(fmt.Errorf("failed to untrack refresh token: %w", err))
	}
	return userID, nil
}

func (s *RedisTokenStore) RevokeRefresh(ctx context.Context, userID string) error {
	setKey := userRefreshKey(userID)
	tokens, err := s.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return apperr.Transport(fmt.Errorf("failed to list refresh tokens: %w", err))
	}

	keys := make([]string, 0, len(tokens)+1)
	for _, token := range tokens {
		keys = append(keys, refreshKey(token))
	}
	keys = append(keys, setKey)
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return apperr.Transport(fmt.Errorf("failed to revoke refresh tokens: %w", err))
	}
	return nil
}

func (s *RedisTokenStore) Blacklist(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, blacklistKey(jti), "1", ttl).Err(); err != nil {
		return apperr.Transport(fmt.Errorf("failed to blacklist token: %w", err))
	}
	return nil
}

func (s *RedisTokenStore) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Exists(ctx, blacklistKey(jti)).Result()
	if err != nil {
		return false, apperr.Transport(fmt.Errorf("failed to check token blacklist: %w", err))
	}
	return n > 0, nil
}
