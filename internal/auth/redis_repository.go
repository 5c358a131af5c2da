package auth

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	fieldUserID    = "user_id"
	fieldExpiresAt = "expires_at"
	fieldCreatedAt = "created_at"
	fieldRevokedAt = "revoked_at"
)

// RedisRepository keeps refresh tokens as hashes keyed by token hash. Each
// hash expires with its token; revocation is a field on the hash.
type RedisRepository struct {
	client redis.Cmdable
}

func NewRedisRepository(client redis.Cmdable) *RedisRepository {
	return &RedisRepository{client: client}
}

func tokenKey(tokenHash string) string {
	return "session:refresh:" + tokenHash
}

func accountTokensKey(userID uuid.UUID) string {
	return "session:account:" + userID.String()
}

func (r *RedisRepository) StoreRefreshToken(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return fmt.Errorf("refresh token expiry %s is in the past", expiresAt.Format(time.RFC3339))
	}

	tokenHash := hashToken(token)
	key := tokenKey(tokenHash)
	setKey := accountTokensKey(userID)

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, map[string]any{
			fieldUserID:    userID.String(),
			fieldExpiresAt: expiresAt.Unix(),
			fieldCreatedAt: time.Now().Unix(),
		})
		pipe.Expire(ctx, key, ttl)
		pipe.SAdd(ctx, setKey, tokenHash)
		pipe.Expire(ctx, setKey, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	return nil
}

func (r *RedisRepository) GetRefreshToken(ctx context.Context, token string) (*RefreshToken, error) {
	tokenHash := hashToken(token)

	data, err := r.client.HGetAll(ctx, tokenKey(tokenHash)).Result()
	if err != nil {
		return nil, fmt.Errorf("get refresh token: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrRefreshTokenNotFound
	}

	userID, err := uuid.Parse(data[fieldUserID])
	if err != nil {
		return nil, ErrInvalidToken
	}

	rt := &RefreshToken{
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: unixField(data, fieldExpiresAt),
		CreatedAt: unixField(data, fieldCreatedAt),
	}
	if _, ok := data[fieldRevokedAt]; ok {
		revokedAt := unixField(data, fieldRevokedAt)
		rt.RevokedAt = &revokedAt
	}

	switch {
	case rt.IsRevoked():
		return nil, ErrRefreshTokenRevoked
	case rt.IsExpired():
		return nil, ErrRefreshTokenExpired
	}
	return rt, nil
}

// RevokeRefreshToken marks the token revoked. Only the first caller wins, so
// a refresh token can be rotated once even under concurrent requests.
func (r *RedisRepository) RevokeRefreshToken(ctx context.Context, token string) error {
	key := tokenKey(hashToken(token))

	exists, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("check refresh token: %w", err)
	}
	if exists == 0 {
		return ErrRefreshTokenNotFound
	}

	set, err := r.client.HSetNX(ctx, key, fieldRevokedAt, time.Now().Unix()).Result()
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	if !set {
		return ErrRefreshTokenRevoked
	}
	return nil
}

func (r *RedisRepository) RevokeAllUserTokens(ctx context.Context, userID uuid.UUID) error {
	hashes, err := r.client.SMembers(ctx, accountTokensKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("list account tokens: %w", err)
	}
	if len(hashes) == 0 {
		return nil
	}

	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, h := range hashes {
			pipe.Del(ctx, tokenKey(h))
		}
		pipe.Del(ctx, accountTokensKey(userID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("revoke account tokens: %w", err)
	}
	return nil
}

func unixField(data map[string]string, field string) time.Time {
	n, err := strconv.ParseInt(data[field], 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(n, 0)
}
