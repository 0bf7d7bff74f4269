package repository

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// SessionRepository 定义了登出 token 黑名单的操作接口。
// 会话在登录时由签发的 JWT 表示，登出即把 token 拉黑到其自然过期为止。
type SessionRepository interface {
	BlacklistToken(ctx context.Context, tokenString string, ttl time.Duration) error
	IsTokenBlacklisted(ctx context.Context, tokenString string) (bool, error)
}

type redisSessionRepository struct {
	redisClient *redis.Client
}

// NewSessionRepository 创建一个新的 SessionRepository 实例。
func NewSessionRepository(redisClient *redis.Client) SessionRepository {
	return &redisSessionRepository{redisClient: redisClient}
}

func blacklistKey(tokenString string) string {
	return "blacklist:" + tokenString
}

// BlacklistToken 将 token 加入黑名单，过期时间取 token 的剩余有效期。
func (r *redisSessionRepository) BlacklistToken(ctx context.Context, tokenString string, ttl time.Duration) error {
	return r.redisClient.Set(ctx, blacklistKey(tokenString), "true", ttl).Err()
}

// IsTokenBlacklisted 检查 token 是否已被登出。
func (r *redisSessionRepository) IsTokenBlacklisted(ctx context.Context, tokenString string) (bool, error) {
	_, err := r.redisClient.Get(ctx, blacklistKey(tokenString)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
