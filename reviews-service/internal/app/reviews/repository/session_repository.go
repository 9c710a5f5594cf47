package repository

import (
	"context"
	"fmt"
	"time"

	"reviewhub/pkg/metrics"

	"github.com/redis/go-redis/v9"
)

type redisSessionStore struct {
	client *redis.Client
}

// NewRedisSessionStore создает хранилище привязок user_id -> IP в Redis
func NewRedisSessionStore(client *redis.Client) SessionStore {
	return &redisSessionStore{client: client}
}

// NewRedisClient подключается к Redis и проверяет соединение
func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

// Ключ формата: session:<user_id>, значение - множество IP адресов
func sessionKey(userID int64) string {
	return fmt.Sprintf("session:%d", userID)
}

// Bind добавляет IP в сессию пользователя и продлевает TTL всего множества
func (s *redisSessionStore) Bind(ctx context.Context, userID int64, ip string, ttl time.Duration) error {
	timer := metrics.NewRedisTimer(metricsService, metrics.RedisOpSAdd)
	defer timer.ObserveDuration()

	key := sessionKey(userID)

	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, key, ip)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		metrics.RecordRedisError(metricsService, metrics.RedisOpSAdd)
		return fmt.Errorf("failed to bind session: %w", err)
	}

	return nil
}

func (s *redisSessionStore) Verify(ctx context.Context, userID int64, ip string) (bool, error) {
	timer := metrics.NewRedisTimer(metricsService, metrics.RedisOpSIsMember)
	defer timer.ObserveDuration()

	ok, err := s.client.SIsMember(ctx, sessionKey(userID), ip).Result()
	if err != nil {
		metrics.RecordRedisError(metricsService, metrics.RedisOpSIsMember)
		return false, fmt.Errorf("failed to verify session: %w", err)
	}

	return ok, nil
}

func (s *redisSessionStore) Close() error {
	return s.client.Close()
}
