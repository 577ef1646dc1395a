package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vladimiradmaev/dish-journal/internal/logger"
)

const (
	redisOpTimeout = 3 * time.Second
	stateField     = "state"
)

// RedisManager keeps conversation state in Redis so it survives restarts.
// Each chat owns two hashes: one with the state field and one holding temp
// values as JSON, both expiring after stateTTL of inactivity.
type RedisManager struct {
	client *redis.Client
}

// NewRedisManager connects to addr and fails if Redis does not answer a ping.
func NewRedisManager(ctx context.Context, addr string) (*RedisManager, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  redisOpTimeout,
		ReadTimeout:  redisOpTimeout,
		WriteTimeout: redisOpTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	return &RedisManager{client: client}, nil
}

func chatKey(userID int64) string {
	return fmt.Sprintf("dish-journal:chat:%d", userID)
}

func chatTempKey(userID int64) string {
	return chatKey(userID) + ":temp"
}

func opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), redisOpTimeout)
}

func (m *RedisManager) SetUserState(userID int64, state string) {
	ctx, cancel := opContext()
	defer cancel()
	key := chatKey(userID)
	_, err := m.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, stateField, state)
		p.Expire(ctx, key, stateTTL)
		return nil
	})
	if err != nil {
		logger.Warn("Failed to store chat state", "telegram_id", userID, "state", state, "error", err)
	}
}

func (m *RedisManager) GetUserState(userID int64) string {
	ctx, cancel := opContext()
	defer cancel()
	state, err := m.client.HGet(ctx, chatKey(userID), stateField).Result()
	switch {
	case err == redis.Nil:
		return None
	case err != nil:
		logger.Warn("Failed to read chat state", "telegram_id", userID, "error", err)
		return None
	}
	return state
}

func (m *RedisManager) ClearUserState(userID int64) {
	ctx, cancel := opContext()
	defer cancel()
	if err := m.client.HDel(ctx, chatKey(userID), stateField).Err(); err != nil {
		logger.Warn("Failed to clear chat state", "telegram_id", userID, "error", err)
	}
}

func (m *RedisManager) SetTempData(userID int64, key string, value interface{}) {
	encoded, err := json.Marshal(value)
	if err != nil {
		logger.Warn("Temp value is not JSON encodable", "telegram_id", userID, "key", key, "error", err)
		return
	}

	ctx, cancel := opContext()
	defer cancel()
	hash := chatTempKey(userID)
	_, err = m.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, hash, key, encoded)
		p.Expire(ctx, hash, stateTTL)
		return nil
	})
	if err != nil {
		logger.Warn("Failed to store temp value", "telegram_id", userID, "key", key, "error", err)
	}
}

// GetTempData returns the decoded JSON value, so numbers come back as float64.
func (m *RedisManager) GetTempData(userID int64, key string) (interface{}, bool) {
	ctx, cancel := opContext()
	defer cancel()
	raw, err := m.client.HGet(ctx, chatTempKey(userID), key).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Warn("Failed to read temp value", "telegram_id", userID, "key", key, "error", err)
		}
		return nil, false
	}
	var value interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, false
	}
	return value, true
}

func (m *RedisManager) ClearTempData(userID int64) {
	ctx, cancel := opContext()
	defer cancel()
	if err := m.client.Del(ctx, chatTempKey(userID)).Err(); err != nil {
		logger.Warn("Failed to clear temp values", "telegram_id", userID, "error", err)
	}
}

func (m *RedisManager) Close() error {
	return m.client.Close()
}
