package services

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/stresscall/stresscall-backend/internal/database"
)

const (
	// AnonChecksKeyPrefix is the Redis key prefix for anonymous usage counters
	AnonChecksKeyPrefix = "anon:checks:"
	// AnonReportsKeyPrefix is the Redis key prefix for anonymous report lists
	AnonReportsKeyPrefix = "anon:reports:"
)

// AnonScopeStore is the durable storage for one anonymous browser scope:
// a decimal usage counter slot and a JSON-encoded report list slot per scope
// id. Keys carry no TTL — the anonymous ceiling is lifetime-per-browser.
type AnonScopeStore interface {
	ChecksUsed(ctx context.Context, scopeID string) (int, error)
	// IncrementChecks atomically increments the counter and returns the new value.
	IncrementChecks(ctx context.Context, scopeID string) (int, error)
	// Reports returns the raw JSON report list, or "" when the slot is empty.
	Reports(ctx context.Context, scopeID string) (string, error)
	SetReports(ctx context.Context, scopeID, raw string) error
}

type redisAnonScopeStore struct{}

// NewRedisAnonScopeStore returns the production AnonScopeStore.
func NewRedisAnonScopeStore() AnonScopeStore {
	return &redisAnonScopeStore{}
}

func (r *redisAnonScopeStore) ChecksUsed(ctx context.Context, scopeID string) (int, error) {
	val, err := database.RedisClient.Get(ctx, AnonChecksKeyPrefix+scopeID).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	count, err := strconv.Atoi(val)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *redisAnonScopeStore) IncrementChecks(ctx context.Context, scopeID string) (int, error) {
	count, err := database.RedisClient.Incr(ctx, AnonChecksKeyPrefix+scopeID).Result()
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (r *redisAnonScopeStore) Reports(ctx context.Context, scopeID string) (string, error) {
	val, err := database.RedisClient.Get(ctx, AnonReportsKeyPrefix+scopeID).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (r *redisAnonScopeStore) SetReports(ctx context.Context, scopeID, raw string) error {
	return database.RedisClient.Set(ctx, AnonReportsKeyPrefix+scopeID, raw, 0).Err()
}
