package service

import (
	"context"

	"github.com/go-redis/redis/v8"
)

// RedisStore is the part of redis.UniversalClient used by the Redis-backed
// leaderboard and history.
type RedisStore interface {
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	HGet(ctx context.Context, key, field string) *redis.StringCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	HGetAll(ctx context.Context, key string) *redis.StringStringMapCmd
}

var _ RedisStore = (redis.UniversalClient)(nil)
