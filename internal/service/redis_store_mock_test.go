package service

import (
	"context"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/mock"
)

// MockRedisStore implements RedisStore. Variadic members are passed to
// Called as a single []interface{} argument.
type MockRedisStore struct {
	mock.Mock
}

func (m *MockRedisStore) SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd {
	args := m.Called(ctx, key, members)
	return redis.NewIntResult(int64(args.Int(0)), args.Error(1))
}

func (m *MockRedisStore) SRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd {
	args := m.Called(ctx, key, members)
	return redis.NewIntResult(int64(args.Int(0)), args.Error(1))
}

func (m *MockRedisStore) SMembers(ctx context.Context, key string) *redis.StringSliceCmd {
	args := m.Called(ctx, key)
	var members []string
	if v := args.Get(0); v != nil {
		members = v.([]string)
	}
	return redis.NewStringSliceResult(members, args.Error(1))
}

func (m *MockRedisStore) HGet(ctx context.Context, key, field string) *redis.StringCmd {
	args := m.Called(ctx, key, field)
	return redis.NewStringResult(args.String(0), args.Error(1))
}

func (m *MockRedisStore) HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	args := m.Called(ctx, key, values)
	return redis.NewIntResult(int64(args.Int(0)), args.Error(1))
}

func (m *MockRedisStore) HGetAll(ctx context.Context, key string) *redis.StringStringMapCmd {
	args := m.Called(ctx, key)
	var values map[string]string
	if v := args.Get(0); v != nil {
		values = v.(map[string]string)
	}
	return redis.NewStringStringMapResult(values, args.Error(1))
}
