package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/PoluyanbIch/GoQuizBot/internal/config"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func entry(userID int64, score, total int, d time.Duration) LeaderboardEntry {
	return NewLeaderboardEntry(userID, "", "user", score, total, d, testNow)
}

func TestNewLeaderboardEntry(t *testing.T) {
	e := NewLeaderboardEntry(1, "neo", "Thomas", 7, 10, time.Minute, testNow)
	assert.Equal(t, 70, e.Percentage)
	assert.Equal(t, "01.05.2024 12:00", e.Date)
	assert.Equal(t, "@neo", e.DisplayName())

	e.Username = ""
	assert.Equal(t, "Thomas", e.DisplayName())
}

func TestMemoryLeaderboardKeepsBest(t *testing.T) {
	ctx := context.Background()
	lb := NewMemoryLeaderboardService()

	stored, err := lb.AddEntry(ctx, entry(1, 5, 10, 0))
	require.NoError(t, err)
	assert.True(t, stored)

	stored, err = lb.AddEntry(ctx, entry(1, 3, 10, 0))
	require.NoError(t, err)
	assert.False(t, stored)

	stored, err = lb.AddEntry(ctx, entry(1, 5, 10, 30*time.Second))
	require.NoError(t, err)
	assert.True(t, stored, "a timed run beats an untimed one on a tie")

	stored, err = lb.AddEntry(ctx, entry(1, 5, 10, 20*time.Second))
	require.NoError(t, err)
	assert.True(t, stored)

	_, err = lb.AddEntry(ctx, entry(2, 9, 10, 0))
	require.NoError(t, err)
	_, err = lb.AddEntry(ctx, entry(3, 1, 10, 0))
	require.NoError(t, err)

	top, err := lb.GetTop(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, int64(2), top[0].UserID)
	assert.Equal(t, int64(1), top[1].UserID)
	assert.Equal(t, 20*time.Second, top[1].Duration)

	pos, e, err := lb.GetUserPosition(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, pos)
	assert.Equal(t, 1, e.Score)

	pos, e, err = lb.GetUserPosition(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, -1, pos)
	assert.Nil(t, e)
}

type fakeGist struct {
	content string
	patches int
}

func (g *fakeGist) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gists/g1", r.URL.Path)
		assert.Equal(t, "token tok", r.Header.Get("Authorization"))
		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"files": map[string]interface{}{
					"leaderboard.json": map[string]string{"content": g.content},
				},
			})
		case http.MethodPatch:
			body, _ := io.ReadAll(r.Body)
			var payload struct {
				Files map[string]struct {
					Content string `json:"content"`
				} `json:"files"`
			}
			assert.NoError(t, json.Unmarshal(body, &payload))
			g.content = payload.Files["leaderboard.json"].Content
			g.patches++
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}
}

func TestGistLeaderboard(t *testing.T) {
	ctx := context.Background()
	gist := &fakeGist{}
	srv := httptest.NewServer(gist.handler(t))
	defer srv.Close()

	lb := NewGistLeaderboardService(srv.URL, "g1", "tok", "", srv.Client())

	stored, err := lb.AddEntry(ctx, entry(1, 4, 5, 0))
	require.NoError(t, err)
	assert.True(t, stored)

	stored, err = lb.AddEntry(ctx, entry(1, 2, 5, 0))
	require.NoError(t, err)
	assert.False(t, stored)
	assert.Equal(t, 1, gist.patches)

	_, err = lb.AddEntry(ctx, entry(2, 5, 5, 0))
	require.NoError(t, err)

	top, err := lb.GetTop(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, int64(2), top[0].UserID)

	pos, _, err := lb.GetUserPosition(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, pos)
}

func TestGistLeaderboardHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	lb := NewGistLeaderboardService(srv.URL, "g1", "tok", "", srv.Client())
	_, err := lb.GetTop(context.Background(), 10)
	assert.ErrorContains(t, err, "HTTP 401")
}

func TestRedisLeaderboardAddEntry(t *testing.T) {
	ctx := context.Background()
	store := new(MockRedisStore)
	lb := NewRedisLeaderboardService(store, "")

	existing, _ := json.Marshal(entry(1, 8, 10, 0))
	store.On("HGet", ctx, "quiz:leaderboard", "1").Return(string(existing), nil)
	store.On("HGet", ctx, "quiz:leaderboard", "2").Return("", redis.Nil)
	store.On("HSet", ctx, "quiz:leaderboard", mock.Anything).Return(1, nil)

	stored, err := lb.AddEntry(ctx, entry(1, 6, 10, 0))
	require.NoError(t, err)
	assert.False(t, stored)
	store.AssertNotCalled(t, "HSet", ctx, "quiz:leaderboard", mock.Anything)

	stored, err = lb.AddEntry(ctx, entry(2, 6, 10, 0))
	require.NoError(t, err)
	assert.True(t, stored)
	store.AssertNumberOfCalls(t, "HSet", 1)
}

func TestRedisLeaderboardTop(t *testing.T) {
	ctx := context.Background()
	store := new(MockRedisStore)
	lb := NewRedisLeaderboardService(store, "lb")

	a, _ := json.Marshal(entry(1, 3, 10, 0))
	b, _ := json.Marshal(entry(2, 9, 10, 0))
	store.On("HGetAll", ctx, "lb").Return(map[string]string{"1": string(a), "2": string(b)}, nil)

	top, err := lb.GetTop(ctx, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, int64(2), top[0].UserID)

	pos, e, err := lb.GetUserPosition(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, pos)
	assert.Equal(t, 3, e.Score)
}

func TestNewLeaderboardService(t *testing.T) {
	log := zap.NewNop()

	lb, err := NewLeaderboardService(config.LeaderboardConfig{Backend: "memory"}, nil, log)
	require.NoError(t, err)
	assert.IsType(t, &MemoryLeaderboardService{}, lb)

	lb, err = NewLeaderboardService(config.LeaderboardConfig{Backend: "gist", GistID: "g", GithubToken: "t"}, nil, log)
	require.NoError(t, err)
	assert.IsType(t, &GistLeaderboardService{}, lb)

	_, err = NewLeaderboardService(config.LeaderboardConfig{Backend: "redis"}, nil, log)
	assert.Error(t, err)

	lb, err = NewLeaderboardService(config.LeaderboardConfig{Backend: "redis"}, new(MockRedisStore), log)
	require.NoError(t, err)
	assert.IsType(t, &RedisLeaderboardService{}, lb)

	_, err = NewLeaderboardService(config.LeaderboardConfig{Backend: "mongo"}, nil, log)
	assert.Error(t, err)
}
