package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/PoluyanbIch/GoQuizBot/internal/config"
)

type LeaderboardEntry struct {
	UserID     int64         `json:"user_id"`
	Username   string        `json:"username"`
	FirstName  string        `json:"first_name"`
	Score      int           `json:"score"`
	Total      int           `json:"total"`
	Percentage int           `json:"percentage"`
	Duration   time.Duration `json:"duration,omitempty"`
	Date       string        `json:"date"`
}

// NewLeaderboardEntry fills Percentage and Date from the score.
func NewLeaderboardEntry(userID int64, username, firstName string, score, total int, duration time.Duration, now time.Time) LeaderboardEntry {
	percentage := 0
	if total > 0 {
		percentage = score * 100 / total
	}
	return LeaderboardEntry{
		UserID:     userID,
		Username:   username,
		FirstName:  firstName,
		Score:      score,
		Total:      total,
		Percentage: percentage,
		Duration:   duration,
		Date:       now.Format("02.01.2006 15:04"),
	}
}

// DisplayName prefers @username and falls back to the first name.
func (e LeaderboardEntry) DisplayName() string {
	if e.Username != "" {
		return "@" + e.Username
	}
	return e.FirstName
}

// betterThan orders entries: higher percentage, then higher score, then a
// shorter timed run. Untimed runs never win a duration tie-break.
func (e LeaderboardEntry) betterThan(other LeaderboardEntry) bool {
	if e.Percentage != other.Percentage {
		return e.Percentage > other.Percentage
	}
	if e.Score != other.Score {
		return e.Score > other.Score
	}
	if e.Duration > 0 && (other.Duration == 0 || e.Duration < other.Duration) {
		return true
	}
	return false
}

type LeaderboardService interface {
	// AddEntry stores entry if it is the user's best result and reports
	// whether it was stored.
	AddEntry(ctx context.Context, entry LeaderboardEntry) (bool, error)
	GetTop(ctx context.Context, limit int) ([]LeaderboardEntry, error)
	// GetUserPosition returns the 1-based rank of the user, or -1.
	GetUserPosition(ctx context.Context, userID int64) (int, *LeaderboardEntry, error)
}

// NewLeaderboardService picks the backend named in cfg. client is only used
// by the redis backend.
func NewLeaderboardService(cfg config.LeaderboardConfig, client RedisStore, log *zap.Logger) (LeaderboardService, error) {
	switch cfg.Backend {
	case "gist":
		log.Info("using gist leaderboard", zap.String("gist_id", cfg.GistID))
		return NewGistLeaderboardService(cfg.GistAPIURL, cfg.GistID, cfg.GithubToken, cfg.GistFilename, nil), nil
	case "redis":
		if client == nil {
			return nil, fmt.Errorf("redis leaderboard requires a redis client")
		}
		log.Info("using redis leaderboard", zap.String("key", cfg.RedisKey))
		return NewRedisLeaderboardService(client, cfg.RedisKey), nil
	case "", "memory":
		// Data is lost on restart.
		log.Info("using in-memory leaderboard")
		return NewMemoryLeaderboardService(), nil
	default:
		return nil, fmt.Errorf("unsupported leaderboard backend: %q", cfg.Backend)
	}
}

// mergeEntry replaces the user's entry when the new one is better.
func mergeEntry(entries []LeaderboardEntry, entry LeaderboardEntry) ([]LeaderboardEntry, bool) {
	for i, existing := range entries {
		if existing.UserID == entry.UserID {
			if entry.betterThan(existing) {
				entries[i] = entry
				return entries, true
			}
			return entries, false
		}
	}
	return append(entries, entry), true
}

func sortedTop(entries []LeaderboardEntry, limit int) []LeaderboardEntry {
	sorted := make([]LeaderboardEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].betterThan(sorted[j])
	})

	if limit < 0 || limit > len(sorted) {
		limit = len(sorted)
	}
	return sorted[:limit]
}

func userPosition(entries []LeaderboardEntry, userID int64) (int, *LeaderboardEntry) {
	for i, entry := range sortedTop(entries, -1) {
		if entry.UserID == userID {
			entry := entry
			return i + 1, &entry
		}
	}
	return -1, nil
}

// GistLeaderboardService stores the leaderboard as a JSON file in a GitHub Gist.
type GistLeaderboardService struct {
	apiURL      string
	gistID      string
	githubToken string
	filename    string
	client      *http.Client
}

func NewGistLeaderboardService(apiURL, gistID, githubToken, filename string, client *http.Client) *GistLeaderboardService {
	if apiURL == "" {
		apiURL = "https://api.github.com"
	}
	if filename == "" {
		filename = "leaderboard.json"
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &GistLeaderboardService{
		apiURL:      strings.TrimRight(apiURL, "/"),
		gistID:      gistID,
		githubToken: githubToken,
		filename:    filename,
		client:      client,
	}
}

func (gs *GistLeaderboardService) gistURL() string {
	return fmt.Sprintf("%s/gists/%s", gs.apiURL, gs.gistID)
}

func (gs *GistLeaderboardService) load(ctx context.Context) ([]LeaderboardEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, gs.gistURL(), nil)
	if err != nil {
		return nil, err
	}
	if gs.githubToken != "" {
		req.Header.Set("Authorization", "token "+gs.githubToken)
	}

	resp, err := gs.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("load gist: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("load gist: HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var gist struct {
		Files map[string]struct {
			Content string `json:"content"`
		} `json:"files"`
	}
	if err := json.Unmarshal(body, &gist); err != nil {
		return nil, fmt.Errorf("decode gist: %w", err)
	}

	var entries []LeaderboardEntry
	if file, exists := gist.Files[gs.filename]; exists && file.Content != "" {
		if err := json.Unmarshal([]byte(file.Content), &entries); err != nil {
			return nil, fmt.Errorf("decode %s: %w", gs.filename, err)
		}
	}
	return entries, nil
}

func (gs *GistLeaderboardService) save(ctx context.Context, entries []LeaderboardEntry) error {
	content, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]interface{}{
		"files": map[string]interface{}{
			gs.filename: map[string]string{"content": string(content)},
		},
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, gs.gistURL(), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "token "+gs.githubToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := gs.client.Do(req)
	if err != nil {
		return fmt.Errorf("save gist: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("save gist: HTTP %d: %s", resp.StatusCode, resp.Status)
	}
	return nil
}

func (gs *GistLeaderboardService) AddEntry(ctx context.Context, entry LeaderboardEntry) (bool, error) {
	entries, err := gs.load(ctx)
	if err != nil {
		return false, err
	}
	entries, stored := mergeEntry(entries, entry)
	if !stored {
		return false, nil
	}
	if err := gs.save(ctx, entries); err != nil {
		return false, err
	}
	return true, nil
}

func (gs *GistLeaderboardService) GetTop(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	entries, err := gs.load(ctx)
	if err != nil {
		return nil, err
	}
	return sortedTop(entries, limit), nil
}

func (gs *GistLeaderboardService) GetUserPosition(ctx context.Context, userID int64) (int, *LeaderboardEntry, error) {
	entries, err := gs.load(ctx)
	if err != nil {
		return -1, nil, err
	}
	pos, entry := userPosition(entries, userID)
	return pos, entry, nil
}

// MemoryLeaderboardService keeps entries in memory.
type MemoryLeaderboardService struct {
	mu      sync.RWMutex
	entries []LeaderboardEntry
}

func NewMemoryLeaderboardService() *MemoryLeaderboardService {
	return &MemoryLeaderboardService{entries: make([]LeaderboardEntry, 0)}
}

func (ms *MemoryLeaderboardService) AddEntry(_ context.Context, entry LeaderboardEntry) (bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	var stored bool
	ms.entries, stored = mergeEntry(ms.entries, entry)
	return stored, nil
}

func (ms *MemoryLeaderboardService) GetTop(_ context.Context, limit int) ([]LeaderboardEntry, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return sortedTop(ms.entries, limit), nil
}

func (ms *MemoryLeaderboardService) GetUserPosition(_ context.Context, userID int64) (int, *LeaderboardEntry, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	pos, entry := userPosition(ms.entries, userID)
	return pos, entry, nil
}

// RedisLeaderboardService keeps one JSON entry per user in a Redis hash.
type RedisLeaderboardService struct {
	client RedisStore
	key    string
}

func NewRedisLeaderboardService(client RedisStore, key string) *RedisLeaderboardService {
	if key == "" {
		key = "quiz:leaderboard"
	}
	return &RedisLeaderboardService{client: client, key: key}
}

func (rs *RedisLeaderboardService) AddEntry(ctx context.Context, entry LeaderboardEntry) (bool, error) {
	field := strconv.FormatInt(entry.UserID, 10)

	raw, err := rs.client.HGet(ctx, rs.key, field).Result()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		return false, fmt.Errorf("read leaderboard entry: %w", err)
	default:
		var existing LeaderboardEntry
		if err := json.Unmarshal([]byte(raw), &existing); err == nil && !entry.betterThan(existing) {
			return false, nil
		}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return false, err
	}
	if err := rs.client.HSet(ctx, rs.key, field, string(data)).Err(); err != nil {
		return false, fmt.Errorf("write leaderboard entry: %w", err)
	}
	return true, nil
}

func (rs *RedisLeaderboardService) all(ctx context.Context) ([]LeaderboardEntry, error) {
	raw, err := rs.client.HGetAll(ctx, rs.key).Result()
	if err != nil {
		return nil, fmt.Errorf("read leaderboard: %w", err)
	}
	entries := make([]LeaderboardEntry, 0, len(raw))
	for field, value := range raw {
		var entry LeaderboardEntry
		if err := json.Unmarshal([]byte(value), &entry); err != nil {
			return nil, fmt.Errorf("decode leaderboard entry %s: %w", field, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (rs *RedisLeaderboardService) GetTop(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	entries, err := rs.all(ctx)
	if err != nil {
		return nil, err
	}
	return sortedTop(entries, limit), nil
}

func (rs *RedisLeaderboardService) GetUserPosition(ctx context.Context, userID int64) (int, *LeaderboardEntry, error) {
	entries, err := rs.all(ctx)
	if err != nil {
		return -1, nil, err
	}
	pos, entry := userPosition(entries, userID)
	return pos, entry, nil
}
