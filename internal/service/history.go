package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/PoluyanbIch/GoQuizBot/internal/quiz"
)

// HistoryService remembers which questions a user has seen and which they
// last answered wrong. It feeds the unseen and wrong selection modes.
type HistoryService interface {
	Record(ctx context.Context, userID int64, answers []quiz.Answer) error
	Seen(ctx context.Context, userID int64) ([]string, error)
	Wrong(ctx context.Context, userID int64) ([]string, error)
}

// SelectionPolicy builds the sampling policy for kind from the user's history.
func SelectionPolicy(ctx context.Context, history HistoryService, userID int64, kind quiz.PolicyKind) (quiz.Policy, error) {
	switch kind {
	case quiz.PolicyUnseen:
		seen, err := history.Seen(ctx, userID)
		if err != nil {
			return quiz.Policy{}, fmt.Errorf("load seen questions: %w", err)
		}
		return quiz.PreferUnseen(seen), nil
	case quiz.PolicyWrong:
		wrong, err := history.Wrong(ctx, userID)
		if err != nil {
			return quiz.Policy{}, fmt.Errorf("load wrong questions: %w", err)
		}
		return quiz.PreferWrong(wrong), nil
	default:
		return quiz.Uniform(), nil
	}
}

type userHistory struct {
	seen  map[string]struct{}
	wrong map[string]struct{}
}

// MemoryHistoryService keeps history in process memory.
type MemoryHistoryService struct {
	mu    sync.RWMutex
	users map[int64]*userHistory
}

func NewMemoryHistoryService() *MemoryHistoryService {
	return &MemoryHistoryService{users: make(map[int64]*userHistory)}
}

func (ms *MemoryHistoryService) Record(_ context.Context, userID int64, answers []quiz.Answer) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	h, ok := ms.users[userID]
	if !ok {
		h = &userHistory{seen: map[string]struct{}{}, wrong: map[string]struct{}{}}
		ms.users[userID] = h
	}
	for _, a := range answers {
		h.seen[a.QuestionID] = struct{}{}
		if a.Correct {
			delete(h.wrong, a.QuestionID)
		} else {
			h.wrong[a.QuestionID] = struct{}{}
		}
	}
	return nil
}

func (ms *MemoryHistoryService) Seen(_ context.Context, userID int64) ([]string, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	if h, ok := ms.users[userID]; ok {
		return sortedKeys(h.seen), nil
	}
	return nil, nil
}

func (ms *MemoryHistoryService) Wrong(_ context.Context, userID int64) ([]string, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	if h, ok := ms.users[userID]; ok {
		return sortedKeys(h.wrong), nil
	}
	return nil, nil
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// RedisHistoryService keeps history in two Redis sets per user.
type RedisHistoryService struct {
	client RedisStore
	prefix string
}

func NewRedisHistoryService(client RedisStore, prefix string) *RedisHistoryService {
	if prefix == "" {
		prefix = "quiz:history"
	}
	return &RedisHistoryService{client: client, prefix: prefix}
}

func (rs *RedisHistoryService) key(userID int64, kind string) string {
	return rs.prefix + ":" + strconv.FormatInt(userID, 10) + ":" + kind
}

func (rs *RedisHistoryService) Record(ctx context.Context, userID int64, answers []quiz.Answer) error {
	if len(answers) == 0 {
		return nil
	}
	var seen, wrong, right []interface{}
	for _, a := range answers {
		seen = append(seen, a.QuestionID)
		if a.Correct {
			right = append(right, a.QuestionID)
		} else {
			wrong = append(wrong, a.QuestionID)
		}
	}

	if err := rs.client.SAdd(ctx, rs.key(userID, "seen"), seen...).Err(); err != nil {
		return fmt.Errorf("record seen questions: %w", err)
	}
	if len(right) > 0 {
		if err := rs.client.SRem(ctx, rs.key(userID, "wrong"), right...).Err(); err != nil {
			return fmt.Errorf("clear wrong questions: %w", err)
		}
	}
	if len(wrong) > 0 {
		if err := rs.client.SAdd(ctx, rs.key(userID, "wrong"), wrong...).Err(); err != nil {
			return fmt.Errorf("record wrong questions: %w", err)
		}
	}
	return nil
}

func (rs *RedisHistoryService) Seen(ctx context.Context, userID int64) ([]string, error) {
	return rs.members(ctx, rs.key(userID, "seen"))
}

func (rs *RedisHistoryService) Wrong(ctx context.Context, userID int64) ([]string, error) {
	return rs.members(ctx, rs.key(userID, "wrong"))
}

func (rs *RedisHistoryService) members(ctx context.Context, key string) ([]string, error) {
	ids, err := rs.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	sort.Strings(ids)
	return ids, nil
}
