package quiz

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// Bank is the immutable, ordered set of questions a session samples from.
type Bank struct {
	questions []Question
	byID      map[string]int
}

// NewBank validates questions and builds a bank. Missing IDs are assigned
// from the question's position ("q1", "q2", ...), skipping IDs that other
// questions already declare.
func NewBank(questions []Question) (*Bank, error) {
	var issues []Issue
	if len(questions) == 0 {
		issues = append(issues, Issue{Field: "questions", Message: "must include at least one entry"})
	}

	taken := make(map[string]struct{}, len(questions))
	for _, q := range questions {
		if id := strings.TrimSpace(q.ID); id != "" {
			taken[id] = struct{}{}
		}
	}

	bank := &Bank{
		questions: make([]Question, 0, len(questions)),
		byID:      make(map[string]int, len(questions)),
	}
	for i, q := range questions {
		prefix := fmt.Sprintf("questions[%d]", i)
		q = q.clone()
		q.ID = strings.TrimSpace(q.ID)
		if q.ID == "" {
			q.ID = generateID(taken, i+1)
		}
		if _, exists := bank.byID[q.ID]; exists {
			issues = append(issues, Issue{Field: prefix + ".id", Message: fmt.Sprintf("duplicate id %q", q.ID)})
			continue
		}
		issues = append(issues, q.Validate(prefix)...)
		bank.byID[q.ID] = len(bank.questions)
		bank.questions = append(bank.questions, q)
	}

	if len(issues) > 0 {
		return nil, &ValidationError{Issues: issues}
	}
	return bank, nil
}

// generateID returns the first free "q<n>" starting at n and marks it taken.
func generateID(taken map[string]struct{}, n int) string {
	for {
		id := fmt.Sprintf("q%d", n)
		if _, ok := taken[id]; !ok {
			taken[id] = struct{}{}
			return id
		}
		n++
	}
}

func (b *Bank) Len() int {
	return len(b.questions)
}

// Questions returns a copy of the bank's questions in load order.
func (b *Bank) Questions() []Question {
	out := make([]Question, len(b.questions))
	for i, q := range b.questions {
		out[i] = q.clone()
	}
	return out
}

func (b *Bank) Get(id string) (Question, bool) {
	idx, ok := b.byID[id]
	if !ok {
		return Question{}, false
	}
	return b.questions[idx].clone(), true
}

// Sections lists the distinct non-empty sections in load order.
func (b *Bank) Sections() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, q := range b.questions {
		if q.Section == "" {
			continue
		}
		if _, ok := seen[q.Section]; ok {
			continue
		}
		seen[q.Section] = struct{}{}
		out = append(out, q.Section)
	}
	return out
}

// Filter returns the sub-bank of questions in section. An empty section
// returns b itself.
func (b *Bank) Filter(section string) (*Bank, error) {
	if section == "" {
		return b, nil
	}
	var picked []Question
	for _, q := range b.questions {
		if q.Section == section {
			picked = append(picked, q)
		}
	}
	if len(picked) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSection, section)
	}
	return NewBank(picked)
}

// Sample draws n distinct questions without replacement. The policy only
// changes how likely each question is to be drawn. A nil rng uses a
// time-seeded source.
func (b *Bank) Sample(rng *rand.Rand, n int, policy Policy) ([]Question, error) {
	if n < 1 || n > len(b.questions) {
		return nil, fmt.Errorf("%w: %d (bank has %d questions)", ErrInvalidSampleSize, n, len(b.questions))
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	var picked []int
	if policy.uniform() {
		picked = shuffleIndexes(rng, len(b.questions), n)
	} else {
		weights := make([]float64, len(b.questions))
		for i, q := range b.questions {
			weights[i] = policy.Weight(q)
		}
		picked = weightedIndexes(rng, weights, n)
	}

	out := make([]Question, len(picked))
	for i, idx := range picked {
		out[i] = b.questions[idx].clone()
	}
	return out, nil
}
