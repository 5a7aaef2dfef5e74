package quiz

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

type State int

const (
	NotStarted State = iota
	InProgress
	Completed
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case InProgress:
		return "in_progress"
	case Completed:
		return "completed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Clock supplies timestamps for session timing.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Result is returned for every answered question.
type Result struct {
	Position     int
	Correct      bool
	Selected     Label
	CorrectLabel Label
	CorrectText  string
	Explanation  string
	// Completed is true when this answer finished the session.
	Completed bool
}

// Answer records what was submitted for one question.
type Answer struct {
	QuestionID string
	Selected   Label
	Correct    bool
}

type Summary struct {
	Correct  int
	Total    int
	Timed    bool
	Duration time.Duration
}

// Percentage returns the share of correct answers, rounded down.
func (s Summary) Percentage() int {
	if s.Total == 0 {
		return 0
	}
	return s.Correct * 100 / s.Total
}

// Session is a single practice run. It is owned by one interaction loop and
// is not safe for concurrent use.
type Session struct {
	id    string
	clock Clock
	rng   *rand.Rand

	state     State
	items     []Question
	answers   []Answer
	position  int
	correct   int
	timed     bool
	startedAt time.Time
	endedAt   time.Time
}

// NewSession returns a session in the NotStarted state. A nil clock uses the
// system clock; a nil rng uses a time-seeded source on every Create.
func NewSession(clock Clock, rng *rand.Rand) *Session {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Session{clock: clock, rng: rng}
}

// ID identifies the current run. It changes on every Create.
func (s *Session) ID() string { return s.id }

func (s *Session) State() State { return s.state }

func (s *Session) Timed() bool { return s.timed }

func (s *Session) StartedAt() time.Time { return s.startedAt }

// Create samples n questions from bank and starts the run.
func (s *Session) Create(bank *Bank, n int, timed bool, policy Policy) error {
	if s.state != NotStarted {
		return ErrSessionInProgress
	}
	items, err := bank.Sample(s.rng, n, policy)
	if err != nil {
		return err
	}

	s.id = uuid.NewString()
	s.items = items
	s.answers = make([]Answer, 0, len(items))
	s.position = 0
	s.correct = 0
	s.timed = timed
	s.startedAt = s.clock.Now()
	s.endedAt = time.Time{}
	s.state = InProgress
	return nil
}

// Current returns the question awaiting an answer.
func (s *Session) Current() (Question, error) {
	switch s.state {
	case NotStarted:
		return Question{}, ErrSessionNotStarted
	case Completed:
		return Question{}, ErrSessionComplete
	}
	if s.position >= len(s.items) {
		return Question{}, ErrSessionComplete
	}
	return s.items[s.position].clone(), nil
}

// Answer grades selected against the current question and advances.
func (s *Session) Answer(selected Label) (Result, error) {
	return s.AnswerAt(s.position, selected)
}

// AnswerAt is Answer with the caller's view of the position. Answering a
// position twice fails with ErrDuplicateAnswer.
func (s *Session) AnswerAt(position int, selected Label) (Result, error) {
	switch s.state {
	case NotStarted:
		return Result{}, ErrSessionNotStarted
	case Completed:
		if position >= 0 && position < len(s.items) {
			return Result{}, ErrDuplicateAnswer
		}
		return Result{}, ErrSessionComplete
	}
	switch {
	case position < 0 || position > s.position:
		return Result{}, fmt.Errorf("%w: %d", ErrInvalidPosition, position)
	case position < s.position:
		return Result{}, ErrDuplicateAnswer
	}
	if selected != NoAnswer && !selected.Valid() {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownLabel, string(selected))
	}

	q := s.items[s.position]
	isCorrect := selected != NoAnswer && selected == q.Correct
	if isCorrect {
		s.correct++
	}
	s.answers = append(s.answers, Answer{QuestionID: q.ID, Selected: selected, Correct: isCorrect})
	s.position++

	res := Result{
		Position:     position,
		Correct:      isCorrect,
		Selected:     selected,
		CorrectLabel: q.Correct,
		CorrectText:  q.CorrectText(),
		Explanation:  q.Explanation,
	}
	if s.position == len(s.items) {
		s.state = Completed
		s.endedAt = s.clock.Now()
		res.Completed = true
	}
	return res, nil
}

// Summary reports the final score. Duration is only set for timed sessions.
func (s *Session) Summary() (Summary, error) {
	if s.state != Completed {
		return Summary{}, ErrSessionNotComplete
	}
	sum := Summary{Correct: s.correct, Total: len(s.items), Timed: s.timed}
	if s.timed {
		sum.Duration = s.clock.Now().Sub(s.startedAt)
		if sum.Duration < 0 {
			sum.Duration = 0
		}
	}
	return sum, nil
}

// Elapsed is the time from Create to the last answer, or to now while the
// session is in progress.
func (s *Session) Elapsed() time.Duration {
	switch s.state {
	case NotStarted:
		return 0
	case Completed:
		return s.endedAt.Sub(s.startedAt)
	}
	return s.clock.Now().Sub(s.startedAt)
}

// Progress returns the current position and the number of questions.
func (s *Session) Progress() (int, int) {
	return s.position, len(s.items)
}

func (s *Session) CorrectCount() int { return s.correct }

// Answers returns what has been submitted so far, in order.
func (s *Session) Answers() []Answer {
	out := make([]Answer, len(s.answers))
	copy(out, s.answers)
	return out
}

// Reset discards the run and returns to NotStarted.
func (s *Session) Reset() {
	s.id = ""
	s.state = NotStarted
	s.items = nil
	s.answers = nil
	s.position = 0
	s.correct = 0
	s.timed = false
	s.startedAt = time.Time{}
	s.endedAt = time.Time{}
}
