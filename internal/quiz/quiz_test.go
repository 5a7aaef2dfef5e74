package quiz

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func testQuestions() []Question {
	return []Question{
		{ID: "q1", Stem: "2+2?", Choices: map[Label]string{LabelA: "3", LabelB: "4"}, Correct: LabelB, Explanation: "basic sum"},
		{ID: "q2", Stem: "Capital of France?", Choices: map[Label]string{LabelA: "Paris", LabelB: "Rome", LabelC: "Oslo"}, Correct: LabelA},
		{ID: "q3", Stem: "Largest planet?", Choices: map[Label]string{LabelA: "Mars", LabelB: "Venus", LabelC: "Earth", LabelD: "Jupiter"}, Correct: LabelD},
		{ID: "q4", Stem: "H2O is?", Choices: map[Label]string{LabelA: "Salt", LabelB: "Water", LabelC: "Air"}, Correct: LabelB, Explanation: "two hydrogens, one oxygen"},
	}
}

func testBank(t *testing.T) *Bank {
	t.Helper()
	bank, err := NewBank(testQuestions())
	require.NoError(t, err)
	return bank
}

func newTestSession(seed int64) (*Session, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	return NewSession(clock, rand.New(rand.NewSource(seed))), clock
}

func TestNewBankRejectsInvalidQuestions(t *testing.T) {
	_, err := NewBank([]Question{
		{ID: "ok", Stem: "fine", Choices: map[Label]string{LabelA: "x", LabelB: "y"}, Correct: LabelA},
		{ID: "ok", Stem: "dup", Choices: map[Label]string{LabelA: "x", LabelB: "y"}, Correct: LabelA},
		{Stem: "", Choices: map[Label]string{LabelA: "x", LabelB: "y"}, Correct: LabelA},
		{Stem: "missing correct text", Choices: map[Label]string{LabelA: "x", LabelB: "y"}, Correct: LabelC},
		{Stem: "bad label", Choices: map[Label]string{LabelA: "x", LabelB: "y", "E": "z"}, Correct: "E"},
	})
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	fields := make([]string, 0, len(verr.Issues))
	for _, issue := range verr.Issues {
		fields = append(fields, issue.Field)
	}
	assert.Contains(t, fields, "questions[1].id")
	assert.Contains(t, fields, "questions[2].question")
	assert.Contains(t, fields, "questions[3].correct_answer")
	assert.Contains(t, fields, "questions[4].choices")
	assert.Contains(t, fields, "questions[4].correct_answer")
}

func TestNewBankEmpty(t *testing.T) {
	_, err := NewBank(nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "questions", verr.Issues[0].Field)
}

func TestNewBankAssignsIDs(t *testing.T) {
	qs := testQuestions()
	qs[1].ID = ""
	bank, err := NewBank(qs)
	require.NoError(t, err)

	q, ok := bank.Get("q2")
	require.True(t, ok)
	assert.Equal(t, "Capital of France?", q.Stem)
}

func TestNewBankGeneratedIDsSkipDeclaredOnes(t *testing.T) {
	qs := testQuestions()
	qs[0].ID = ""
	qs[1].ID = "q1"
	qs[2].ID = ""
	qs[3].ID = "q3"

	bank, err := NewBank(qs)
	require.NoError(t, err)
	require.Equal(t, 4, bank.Len())

	ids := make([]string, 0, bank.Len())
	for _, q := range bank.Questions() {
		ids = append(ids, q.ID)
	}
	assert.Equal(t, []string{"q2", "q1", "q4", "q3"}, ids)
}

func TestBankSectionsAndFilter(t *testing.T) {
	qs := testQuestions()
	qs[0].Section = "math"
	qs[1].Section = "geography"
	qs[2].Section = "science"
	qs[3].Section = "science"
	bank, err := NewBank(qs)
	require.NoError(t, err)

	assert.Equal(t, []string{"math", "geography", "science"}, bank.Sections())

	science, err := bank.Filter("science")
	require.NoError(t, err)
	assert.Equal(t, 2, science.Len())
	_, ok := science.Get("q3")
	assert.True(t, ok)
	_, ok = science.Get("q1")
	assert.False(t, ok)

	items, err := science.Sample(rand.New(rand.NewSource(3)), 2, Uniform())
	require.NoError(t, err)
	for _, q := range items {
		assert.Equal(t, "science", q.Section)
	}
	_, err = science.Sample(rand.New(rand.NewSource(3)), 3, Uniform())
	assert.ErrorIs(t, err, ErrInvalidSampleSize)

	all, err := bank.Filter("")
	require.NoError(t, err)
	assert.Same(t, bank, all)

	_, err = bank.Filter("history")
	assert.ErrorIs(t, err, ErrUnknownSection)
	assert.Equal(t, 4, bank.Len())
}

func TestBankIsNotMutatedThroughCopies(t *testing.T) {
	bank := testBank(t)
	qs := bank.Questions()
	qs[0].Choices[LabelA] = "changed"
	qs[0].Stem = "changed"

	q, _ := bank.Get("q1")
	assert.Equal(t, "3", q.Choices[LabelA])
	assert.Equal(t, "2+2?", q.Stem)
}

func TestSampleReturnsDistinctQuestionsFromBank(t *testing.T) {
	bank := testBank(t)
	rng := rand.New(rand.NewSource(7))
	policies := []Policy{Uniform(), PreferUnseen([]string{"q1"}), PreferWrong([]string{"q3", "q4"})}

	for _, policy := range policies {
		for n := 1; n <= bank.Len(); n++ {
			got, err := bank.Sample(rng, n, policy)
			require.NoError(t, err)
			require.Len(t, got, n)

			seen := map[string]bool{}
			for _, q := range got {
				_, ok := bank.Get(q.ID)
				assert.True(t, ok, "question %s not in bank", q.ID)
				assert.False(t, seen[q.ID], "duplicate %s", q.ID)
				seen[q.ID] = true
			}
		}
	}
}

func TestSampleInvalidSize(t *testing.T) {
	bank := testBank(t)
	_, err := bank.Sample(nil, 0, Uniform())
	assert.ErrorIs(t, err, ErrInvalidSampleSize)
	_, err = bank.Sample(nil, bank.Len()+1, Uniform())
	assert.ErrorIs(t, err, ErrInvalidSampleSize)
}

func TestSampleDeterministicWithSeed(t *testing.T) {
	bank := testBank(t)
	a, err := bank.Sample(rand.New(rand.NewSource(42)), 3, Uniform())
	require.NoError(t, err)
	b, err := bank.Sample(rand.New(rand.NewSource(42)), 3, Uniform())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestPreferWrongFavoursWrongQuestions(t *testing.T) {
	bank := testBank(t)
	rng := rand.New(rand.NewSource(1))
	policy := PreferWrong([]string{"q3"})

	hits := 0
	const runs = 2000
	for i := 0; i < runs; i++ {
		got, err := bank.Sample(rng, 1, policy)
		require.NoError(t, err)
		if got[0].ID == "q3" {
			hits++
		}
	}
	// q3 weighs 4 against three questions of weight 1: expected share 4/7.
	assert.InDelta(t, 4.0/7.0, float64(hits)/runs, 0.05)
}

func TestPolicyWeights(t *testing.T) {
	q := Question{ID: "q1"}
	assert.Equal(t, 1.0, Uniform().Weight(q))
	assert.Equal(t, 1.0, PreferUnseen([]string{"q1"}).Weight(q))
	assert.Equal(t, UnseenWeight, PreferUnseen([]string{"q2"}).Weight(q))
	assert.Equal(t, WrongWeight, PreferWrong([]string{"q1"}).Weight(q))
	assert.Equal(t, 1.0, PreferWrong(nil).Weight(q))
}

func TestParsePolicyKind(t *testing.T) {
	kind, err := ParsePolicyKind(" Unseen ")
	require.NoError(t, err)
	assert.Equal(t, PolicyUnseen, kind)

	kind, err = ParsePolicyKind("")
	require.NoError(t, err)
	assert.Equal(t, PolicyRandom, kind)

	_, err = ParsePolicyKind("hardest")
	assert.Error(t, err)
}

func TestParseLabel(t *testing.T) {
	label, err := ParseLabel(" c ")
	require.NoError(t, err)
	assert.Equal(t, LabelC, label)

	label, err = ParseLabel("")
	require.NoError(t, err)
	assert.Equal(t, NoAnswer, label)

	_, err = ParseLabel("E")
	assert.ErrorIs(t, err, ErrUnknownLabel)
}

func TestSessionNotStarted(t *testing.T) {
	s, _ := newTestSession(1)
	assert.Equal(t, NotStarted, s.State())

	_, err := s.Current()
	assert.ErrorIs(t, err, ErrSessionNotStarted)
	_, err = s.Answer(LabelA)
	assert.ErrorIs(t, err, ErrSessionNotStarted)
	_, err = s.Summary()
	assert.ErrorIs(t, err, ErrSessionNotComplete)
}

func TestSessionCreateInvalidSize(t *testing.T) {
	s, _ := newTestSession(1)
	err := s.Create(testBank(t), 5, false, Uniform())
	assert.ErrorIs(t, err, ErrInvalidSampleSize)
	assert.Equal(t, NotStarted, s.State())
}

func TestSessionCreateTwiceRequiresReset(t *testing.T) {
	s, _ := newTestSession(1)
	bank := testBank(t)
	require.NoError(t, s.Create(bank, 2, false, Uniform()))
	assert.ErrorIs(t, s.Create(bank, 2, false, Uniform()), ErrSessionInProgress)

	s.Reset()
	require.NoError(t, s.Create(bank, 2, false, Uniform()))
}

func TestSessionWrongThenRight(t *testing.T) {
	s, _ := newTestSession(3)
	require.NoError(t, s.Create(testBank(t), 2, false, Uniform()))
	_, total := s.Progress()
	require.Equal(t, 2, total)

	first, err := s.Current()
	require.NoError(t, err)
	wrong := LabelA
	if first.Correct == LabelA {
		wrong = LabelB
	}
	res, err := s.Answer(wrong)
	require.NoError(t, err)
	assert.False(t, res.Correct)
	assert.Equal(t, first.Correct, res.CorrectLabel)
	assert.Equal(t, first.Explanation, res.Explanation)
	assert.False(t, res.Completed)

	second, err := s.Current()
	require.NoError(t, err)
	res, err = s.Answer(second.Correct)
	require.NoError(t, err)
	assert.True(t, res.Correct)
	assert.True(t, res.Completed)

	assert.Equal(t, Completed, s.State())
	sum, err := s.Summary()
	require.NoError(t, err)
	assert.Equal(t, Summary{Correct: 1, Total: 2}, sum)
	assert.Equal(t, 50, sum.Percentage())
}

func TestSessionTimedAllCorrect(t *testing.T) {
	s, clock := newTestSession(5)
	require.NoError(t, s.Create(testBank(t), 4, true, Uniform()))

	for i := 0; i < 4; i++ {
		q, err := s.Current()
		require.NoError(t, err)
		clock.Advance(10 * time.Second)
		_, err = s.Answer(q.Correct)
		require.NoError(t, err)
	}

	sum, err := s.Summary()
	require.NoError(t, err)
	assert.Equal(t, 4, sum.Correct)
	assert.Equal(t, 4, sum.Total)
	assert.True(t, sum.Timed)
	assert.Equal(t, 40*time.Second, sum.Duration)
	assert.GreaterOrEqual(t, sum.Duration, time.Duration(0))
}

func TestSessionCompleteRejectsCurrent(t *testing.T) {
	s, _ := newTestSession(9)
	require.NoError(t, s.Create(testBank(t), 1, false, Uniform()))
	_, err := s.Answer(NoAnswer)
	require.NoError(t, err)

	_, err = s.Current()
	assert.ErrorIs(t, err, ErrSessionComplete)
	_, err = s.Answer(LabelA)
	assert.ErrorIs(t, err, ErrSessionComplete)
}

func TestSessionSummaryBeforeCompletion(t *testing.T) {
	s, _ := newTestSession(9)
	require.NoError(t, s.Create(testBank(t), 3, false, Uniform()))
	_, err := s.Answer(LabelA)
	require.NoError(t, err)

	_, err = s.Summary()
	assert.ErrorIs(t, err, ErrSessionNotComplete)
}

func TestSessionAnswerAtDuplicate(t *testing.T) {
	s, _ := newTestSession(11)
	require.NoError(t, s.Create(testBank(t), 2, false, Uniform()))

	_, err := s.AnswerAt(0, LabelA)
	require.NoError(t, err)
	_, err = s.AnswerAt(0, LabelB)
	assert.ErrorIs(t, err, ErrDuplicateAnswer)
	_, err = s.AnswerAt(5, LabelB)
	assert.ErrorIs(t, err, ErrInvalidPosition)

	_, err = s.AnswerAt(1, LabelB)
	require.NoError(t, err)
	_, err = s.AnswerAt(1, LabelB)
	assert.ErrorIs(t, err, ErrDuplicateAnswer)

	pos, _ := s.Progress()
	assert.Equal(t, 2, pos)
	assert.Len(t, s.Answers(), 2)
}

func TestSessionRejectsUnknownLabel(t *testing.T) {
	s, _ := newTestSession(11)
	require.NoError(t, s.Create(testBank(t), 2, false, Uniform()))
	_, err := s.Answer("E")
	assert.ErrorIs(t, err, ErrUnknownLabel)

	pos, _ := s.Progress()
	assert.Equal(t, 0, pos)
}

func TestSessionSkipIsNeverCorrect(t *testing.T) {
	s, _ := newTestSession(2)
	require.NoError(t, s.Create(testBank(t), 4, false, Uniform()))
	for i := 0; i < 4; i++ {
		res, err := s.Answer(NoAnswer)
		require.NoError(t, err)
		assert.False(t, res.Correct)
	}
	assert.Equal(t, 0, s.CorrectCount())
}

func TestSessionCorrectCountMatchesAnswers(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	for run := 0; run < 50; run++ {
		s, _ := newTestSession(int64(run))
		require.NoError(t, s.Create(testBank(t), 4, false, Uniform()))

		expected, prev := 0, 0
		for {
			q, err := s.Current()
			if err != nil {
				assert.ErrorIs(t, err, ErrSessionComplete)
				break
			}
			label := Labels[rng.Intn(len(Labels))]
			if label == q.Correct {
				expected++
			}
			_, err = s.Answer(label)
			require.NoError(t, err)

			pos, total := s.Progress()
			assert.GreaterOrEqual(t, s.CorrectCount(), prev)
			assert.LessOrEqual(t, s.CorrectCount(), pos)
			assert.LessOrEqual(t, pos, total)
			prev = s.CorrectCount()
		}
		assert.Equal(t, expected, s.CorrectCount())
	}
}

func TestSessionResetIdempotent(t *testing.T) {
	s, _ := newTestSession(1)
	require.NoError(t, s.Create(testBank(t), 2, true, Uniform()))
	require.NotEmpty(t, s.ID())

	s.Reset()
	s.Reset()
	assert.Equal(t, NotStarted, s.State())
	assert.Empty(t, s.ID())
	assert.Equal(t, 0, s.CorrectCount())
	assert.Equal(t, time.Duration(0), s.Elapsed())
	_, err := s.Current()
	assert.ErrorIs(t, err, ErrSessionNotStarted)
}
