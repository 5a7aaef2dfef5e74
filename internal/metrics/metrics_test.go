package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PoluyanbIch/GoQuizBot/internal/quiz"
)

func TestMetricsCounters(t *testing.T) {
	m := New()

	m.SessionStarted(quiz.PolicyWrong, true)
	m.AnswerRecorded(quiz.Result{Correct: true, Selected: quiz.LabelA})
	m.AnswerRecorded(quiz.Result{Selected: quiz.LabelB})
	m.AnswerRecorded(quiz.Result{Selected: quiz.NoAnswer})
	m.SessionCompleted(90 * time.Second)
	m.SessionAbandoned()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsStarted.WithLabelValues("wrong", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Answers.WithLabelValues("correct")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Answers.WithLabelValues("wrong")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Answers.WithLabelValues("skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsCompleted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsAbandoned))
}

func TestMetricsHandler(t *testing.T) {
	m := New()
	m.SessionStarted(quiz.PolicyRandom, false)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `quiz_sessions_started_total{mode="random",timed="false"} 1`)
}
