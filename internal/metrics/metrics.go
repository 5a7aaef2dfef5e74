package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/PoluyanbIch/GoQuizBot/internal/quiz"
)

// Metrics holds the practice session collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	SessionsStarted   *prometheus.CounterVec
	SessionsCompleted prometheus.Counter
	SessionsAbandoned prometheus.Counter
	Answers           *prometheus.CounterVec
	SessionDuration   prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		SessionsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quiz_sessions_started_total",
				Help: "Practice sessions started, by selection mode",
			},
			[]string{"mode", "timed"},
		),
		SessionsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quiz_sessions_completed_total",
			Help: "Practice sessions answered to the end",
		}),
		SessionsAbandoned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quiz_sessions_abandoned_total",
			Help: "Practice sessions reset before completion",
		}),
		Answers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quiz_answers_total",
				Help: "Answers submitted, by outcome",
			},
			[]string{"outcome"},
		),
		SessionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "quiz_session_duration_seconds",
			Help:    "Time from start to the last answer of completed sessions",
			Buckets: []float64{30, 60, 120, 300, 600, 1200, 2400},
		}),
	}
	m.registry.MustRegister(m.SessionsStarted, m.SessionsCompleted, m.SessionsAbandoned, m.Answers, m.SessionDuration)
	return m
}

func (m *Metrics) SessionStarted(mode quiz.PolicyKind, timed bool) {
	t := "false"
	if timed {
		t = "true"
	}
	m.SessionsStarted.WithLabelValues(string(mode), t).Inc()
}

func (m *Metrics) AnswerRecorded(res quiz.Result) {
	outcome := "wrong"
	switch {
	case res.Correct:
		outcome = "correct"
	case res.Selected == quiz.NoAnswer:
		outcome = "skipped"
	}
	m.Answers.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SessionCompleted(elapsed time.Duration) {
	m.SessionsCompleted.Inc()
	m.SessionDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) SessionAbandoned() {
	m.SessionsAbandoned.Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, log *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("metrics server listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
