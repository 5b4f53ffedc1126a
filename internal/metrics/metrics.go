package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dyike/CortexOffice/pkg/logger"
)

var (
	// Negotiation metrics
	NegotiationRounds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cortex_negotiation_rounds",
			Help:    "Rounds used per trading day",
			Buckets: []float64{1, 2, 3, 4, 5, 8, 10},
		},
	)

	ReviewScores = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cortex_review_score",
			Help:    "Rubric score given by the reviewer",
			Buckets: []float64{50, 60, 70, 80, 85, 88, 90, 95, 100},
		},
	)

	DayOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cortex_day_outcomes_total",
			Help: "Trading days by terminal outcome",
		},
		[]string{"outcome"}, // approved|exhausted|error
	)

	Trades = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cortex_trades_total",
			Help: "Trade instructions by action and result",
		},
		[]string{"action", "status"}, // status: executed|failed|no_quote
	)

	// LLM metrics
	LLMCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cortex_llm_calls_total",
			Help: "Reasoning calls per role",
		},
		[]string{"role", "status"},
	)

	LLMLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cortex_llm_latency_seconds",
			Help:    "Reasoning call latency in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"role"},
	)

	// Market data metrics
	GatewayCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cortex_gateway_calls_total",
			Help: "Market data and news calls per provider",
		},
		[]string{"provider", "operation", "status"},
	)
)

var registerOnce sync.Once

// Init registers every collector with the default registry. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(NegotiationRounds)
		prometheus.MustRegister(ReviewScores)
		prometheus.MustRegister(DayOutcomes)
		prometheus.MustRegister(Trades)
		prometheus.MustRegister(LLMCalls)
		prometheus.MustRegister(LLMLatency)
		prometheus.MustRegister(GatewayCalls)
	})
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	Init()
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Get().Named("metrics").Infow("metrics endpoint listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func RecordLLMCall(role string, latency time.Duration, err error) {
	LLMCalls.WithLabelValues(role, status(err)).Inc()
	LLMLatency.WithLabelValues(role).Observe(latency.Seconds())
}

func RecordGatewayCall(provider, operation string, err error) {
	GatewayCalls.WithLabelValues(provider, operation, status(err)).Inc()
}

func RecordTrade(action, result string) {
	Trades.WithLabelValues(action, result).Inc()
}

// RecordDay records the outcome of one trading day.
func RecordDay(outcome string, rounds int, lastScore int, scored bool) {
	DayOutcomes.WithLabelValues(outcome).Inc()
	NegotiationRounds.Observe(float64(rounds))
	if scored {
		ReviewScores.Observe(float64(lastScore))
	}
}
