package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	SessionsTotal          = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "sessions_total", Help: "Trading sessions by outcome"}, []string{"outcome"})
	SessionDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "session_duration_seconds", Help: "Wall time from open to close of a session", Buckets: prometheus.LinearBuckets(1, 2, 12)})
	ControllerState        = prometheus.NewGauge(prometheus.GaugeOpts{Name: "controller_state", Help: "Execution controller state (0 idle, 1 cycle, 2 settling, 3 fallback, 4 recovering)"})
	PortfolioValue         = prometheus.NewGauge(prometheus.GaugeOpts{Name: "portfolio_total_value", Help: "Total value reported by the last status query"})
	NeedsRecovery          = prometheus.NewGauge(prometheus.GaugeOpts{Name: "needs_recovery", Help: "1 when the next session starts with a recovery sweep"})

	CycleSearchLatencyMs         = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "cycle_search_latency_ms", Help: "Cycle finder latency", Buckets: prometheus.ExponentialBuckets(1, 2, 12)})
	CyclesFoundTotal             = prometheus.NewCounter(prometheus.CounterOpts{Name: "cycles_found_total", Help: "Profitable cycles accepted"})
	CycleCandidatesRejectedTotal = prometheus.NewCounter(prometheus.CounterOpts{Name: "cycle_candidates_rejected_total", Help: "Detection candidates discarded as unprofitable or open"})
	CycleMultiplier              = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "cycle_multiplier", Help: "Round-trip multiplier of accepted cycles", Buckets: prometheus.LinearBuckets(1.0, 0.01, 20)})
	CycleLoopsTotal              = prometheus.NewCounter(prometheus.CounterOpts{Name: "cycle_loops_total", Help: "Full cycle loops executed"})
	FallbackProbesTotal          = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "fallback_probes_total", Help: "Fallback round trips by result"}, []string{"result"})

	ExchangeRequestsTotal    = prometheus.NewCounter(prometheus.CounterOpts{Name: "exchange_requests_total", Help: "Exchange requests sent to the venue"})
	ExchangeRequestLatencyMs = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "exchange_request_latency_ms", Help: "Exchange request round trip", Buckets: prometheus.LinearBuckets(1, 10, 20)})
	TradeSlippageBps         = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "trade_slippage_bps", Help: "Shortfall of received amount against the session quote", Buckets: prometheus.LinearBuckets(-50, 10, 11)})
	TradesTotal              = prometheus.NewCounter(prometheus.CounterOpts{Name: "trades_total", Help: "Logical trades executed"})
	DegenerateTradesTotal    = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "degenerate_trades_total", Help: "Trades absorbed as no-ops"}, []string{"reason"})
	RecoverySweepsTotal      = prometheus.NewCounter(prometheus.CounterOpts{Name: "recovery_sweeps_total", Help: "Recovery sweeps run"})
	RecoveryConversionsTotal = prometheus.NewCounter(prometheus.CounterOpts{Name: "recovery_conversions_total", Help: "Currencies converted back to base by recovery"})
	VenueErrorsTotal         = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "venue_errors_total", Help: "Venue errors by operation and kind"}, []string{"op", "kind"})
	CapitalFloorBreaches     = prometheus.NewCounter(prometheus.CounterOpts{Name: "capital_floor_breaches_total", Help: "Sessions that ended below the capital floor"})
)

func Init(logger zerolog.Logger) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	toRegister := []prometheus.Collector{
		SessionsTotal, SessionDurationSeconds, ControllerState, PortfolioValue, NeedsRecovery,
		CycleSearchLatencyMs, CyclesFoundTotal, CycleCandidatesRejectedTotal, CycleMultiplier, CycleLoopsTotal, FallbackProbesTotal,
		ExchangeRequestsTotal, ExchangeRequestLatencyMs, TradeSlippageBps, TradesTotal, DegenerateTradesTotal,
		RecoverySweepsTotal, RecoveryConversionsTotal, VenueErrorsTotal, CapitalFloorBreaches,
		collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	for _, c := range toRegister {
		_ = reg.Register(c)
	}
	logger.Info().Msg("Prometheus metrics initialized")
	return reg
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
