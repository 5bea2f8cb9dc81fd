package orderexec

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fxarb/internal/exchange/common"
	"fxarb/internal/graph"
	"fxarb/internal/infra/log"
	"fxarb/internal/infra/metrics"
	"fxarb/internal/slippage"
)

// Trader is what the rest of the system needs from an executor.
type Trader interface {
	Exchange(ctx context.Context, from graph.Currency, amount float64, to graph.Currency) (float64, error)
}

// Executor turns one logical trade into venue-sized requests.
type Executor struct {
	venue       common.Venue
	maxRequest  float64
	baseReserve float64
	logger      zerolog.Logger

	quotes *graph.Matrix
}

func New(venue common.Venue, maxRequest, baseReserve float64, logger zerolog.Logger) *Executor {
	return &Executor{
		venue:       venue,
		maxRequest:  maxRequest,
		baseReserve: baseReserve,
		logger:      log.Component(logger, "orderexec"),
	}
}

// SetQuotes sets the rates received amounts are measured against. Nil turns slippage tracking off.
func (e *Executor) SetQuotes(m *graph.Matrix) { e.quotes = m }

// Split breaks amount into full requests of maxRequest while more than maxRequest remains,
// followed by the remainder truncated to 6 decimals. A remainder that truncates to zero is dropped.
// Non-finite amounts split into nothing.
func Split(amount, maxRequest float64) []float64 {
	if !finite(amount) || amount <= 0 || maxRequest <= 0 {
		return nil
	}
	var out []float64
	for amount > maxRequest {
		out = append(out, maxRequest)
		amount -= maxRequest
	}
	if rem := Truncate(amount); rem > 0 {
		out = append(out, rem)
	}
	return out
}

// Truncate cuts a to 6 decimals, rounding toward zero.
func Truncate(a float64) float64 {
	f, _ := decimal.NewFromFloat(a).Truncate(6).Float64()
	return f
}

// Exchange trades amount of from into to and returns the total actually received.
// Same-currency, non-finite and non-positive trades send nothing and return 0.
func (e *Executor) Exchange(ctx context.Context, from graph.Currency, amount float64, to graph.Currency) (float64, error) {
	if from == graph.Base {
		amount -= e.baseReserve
	}
	if from == to {
		metrics.DegenerateTradesTotal.WithLabelValues("same_currency").Inc()
		e.logger.Warn().Int("currency", int(from)).Float64("amount", amount).Msg("currencies equal; trade skipped")
		return 0, nil
	}
	if !finite(amount) {
		metrics.DegenerateTradesTotal.WithLabelValues("non_finite").Inc()
		e.logger.Warn().Int("from", int(from)).Int("to", int(to)).Float64("amount", amount).Msg("non-finite amount; trade skipped")
		return 0, nil
	}
	if amount <= 0 {
		metrics.DegenerateTradesTotal.WithLabelValues("non_positive").Inc()
		e.logger.Warn().Int("from", int(from)).Int("to", int(to)).Float64("amount", amount).Msg("non-positive amount; trade skipped")
		return 0, nil
	}

	var received float64
	chunks := Split(amount, e.maxRequest)
	for i, chunk := range chunks {
		start := time.Now()
		got, err := e.venue.Exchange(ctx, from, chunk, to)
		metrics.ExchangeRequestsTotal.Inc()
		metrics.ExchangeRequestLatencyMs.Observe(float64(time.Since(start).Milliseconds()))
		if err != nil {
			metrics.VenueErrorsTotal.WithLabelValues("exchange", common.ErrorKind(err)).Inc()
			return received, fmt.Errorf("exchange %d->%d request %d/%d of %.6f: %w", from, to, i+1, len(chunks), chunk, err)
		}
		received += got
		if e.quotes != nil {
			if rate, err := e.quotes.Rate(from, to); err == nil {
				metrics.TradeSlippageBps.Observe(slippage.Bps(chunk*rate, got))
			}
		}
	}
	metrics.TradesTotal.Inc()
	e.logger.Debug().
		Int("from", int(from)).
		Int("to", int(to)).
		Float64("amount", amount).
		Int("requests", len(chunks)).
		Float64("received", received).
		Msg("trade executed")
	return received, nil
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
