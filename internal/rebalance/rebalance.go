package rebalance

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"fxarb/internal/exchange/common"
	"fxarb/internal/graph"
	"fxarb/internal/infra/metrics"
	"fxarb/internal/orderexec"
)

type Rebalancer interface {
	Rebalance(ctx context.Context) (common.Holdings, error)
}

// Sweeper converts every non-base balance above Dust back into the base currency.
type Sweeper struct {
	Venue  common.Venue
	Trader orderexec.Trader
	Dust   float64
	Logger zerolog.Logger
}

// Rebalance sweeps the account and returns the status reported after the sweep.
// Running it on an account already held in base sends no exchange requests.
func (s Sweeper) Rebalance(ctx context.Context) (common.Holdings, error) {
	metrics.RecoverySweepsTotal.Inc()
	h, err := s.Venue.Status(ctx)
	if err != nil {
		return common.Holdings{}, fmt.Errorf("status before sweep: %w", err)
	}
	converted := 0
	for i, amount := range h.Amounts {
		c := graph.Currency(i)
		if c == graph.Base || !(amount > s.Dust) || math.IsInf(amount, 0) {
			continue
		}
		got, err := s.Trader.Exchange(ctx, c, amount, graph.Base)
		if err != nil {
			return common.Holdings{}, fmt.Errorf("sweep currency %d: %w", c, err)
		}
		converted++
		metrics.RecoveryConversionsTotal.Inc()
		s.Logger.Info().Int("currency", i).Float64("amount", amount).Float64("received", got).Msg("swept to base")
	}
	if converted == 0 {
		return h, nil
	}
	after, err := s.Venue.Status(ctx)
	if err != nil {
		return common.Holdings{}, fmt.Errorf("status after sweep: %w", err)
	}
	s.Logger.Info().Int("converted", converted).Float64("total", after.Total).Msg("recovery sweep done")
	return after, nil
}
