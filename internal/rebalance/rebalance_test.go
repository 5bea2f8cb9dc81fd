package rebalance

import (
	"context"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"fxarb/internal/exchange/sim"
	"fxarb/internal/graph"
	"fxarb/internal/orderexec"
)

func newSweeper(t *testing.T, balances []float64) (Sweeper, *sim.Venue) {
	t.Helper()
	n := len(balances)
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = make([]float64, n)
		for j := range rows[i] {
			if i != j {
				rows[i][j] = 1
			}
		}
	}
	m, err := graph.NewMatrix(rows)
	require.NoError(t, err)
	v := sim.New(m, balances)
	_, err = v.Open(context.Background())
	require.NoError(t, err)
	return Sweeper{
		Venue:  v,
		Trader: orderexec.New(v, 1000, 5, zerolog.Nop()),
		Dust:   0.01,
		Logger: zerolog.Nop(),
	}, v
}

func TestSweep_ConvertsStrandedCurrency(t *testing.T) {
	balances := make([]float64, 100)
	balances[graph.Base] = 30
	balances[5] = 120
	s, v := newSweeper(t, balances)

	h, err := s.Rebalance(context.Background())
	require.NoError(t, err)

	sent := v.Sent()
	require.Len(t, sent, 1)
	require.Equal(t, sim.Request{From: 5, Amount: 120, To: graph.Base}, sent[0])
	require.InDelta(t, 150, h.Amount(graph.Base), 1e-9)
	require.Zero(t, h.Amount(5))
}

func TestSweep_Idempotent(t *testing.T) {
	balances := make([]float64, 20)
	balances[graph.Base] = 100
	balances[3] = 40
	balances[11] = 2500
	balances[12] = 0.005 // dust stays
	s, v := newSweeper(t, balances)

	_, err := s.Rebalance(context.Background())
	require.NoError(t, err)
	first := len(v.Sent())
	require.Equal(t, 4, first, "40 in one request, 2500 in three")

	h, err := s.Rebalance(context.Background())
	require.NoError(t, err)
	require.Len(t, v.Sent(), first, "second sweep must not trade")
	require.InDelta(t, 2640, h.Amount(graph.Base), 1e-9)
	require.InDelta(t, 0.005, h.Amount(12), 1e-12)
}

func TestSweep_StatusFailure(t *testing.T) {
	balances := make([]float64, 4)
	balances[2] = 10
	s, v := newSweeper(t, balances)
	v.Fail = func(op string, n int) error {
		if op == "status" {
			return context.DeadlineExceeded
		}
		return nil
	}
	_, err := s.Rebalance(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Empty(t, v.Sent())
}

func TestSweep_SkipsNonFiniteAmounts(t *testing.T) {
	balances := make([]float64, 10)
	balances[graph.Base] = 100
	balances[2] = math.NaN()
	balances[4] = math.Inf(1)
	balances[6] = 25
	s, v := newSweeper(t, balances)

	_, err := s.Rebalance(context.Background())
	require.NoError(t, err)
	require.Equal(t, []sim.Request{{From: 6, Amount: 25, To: graph.Base}}, v.Sent())
}
