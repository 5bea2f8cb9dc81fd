package graph

import (
	"math"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testGuardBand     = 1.5
	testMinMultiplier = 1.01
)

func newFinder() *BellmanFord {
	return NewBellmanFord(testGuardBand, testMinMultiplier, zerolog.Nop())
}

func mustMatrix(t *testing.T, rows [][]float64) *Matrix {
	t.Helper()
	m, err := NewMatrix(rows)
	require.NoError(t, err)
	return m
}

// requireWellFormed checks the invariants every accepted cycle must hold.
func requireWellFormed(t *testing.T, m *Matrix, p Path) {
	t.Helper()
	require.GreaterOrEqual(t, len(p.Cycle), 2)
	require.Greater(t, p.Multiplier, testMinMultiplier)
	seen := map[Currency]bool{}
	for _, c := range p.Cycle {
		require.True(t, m.Valid(c), "currency %d out of range", c)
		require.False(t, seen[c], "currency %d repeated in %v", c, p.Cycle)
		seen[c] = true
		if c != Base {
			require.Less(t, math.Abs(math.Log10(m.MustRate(Base, c))), testGuardBand, "currency %d outside guard band", c)
		}
	}
	assert.InDelta(t, p.Multiplier, Multiplier(m, p.Cycle), 1e-9*p.Multiplier)
}

func TestFindCycle_BaseTriangle(t *testing.T) {
	rows := uniform(NumCurrencies, 0.9)
	rows[0][1] = 1.02
	rows[1][2] = 1.02
	rows[2][0] = 1.0
	m := mustMatrix(t, rows)

	p, ok := newFinder().FindCycle(m)
	require.True(t, ok)
	require.Equal(t, []Currency{0, 1, 2}, p.Cycle)
	require.InDelta(t, 1.0404, p.Multiplier, 1e-12)
	requireWellFormed(t, m, p)
}

func TestFindCycle_UniformParityHasNoCycle(t *testing.T) {
	_, ok := newFinder().FindCycle(mustMatrix(t, uniform(NumCurrencies, 1.0)))
	require.False(t, ok)
}

func TestFindCycle_LosingMarketHasNoCycle(t *testing.T) {
	_, ok := newFinder().FindCycle(mustMatrix(t, uniform(NumCurrencies, 0.9)))
	require.False(t, ok)
}

func TestFindCycle_CycleAwayFromBase(t *testing.T) {
	rows := uniform(10, 0.9)
	rows[1][2] = 1.1
	rows[2][3] = 1.1
	rows[3][1] = 1.0
	m := mustMatrix(t, rows)

	p, ok := newFinder().FindCycle(m)
	require.True(t, ok)
	requireWellFormed(t, m, p)
	require.ElementsMatch(t, []Currency{1, 2, 3}, p.Cycle)
	require.InDelta(t, 1.21, p.Multiplier, 1e-12)
	// trade order must follow the profitable direction
	require.InDelta(t, 1.21, Multiplier(m, p.Cycle), 1e-12)
}

func TestFindCycle_BelowThresholdRejected(t *testing.T) {
	rows := uniform(10, 0.9)
	rows[0][1] = 1.004
	rows[1][2] = 1.004
	rows[2][0] = 1.0
	_, ok := newFinder().FindCycle(mustMatrix(t, rows))
	require.False(t, ok, "a 0.8%% loop must not clear the 1%% threshold")
}

func TestFindCycle_GuardBandExcludesExtremeCurrency(t *testing.T) {
	rows := uniform(10, 0.9)
	// currency 5 trades at 100 per base unit: |log10| = 2 is outside the band
	rows[0][5] = 100
	rows[1][5] = 2
	rows[5][1] = 2
	_, ok := newFinder().FindCycle(mustMatrix(t, rows))
	require.False(t, ok)

	// inside the band the same loop is found
	rows[0][5] = 10
	m := mustMatrix(t, rows)
	p, ok := newFinder().FindCycle(m)
	require.True(t, ok)
	requireWellFormed(t, m, p)
	require.Contains(t, p.Cycle, Currency(5))
}

func TestFindCycle_IndependentInvocations(t *testing.T) {
	rows := uniform(20, 0.9)
	rows[0][1] = 1.02
	rows[1][2] = 1.02
	rows[2][0] = 1.0
	m := mustMatrix(t, rows)
	f := newFinder()

	var wg sync.WaitGroup
	results := make([]Path, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, ok := f.FindCycle(m)
			assert.True(t, ok)
			results[i] = p
		}(i)
	}
	wg.Wait()
	for _, p := range results {
		require.Equal(t, results[0], p)
	}
}

func TestFindCycle_RandomMatricesHoldInvariants(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	f := newFinder()
	found := 0
	for iter := 0; iter < 40; iter++ {
		n := 12 + rng.IntN(20)
		rows := make([][]float64, n)
		for i := range rows {
			rows[i] = make([]float64, n)
			for j := range rows[i] {
				if i == j {
					continue
				}
				rows[i][j] = 0.85 + 0.3*rng.Float64()
				if rng.IntN(25) == 0 {
					// extreme rates the guard band has to keep out
					rows[i][j] = math.Pow(10, 1+3*rng.Float64())
				}
			}
		}
		m := mustMatrix(t, rows)
		p, ok := f.FindCycle(m)
		if !ok {
			continue
		}
		found++
		requireWellFormed(t, m, p)
	}
	require.Positive(t, found, "random markets this noisy should expose at least one cycle")
}

func TestTradeOrder_RotatesToBase(t *testing.T) {
	require.Equal(t, []Currency{0, 1, 2}, tradeOrder([]Currency{0, 2, 1}))
	require.Equal(t, []Currency{3, 2, 1}, tradeOrder([]Currency{1, 2, 3}))
}
