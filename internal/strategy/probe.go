package strategy

import (
	"math/rand/v2"

	"fxarb/internal/graph"
)

// ProbeRules bound the currencies the fallback round trip may go through.
type ProbeRules struct {
	RateMin     float64 // exclusive lower bound on rate(base, c)
	RateMax     float64 // exclusive upper bound on rate(base, c)
	ParityLimit float64 // RoundTripRatio must stay strictly below this
}

// RoundTripRatio is 1/rate(base,c) * rate(c,base), the figure the probe keeps near parity.
func RoundTripRatio(m *graph.Matrix, c graph.Currency) float64 {
	return 1.0 / m.MustRate(graph.Base, c) * m.MustRate(c, graph.Base)
}

// Acceptable applies every probe rule to c, including that c is not the base currency.
func (r ProbeRules) Acceptable(m *graph.Matrix, c graph.Currency) bool {
	if c == graph.Base || !m.Valid(c) {
		return false
	}
	rate := m.MustRate(graph.Base, c)
	if !(rate > r.RateMin && rate < r.RateMax) {
		return false
	}
	return RoundTripRatio(m, c) < r.ParityLimit
}

// PickProbe draws non-base currencies in random order and returns the first acceptable one.
func PickProbe(m *graph.Matrix, rules ProbeRules, rng *rand.Rand) (graph.Currency, bool) {
	candidates := make([]graph.Currency, 0, m.Size()-1)
	for i := 0; i < m.Size(); i++ {
		if c := graph.Currency(i); c != graph.Base {
			candidates = append(candidates, c)
		}
	}
	rng.Shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })
	for _, c := range candidates {
		if rules.Acceptable(m, c) {
			return c, true
		}
	}
	return 0, false
}
