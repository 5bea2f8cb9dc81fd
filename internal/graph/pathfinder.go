package graph

import (
	"math"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"fxarb/internal/infra/metrics"
)

// Path is a profitable trading cycle in trade order. Trading Cycle[0] -> ... -> Cycle[n-1]
// and back to Cycle[0] multiplies the traded amount by Multiplier.
type Path struct {
	Cycle      []Currency
	Multiplier float64
}

type PathFinder interface {
	FindCycle(m *Matrix) (Path, bool)
}

const (
	// unreached distance, kept finite so sums against it stay ordered
	distanceSentinel = 999999.0
	noPredecessor    = Currency(-1)
)

// BellmanFord searches for a negative cycle over -log10(rate) weights rooted at the base currency.
type BellmanFord struct {
	// GuardBand bounds |log10(rate(base, x))| for a currency x to take part in the search.
	GuardBand float64
	// MinMultiplier is the round-trip return a cycle must strictly exceed.
	MinMultiplier float64

	logger zerolog.Logger
}

func NewBellmanFord(guardBand, minMultiplier float64, logger zerolog.Logger) *BellmanFord {
	return &BellmanFord{
		GuardBand:     guardBand,
		MinMultiplier: minMultiplier,
		logger:        logger.With().Str("component", "cycle_finder").Logger(),
	}
}

// FindCycle returns the first profitable cycle the detection pass confirms, if any.
func (b *BellmanFord) FindCycle(m *Matrix) (Path, bool) {
	start := time.Now()
	s := newSearchState(m, b.GuardBand)
	s.relaxAll()
	p, ok := s.detect(b.MinMultiplier)
	metrics.CycleSearchLatencyMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	metrics.CycleCandidatesRejectedTotal.Add(float64(s.rejected))

	ev := b.logger.Debug().Int("relaxations", s.relaxations).Int("candidates", s.candidates).Int("rejected", s.rejected)
	if !ok {
		ev.Msg("no profitable cycle")
		return Path{}, false
	}
	metrics.CyclesFoundTotal.Inc()
	metrics.CycleMultiplier.Observe(p.Multiplier)
	ev.Ints("cycle", currencyInts(p.Cycle)).Float64("multiplier", p.Multiplier).Msg("profitable cycle accepted")
	return p, true
}

// searchState belongs to exactly one FindCycle call.
type searchState struct {
	m        *Matrix
	eligible []bool
	distance []float64
	pred     []Currency

	relaxations int
	candidates  int
	rejected    int
}

func newSearchState(m *Matrix, guardBand float64) *searchState {
	n := m.Size()
	s := &searchState{
		m:        m,
		eligible: make([]bool, n),
		distance: make([]float64, n),
		pred:     make([]Currency, n),
	}
	for i := 0; i < n; i++ {
		c := Currency(i)
		s.distance[i] = distanceSentinel
		s.pred[i] = noPredecessor
		s.eligible[i] = c == Base || math.Abs(math.Log10(m.MustRate(Base, c))) < guardBand
	}
	s.distance[Base] = 0
	return s
}

func (s *searchState) weight(u, v Currency) float64 {
	return -math.Log10(s.m.MustRate(u, v))
}

func (s *searchState) relaxAll() {
	n := s.m.Size()
	for pass := 0; pass < n-1; pass++ {
		for u := 0; u < n; u++ {
			for v := 0; v < n; v++ {
				s.relax(Currency(u), Currency(v))
			}
		}
	}
}

func (s *searchState) relax(u, v Currency) {
	if u == v || !s.eligible[u] || !s.eligible[v] {
		return
	}
	w := s.weight(u, v)
	// a parity edge would let zero-cost loops look like progress
	if w == 0 {
		return
	}
	if s.distance[v] > s.distance[u]+w {
		s.distance[v] = s.distance[u] + w
		s.pred[v] = u
		s.relaxations++
	}
}

func (s *searchState) detect(minMultiplier float64) (Path, bool) {
	n := s.m.Size()
	for u := 0; u < n; u++ {
		for v := 0; v < n; v++ {
			cu, cv := Currency(u), Currency(v)
			if cu == cv || !s.eligible[cu] || !s.eligible[cv] {
				continue
			}
			if !(s.distance[cv] > s.distance[cu]+s.weight(cu, cv)) {
				continue
			}
			s.candidates++
			t := trial{s: s, u: cu, v: cv}
			rev, ok := t.reconstruct()
			if !ok {
				s.rejected++
				continue
			}
			mult := reverseMultiplier(s.m, rev)
			if !(mult > minMultiplier) {
				s.rejected++
				continue
			}
			t.commit()
			return Path{Cycle: tradeOrder(rev), Multiplier: mult}, true
		}
	}
	return Path{}, false
}

// trial views the committed predecessors with pred[v] replaced by u.
type trial struct {
	s    *searchState
	u, v Currency
}

func (t trial) predecessor(x Currency) Currency {
	if x == t.v {
		return t.u
	}
	return t.s.pred[x]
}

// reconstruct walks predecessors from v until a node repeats and returns the closed loop
// in reverse trade order. A walk that falls off the tree yields no cycle.
func (t trial) reconstruct() ([]Currency, bool) {
	seen := make(map[Currency]bool)
	var walk []Currency
	x := t.v
	for !seen[x] {
		seen[x] = true
		walk = append(walk, x)
		x = t.predecessor(x)
		if x == noPredecessor {
			return nil, false
		}
	}
	i := slices.Index(walk, x)
	loop := walk[i:]
	if len(loop) < 2 {
		return nil, false
	}
	return loop, true
}

func (t trial) commit() { t.s.pred[t.v] = t.u }

// reverseMultiplier multiplies rates along a loop given in reverse trade order: every entry
// was reached from the entry after it, and the last entry was reached from the first.
func reverseMultiplier(m *Matrix, rev []Currency) float64 {
	mult := m.MustRate(rev[0], rev[len(rev)-1])
	for i := 1; i < len(rev); i++ {
		mult *= m.MustRate(rev[i], rev[i-1])
	}
	return mult
}

// tradeOrder reverses the loop and, when the base currency is on it, rotates it to the front.
func tradeOrder(rev []Currency) []Currency {
	cycle := slices.Clone(rev)
	slices.Reverse(cycle)
	if i := slices.Index(cycle, Base); i > 0 {
		cycle = append(slices.Clone(cycle[i:]), cycle[:i]...)
	}
	return cycle
}

// Multiplier returns the product of rates along cycle, including the closing edge.
func Multiplier(m *Matrix, cycle []Currency) float64 {
	mult := 1.0
	for i := range cycle {
		mult *= m.MustRate(cycle[i], cycle[(i+1)%len(cycle)])
	}
	return mult
}

func currencyInts(cs []Currency) []int {
	out := make([]int, len(cs))
	for i, c := range cs {
		out[i] = int(c)
	}
	return out
}
