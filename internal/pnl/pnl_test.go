package pnl

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_TracksRealized(t *testing.T) {
	l := NewLedger()
	require.Zero(t, l.Realized())

	l.Record(Session{ID: "a", Outcome: "ok", Mode: "cycle", StartTotal: 20000, EndTotal: 20100, Cycle: []int{0, 4, 9}})
	l.Record(Session{ID: "b", Outcome: "transport_failure", Mode: "fallback", StartTotal: 20100, EndTotal: 20050})

	assert.InDelta(t, 50, l.Realized(), 1e-9)
	assert.InDelta(t, 20050, l.Total(), 1e-9)

	s := l.Snapshot()
	assert.Equal(t, 2, s.Sessions)
	assert.Equal(t, map[string]int{"ok": 1, "transport_failure": 1}, s.Outcomes)
	require.NotNil(t, s.Last)
	assert.Equal(t, "b", s.Last.ID)
	require.NotNil(t, s.LastCycle)
	assert.Equal(t, []int{0, 4, 9}, s.LastCycle.Cycle)
}

func TestLedger_SnapshotIsACopy(t *testing.T) {
	l := NewLedger()
	cycle := []int{1, 2, 3}
	l.Record(Session{ID: "a", Cycle: cycle})
	l.ObserveHoldings([]float64{1, 2})
	cycle[0] = 99

	s := l.Snapshot()
	s.Holdings[0] = 42
	s.Outcomes["x"] = 7
	assert.Equal(t, []int{1, 2, 3}, l.Snapshot().LastCycle.Cycle)
	assert.Equal(t, []float64{1, 2}, l.Snapshot().Holdings)
	assert.NotContains(t, l.Snapshot().Outcomes, "x")
}

func TestLedger_ConcurrentUse(t *testing.T) {
	l := NewLedger()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				l.Record(Session{Outcome: "ok", StartTotal: 1, EndTotal: 2})
				_ = l.Snapshot()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 800, l.Snapshot().Sessions)
}
