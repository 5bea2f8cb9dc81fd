package pnl

import (
	"sync"
	"time"
)

type Tracker interface {
	Record(s Session)
	Realized() float64
	Total() float64
}

// Session is what one trading session left behind.
type Session struct {
	ID         string    `json:"id"`
	Started    time.Time `json:"started"`
	Ended      time.Time `json:"ended"`
	Outcome    string    `json:"outcome"`
	Mode       string    `json:"mode"`
	StartTotal float64   `json:"start_total"`
	EndTotal   float64   `json:"end_total"`
	Cycle      []int     `json:"cycle,omitempty"`
	Multiplier float64   `json:"multiplier,omitempty"`
	Loops      int       `json:"loops"`
	Error      string    `json:"error,omitempty"`
}

// Summary is a point-in-time copy of the ledger.
type Summary struct {
	Sessions   int            `json:"sessions"`
	Outcomes   map[string]int `json:"outcomes"`
	FirstTotal float64        `json:"first_total"`
	LastTotal  float64        `json:"last_total"`
	Realized   float64        `json:"realized"`
	Last       *Session       `json:"last,omitempty"`
	LastCycle  *Session       `json:"last_cycle,omitempty"`
	Holdings   []float64      `json:"holdings,omitempty"`
}

// Ledger keeps session results in memory for the status API.
type Ledger struct {
	mu        sync.RWMutex
	count     int
	outcomes  map[string]int
	first     float64
	last      float64
	seeded    bool
	lastSess  *Session
	lastCycle *Session
	holdings  []float64
}

var _ Tracker = (*Ledger)(nil)

func NewLedger() *Ledger {
	return &Ledger{outcomes: map[string]int{}}
}

func (l *Ledger) Record(s Session) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.count++
	l.outcomes[s.Outcome]++
	if !l.seeded && s.StartTotal > 0 {
		l.first = s.StartTotal
		l.seeded = true
	}
	if s.EndTotal > 0 {
		l.last = s.EndTotal
	}
	cp := s
	cp.Cycle = append([]int(nil), s.Cycle...)
	l.lastSess = &cp
	if len(s.Cycle) > 0 {
		l.lastCycle = &cp
	}
}

// ObserveHoldings stores the latest per-currency amounts.
func (l *Ledger) ObserveHoldings(amounts []float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.holdings = append(l.holdings[:0], amounts...)
}

func (l *Ledger) Realized() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.seeded {
		return 0
	}
	return l.last - l.first
}

func (l *Ledger) Total() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.last
}

func (l *Ledger) Snapshot() Summary {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := Summary{
		Sessions:   l.count,
		Outcomes:   make(map[string]int, len(l.outcomes)),
		FirstTotal: l.first,
		LastTotal:  l.last,
		Holdings:   append([]float64(nil), l.holdings...),
	}
	if l.seeded {
		out.Realized = l.last - l.first
	}
	for k, v := range l.outcomes {
		out.Outcomes[k] = v
	}
	if l.lastSess != nil {
		s := *l.lastSess
		out.Last = &s
	}
	if l.lastCycle != nil {
		s := *l.lastCycle
		out.LastCycle = &s
	}
	return out
}
