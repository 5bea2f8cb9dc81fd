// Package sim is an in-memory venue. It backs paper trading and the tests of every package
// that talks to a common.Venue.
package sim

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"

	"fxarb/internal/exchange/common"
	"fxarb/internal/graph"
)

// Request is one exchange call as the venue saw it.
type Request struct {
	From   graph.Currency
	Amount float64
	To     graph.Currency
}

type Venue struct {
	mu sync.Mutex

	// Matrix prices every exchange. When Generate is set it is replaced on each Open.
	Matrix   *graph.Matrix
	Generate func() *graph.Matrix
	Balances []float64

	// Fail, when set, is consulted before each operation; op is one of "open", "status",
	// "rates", "exchange", "close" and n counts calls of that op starting at 1.
	Fail func(op string, n int) error
	// Valuation overrides the total value reported by Status.
	Valuation func(balances []float64) float64

	Requests []Request
	calls    map[string]int
	open     bool
}

var (
	_ common.Venue    = (*Venue)(nil)
	_ common.Resetter = (*Venue)(nil)
)

func New(m *graph.Matrix, balances []float64) *Venue {
	b := make([]float64, m.Size())
	copy(b, balances)
	return &Venue{Matrix: m, Balances: b, calls: map[string]int{}}
}

// NewRandom builds a paper-trading venue whose rates are redrawn each session around parity.
func NewRandom(n int, seed uint64, startingBase float64) *Venue {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	gen := func() *graph.Matrix {
		rows := make([][]float64, n)
		for i := range rows {
			rows[i] = make([]float64, n)
			for j := range rows[i] {
				if i != j {
					rows[i][j] = 0.97 + 0.05*rng.Float64()
				}
			}
		}
		m, _ := graph.NewMatrix(rows)
		return m
	}
	balances := make([]float64, n)
	balances[graph.Base] = startingBase
	v := New(gen(), balances)
	v.Generate = gen
	return v
}

func (v *Venue) Name() string { return "sim" }

func (v *Venue) enter(op string) error {
	if v.calls == nil {
		v.calls = map[string]int{}
	}
	v.calls[op]++
	if v.Fail != nil {
		if err := v.Fail(op, v.calls[op]); err != nil {
			return err
		}
	}
	return nil
}

// Calls reports how often op was invoked, including failed calls.
func (v *Venue) Calls(op string) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls[op]
}

// Sent returns a copy of the exchange requests received so far.
func (v *Venue) Sent() []Request {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Request(nil), v.Requests...)
}

func (v *Venue) ResetRequests() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Requests = nil
}

func (v *Venue) Open(ctx context.Context) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.enter("open"); err != nil {
		return "", err
	}
	if v.Generate != nil {
		v.Matrix = v.Generate()
	}
	v.open = true
	return "Welcome to the simulated exchange", nil
}

func (v *Venue) Status(ctx context.Context) (common.Holdings, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.enter("status"); err != nil {
		return common.Holdings{}, err
	}
	amounts := append([]float64(nil), v.Balances...)
	return common.Holdings{Amounts: amounts, Total: v.valueLocked()}, nil
}

func (v *Venue) valueLocked() float64 {
	if v.Valuation != nil {
		return v.Valuation(v.Balances)
	}
	total := v.Balances[graph.Base]
	for i := 1; i < len(v.Balances); i++ {
		total += v.Balances[i] * v.Matrix.MustRate(graph.Currency(i), graph.Base)
	}
	return total
}

func (v *Venue) Rates(ctx context.Context) (*graph.Matrix, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.enter("rates"); err != nil {
		return nil, err
	}
	return v.Matrix, nil
}

func (v *Venue) Exchange(ctx context.Context, from graph.Currency, amount float64, to graph.Currency) (float64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Requests = append(v.Requests, Request{From: from, Amount: amount, To: to})
	if err := v.enter("exchange"); err != nil {
		return 0, err
	}
	if !v.open {
		return 0, fmt.Errorf("exchange before open: %w", common.ErrProtocol)
	}
	r, err := v.Matrix.Rate(from, to)
	if err != nil {
		return 0, fmt.Errorf("exchange %d->%d: %v: %w", from, to, err, common.ErrProtocol)
	}
	if amount > v.Balances[from]+1e-6 {
		return 0, fmt.Errorf("exchange %d->%d: %.6f exceeds balance %.6f: %w", from, to, amount, v.Balances[from], common.ErrProtocol)
	}
	got := amount * r
	v.Balances[from] -= amount
	if v.Balances[from] < 0 {
		v.Balances[from] = 0
	}
	v.Balances[to] += got
	return got, nil
}

func (v *Venue) Close(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.open = false
	return v.enter("close")
}

// SaveMe restores the account to its starting state of base currency only.
func (v *Venue) SaveMe(ctx context.Context) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	total := v.valueLocked()
	for i := range v.Balances {
		v.Balances[i] = 0
	}
	v.Balances[graph.Base] = total
	return "account reset", nil
}
