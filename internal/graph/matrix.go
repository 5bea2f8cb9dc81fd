package graph

import (
	"errors"
	"fmt"
	"math"
)

// Currency identifies one node of the market. Base is the reference currency.
type Currency int

const (
	Base          Currency = 0
	NumCurrencies          = 100
)

var (
	ErrUnknownCurrency = errors.New("unknown currency")
	ErrSelfRate        = errors.New("rate of a currency against itself is undefined")
)

// Matrix is an immutable square table of exchange rates, rows are the source currency.
type Matrix struct {
	n     int
	rates []float64
}

// NewMatrix validates rows and copies them. Diagonal entries are ignored.
func NewMatrix(rows [][]float64) (*Matrix, error) {
	n := len(rows)
	if n < 2 {
		return nil, fmt.Errorf("rate matrix needs at least 2 currencies, got %d", n)
	}
	m := &Matrix{n: n, rates: make([]float64, n*n)}
	for i, row := range rows {
		if len(row) != n {
			return nil, fmt.Errorf("rate row %d has %d entries, want %d", i, len(row), n)
		}
		for j, r := range row {
			if i == j {
				continue
			}
			if math.IsNaN(r) || math.IsInf(r, 0) || r <= 0 {
				return nil, fmt.Errorf("rate %d->%d is %v: must be finite and positive", i, j, r)
			}
			m.rates[i*n+j] = r
		}
	}
	return m, nil
}

// Size is the number of currencies.
func (m *Matrix) Size() int { return m.n }

func (m *Matrix) Valid(c Currency) bool { return c >= 0 && int(c) < m.n }

// Rate returns how many units of to one unit of from buys.
func (m *Matrix) Rate(from, to Currency) (float64, error) {
	if !m.Valid(from) || !m.Valid(to) {
		return 0, fmt.Errorf("rate %d->%d: %w", from, to, ErrUnknownCurrency)
	}
	if from == to {
		return 0, fmt.Errorf("rate %d->%d: %w", from, to, ErrSelfRate)
	}
	return m.rates[int(from)*m.n+int(to)], nil
}

// MustRate is Rate for callers that already iterate over valid, distinct ids.
func (m *Matrix) MustRate(from, to Currency) float64 {
	r, err := m.Rate(from, to)
	if err != nil {
		panic(err)
	}
	return r
}
