package common

import (
	"context"
	"errors"

	"fxarb/internal/graph"
)

var (
	// ErrTransport marks failures to reach the venue: dial, read, write, deadline.
	ErrTransport = errors.New("venue transport failure")
	// ErrProtocol marks replies the client could not make sense of.
	ErrProtocol = errors.New("venue protocol failure")
)

// Holdings is the venue's authoritative snapshot of the account.
type Holdings struct {
	Amounts []float64
	Total   float64
}

func (h Holdings) Amount(c graph.Currency) float64 {
	if c < 0 || int(c) >= len(h.Amounts) {
		return 0
	}
	return h.Amounts[c]
}

// Venue is the session-oriented market the trader talks to. Open must be called first and
// Close always last; calls are strictly sequential.
type Venue interface {
	Name() string
	Open(ctx context.Context) (greeting string, err error)
	Status(ctx context.Context) (Holdings, error)
	Rates(ctx context.Context) (*graph.Matrix, error)
	// Exchange trades amount of from into to and reports how much of to was received.
	// Callers cap amount per request.
	Exchange(ctx context.Context, from graph.Currency, amount float64, to graph.Currency) (float64, error)
	Close(ctx context.Context) error
}

// Optional capability: single rate query
type OneRater interface {
	OneRate(ctx context.Context, from, to graph.Currency) (float64, error)
}

// Optional capability: ask the venue to reset the account
type Resetter interface {
	SaveMe(ctx context.Context) (string, error)
}

// ErrorKind labels err for metrics and session outcomes.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, ErrTransport):
		return "transport"
	case errors.Is(err, ErrProtocol):
		return "protocol"
	default:
		return "other"
	}
}
