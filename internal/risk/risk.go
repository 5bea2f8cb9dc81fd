package risk

import (
	"errors"
	"fmt"
)

// ErrCapitalFloor stops the trader: the account fell below the configured floor.
var ErrCapitalFloor = errors.New("capital floor breached")

type Limits struct {
	CapitalFloor float64
}

type Engine interface {
	CheckCapital(total float64) error
}

// Floor compares a settled portfolio value against Limits.CapitalFloor.
type Floor struct{ Limits Limits }

// CheckCapital returns an error wrapping ErrCapitalFloor when total is strictly below the floor.
func (f Floor) CheckCapital(total float64) error {
	if total < f.Limits.CapitalFloor {
		return fmt.Errorf("total %.6f below %.2f: %w", total, f.Limits.CapitalFloor, ErrCapitalFloor)
	}
	return nil
}
