package arbitrage

import (
	"time"

	"fxarb/internal/exchange/common"
	"fxarb/internal/graph"
)

// State is the execution controller's current phase. The numeric values are exported
// through the controller_state gauge.
type State int

const (
	StateIdle State = iota
	StateCycleTrading
	StateSettling
	StateFallbackTrading
	StateRecovering
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCycleTrading:
		return "cycle_trading"
	case StateSettling:
		return "settling"
	case StateFallbackTrading:
		return "fallback_trading"
	case StateRecovering:
		return "recovering"
	}
	return "unknown"
}

type Outcome string

const (
	OutcomeOK               Outcome = "ok"
	OutcomeTransportFailure Outcome = "transport_failure"
	OutcomeProtocolFailure  Outcome = "protocol_failure"
	OutcomeCanceled         Outcome = "canceled"
)

func outcomeOf(err error) Outcome {
	switch common.ErrorKind(err) {
	case "none":
		return OutcomeOK
	case "canceled":
		return OutcomeCanceled
	case "transport":
		return OutcomeTransportFailure
	default:
		return OutcomeProtocolFailure
	}
}

// Mode names what a session spent its time on.
type Mode string

const (
	ModeIdle     Mode = "idle"
	ModeCycle    Mode = "cycle"
	ModeFallback Mode = "fallback"
)

// SessionReport describes one connect-to-disconnect session.
type SessionReport struct {
	ID         string
	Started    time.Time
	Ended      time.Time
	Outcome    Outcome
	Mode       Mode
	Recovered  bool
	StartTotal float64
	EndTotal   float64
	Path       graph.Path
	Probe      graph.Currency
	Loops      int
	Err        error
}
