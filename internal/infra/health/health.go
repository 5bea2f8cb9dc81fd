package health

import (
	"net/http"
	"sync/atomic"
)

var (
	ready  atomic.Bool
	halted atomic.Bool
)

// SetReady marks readiness state
func SetReady(v bool) { ready.Store(v) }

// Halt records that the trader stopped for good; readiness never comes back.
func Halt() {
	halted.Store(true)
	ready.Store(false)
}

func Ready() bool { return ready.Load() && !halted.Load() }

// Healthz is a simple liveness probe
func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Readyz is 200 once a session has completed and the trader has not halted.
func Readyz(w http.ResponseWriter, r *http.Request) {
	switch {
	case halted.Load():
		http.Error(w, "halted", http.StatusServiceUnavailable)
	case Ready():
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	default:
		http.Error(w, "not ready", http.StatusServiceUnavailable)
	}
}
