package health

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func status(h http.HandlerFunc) int {
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	return rec.Code
}

func TestReadyzLifecycle(t *testing.T) {
	t.Cleanup(func() {
		halted.Store(false)
		ready.Store(false)
	})
	if got := status(Healthz); got != http.StatusOK {
		t.Fatalf("/healthz expected 200, got %d", got)
	}
	SetReady(false)
	if got := status(Readyz); got != http.StatusServiceUnavailable {
		t.Fatalf("/readyz before first session expected 503, got %d", got)
	}
	SetReady(true)
	if got := status(Readyz); got != http.StatusOK {
		t.Fatalf("/readyz expected 200, got %d", got)
	}
	Halt()
	SetReady(true)
	if got := status(Readyz); got != http.StatusServiceUnavailable {
		t.Fatalf("/readyz after halt expected 503, got %d", got)
	}
}
