package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxarb/internal/infra/netutil"
)

func echoID() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(GetRequestID(r.Context())))
	})
}

func TestRequestID_Generated(t *testing.T) {
	rec := httptest.NewRecorder()
	RequestID(echoID()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	rid := rec.Header().Get("X-Request-Id")
	_, err := uuid.Parse(rid)
	require.NoError(t, err)
	assert.Equal(t, rid, rec.Body.String())
}

func TestRequestID_Propagated(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	rec := httptest.NewRecorder()
	RequestID(echoID()).ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Body.String())
}

func TestLogger_RecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	h := RequestID(Logger(zerolog.New(&buf))(http.NotFoundHandler()))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Contains(t, buf.String(), `"status":404`)
	assert.Contains(t, buf.String(), `"path":"/missing"`)
	assert.Contains(t, buf.String(), `"rid":"`)
}

func TestAdminGate(t *testing.T) {
	gate := AdminGate(netutil.MustParseCIDRs([]string{"127.0.0.0/8", "bogus"}), echoID())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.RemoteAddr = "127.0.0.1:5555"
	rec := httptest.NewRecorder()
	gate.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req.RemoteAddr = "10.1.2.3:5555"
	rec = httptest.NewRecorder()
	gate.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
