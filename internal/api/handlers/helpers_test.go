package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"penpal/internal/config"
	"penpal/internal/core"
)

const testAdminKey = "admin-secret"

var testNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

type mutableClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *mutableClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *mutableClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestServer mounts the handlers behind the production middleware chain.
func newTestServer(t *testing.T, v1, admin []core.RouteRegistrar) http.Handler {
	t.Helper()
	cfg := &config.Config{
		Environment: "local",
		Server:      config.ServerConfig{WriteTimeout: 10 * time.Second},
		Security:    config.SecurityConfig{AdminAPIKey: testAdminKey},
	}
	srv, err := core.NewServer(cfg, testLogger())
	require.NoError(t, err)
	srv.V1RouteRegistrars = v1
	srv.AdminRouteRegistrars = admin
	srv.MountRoutes()
	return srv.Handler()
}

type testRequest struct {
	method   string
	path     string
	body     any
	userID   string
	adminKey string
}

func do(t *testing.T, h http.Handler, tr testRequest) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader = http.NoBody
	if tr.body != nil {
		raw, ok := tr.body.(string)
		if !ok {
			b, err := json.Marshal(tr.body)
			require.NoError(t, err)
			raw = string(b)
		}
		body = bytes.NewBufferString(raw)
	}
	req := httptest.NewRequest(tr.method, tr.path, body)
	if tr.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tr.userID != "" {
		req.Header.Set(core.UserIDHeader, tr.userID)
	}
	if tr.adminKey != "" {
		req.Header.Set(core.AdminKeyHeader, tr.adminKey)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// decodeData unmarshals the {"data": ...} envelope into dst.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp core.APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp.Error.Code
}
