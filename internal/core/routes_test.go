package core

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"penpal/internal/types"
)

// newTestServerForRoutes creates a Server with a few probe routes mounted.
func newTestServerForRoutes(t *testing.T) (*Server, *mockMetricsCollector) {
	t.Helper()

	srv, err := NewServer(testConfig(), testLogger())
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	metrics := &mockMetricsCollector{}
	srv.Metrics = metrics

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, func(r chi.Router) {
		r.Get("/whoami/{name}", func(w http.ResponseWriter, r *http.Request) {
			id, ok := RequireUser(w, r)
			if !ok {
				return
			}
			Respond(w, r, http.StatusOK, map[string]string{
				"user_id":    id,
				"request_id": types.GetRequestID(r.Context()),
			})
		})
		r.Get("/panic", func(http.ResponseWriter, *http.Request) {
			panic("boom")
		})
	})
	srv.AdminRouteRegistrars = append(srv.AdminRouteRegistrars, func(r chi.Router) {
		r.Post("/ping", func(w http.ResponseWriter, r *http.Request) {
			Respond(w, r, http.StatusOK, "pong")
		})
	})

	srv.MountRoutes()
	return srv, metrics
}

func TestRoutes_Health(t *testing.T) {
	srv, _ := newTestServerForRoutes(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("X-Request-Id header should be set")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers should be set")
	}
}

func TestRoutes_UserIdentity(t *testing.T) {
	srv, metrics := newTestServerForRoutes(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/whoami/x", nil)
	req.Header.Set(UserIDHeader, "  alice ")
	req.Header.Set("X-Request-Id", "req-123")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Data map[string]string `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Data["user_id"] != "alice" {
		t.Errorf("user_id = %q, want alice", body.Data["user_id"])
	}
	if body.Data["request_id"] != "req-123" {
		t.Errorf("request_id = %q, want propagated req-123", body.Data["request_id"])
	}

	if len(metrics.calls) != 1 {
		t.Fatalf("expected 1 metrics call, got %d", len(metrics.calls))
	}
	if metrics.calls[0].endpoint != "/v1/whoami/{name}" {
		t.Errorf("endpoint = %q, want route pattern", metrics.calls[0].endpoint)
	}
	if metrics.calls[0].status != "200" {
		t.Errorf("status = %q", metrics.calls[0].status)
	}
}

func TestRoutes_MissingUser(t *testing.T) {
	srv, _ := newTestServerForRoutes(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/whoami/x", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	assertErrorCode(t, rec, types.ErrCodeAuthTokenMissing)
}

func TestRoutes_AdminGuard(t *testing.T) {
	srv, _ := newTestServerForRoutes(t)

	tests := []struct {
		name   string
		header string
		value  string
		status int
		code   types.ErrorCode
	}{
		{"missing key", "", "", http.StatusUnauthorized, types.ErrCodeAuthTokenMissing},
		{"wrong key", AdminKeyHeader, "nope", http.StatusUnauthorized, types.ErrCodeAuthTokenInvalid},
		{"header key", AdminKeyHeader, "admin-secret", http.StatusOK, ""},
		{"bearer key", "Authorization", "bearer admin-secret", http.StatusOK, ""},
		{"malformed bearer", "Authorization", "Basic admin-secret", http.StatusUnauthorized, types.ErrCodeAuthTokenMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/admin/ping", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body.String())
			}
			if tt.code != "" {
				assertErrorCode(t, rec, tt.code)
			}
		})
	}
}

func TestRoutes_AdminGuardWithoutConfiguredKey(t *testing.T) {
	srv, _ := newTestServerForRoutes(t)
	srv.Config.Security.AdminAPIKey = ""

	req := httptest.NewRequest(http.MethodPost, "/v1/admin/ping", nil)
	req.Header.Set(AdminKeyHeader, "anything")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestRoutes_PanicRecovered(t *testing.T) {
	srv, _ := newTestServerForRoutes(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/panic", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	assertErrorCode(t, rec, types.ErrCodeInternalUnexpected)
}

func assertErrorCode(t *testing.T, rec *httptest.ResponseRecorder, want types.ErrorCode) {
	t.Helper()
	var resp APIErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding error body %q: %v", rec.Body.String(), err)
	}
	if resp.Error.Code != string(want) {
		t.Errorf("error code = %q, want %q", resp.Error.Code, want)
	}
}
