package core

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func runHealth(t *testing.T, probes ...HealthProbe) (int, healthResponse) {
	t.Helper()
	srv, err := NewServer(testConfig(), testLogger())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	srv.HealthProbes = probes

	rec := httptest.NewRecorder()
	srv.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var resp healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	return rec.Code, resp
}

func TestHandleHealth_NoProbes(t *testing.T) {
	status, resp := runHealth(t)
	if status != http.StatusOK || resp.Status != "healthy" {
		t.Errorf("got %d %+v", status, resp)
	}
}

func TestHandleHealth_AllHealthy(t *testing.T) {
	status, resp := runHealth(t,
		ProbeFunc{ProbeName: "database", Fn: func(context.Context) error { return nil }},
		RunnerProbe{Running: func() bool { return true }},
	)
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if resp.Components["database"].Status != "healthy" || resp.Components["scheduler"].Status != "healthy" {
		t.Errorf("components = %+v", resp.Components)
	}
}

func TestHandleHealth_Failures(t *testing.T) {
	status, resp := runHealth(t,
		ProbeFunc{ProbeName: "database", Fn: func(context.Context) error { return errors.New("connection refused") }},
		RunnerProbe{Running: func() bool { return false }},
		ProbeFunc{ProbeName: "events", Fn: func(context.Context) error { panic("boom") }},
	)
	if status != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", status)
	}
	if resp.Status != "unhealthy" {
		t.Errorf("status = %q", resp.Status)
	}
	for _, name := range []string{"database", "scheduler", "events"} {
		if resp.Components[name].Status != "unhealthy" {
			t.Errorf("%s = %+v, want unhealthy", name, resp.Components[name])
		}
	}
	if resp.Components["database"].Message != "connection refused" {
		t.Errorf("database message = %q", resp.Components["database"].Message)
	}
}

func TestHandleHealth_Timeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	status, resp := runHealth(t, ProbeFunc{ProbeName: "slow", Fn: func(ctx context.Context) error {
		select {
		case <-release:
		case <-time.After(10 * time.Second):
		}
		return nil
	}})

	if elapsed := time.Since(start); elapsed > healthCheckTimeout+time.Second {
		t.Errorf("health check took %v", elapsed)
	}
	if status != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", status)
	}
	if resp.Components["slow"].Message != "health check timed out" {
		t.Errorf("message = %q", resp.Components["slow"].Message)
	}
}
