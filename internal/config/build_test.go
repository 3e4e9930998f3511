package config

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewBuildInfoDefaults(t *testing.T) {
	info := NewBuildInfo()

	if info.Version != "dev" {
		t.Errorf("Version = %q, want %q", info.Version, "dev")
	}
	if info.Commit != "none" {
		t.Errorf("Commit = %q, want %q", info.Commit, "none")
	}
	if info.BuildTime != "unknown" {
		t.Errorf("BuildTime = %q, want %q", info.BuildTime, "unknown")
	}
}

func TestBuildInfoLogValue(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	logger.Info("starting", "build", NewBuildInfo())

	out := buf.String()
	if !strings.Contains(out, `"build":{"version":"dev","commit":"none","build_time":"unknown"}`) {
		t.Errorf("unexpected log output: %s", out)
	}
}
