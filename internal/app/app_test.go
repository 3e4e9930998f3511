package app

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"penpal/internal/config"
	"penpal/internal/scheduler"
	"penpal/internal/storetest"
)

func testConfig() *config.Config {
	return &config.Config{
		Delivery: config.DeliveryConfig{Enabled: true, Interval: time.Hour},
		Cycle:    config.CycleConfig{Enabled: true, Schedule: "0 0 3 * * *", LockTTL: time.Hour},
	}
}

func TestNewRunner_DisabledHalves(t *testing.T) {
	store := storetest.New()
	deliveries := scheduler.NewDeliveryService(scheduler.DeliveryServiceConfig{Store: store})
	cycle := scheduler.NewCycleService(scheduler.CycleConfig{Store: store})

	cfg := testConfig()
	cfg.Cycle.Enabled = false
	r := NewRunner(cfg, deliveries, cycle, nil, nil, "w1", slog.Default())

	if _, err := r.TriggerDeliveries(context.Background(), time.Now()); err != nil {
		t.Fatalf("TriggerDeliveries() error = %v", err)
	}
	if _, err := r.RunDailyCycle(context.Background(), time.Now()); err == nil {
		t.Fatal("RunDailyCycle() should fail when the cycle is disabled")
	}

	cfg = testConfig()
	cfg.Delivery.Enabled = false
	r = NewRunner(cfg, deliveries, cycle, nil, nil, "w1", slog.Default())
	if _, err := r.TriggerDeliveries(context.Background(), time.Now()); err == nil {
		t.Fatal("TriggerDeliveries() should fail when deliveries are disabled")
	}
	if _, err := r.RunDailyCycle(context.Background(), time.Now()); err != nil {
		t.Fatalf("RunDailyCycle() error = %v", err)
	}
}

func TestNewLogger_Levels(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		level   string
		enabled slog.Level
		muted   slog.Level
	}{
		{"debug", slog.LevelDebug, slog.LevelDebug - 1},
		{"info", slog.LevelInfo, slog.LevelDebug},
		{"warn", slog.LevelWarn, slog.LevelInfo},
		{"error", slog.LevelError, slog.LevelWarn},
		{"bogus", slog.LevelInfo, slog.LevelDebug},
	}
	for _, tt := range tests {
		l := NewLogger(tt.level)
		if !l.Enabled(ctx, tt.enabled) {
			t.Errorf("%s: level %v should be enabled", tt.level, tt.enabled)
		}
		if l.Enabled(ctx, tt.muted) {
			t.Errorf("%s: level %v should be muted", tt.level, tt.muted)
		}
	}
}

func TestWorkerIDUnique(t *testing.T) {
	a, b := workerID(), workerID()
	if a == b {
		t.Errorf("worker ids should differ, got %q twice", a)
	}
	if !strings.Contains(a, "-") {
		t.Errorf("worker id %q should carry a random suffix", a)
	}
}
