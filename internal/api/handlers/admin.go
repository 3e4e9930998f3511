package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"penpal/internal/core"
	"penpal/internal/scheduler"
	"penpal/internal/types"
)

// Operations runs the background jobs on demand. *scheduler.Runner
// satisfies it.
type Operations interface {
	TriggerDeliveries(ctx context.Context, now time.Time) (*scheduler.DeliverySummary, error)
	RunDailyCycle(ctx context.Context, now time.Time) (*scheduler.CycleReport, error)
}

// RunRequest is the optional body of the admin job endpoints.
// ReferenceTime is RFC3339 and defaults to the current time. A time after
// the current time is rejected.
type RunRequest struct {
	ReferenceTime string `json:"reference_time,omitempty"`
}

// AdminHandler exposes the delivery pass and daily cycle to operators.
type AdminHandler struct {
	ops    Operations
	clock  types.Clock
	logger *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(ops Operations, clock types.Clock, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	return &AdminHandler{ops: ops, clock: clock, logger: logger}
}

// RegisterRoutes mounts the endpoints onto the /v1/admin router. The admin
// key middleware is applied by the caller.
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Post("/deliveries/process", h.HandleProcessDeliveries)
	r.Post("/cycle/run", h.HandleRunCycle)
}

// HandleProcessDeliveries handles POST /v1/admin/deliveries/process.
func (h *AdminHandler) HandleProcessDeliveries(w http.ResponseWriter, r *http.Request) {
	now, err := h.referenceTime(w, r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	summary, err := h.ops.TriggerDeliveries(r.Context(), now)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Respond(w, r, http.StatusOK, summary)
}

// HandleRunCycle handles POST /v1/admin/cycle/run. A cycle already claimed
// for the reference date yields 409.
func (h *AdminHandler) HandleRunCycle(w http.ResponseWriter, r *http.Request) {
	now, err := h.referenceTime(w, r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	report, err := h.ops.RunDailyCycle(r.Context(), now)
	if err != nil {
		// RunDailyCycle returns a partial report alongside phase errors.
		if report != nil {
			h.logger.WarnContext(r.Context(), "daily cycle completed with errors",
				"archived", report.Archived,
				"redistributed", report.LettersRedistributed,
				"error", err,
			)
		}
		core.Error(w, r, err)
		return
	}
	core.Respond(w, r, http.StatusOK, report)
}

func (h *AdminHandler) referenceTime(w http.ResponseWriter, r *http.Request) (time.Time, error) {
	var req RunRequest
	if err := core.DecodeOptionalJSON(w, r, &req); err != nil {
		return time.Time{}, err
	}
	if req.ReferenceTime == "" {
		return h.clock.Now(), nil
	}
	t, err := time.Parse(time.RFC3339, req.ReferenceTime)
	if err != nil {
		return time.Time{}, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidTime,
			"reference_time must be an RFC3339 timestamp", err,
			map[string]any{"reference_time": req.ReferenceTime})
	}
	if now := h.clock.Now(); t.After(now) {
		return time.Time{}, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidTime,
			"reference_time must not be in the future", nil,
			map[string]any{"reference_time": req.ReferenceTime, "now": now.UTC().Format(time.RFC3339)})
	}
	return t.UTC(), nil
}
