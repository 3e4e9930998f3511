// Package handlers contains the HTTP handler implementations for the pen-pal
// delivery API. Handlers decode and validate input, call a service through a
// locally defined interface and write the standard response envelope.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"penpal/internal/core"
	"penpal/internal/delay"
	"penpal/internal/transit"
	"penpal/internal/types"
)

// TransitService is the send-side contract used by TransitHandler.
// *transit.Service satisfies it.
type TransitService interface {
	ComputeDelay(senderCountry, recipientCountry string, preferenceHours *float64, mode string) (delay.Result, error)
	CreateTransitRecord(ctx context.Context, req transit.CreateTransitRequest) (*types.TransitRecord, error)
	SendLetter(ctx context.Context, req transit.SendLetterRequest) (*transit.SendLetterResult, error)
	ListPendingForUser(ctx context.Context, userID string, now time.Time) ([]transit.TransitView, error)
	GetStats(ctx context.Context, userID string) (*types.TransitStats, error)
}

// ManualDeliverer delivers a single record on request.
// *scheduler.DeliveryService satisfies it.
type ManualDeliverer interface {
	DeliverOne(ctx context.Context, recordID, requesterID string, now time.Time) (*types.TransitRecord, error)
}

// EstimateRequest is the body of POST /v1/delays/estimate.
type EstimateRequest struct {
	SenderCountry    string   `json:"sender_country" validate:"country"`
	RecipientCountry string   `json:"recipient_country" validate:"country"`
	PreferenceHours  *float64 `json:"preference_hours,omitempty"`
	Mode             string   `json:"mode,omitempty" validate:"delay_mode"`
}

// TransitHandler serves the letter, transit and per-user endpoints.
type TransitHandler struct {
	transits  TransitService
	deliverer ManualDeliverer
	validator *core.Validator
	clock     types.Clock
	logger    *slog.Logger
}

// NewTransitHandler creates a TransitHandler. A nil clock uses the system
// clock and a nil logger uses slog.Default().
func NewTransitHandler(
	transits TransitService,
	deliverer ManualDeliverer,
	val *core.Validator,
	clock types.Clock,
	logger *slog.Logger,
) *TransitHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	if val == nil {
		val = core.NewValidator(logger)
	}
	return &TransitHandler{
		transits:  transits,
		deliverer: deliverer,
		validator: val,
		clock:     clock,
		logger:    logger,
	}
}

// RegisterRoutes mounts the endpoints onto the /v1 router.
func (h *TransitHandler) RegisterRoutes(r chi.Router) {
	r.Post("/delays/estimate", h.HandleEstimate)
	r.Post("/letters", h.HandleSendLetter)
	r.Post("/transits", h.HandleCreateTransit)
	r.Post("/transits/{transitID}/deliver", h.HandleDeliver)
	r.Get("/users/{userID}/transits", h.HandleListPending)
	r.Get("/users/{userID}/stats", h.HandleStats)
}

// HandleEstimate handles POST /v1/delays/estimate. Nothing is persisted.
func (h *TransitHandler) HandleEstimate(w http.ResponseWriter, r *http.Request) {
	var req EstimateRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	result, err := h.transits.ComputeDelay(req.SenderCountry, req.RecipientCountry, req.PreferenceHours, req.Mode)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Respond(w, r, http.StatusOK, result)
}

// HandleSendLetter handles POST /v1/letters. The sender is the calling user;
// a sender_id in the body is ignored.
func (h *TransitHandler) HandleSendLetter(w http.ResponseWriter, r *http.Request) {
	userID, ok := core.RequireUser(w, r)
	if !ok {
		return
	}

	var req transit.SendLetterRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	req.SenderID = userID

	result, err := h.transits.SendLetter(r.Context(), req)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Respond(w, r, http.StatusCreated, result)
}

// HandleCreateTransit handles POST /v1/transits for a letter that already
// exists. As with HandleSendLetter the sender is the calling user.
func (h *TransitHandler) HandleCreateTransit(w http.ResponseWriter, r *http.Request) {
	userID, ok := core.RequireUser(w, r)
	if !ok {
		return
	}

	var req transit.CreateTransitRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	req.SenderID = userID

	rec, err := h.transits.CreateTransitRecord(r.Context(), req)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Respond(w, r, http.StatusCreated, rec)
}

// HandleDeliver handles POST /v1/transits/{transitID}/deliver. Only the
// sender or recipient may trigger a manual delivery.
func (h *TransitHandler) HandleDeliver(w http.ResponseWriter, r *http.Request) {
	userID, ok := core.RequireUser(w, r)
	if !ok {
		return
	}
	transitID := chi.URLParam(r, "transitID")

	rec, err := h.deliverer.DeliverOne(r.Context(), transitID, userID, h.clock.Now())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "manual delivery",
		"transit_id", rec.ID,
		"requester_id", userID,
	)
	core.Respond(w, r, http.StatusOK, rec)
}

// HandleListPending handles GET /v1/users/{userID}/transits.
func (h *TransitHandler) HandleListPending(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathUser(w, r)
	if !ok {
		return
	}

	views, err := h.transits.ListPendingForUser(r.Context(), userID, h.clock.Now())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Respond(w, r, http.StatusOK, views)
}

// HandleStats handles GET /v1/users/{userID}/stats.
func (h *TransitHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathUser(w, r)
	if !ok {
		return
	}

	stats, err := h.transits.GetStats(r.Context(), userID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Respond(w, r, http.StatusOK, stats)
}

// pathUser returns the {userID} path parameter when it matches the calling
// user. A mismatch is reported as not found so other users' ids are not
// confirmed.
func (h *TransitHandler) pathUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	caller, ok := core.RequireUser(w, r)
	if !ok {
		return "", false
	}
	userID := chi.URLParam(r, "userID")
	if userID != caller {
		core.Error(w, r, types.NewAppErrorWithDetails(types.ErrCodeNotFoundUser, "user not found", nil,
			map[string]any{"user_id": userID}))
		return "", false
	}
	return userID, true
}
