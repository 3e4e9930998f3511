// Package transit is the send-side of the postal simulation: it computes
// delays, persists transit records alongside their letters and answers
// "what's in the mail for me" queries.
package transit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"penpal/internal/delay"
	"penpal/internal/types"
)

// Store is the persistence surface used by Service. *db.Store satisfies it.
type Store interface {
	types.TransactionManager
	types.RepositoryRegistry
}

// CreateTransitRequest describes a transit record for an existing letter.
type CreateTransitRequest struct {
	LetterID         string           `json:"letter_id" validate:"required"`
	SenderID         string           `json:"sender_id" validate:"required"`
	RecipientID      string           `json:"recipient_id" validate:"required"`
	SenderCountry    string           `json:"sender_country" validate:"required"`
	RecipientCountry string           `json:"recipient_country" validate:"required"`
	LetterType       types.LetterType `json:"letter_type" validate:"required"`
	FriendRequestID  *string          `json:"friend_request_id,omitempty"`
	PreferenceHours  *float64         `json:"preference_hours,omitempty"`
	Mode             string           `json:"mode,omitempty"`
}

// SendLetterRequest writes a letter to a recipient and puts it in transit.
type SendLetterRequest struct {
	SenderID        string           `json:"sender_id" validate:"required"`
	RecipientID     string           `json:"recipient_id" validate:"required,nefield=SenderID"`
	Content         string           `json:"content" validate:"required,max=20000"`
	LetterType      types.LetterType `json:"letter_type" validate:"required"`
	PreferenceHours *float64         `json:"preference_hours,omitempty"`
	Mode            string           `json:"mode,omitempty"`
}

// SendLetterResult holds everything SendLetter created.
type SendLetterResult struct {
	Letter        *types.Letter        `json:"letter"`
	FriendRequest *types.FriendRequest `json:"friend_request,omitempty"`
	Transit       *types.TransitRecord `json:"transit"`
	Delay         delay.Result         `json:"delay"`
}

// TransitView is a pending transit record as shown to its recipient.
type TransitView struct {
	types.TransitRecord
	RemainingMinutes int    `json:"remaining_minutes"`
	RemainingText    string `json:"remaining_text"`
	ProgressPercent  int    `json:"progress_percent"`
}

// Service implements the send-side operations.
type Service struct {
	store    Store
	calc     *delay.Calculator
	validate *validator.Validate
	clock    types.Clock
	logger   *slog.Logger
}

// NewService creates a Service. A nil clock uses the system clock and a nil
// logger uses slog.Default().
func NewService(store Store, calc *delay.Calculator, clock types.Clock, logger *slog.Logger) *Service {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		calc:     calc,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		clock:    clock,
		logger:   logger,
	}
}

// ComputeDelay returns a delay estimate without persisting anything.
func (s *Service) ComputeDelay(senderCountry, recipientCountry string, preferenceHours *float64, mode string) (delay.Result, error) {
	m, err := delay.ParseMode(mode)
	if err != nil {
		return delay.Result{}, err
	}
	return s.calc.Compute(delay.Request{
		SenderCountry:    senderCountry,
		RecipientCountry: recipientCountry,
		PreferenceHours:  preferenceHours,
		Mode:             m,
	}, s.clock.Now())
}

// CreateTransitRecord validates req, computes the delay and persists an
// undelivered transit record.
func (s *Service) CreateTransitRecord(ctx context.Context, req CreateTransitRequest) (*types.TransitRecord, error) {
	rec, _, err := s.buildRecord(req, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := s.store.Transits().Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("creating transit record: %w", err)
	}

	s.logger.InfoContext(ctx, "transit record created",
		"transit_id", rec.ID,
		"letter_id", rec.LetterID,
		"letter_type", rec.LetterType,
		"tier", rec.TierName,
		"delivery_date", rec.DeliveryDate,
	)
	return rec, nil
}

// SendLetter creates the letter, an optional friend request and the transit
// record in one transaction. Countries are snapshotted from the profiles at
// send time.
func (s *Service) SendLetter(ctx context.Context, req SendLetterRequest) (*SendLetterResult, error) {
	if err := s.validateStruct(req); err != nil {
		return nil, err
	}
	if !req.LetterType.Valid() {
		return nil, invalidLetterType(req.LetterType)
	}

	now := s.clock.Now()
	var result *SendLetterResult

	err := s.store.RunInTx(ctx, func(ctx context.Context, repos types.RepositoryRegistry) error {
		profiles, err := repos.Profiles().GetProfiles(ctx, []string{req.SenderID, req.RecipientID})
		if err != nil {
			return err
		}
		sender, ok := profiles[req.SenderID]
		if !ok {
			return userNotFound(req.SenderID)
		}
		recipient, ok := profiles[req.RecipientID]
		if !ok {
			return userNotFound(req.RecipientID)
		}

		recipientID := req.RecipientID
		letter := &types.Letter{
			ID:          uuid.NewString(),
			SenderID:    req.SenderID,
			RecipientID: &recipientID,
			Kind:        types.LetterKindOriginal,
			Content:     req.Content,
			Status:      types.LetterStatusSent,
			CreatedAt:   now,
		}

		var fr *types.FriendRequest
		if req.LetterType == types.LetterTypeFriendRequest {
			fr = &types.FriendRequest{
				ID:          uuid.NewString(),
				SenderID:    req.SenderID,
				RecipientID: req.RecipientID,
				LetterID:    letter.ID,
				Status:      types.FriendRequestPending,
				CreatedAt:   now,
			}
		}

		createReq := CreateTransitRequest{
			LetterID:         letter.ID,
			SenderID:         req.SenderID,
			RecipientID:      req.RecipientID,
			SenderCountry:    sender.Country,
			RecipientCountry: recipient.Country,
			LetterType:       req.LetterType,
			PreferenceHours:  req.PreferenceHours,
			Mode:             req.Mode,
		}
		if fr != nil {
			createReq.FriendRequestID = &fr.ID
		}
		rec, d, err := s.buildRecord(createReq, now)
		if err != nil {
			return err
		}

		if err := repos.Letters().Create(ctx, letter); err != nil {
			return err
		}
		if fr != nil {
			if err := repos.FriendRequests().Create(ctx, fr); err != nil {
				return err
			}
		}
		if err := repos.Transits().Create(ctx, rec); err != nil {
			return err
		}

		result = &SendLetterResult{Letter: letter, FriendRequest: fr, Transit: rec, Delay: d}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sending letter: %w", err)
	}

	s.logger.InfoContext(ctx, "letter sent",
		"letter_id", result.Letter.ID,
		"transit_id", result.Transit.ID,
		"letter_type", req.LetterType,
		"estimated", result.Delay.EstimatedDeliveryText,
	)
	return result, nil
}

// ListPendingForUser returns the undelivered records addressed to userID,
// earliest first, with remaining time measured from now.
func (s *Service) ListPendingForUser(ctx context.Context, userID string, now time.Time) ([]TransitView, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, missingField("user_id")
	}
	recs, err := s.store.Transits().FindPendingForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing pending transits: %w", err)
	}

	views := make([]TransitView, 0, len(recs))
	for _, rec := range recs {
		remaining := rec.DeliveryDate.Sub(now)
		views = append(views, TransitView{
			TransitRecord:    rec,
			RemainingMinutes: max(0, int(remaining/time.Minute)),
			RemainingText:    FormatRemaining(remaining),
			ProgressPercent:  progress(rec.SentAt, rec.DeliveryDate, now),
		})
	}
	return views, nil
}

// GetStats returns userID's transit counters.
func (s *Service) GetStats(ctx context.Context, userID string) (*types.TransitStats, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, missingField("user_id")
	}
	stats, err := s.store.Transits().Stats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading transit stats: %w", err)
	}
	return stats, nil
}

func (s *Service) buildRecord(req CreateTransitRequest, now time.Time) (*types.TransitRecord, delay.Result, error) {
	if err := s.validateStruct(req); err != nil {
		return nil, delay.Result{}, err
	}
	if !req.LetterType.Valid() {
		return nil, delay.Result{}, invalidLetterType(req.LetterType)
	}
	if req.LetterType == types.LetterTypeFriendRequest && (req.FriendRequestID == nil || *req.FriendRequestID == "") {
		return nil, delay.Result{}, missingField("friend_request_id")
	}

	mode, err := delay.ParseMode(req.Mode)
	if err != nil {
		return nil, delay.Result{}, err
	}
	d, err := s.calc.Compute(delay.Request{
		SenderCountry:    req.SenderCountry,
		RecipientCountry: req.RecipientCountry,
		PreferenceHours:  req.PreferenceHours,
		Mode:             mode,
	}, now)
	if err != nil {
		return nil, delay.Result{}, err
	}

	rec := &types.TransitRecord{
		ID:               uuid.NewString(),
		SenderID:         req.SenderID,
		RecipientID:      req.RecipientID,
		LetterID:         req.LetterID,
		FriendRequestID:  req.FriendRequestID,
		SenderCountry:    strings.TrimSpace(req.SenderCountry),
		RecipientCountry: strings.TrimSpace(req.RecipientCountry),
		DeliveryMinutes:  d.DeliveryTimeMinutes,
		DeliveryDays:     d.DeliveryTimeDays,
		DelayMode:        string(d.Mode),
		TierName:         d.TierName,
		DeliveryDate:     d.DeliveryDate,
		SentAt:           now,
		LetterType:       req.LetterType,
	}
	return rec, d, nil
}

func (s *Service) validateStruct(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "request validation failed", err)
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	fe := verrs[0]
	msg := fmt.Sprintf("%s is required", fe.Field())
	if fe.Tag() != "required" {
		msg = fmt.Sprintf("%s failed %q validation", fe.Field(), fe.Tag())
	}
	return types.NewAppErrorWithDetails(types.ErrCodeValidationMissingField, msg, err, map[string]any{"fields": fields})
}

// FormatRemaining renders the time left before delivery.
func FormatRemaining(d time.Duration) string {
	if d < time.Minute {
		return "arriving soon"
	}
	minutes := int(d / time.Minute)
	switch {
	case minutes < 60:
		return fmt.Sprintf("%dm", minutes)
	case minutes < 24*60:
		return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
	default:
		return fmt.Sprintf("%dd %dh", minutes/(24*60), (minutes%(24*60))/60)
	}
}

func progress(sentAt, due, now time.Time) int {
	total := due.Sub(sentAt)
	if total <= 0 || !now.Before(due) {
		return 100
	}
	elapsed := now.Sub(sentAt)
	if elapsed <= 0 {
		return 0
	}
	return int(elapsed * 100 / total)
}

func missingField(field string) error {
	return types.NewAppErrorWithDetails(types.ErrCodeValidationMissingField,
		field+" is required", nil, map[string]any{"fields": []string{field}})
}

func invalidLetterType(t types.LetterType) error {
	return types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidLetterType,
		fmt.Sprintf("unknown letter type %q", t), nil, map[string]any{"letter_type": string(t)})
}

func userNotFound(id string) error {
	return types.NewAppErrorWithDetails(types.ErrCodeNotFoundUser, "user not found", nil,
		map[string]any{"user_id": id})
}
