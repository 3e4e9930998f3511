// Package delay converts sender/recipient geography, or an explicit
// preference, into a randomized postal delay.
//
// Evaluation order is fixed: a positive preference wins outright, then
// identical country names use the strategy's same-country tier, and only
// then is the configured Strategy consulted. Every draw goes through the
// injected Rand so results are reproducible from a seed.
package delay

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"penpal/internal/types"
)

// Mode selects a tiering strategy.
type Mode string

const (
	ModeFast         Mode = "fast"
	ModeRealistic    Mode = "realistic"
	ModeContinent    Mode = "continent"
	ModeContinentFar Mode = "continent_far"
)

// preferenceJitter is the relative spread applied around a preferred delay.
const preferenceJitter = 0.20

// ParseMode validates a mode name. An empty string yields the empty Mode,
// which Compute resolves to the calculator's default.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.TrimSpace(s)); m {
	case "", ModeFast, ModeRealistic, ModeContinent, ModeContinentFar:
		return m, nil
	default:
		return "", types.NewAppErrorWithDetails(
			types.ErrCodeValidationInvalidMode,
			fmt.Sprintf("unknown delay mode %q", s),
			nil,
			map[string]any{"mode": s},
		)
	}
}

// Request is the input to Compute.
type Request struct {
	SenderCountry    string
	RecipientCountry string
	// PreferenceHours, when non-nil, must be positive and overrides geography.
	PreferenceHours *float64
	// Mode selects the strategy; empty uses the calculator default.
	Mode Mode
}

// Result is a computed delay.
type Result struct {
	DeliveryTimeMinutes   int       `json:"delivery_time_minutes"`
	DeliveryTimeDays      int       `json:"delivery_time_days"`
	EstimatedDeliveryText string    `json:"estimated_delivery_text"`
	DeliveryDate          time.Time `json:"delivery_date"`
	TierName              string    `json:"tier_name"`
	Mode                  Mode      `json:"mode"`
	DistanceKm            float64   `json:"distance_km"`
}

// Calculator computes delays using a set of registered strategies.
type Calculator struct {
	rnd         Rand
	defaultMode Mode

	mu         sync.RWMutex
	strategies map[Mode]Strategy
}

// NewCalculator returns a Calculator with the built-in strategies
// registered. An empty defaultMode means ModeFast.
func NewCalculator(rnd Rand, defaultMode Mode) *Calculator {
	if rnd == nil {
		rnd = NewRand(0)
	}
	if defaultMode == "" {
		defaultMode = ModeFast
	}
	c := &Calculator{
		rnd:         rnd,
		defaultMode: defaultMode,
		strategies:  make(map[Mode]Strategy),
	}
	for _, s := range []Strategy{
		NewFastStrategy(),
		NewRealisticStrategy(),
		NewContinentStrategy(),
		NewContinentFarStrategy(),
	} {
		c.Register(s)
	}
	return c
}

// Register adds or replaces the strategy for s.Mode().
func (c *Calculator) Register(s Strategy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.strategies[s.Mode()] = s
}

// DefaultMode returns the mode used when a request leaves Mode empty.
func (c *Calculator) DefaultMode() Mode {
	return c.defaultMode
}

// Compute returns a delay for req with DeliveryDate measured from now.
func (c *Calculator) Compute(req Request, now time.Time) (Result, error) {
	mode := req.Mode
	if mode == "" {
		mode = c.defaultMode
	}

	c.mu.RLock()
	strategy, ok := c.strategies[mode]
	c.mu.RUnlock()
	if !ok {
		return Result{}, types.NewAppErrorWithDetails(
			types.ErrCodeValidationInvalidMode,
			fmt.Sprintf("no delay strategy registered for mode %q", mode),
			nil,
			map[string]any{"mode": string(mode)},
		)
	}

	var (
		tier Tier
		km   float64
	)
	sender := strings.TrimSpace(req.SenderCountry)
	recipient := strings.TrimSpace(req.RecipientCountry)

	switch {
	case req.PreferenceHours != nil:
		p := *req.PreferenceHours
		if p <= 0 || math.IsNaN(p) || math.IsInf(p, 0) {
			return Result{}, types.NewAppErrorWithDetails(
				types.ErrCodeValidationInvalidPreference,
				"preferred delivery hours must be a positive number",
				nil,
				map[string]any{"preference_hours": p},
			)
		}
		tier = hoursTier("preferred", p*(1-preferenceJitter), p*(1+preferenceJitter))
	case sender == recipient:
		tier = strategy.SameCountry()
	default:
		tier, km = strategy.Select(sender, recipient)
	}

	minutes := tier.Draw(c.rnd)
	return Result{
		DeliveryTimeMinutes:   minutes,
		DeliveryTimeDays:      int(math.Round(float64(minutes) / minutesPerDay)),
		EstimatedDeliveryText: fmt.Sprintf("%s (%s)", FormatDuration(minutes), tier.Name),
		DeliveryDate:          now.Add(time.Duration(minutes) * time.Minute),
		TierName:              tier.Name,
		Mode:                  mode,
		DistanceKm:            km,
	}, nil
}

// FormatDuration renders a minute count at the coarsest readable unit:
// minutes below an hour, hours below two days, days otherwise.
func FormatDuration(minutes int) string {
	switch {
	case minutes < minutesPerHour:
		return plural(minutes, "minute")
	case minutes < 2*minutesPerDay:
		return plural(int(math.Round(float64(minutes)/minutesPerHour)), "hour")
	default:
		return plural(int(math.Round(float64(minutes)/minutesPerDay)), "day")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
