package events

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"penpal/internal/types"
)

// BreakerPublisher guards a Publisher with a circuit breaker so a broker
// outage costs one fast failure per event instead of a timeout.
type BreakerPublisher struct {
	next    Publisher
	breaker *gobreaker.CircuitBreaker[struct{}]
}

// NewBreakerPublisher wraps next. The breaker opens after five consecutive
// failures and probes again after 30 seconds.
func NewBreakerPublisher(name string, next Publisher, logger *slog.Logger) *BreakerPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("event publisher breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	return &BreakerPublisher{next: next, breaker: cb}
}

// PublishDelivered forwards evt unless the breaker is open.
func (p *BreakerPublisher) PublishDelivered(ctx context.Context, evt LetterDelivered) error {
	_, err := p.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, p.next.PublishDelivered(ctx, evt)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.NewAppError(types.ErrCodeUpstreamUnavailable, "event publisher circuit open", err)
	}
	return err
}

// State reports the breaker state.
func (p *BreakerPublisher) State() gobreaker.State {
	return p.breaker.State()
}

// Close closes the wrapped publisher.
func (p *BreakerPublisher) Close() error {
	return p.next.Close()
}
