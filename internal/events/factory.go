package events

import (
	"fmt"
	"log/slog"

	"penpal/internal/config"
)

// New builds the publisher selected by cfg.Events.Backend. The sqs backend
// needs sqsClient; other backends ignore it. Real backends are wrapped in a
// BreakerPublisher.
func New(cfg *config.Config, sqsClient SQSSender, logger *slog.Logger) (Publisher, error) {
	switch cfg.Events.Backend {
	case "", "none":
		return NopPublisher{}, nil
	case "sqs":
		if sqsClient == nil {
			return nil, fmt.Errorf("events: sqs backend requires an SQS client")
		}
		p := NewSQSPublisher(sqsClient, cfg.AWS.DeliveryEventsQueue, logger)
		return NewBreakerPublisher("events-sqs", p, logger), nil
	case "kafka":
		p := NewKafkaPublisher(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic)
		return NewBreakerPublisher("events-kafka", p, logger), nil
	default:
		return nil, fmt.Errorf("events: unknown backend %q", cfg.Events.Backend)
	}
}
