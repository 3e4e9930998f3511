package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSPublisher sends each event as one JSON message to a queue.
type SQSPublisher struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
}

// NewSQSPublisher creates an SQSPublisher for queueURL.
func NewSQSPublisher(client SQSSender, queueURL string, logger *slog.Logger) *SQSPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQSPublisher{client: client, queueURL: queueURL, logger: logger}
}

// PublishDelivered serializes evt and sends it to the configured queue.
func (p *SQSPublisher) PublishDelivered(ctx context.Context, evt LetterDelivered) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("events: failed to marshal LetterDelivered: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"event_type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(EventLetterDelivered),
			},
			"letter_type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(evt.LetterType)),
			},
		},
	}

	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("events: failed to send LetterDelivered to %s: %w", p.queueURL, err)
	}

	p.logger.DebugContext(ctx, "delivered event sent",
		"queue_url", p.queueURL,
		"transit_id", evt.TransitID,
	)
	return nil
}

// Close is a no-op; the SQS client holds no per-publisher resources.
func (p *SQSPublisher) Close() error { return nil }
