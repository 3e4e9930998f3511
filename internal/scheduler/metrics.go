package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// Metric names emitted by CloudWatchMetrics.
const (
	MetricLettersDelivered     = "LettersDelivered"
	MetricDeliveriesFailed     = "DeliveriesFailed"
	MetricDeliveriesSkipped    = "DeliveriesSkipped"
	MetricDeliveryPassLatency  = "DeliveryPassLatency"
	MetricLettersArchived      = "LettersArchived"
	MetricLettersRedistributed = "LettersRedistributed"
	MetricCycleUsersFailed     = "CycleUsersFailed"
)

// Metrics records job outcomes. Implementations must not fail the job.
type Metrics interface {
	RecordDeliveries(ctx context.Context, summary *DeliverySummary, elapsed time.Duration)
	RecordCycle(ctx context.Context, report *CycleReport)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) RecordDeliveries(context.Context, *DeliverySummary, time.Duration) {}
func (NopMetrics) RecordCycle(context.Context, *CycleReport)                       {}

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

var _ Metrics = (*CloudWatchMetrics)(nil)

// CloudWatchMetrics publishes job outcomes to one CloudWatch namespace.
type CloudWatchMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

// NewCloudWatchMetrics creates a CloudWatchMetrics publishing to namespace.
func NewCloudWatchMetrics(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchMetrics {
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchMetrics{client: client, namespace: namespace, logger: logger}
}

// RecordDeliveries emits the counts of one delivery pass and its latency in
// milliseconds.
func (m *CloudWatchMetrics) RecordDeliveries(ctx context.Context, summary *DeliverySummary, elapsed time.Duration) {
	m.put(ctx, "delivery",
		count(MetricLettersDelivered, summary.ProcessedCount),
		count(MetricDeliveriesFailed, summary.FailedCount),
		count(MetricDeliveriesSkipped, summary.SkippedCount),
		cwtypes.MetricDatum{
			MetricName: aws.String(MetricDeliveryPassLatency),
			Value:      aws.Float64(float64(elapsed.Milliseconds())),
			Unit:       cwtypes.StandardUnitMilliseconds,
		},
	)
}

// RecordCycle emits the counts of one daily cycle.
func (m *CloudWatchMetrics) RecordCycle(ctx context.Context, report *CycleReport) {
	m.put(ctx, "cycle",
		count(MetricLettersArchived, report.Archived),
		count(MetricLettersRedistributed, report.LettersRedistributed),
		count(MetricCycleUsersFailed, report.UsersFailed),
	)
}

func (m *CloudWatchMetrics) put(ctx context.Context, job string, data ...cwtypes.MetricDatum) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	}
	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.ErrorContext(ctx, "failed to record metrics",
			"job", job,
			"error", err,
		)
	}
}

func count(name string, n int) cwtypes.MetricDatum {
	return cwtypes.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(float64(n)),
		Unit:       cwtypes.StandardUnitCount,
	}
}
