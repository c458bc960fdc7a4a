package core

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"studiopulse/internal/types"
)

// CloudWatch metric names and dimensions for the delivery pipeline.
const (
	DefaultMetricNamespace = "StudioPulse/Notifications"

	MetricDeliveryAttempt = "DeliveryAttempt"
	MetricDeliveryLatency = "DeliveryLatency"

	DimChannel = "Channel"
	DimResult  = "Result"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for
// testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchDeliveryMetrics emits delivery metrics to AWS CloudWatch.
// Metric emission is best-effort: a metrics failure never affects the
// delivery outcome, it is only logged.
type CloudWatchDeliveryMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    types.Logger
}

var _ DeliveryMetrics = (*CloudWatchDeliveryMetrics)(nil)

// NewCloudWatchDeliveryMetrics creates a metrics emitter publishing to the
// given namespace, or DefaultMetricNamespace when empty.
func NewCloudWatchDeliveryMetrics(client CloudWatchClient, namespace string, logger types.Logger) *CloudWatchDeliveryMetrics {
	if namespace == "" {
		namespace = DefaultMetricNamespace
	}
	return &CloudWatchDeliveryMetrics{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

// RecordDelivery emits a DeliveryAttempt count with Channel and Result
// dimensions.
func (m *CloudWatchDeliveryMetrics) RecordDelivery(ctx context.Context, channel types.Channel, result MetricResult) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(MetricDeliveryAttempt),
				Value:      aws.Float64(1),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{
					{
						Name:  aws.String(DimChannel),
						Value: aws.String(string(channel)),
					},
					{
						Name:  aws.String(DimResult),
						Value: aws.String(string(result)),
					},
				},
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record delivery metric",
			"error", err.Error(),
			"channel", string(channel),
			"result", string(result),
		)
	}
}

// RecordLatency emits the transport call duration in milliseconds with the
// Channel dimension.
func (m *CloudWatchDeliveryMetrics) RecordLatency(ctx context.Context, channel types.Channel, duration time.Duration) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(MetricDeliveryLatency),
				Value:      aws.Float64(float64(duration.Milliseconds())),
				Unit:       cwtypes.StandardUnitMilliseconds,
				Dimensions: []cwtypes.Dimension{
					{
						Name:  aws.String(DimChannel),
						Value: aws.String(string(channel)),
					},
				},
			},
		},
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to record latency metric",
			"error", err.Error(),
			"channel", string(channel),
			"duration_ms", duration.Milliseconds(),
		)
	}
}

// NopDeliveryMetrics discards all metrics. Used in local mode and tests.
type NopDeliveryMetrics struct{}

var _ DeliveryMetrics = NopDeliveryMetrics{}

func (NopDeliveryMetrics) RecordDelivery(context.Context, types.Channel, MetricResult)  {}
func (NopDeliveryMetrics) RecordLatency(context.Context, types.Channel, time.Duration) {}
