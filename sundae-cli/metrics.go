package sundaecli

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/cloudwatch"
	"github.com/aws/aws-sdk-go/service/cloudwatch/cloudwatchiface"
	"github.com/rs/zerolog"
)

// Metrics publishes service metrics to CloudWatch. Publishing is best effort;
// failures are logged and never returned to the caller.
type Metrics struct {
	service    Service
	cloudwatch cloudwatchiface.CloudWatchAPI
	logger     zerolog.Logger
}

func NewMetrics(service Service, cloudwatch cloudwatchiface.CloudWatchAPI) *Metrics {
	return &Metrics{
		service:    service,
		cloudwatch: cloudwatch,
		logger:     Logger(service),
	}
}

type MetricName string

const (
	BroadcastTimeMetric       MetricName = "BroadcastTime"
	BroadcastCandidatesMetric MetricName = "BroadcastCandidates"
	BroadcastDeliveredMetric  MetricName = "BroadcastDelivered"
	BroadcastPrunedMetric     MetricName = "BroadcastPruned"
	BroadcastFailedMetric     MetricName = "BroadcastFailed"
	ConnectionOpenedMetric    MetricName = "ConnectionOpened"
	ConnectionClosedMetric    MetricName = "ConnectionClosed"
	ConnectionsMetric         MetricName = "Connections"
)

type DimensionName string

const (
	ServiceNameDimension    DimensionName = "Service"
	ServiceVersionDimension DimensionName = "Version"
	OperationNameDimension  DimensionName = "OperationName"
	EnvironmentDimension    DimensionName = "Environment"
)

func defaultDimensions(service Service) map[DimensionName]string {
	return map[DimensionName]string{
		ServiceNameDimension:    service.Name,
		ServiceVersionDimension: service.Version,
		EnvironmentDimension:    CommonOpts.Env,
	}
}

func mapToDimensions(ms ...map[DimensionName]string) []*cloudwatch.Dimension {
	var dimensions []*cloudwatch.Dimension
	for _, ds := range ms {
		for k, v := range ds {
			if v == "" {
				continue
			}
			dimensions = append(dimensions, &cloudwatch.Dimension{
				Name:  aws.String(string(k)),
				Value: aws.String(v),
			})
		}
	}
	return dimensions
}

func (m *Metrics) put(ctx context.Context, name MetricName, unit string, value float64, dimensions []map[DimensionName]string) {
	awsDimensions := mapToDimensions(append(dimensions, defaultDimensions(m.service))...)
	_, err := m.cloudwatch.PutMetricDataWithContext(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.service.namespace()),
		MetricData: []*cloudwatch.MetricDatum{
			{
				MetricName: aws.String(string(name)),
				Timestamp:  aws.Time(time.Now()),
				Unit:       aws.String(unit),
				Value:      aws.Float64(value),
				Dimensions: awsDimensions,
			},
		},
	})
	if err != nil {
		m.logger.Warn().Err(err).Str("metric", string(name)).Msg("couldn't publish metric")
	}
}

// Event records a single occurrence of name.
func (m *Metrics) Event(ctx context.Context, name MetricName, dimensions ...map[DimensionName]string) {
	m.put(ctx, name, cloudwatch.StandardUnitCount, 1, dimensions)
}

// Count records value occurrences of name.
func (m *Metrics) Count(ctx context.Context, name MetricName, value int, dimensions ...map[DimensionName]string) {
	m.put(ctx, name, cloudwatch.StandardUnitCount, float64(value), dimensions)
}

func (m *Metrics) Timing(ctx context.Context, name MetricName, start time.Time, dimensions ...map[DimensionName]string) {
	m.put(ctx, name, cloudwatch.StandardUnitMilliseconds, float64(time.Since(start).Milliseconds()), dimensions)
}

func (m *Metrics) Gauge(ctx context.Context, name MetricName, value float64, dimensions ...map[DimensionName]string) {
	m.put(ctx, name, cloudwatch.StandardUnitNone, value, dimensions)
}
