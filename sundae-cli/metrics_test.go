package sundaecli

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/cloudwatch"
	"github.com/aws/aws-sdk-go/service/cloudwatch/cloudwatchiface"
	"github.com/tj/assert"
)

type fakeCloudWatch struct {
	cloudwatchiface.CloudWatchAPI

	mu     sync.Mutex
	inputs []*cloudwatch.PutMetricDataInput
	err    error
}

func (f *fakeCloudWatch) PutMetricDataWithContext(_ aws.Context, input *cloudwatch.PutMetricDataInput, _ ...request.Option) (*cloudwatch.PutMetricDataOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, input)
	return &cloudwatch.PutMetricDataOutput{}, f.err
}

func dimensionValue(datum *cloudwatch.MetricDatum, name DimensionName) string {
	for _, d := range datum.Dimensions {
		if aws.StringValue(d.Name) == string(name) {
			return aws.StringValue(d.Value)
		}
	}
	return ""
}

func TestMetrics(t *testing.T) {
	service := Service{Name: "relay-test", Version: "abc123"}
	ctx := context.Background()

	t.Run("event", func(t *testing.T) {
		api := &fakeCloudWatch{}
		m := NewMetrics(service, api)

		m.Event(ctx, ConnectionOpenedMetric, map[DimensionName]string{OperationNameDimension: "connect"})

		assert.Len(t, api.inputs, 1)
		assert.Equal(t, DefaultNamespace, aws.StringValue(api.inputs[0].Namespace))
		datum := api.inputs[0].MetricData[0]
		assert.Equal(t, string(ConnectionOpenedMetric), aws.StringValue(datum.MetricName))
		assert.Equal(t, cloudwatch.StandardUnitCount, aws.StringValue(datum.Unit))
		assert.EqualValues(t, 1, aws.Float64Value(datum.Value))
		assert.Equal(t, "relay-test", dimensionValue(datum, ServiceNameDimension))
		assert.Equal(t, "abc123", dimensionValue(datum, ServiceVersionDimension))
		assert.Equal(t, "connect", dimensionValue(datum, OperationNameDimension))
	})

	t.Run("gauge and count", func(t *testing.T) {
		api := &fakeCloudWatch{}
		m := NewMetrics(service, api)

		m.Gauge(ctx, ConnectionsMetric, 42)
		m.Count(ctx, BroadcastDeliveredMetric, 7)

		assert.Len(t, api.inputs, 2)
		assert.EqualValues(t, 42, aws.Float64Value(api.inputs[0].MetricData[0].Value))
		assert.Equal(t, cloudwatch.StandardUnitNone, aws.StringValue(api.inputs[0].MetricData[0].Unit))
		assert.EqualValues(t, 7, aws.Float64Value(api.inputs[1].MetricData[0].Value))
	})

	t.Run("timing", func(t *testing.T) {
		api := &fakeCloudWatch{}
		m := NewMetrics(service, api)

		m.Timing(ctx, BroadcastTimeMetric, time.Now().Add(-time.Second))

		datum := api.inputs[0].MetricData[0]
		assert.Equal(t, cloudwatch.StandardUnitMilliseconds, aws.StringValue(datum.Unit))
		assert.True(t, aws.Float64Value(datum.Value) >= 1000)
	})

	t.Run("failures are swallowed", func(t *testing.T) {
		api := &fakeCloudWatch{err: fmt.Errorf("boom")}
		m := NewMetrics(service, api)

		m.Event(ctx, ConnectionClosedMetric)
		assert.Len(t, api.inputs, 1)
	})

	t.Run("empty dimensions are dropped", func(t *testing.T) {
		dims := mapToDimensions(map[DimensionName]string{OperationNameDimension: ""})
		assert.Len(t, dims, 0)
	})
}

func TestEnvVar(t *testing.T) {
	assert.Equal(t, "TABLE_NAME", EnvVar("table-name"))
	assert.Equal(t, "DAX_CLUSTER", EnvVar("dax-cluster"))
	assert.Equal(t, "CONSOLE", EnvVar("console"))
}

func TestNewSubpathService(t *testing.T) {
	service := NewSubpathService("relay-admin")
	assert.Equal(t, "relay-admin", service.Name)
	assert.Equal(t, "relay-admin", service.Subpath)
	assert.Equal(t, DefaultNamespace, service.namespace())
	assert.Equal(t, DefaultNamespace, Service{}.namespace())
}
