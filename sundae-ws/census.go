package sundaews

import (
	"context"
	"sort"
	"time"

	sundaecli "github.com/SundaeSwap-finance/sundae-relay/sundae-cli"
	sundaeddb "github.com/SundaeSwap-finance/sundae-relay/sundae-ddb"
	"github.com/SundaeSwap-finance/sundae-relay/sundae-ws/connectiondao"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/rs/zerolog"
)

// CensusReport is a snapshot of the registered connections.
type CensusReport struct {
	GeneratedAt time.Time `json:"generated_at"`
	Count       int       `json:"count"`
	Connections []string  `json:"connections"`
}

// Census takes a membership snapshot and records it as the Connections gauge
// when metrics are configured.
func Census(ctx context.Context, registry *Registry, metrics *sundaecli.Metrics) (CensusReport, error) {
	ids, err := registry.ListAll(ctx)
	if err != nil {
		return CensusReport{}, err
	}
	sort.Strings(ids)
	if ids == nil {
		ids = []string{}
	}

	if metrics != nil {
		metrics.Gauge(ctx, sundaecli.ConnectionsMetric, float64(len(ids)))
	}
	return CensusReport{
		GeneratedAt: time.Now().UTC(),
		Count:       len(ids),
		Connections: ids,
	}, nil
}

// Feed turns the connections table stream into connection lifecycle events.
type Feed struct {
	Logger  zerolog.Logger
	Metrics *sundaecli.Metrics // optional
}

func (f *Feed) Callbacks() sundaeddb.Callbacks {
	return sundaeddb.Callbacks{
		OnInsert: func(ctx context.Context, newValue map[string]*dynamodb.AttributeValue) error {
			return f.observe(ctx, newValue, sundaecli.ConnectionOpenedMetric, "connection opened")
		},
		OnDelete: func(ctx context.Context, oldValue map[string]*dynamodb.AttributeValue) error {
			return f.observe(ctx, oldValue, sundaecli.ConnectionClosedMetric, "connection closed")
		},
	}
}

func (f *Feed) observe(ctx context.Context, item map[string]*dynamodb.AttributeValue, metric sundaecli.MetricName, msg string) error {
	var conn connectiondao.Connection
	if err := sundaeddb.ParseItem(item, &conn); err != nil {
		return err
	}
	f.Logger.Info().
		Str("connection_id", conn.ConnectionID).
		Str("endpoint", conn.Endpoint).
		Str("source_ip", conn.SourceIP).
		Msg(msg)
	if f.Metrics != nil {
		f.Metrics.Event(ctx, metric)
	}
	return nil
}
