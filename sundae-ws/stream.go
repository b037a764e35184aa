package sundaews

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/SundaeSwap-finance/sundae-relay/sundae-ws/publish"
	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go/aws"
	consumer "github.com/harlow/kinesis-consumer"
)

var ErrMissingEndpoint = errors.New("missing endpoint")

// HandleKinesisEvent broadcasts every record published with publish.Publisher.
// A bad record is logged and skipped; the batch always succeeds.
func (d *Dispatcher) HandleKinesisEvent(ctx context.Context, event events.KinesisEvent) error {
	for _, record := range event.Records {
		if _, err := d.HandleRecord(ctx, record.Kinesis.Data); err != nil {
			d.Logger.Error().Err(err).
				Str("event_id", record.EventID).
				Msg("failed to broadcast kinesis record")
		}
	}
	return nil
}

// HandleRecord broadcasts one publish.Envelope.
func (d *Dispatcher) HandleRecord(ctx context.Context, data []byte) (Report, error) {
	var envelope publish.Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return Report{}, fmt.Errorf("unmarshalling envelope: %w", err)
	}

	endpoint := envelope.Endpoint
	if endpoint == "" {
		endpoint = d.Endpoint
	}
	if endpoint == "" {
		return Report{}, ErrMissingEndpoint
	}

	payload, err := EncodePayload(envelope.Payload)
	if err != nil {
		return Report{}, fmt.Errorf("decoding envelope payload: %w", err)
	}
	return d.Broadcast(ctx, payload, endpoint)
}

// ConsumeStream reads streamName directly, for console mode, until ctx is
// cancelled.
func (d *Dispatcher) ConsumeStream(ctx context.Context, streamName string) error {
	c, err := consumer.New(streamName, consumer.WithShardIteratorType("LATEST"))
	if err != nil {
		return fmt.Errorf("unable to consume stream %v: %w", streamName, err)
	}

	d.Logger.Info().Str("stream", streamName).Msg("listening for published broadcasts")
	return c.Scan(ctx, func(record *consumer.Record) error {
		if _, err := d.HandleRecord(ctx, record.Data); err != nil {
			d.Logger.Error().Err(err).Str("sequence", aws.StringValue(record.SequenceNumber)).Msg("failed to broadcast stream record")
		}
		return nil
	})
}
