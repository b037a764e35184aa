// Package publish lets backend services broadcast to every relay connection
// without holding a WebSocket, by writing to the relay's Kinesis stream.
package publish

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/kinesis"
	"github.com/aws/aws-sdk-go/service/kinesis/kinesisiface"
	"github.com/google/uuid"
)

// Envelope is the record format on the relay events stream. Endpoint is
// optional; the consumer falls back to its configured endpoint.
type Envelope struct {
	Endpoint string          `json:"endpoint,omitempty"`
	Payload  json.RawMessage `json:"payload"`
}

// Publisher publishes broadcasts to the relay Kinesis stream.
type Publisher struct {
	client     kinesisiface.KinesisAPI
	streamName string
}

func New(client kinesisiface.KinesisAPI, streamName string) *Publisher {
	return &Publisher{
		client:     client,
		streamName: streamName,
	}
}

// Build creates a Publisher for the standard stream of env.
func Build(env string) *Publisher {
	sess := session.Must(session.NewSession(aws.NewConfig()))
	return New(kinesis.New(sess), StreamName(env))
}

// StreamName returns the Kinesis stream name for the given environment.
func StreamName(env string) string {
	return env + "-sundae-relay-events"
}

// Send publishes payload for broadcast. Broadcasts carry no ordering guarantee,
// so each record gets a random partition key to spread load across shards.
func (p *Publisher) Send(ctx context.Context, endpoint string, payload interface{}) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshalling payload: %w", err)
	}

	data, err := json.Marshal(Envelope{
		Endpoint: endpoint,
		Payload:  payloadBytes,
	})
	if err != nil {
		return fmt.Errorf("marshalling envelope: %w", err)
	}

	_, err = p.client.PutRecordWithContext(ctx, &kinesis.PutRecordInput{
		StreamName:   aws.String(p.streamName),
		PartitionKey: aws.String(uuid.NewString()),
		Data:         data,
	})
	if err != nil {
		return fmt.Errorf("publishing to kinesis stream %v: %w", p.streamName, err)
	}
	return nil
}
