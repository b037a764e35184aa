// Package sundaeddb provides DynamoDB and DAX client construction and a
// DynamoDB stream handler that runs either as a Lambda or, in console mode,
// by reading the table's stream directly.
package sundaeddb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sundaecli "github.com/SundaeSwap-finance/sundae-relay/sundae-cli"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodbstreams"
	"github.com/aws/aws-sdk-go/service/dynamodbstreams/dynamodbstreamsiface"
	"github.com/rs/zerolog"
	"github.com/savaki/ddb"
	"golang.org/x/sync/errgroup"
)

const (
	EventInsert = "INSERT"
	EventModify = "MODIFY"
	EventRemove = "REMOVE"
)

// PollInterval is how long an idle shard waits before asking for records again.
var PollInterval = time.Second

type InsertCallback func(ctx context.Context, newValue map[string]*dynamodb.AttributeValue) error
type UpdateCallback func(ctx context.Context, oldValue, newValue map[string]*dynamodb.AttributeValue) error
type DeleteCallback func(ctx context.Context, oldValue map[string]*dynamodb.AttributeValue) error

// Callbacks are invoked per stream record; nil callbacks ignore that event.
type Callbacks struct {
	OnInsert InsertCallback
	OnUpdate UpdateCallback
	OnDelete DeleteCallback
}

type Handler struct {
	service   sundaecli.Service
	tableName string
	callbacks Callbacks
	Logger    zerolog.Logger
}

func NewHandler(service sundaecli.Service, tableName string, callbacks Callbacks) *Handler {
	return &Handler{
		service:   service,
		tableName: tableName,
		callbacks: callbacks,
		Logger:    sundaecli.Logger(service),
	}
}

func (h *Handler) Start() error {
	if sundaecli.CommonOpts.Console {
		streams := dynamodbstreams.New(Session())
		return h.HandleRealtime(context.Background(), streams)
	}
	lambda.Start(h.HandleEvent)
	return nil
}

func (h *Handler) HandleEvent(ctx context.Context, event ddb.Event) error {
	h.Logger.Trace().Int("count", len(event.Records)).Msg("handling a batch of stream records")
	for _, record := range event.Records {
		if err := h.HandleSingleRecord(ctx, record); err != nil {
			h.Logger.Error().Err(err).Str("event", record.EventID).Msg("unable to handle record")
			return fmt.Errorf("unable to handle record %v: %w", record.EventID, err)
		}
	}
	return nil
}

func (h *Handler) HandleSingleRecord(ctx context.Context, record ddb.Record) error {
	switch record.EventName {
	case EventInsert:
		if h.callbacks.OnInsert != nil {
			return h.callbacks.OnInsert(ctx, record.Change.NewImage)
		}
	case EventModify:
		if h.callbacks.OnUpdate != nil {
			return h.callbacks.OnUpdate(ctx, record.Change.OldImage, record.Change.NewImage)
		}
	case EventRemove:
		if h.callbacks.OnDelete != nil {
			return h.callbacks.OnDelete(ctx, record.Change.OldImage)
		}
	}
	return nil
}

// HandleRealtime follows every shard of the table's stream from LATEST until
// ctx is cancelled or a record fails.
func (h *Handler) HandleRealtime(ctx context.Context, streams dynamodbstreamsiface.DynamoDBStreamsAPI) error {
	streamArn, shards, err := h.listShards(ctx, streams)
	if err != nil {
		return err
	}

	h.Logger.Info().Str("tableName", h.tableName).Int("shardCount", len(shards)).Msg("following membership stream")

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(256)
	for _, shard := range shards {
		shardID := shard.ShardId
		group.Go(func() error {
			return h.consumeShard(ctx, streams, streamArn, shardID)
		})
	}
	return group.Wait()
}

func (h *Handler) listShards(ctx context.Context, streams dynamodbstreamsiface.DynamoDBStreamsAPI) (*string, []*dynamodbstreams.Shard, error) {
	ss, err := streams.ListStreamsWithContext(ctx, &dynamodbstreams.ListStreamsInput{
		TableName: aws.String(h.tableName),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("unable to list streams for table %v: %w", h.tableName, err)
	}
	if len(ss.Streams) != 1 {
		return nil, nil, fmt.Errorf("too few or too many streams (%v) for table %v", len(ss.Streams), h.tableName)
	}
	streamArn := ss.Streams[0].StreamArn

	var (
		shards    []*dynamodbstreams.Shard
		lastShard *string
	)
	for {
		out, err := streams.DescribeStreamWithContext(ctx, &dynamodbstreams.DescribeStreamInput{
			StreamArn:             streamArn,
			ExclusiveStartShardId: lastShard,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("unable to describe stream %v: %w", aws.StringValue(streamArn), err)
		}
		shards = append(shards, out.StreamDescription.Shards...)
		if out.StreamDescription.LastEvaluatedShardId == nil {
			return streamArn, shards, nil
		}
		lastShard = out.StreamDescription.LastEvaluatedShardId
	}
}

func (h *Handler) consumeShard(ctx context.Context, streams dynamodbstreamsiface.DynamoDBStreamsAPI, streamArn, shardID *string) error {
	it, err := streams.GetShardIteratorWithContext(ctx, &dynamodbstreams.GetShardIteratorInput{
		StreamArn:         streamArn,
		ShardId:           shardID,
		ShardIteratorType: aws.String(dynamodbstreams.ShardIteratorTypeLatest),
	})
	if err != nil {
		return fmt.Errorf("unable to get shard iterator for %v: %w", aws.StringValue(shardID), err)
	}

	for iterator := it.ShardIterator; iterator != nil; {
		out, err := streams.GetRecordsWithContext(ctx, &dynamodbstreams.GetRecordsInput{
			ShardIterator: iterator,
		})
		if err != nil {
			return fmt.Errorf("unable to get records: %w", err)
		}
		for _, record := range out.Records {
			// the lambda event shape is easier to work with than the streams api shape
			raw, err := json.Marshal(record)
			if err != nil {
				return fmt.Errorf("unable to marshal record: %w", err)
			}
			var r ddb.Record
			if err := json.Unmarshal(raw, &r); err != nil {
				return fmt.Errorf("unable to unmarshal record: %w", err)
			}
			if err := h.HandleSingleRecord(ctx, r); err != nil {
				return fmt.Errorf("error processing record %v: %w", r.EventID, err)
			}
		}
		iterator = out.NextShardIterator
		if len(out.Records) == 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(PollInterval):
			}
		}
	}
	return nil
}

func ParseItem(item map[string]*dynamodb.AttributeValue, v interface{}) error {
	if err := dynamodbattribute.UnmarshalMap(item, v); err != nil {
		return fmt.Errorf("unable to unmarshal item: %w", err)
	}
	return nil
}
