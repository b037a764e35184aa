package sundaews

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	sundaecli "github.com/SundaeSwap-finance/sundae-relay/sundae-cli"
	sundaeddb "github.com/SundaeSwap-finance/sundae-relay/sundae-ddb"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/rs/zerolog"
	"github.com/savaki/ddb"
	"github.com/tj/assert"
)

func TestCensus(t *testing.T) {
	ctx := context.Background()

	t.Run("snapshot", func(t *testing.T) {
		report, err := Census(ctx, NewRegistry(newSpyStore("b", "a")), nil)
		assert.NoError(t, err)
		assert.Equal(t, 2, report.Count)
		assert.Equal(t, []string{"a", "b"}, report.Connections)
		assert.False(t, report.GeneratedAt.IsZero())
	})

	t.Run("empty", func(t *testing.T) {
		report, err := Census(ctx, NewRegistry(newSpyStore()), nil)
		assert.NoError(t, err)
		assert.Equal(t, 0, report.Count)
		assert.NotNil(t, report.Connections)
	})

	t.Run("list failure", func(t *testing.T) {
		store := newSpyStore()
		store.scanErr = errBoom
		_, err := Census(ctx, NewRegistry(store), nil)
		assert.True(t, errors.Is(err, errBoom))
	})
}

func TestFeed(t *testing.T) {
	ctx := context.Background()
	feed := &Feed{Logger: zerolog.Nop()}
	callbacks := feed.Callbacks()

	item := map[string]*dynamodb.AttributeValue{
		"pk":       {S: aws.String("abc")},
		"endpoint": {S: aws.String(testEndpoint)},
	}

	assert.Nil(t, callbacks.OnUpdate)
	assert.NoError(t, callbacks.OnInsert(ctx, item))
	assert.NoError(t, callbacks.OnDelete(ctx, item))

	t.Run("through the stream handler", func(t *testing.T) {
		var event ddb.Event
		assert.NoError(t, json.Unmarshal([]byte(`{"Records":[
			{"eventID":"1","eventName":"INSERT","dynamodb":{"NewImage":{"pk":{"S":"abc"}}}},
			{"eventID":"2","eventName":"MODIFY","dynamodb":{"NewImage":{"pk":{"S":"abc"}}}},
			{"eventID":"3","eventName":"REMOVE","dynamodb":{"OldImage":{"pk":{"S":"abc"}}}}
		]}`), &event))

		handler := sundaeddb.NewHandler(sundaecli.NewService("relay-feed"), "local-sundae-relay--connections", callbacks)
		assert.NoError(t, handler.HandleEvent(ctx, event))
	})
}
