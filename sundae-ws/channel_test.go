package sundaews

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/apigatewaymanagementapi"
	"github.com/aws/aws-sdk-go/service/apigatewaymanagementapi/apigatewaymanagementapiiface"
	"github.com/tj/assert"
)

type fakeManagementAPI struct {
	apigatewaymanagementapiiface.ApiGatewayManagementApiAPI

	endpoint string
	err      error

	mu     sync.Mutex
	inputs []*apigatewaymanagementapi.PostToConnectionInput
}

func (f *fakeManagementAPI) GetConnectionWithContext(_ aws.Context, input *apigatewaymanagementapi.GetConnectionInput, _ ...request.Option) (*apigatewaymanagementapi.GetConnectionOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &apigatewaymanagementapi.GetConnectionOutput{}, nil
}

func (f *fakeManagementAPI) PostToConnectionWithContext(_ aws.Context, input *apigatewaymanagementapi.PostToConnectionInput, _ ...request.Option) (*apigatewaymanagementapi.PostToConnectionOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, input)
	if f.err != nil {
		return nil, f.err
	}
	return &apigatewaymanagementapi.PostToConnectionOutput{}, nil
}

func TestClassify(t *testing.T) {
	goneErr := awserr.New(apigatewaymanagementapi.ErrCodeGoneException, "connection is gone", nil)

	tests := map[string]struct {
		err  error
		want Outcome
	}{
		"nil":              {want: Delivered},
		"gone exception":   {err: goneErr, want: Gone},
		"wrapped gone":     {err: fmt.Errorf("posting: %w", goneErr), want: Gone},
		"http 410":         {err: awserr.NewRequestFailure(awserr.New("Unknown", "gone", nil), http.StatusGone, "req"), want: Gone},
		"gone in text":     {err: errors.New("GoneException: status code 410"), want: Gone},
		"forbidden":        {err: awserr.New(apigatewaymanagementapi.ErrCodeForbiddenException, "nope", nil), want: Failed},
		"throttled":        {err: awserr.NewRequestFailure(awserr.New("LimitExceededException", "slow down", nil), http.StatusTooManyRequests, "req"), want: Failed},
		"context deadline": {err: context.DeadlineExceeded, want: Failed},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err))
		})
	}
}

func TestManagementChannels(t *testing.T) {
	ctx := context.Background()

	var (
		mu      sync.Mutex
		created = map[string]*fakeManagementAPI{}
	)
	channels := NewManagementChannelsWith(func(endpoint string) apigatewaymanagementapiiface.ApiGatewayManagementApiAPI {
		mu.Lock()
		defer mu.Unlock()
		api := &fakeManagementAPI{endpoint: endpoint}
		if endpoint == "https://gone/prod" {
			api.err = awserr.New(apigatewaymanagementapi.ErrCodeGoneException, "gone", nil)
		}
		created[endpoint] = api
		return api
	})

	t.Run("delivered", func(t *testing.T) {
		outcome, err := channels.ForEndpoint("https://ok/prod").Send(ctx, "abc", []byte("hello"))
		assert.NoError(t, err)
		assert.Equal(t, Delivered, outcome)

		api := created["https://ok/prod"]
		assert.Len(t, api.inputs, 1)
		assert.Equal(t, "abc", aws.StringValue(api.inputs[0].ConnectionId))
		assert.Equal(t, "hello", string(api.inputs[0].Data))
	})

	t.Run("gone", func(t *testing.T) {
		outcome, err := channels.ForEndpoint("https://gone/prod").Send(ctx, "abc", []byte("hello"))
		assert.Error(t, err)
		assert.Equal(t, Gone, outcome)
	})

	t.Run("probe", func(t *testing.T) {
		prober, ok := channels.ForEndpoint("https://ok/prod").(Prober)
		assert.True(t, ok)
		outcome, err := prober.Probe(ctx, "abc")
		assert.NoError(t, err)
		assert.Equal(t, Delivered, outcome)

		outcome, err = channels.ForEndpoint("https://gone/prod").(Prober).Probe(ctx, "abc")
		assert.Error(t, err)
		assert.Equal(t, Gone, outcome)
	})

	t.Run("clients are cached per endpoint", func(t *testing.T) {
		first := created["https://ok/prod"]
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = channels.ForEndpoint("https://ok/prod").Send(ctx, "abc", []byte("hi"))
			}()
		}
		wg.Wait()

		assert.Len(t, created, 2)
		assert.True(t, first == created["https://ok/prod"])
		assert.Len(t, first.inputs, 11)
	})
}

func TestEndpoint(t *testing.T) {
	assert.Equal(t, "https://abc.execute-api.us-east-2.amazonaws.com/prod", Endpoint("abc.execute-api.us-east-2.amazonaws.com", "prod"))
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "delivered", Delivered.String())
	assert.Equal(t, "gone", Gone.String())
	assert.Equal(t, "failed", Failed.String())
}
