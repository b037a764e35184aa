package sundaews

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/apigatewaymanagementapi"
	"github.com/aws/aws-sdk-go/service/apigatewaymanagementapi/apigatewaymanagementapiiface"
)

// Outcome is the result of pushing a payload to one connection.
type Outcome int

const (
	// Delivered means the transport accepted the payload.
	Delivered Outcome = iota
	// Gone means the connection no longer exists and should be pruned.
	Gone
	// Failed is any other failure; the connection may still be alive.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case Gone:
		return "gone"
	default:
		return "failed"
	}
}

// Channel pushes bytes to connections reachable through one endpoint.
type Channel interface {
	Send(ctx context.Context, connectionID string, data []byte) (Outcome, error)
}

// ChannelFactory returns the Channel bound to an endpoint.
type ChannelFactory interface {
	ForEndpoint(endpoint string) Channel
}

// Prober is implemented by channels that can check a connection without
// sending it a message.
type Prober interface {
	Probe(ctx context.Context, connectionID string) (Outcome, error)
}

var ErrProbeUnsupported = errors.New("channel does not support probing connections")

type ChannelFactoryFunc func(endpoint string) Channel

func (fn ChannelFactoryFunc) ForEndpoint(endpoint string) Channel {
	return fn(endpoint)
}

// Endpoint returns the management API endpoint for a WebSocket API stage, as
// seen in the request context of an inbound event.
func Endpoint(domainName, stage string) string {
	return fmt.Sprintf("https://%s/%s", domainName, stage)
}

// ManagementChannels delivers through the API Gateway Management API, keeping
// one client per endpoint.
type ManagementChannels struct {
	newClient func(endpoint string) apigatewaymanagementapiiface.ApiGatewayManagementApiAPI

	mu      sync.RWMutex
	clients map[string]apigatewaymanagementapiiface.ApiGatewayManagementApiAPI
}

func NewManagementChannels(sess *session.Session) *ManagementChannels {
	return NewManagementChannelsWith(func(endpoint string) apigatewaymanagementapiiface.ApiGatewayManagementApiAPI {
		return apigatewaymanagementapi.New(sess.Copy(aws.NewConfig().WithEndpoint(endpoint)))
	})
}

// NewManagementChannelsWith builds clients with newClient instead of an AWS
// session.
func NewManagementChannelsWith(newClient func(endpoint string) apigatewaymanagementapiiface.ApiGatewayManagementApiAPI) *ManagementChannels {
	return &ManagementChannels{
		newClient: newClient,
		clients:   map[string]apigatewaymanagementapiiface.ApiGatewayManagementApiAPI{},
	}
}

func (m *ManagementChannels) ForEndpoint(endpoint string) Channel {
	return managementChannel{client: m.client(endpoint)}
}

func (m *ManagementChannels) client(endpoint string) apigatewaymanagementapiiface.ApiGatewayManagementApiAPI {
	m.mu.RLock()
	client, ok := m.clients[endpoint]
	m.mu.RUnlock()
	if ok {
		return client
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// another goroutine may have won the race for the write lock
	if client, ok := m.clients[endpoint]; ok {
		return client
	}
	client = m.newClient(endpoint)
	m.clients[endpoint] = client
	return client
}

type managementChannel struct {
	client apigatewaymanagementapiiface.ApiGatewayManagementApiAPI
}

func (c managementChannel) Send(ctx context.Context, connectionID string, data []byte) (Outcome, error) {
	_, err := c.client.PostToConnectionWithContext(ctx, &apigatewaymanagementapi.PostToConnectionInput{
		ConnectionId: aws.String(connectionID),
		Data:         data,
	})
	if err != nil {
		return Classify(err), fmt.Errorf("posting to connection %v: %w", connectionID, err)
	}
	return Delivered, nil
}

// Probe asks API Gateway whether the connection still exists.
func (c managementChannel) Probe(ctx context.Context, connectionID string) (Outcome, error) {
	_, err := c.client.GetConnectionWithContext(ctx, &apigatewaymanagementapi.GetConnectionInput{
		ConnectionId: aws.String(connectionID),
	})
	if err != nil {
		return Classify(err), fmt.Errorf("getting connection %v: %w", connectionID, err)
	}
	return Delivered, nil
}

// Classify maps a PostToConnection error to an Outcome. A GoneException, or
// any HTTP 410, means the connection is gone.
func Classify(err error) Outcome {
	if err == nil {
		return Delivered
	}

	var reqErr awserr.RequestFailure
	if errors.As(err, &reqErr) && reqErr.StatusCode() == http.StatusGone {
		return Gone
	}
	var awsErr awserr.Error
	if errors.As(err, &awsErr) && awsErr.Code() == apigatewaymanagementapi.ErrCodeGoneException {
		return Gone
	}
	if strings.Contains(err.Error(), apigatewaymanagementapi.ErrCodeGoneException) {
		return Gone
	}
	return Failed
}
