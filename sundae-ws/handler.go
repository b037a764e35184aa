// Package sundaews relays messages between WebSocket clients connected through
// an API Gateway WebSocket API.
//
// Membership lives in DynamoDB behind a Registry; the Dispatcher fans every
// message out to all registered connections and prunes the ones API Gateway
// reports as gone. Handlers are stateless so any Lambda instance can serve any
// event.
package sundaews

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/SundaeSwap-finance/sundae-relay/sundae-ws/connectiondao"
	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"
)

// Handler handles API Gateway WebSocket events.
type Handler struct {
	Registry   *Registry
	Dispatcher *Dispatcher
	Logger     zerolog.Logger
}

func respond(status int, body string) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{StatusCode: status, Body: body}
}

// failureStatus is 400 for requests that could never succeed and 500 for
// store failures.
func failureStatus(err error) int {
	if errors.Is(err, ErrMissingConnectionID) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// HandleEvent routes an API Gateway WebSocket event. Every failure, including
// a panic, is reported through the response status; the returned error is
// always nil.
func (h *Handler) HandleEvent(ctx context.Context, req events.APIGatewayWebsocketProxyRequest) (resp events.APIGatewayProxyResponse, err error) {
	logger := h.Logger.With().
		Str("connection_id", req.RequestContext.ConnectionID).
		Str("route", req.RequestContext.RouteKey).
		Logger()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("handler panicked")
			resp, err = respond(http.StatusInternalServerError, "Internal error"), nil
		}
	}()

	ctx = logger.WithContext(ctx)

	switch req.RequestContext.RouteKey {
	case RouteConnect:
		return h.handleConnect(ctx, logger, req), nil
	case RouteDisconnect:
		return h.handleDisconnect(ctx, logger, req), nil
	case RouteSendMessage:
		return h.handleMessage(ctx, logger, req, nil), nil
	case RoutePing:
		return h.handlePing(ctx, logger, req), nil
	case RouteDefault:
		return h.handleDefault(ctx, logger, req), nil
	default:
		logger.Warn().Msg("unknown route")
		return respond(http.StatusBadRequest, "Unknown route"), nil
	}
}

func (h *Handler) handleConnect(ctx context.Context, logger zerolog.Logger, req events.APIGatewayWebsocketProxyRequest) events.APIGatewayProxyResponse {
	rc := req.RequestContext
	conn := connectiondao.Connection{
		ConnectionID: rc.ConnectionID,
		Endpoint:     Endpoint(rc.DomainName, rc.Stage),
		ConnectedAt:  time.Now().Unix(),
		SourceIP:     rc.Identity.SourceIP,
		UserAgent:    rc.Identity.UserAgent,
	}
	if err := h.Registry.AddConnection(ctx, conn); err != nil {
		logger.Error().Err(err).Msg("failed to register connection")
		return respond(failureStatus(err), "Failed to connect: "+err.Error())
	}

	logger.Info().Msg("connection established")
	return respond(http.StatusOK, "Connected")
}

func (h *Handler) handleDisconnect(ctx context.Context, logger zerolog.Logger, req events.APIGatewayWebsocketProxyRequest) events.APIGatewayProxyResponse {
	if err := h.Registry.Remove(ctx, req.RequestContext.ConnectionID); err != nil {
		logger.Error().Err(err).Msg("failed to unregister connection")
		return respond(failureStatus(err), "Failed to disconnect: "+err.Error())
	}

	logger.Info().Msg("connection closed")
	return respond(http.StatusOK, "Disconnected")
}

// handleDefault routes on the action field of the frame, for APIs that only
// configure $default.
func (h *Handler) handleDefault(ctx context.Context, logger zerolog.Logger, req events.APIGatewayWebsocketProxyRequest) events.APIGatewayProxyResponse {
	msg, err := ParseMessage(req.Body)
	if err != nil {
		logger.Warn().Err(err).Msg("invalid message")
		return respond(http.StatusBadRequest, err.Error())
	}

	switch msg.Action {
	case RouteSendMessage:
		return h.handleMessage(ctx, logger, req, msg)
	case RoutePing:
		return h.handlePing(ctx, logger, req)
	default:
		logger.Warn().Str("action", msg.Action).Msg("unhandled action")
		return respond(http.StatusBadRequest, fmt.Sprintf("Unknown action %q", msg.Action))
	}
}

func (h *Handler) handleMessage(ctx context.Context, logger zerolog.Logger, req events.APIGatewayWebsocketProxyRequest, msg *Message) events.APIGatewayProxyResponse {
	if msg == nil {
		parsed, err := ParseMessage(req.Body)
		if err != nil {
			logger.Warn().Err(err).Msg("invalid message")
			return respond(http.StatusBadRequest, err.Error())
		}
		msg = parsed
	}

	payload, err := msg.Payload()
	if err != nil {
		logger.Warn().Err(err).Msg("rejected message")
		return respond(http.StatusBadRequest, err.Error())
	}

	endpoint := Endpoint(req.RequestContext.DomainName, req.RequestContext.Stage)
	report, err := h.Dispatcher.Broadcast(ctx, payload, endpoint)
	if err != nil {
		logger.Error().Err(err).Msg("broadcast failed")
		return respond(http.StatusInternalServerError, "Failed to send: "+err.Error())
	}

	return respond(http.StatusOK, "Data sent to "+Recipients(report.Delivered))
}

// handlePing answers the sender directly. It never lists the registry, but a
// gone sender is pruned like any other delivery.
func (h *Handler) handlePing(ctx context.Context, logger zerolog.Logger, req events.APIGatewayWebsocketProxyRequest) events.APIGatewayProxyResponse {
	endpoint := Endpoint(req.RequestContext.DomainName, req.RequestContext.Stage)
	outcome, err := h.Dispatcher.Deliver(ctx, endpoint, req.RequestContext.ConnectionID, PongMessage())

	switch {
	case outcome == Delivered:
		logger.Debug().Msg("pong sent")
		return respond(http.StatusOK, "Pong")
	case outcome == Gone && err == nil:
		return respond(http.StatusOK, "Gone")
	default:
		if err == nil {
			err = errors.New("delivery failed")
		}
		logger.Error().Err(err).Str("outcome", outcome.String()).Msg("failed to send pong")
		return respond(http.StatusInternalServerError, "Failed to send pong: "+err.Error())
	}
}
