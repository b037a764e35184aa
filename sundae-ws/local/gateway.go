// Package local emulates an API Gateway WebSocket API so the relay can run
// without AWS. Each socket gets a generated connection id and its frames are
// turned into the same proxy events API Gateway would deliver.
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	sundaews "github.com/SundaeSwap-finance/sundae-relay/sundae-ws"
	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 128 * 1024 // API Gateway frame limit
)

// HandlerFunc matches sundaews.Handler.HandleEvent.
type HandlerFunc func(ctx context.Context, req events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error)

// Gateway upgrades HTTP requests to WebSockets and implements
// sundaews.ChannelFactory over the sockets it holds.
type Gateway struct {
	handler HandlerFunc
	stage   string
	routes  map[string]bool
	logger  zerolog.Logger

	upgrader websocket.Upgrader

	mu      sync.RWMutex
	sockets map[string]*socket
}

type socket struct {
	// mu is held from reservation until the upgrade completes, and around
	// every write afterwards.
	mu   sync.Mutex
	conn *websocket.Conn
}

// New returns a Gateway serving stage. routes are the route keys selected by
// the action field of a frame; anything else goes to $default.
func New(handler HandlerFunc, stage string, logger zerolog.Logger, routes ...string) *Gateway {
	if len(routes) == 0 {
		routes = []string{sundaews.RouteSendMessage, sundaews.RoutePing}
	}
	known := map[string]bool{}
	for _, route := range routes {
		known[route] = true
	}
	return &Gateway{
		handler: handler,
		stage:   stage,
		routes:  known,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		sockets: map[string]*socket{},
	}
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	id := uuid.NewString()
	logger := g.logger.With().Str("connection_id", id).Logger()

	s := &socket{}
	s.mu.Lock()
	g.mu.Lock()
	g.sockets[id] = s
	g.mu.Unlock()

	base := g.event(req, id)
	resp := g.invoke(req.Context(), logger, sundaews.RouteConnect, base, "")
	if resp.StatusCode != http.StatusOK {
		g.forget(id)
		s.mu.Unlock()
		http.Error(w, resp.Body, resp.StatusCode)
		return
	}

	conn, err := g.upgrader.Upgrade(w, req, nil)
	if err != nil {
		g.forget(id)
		s.mu.Unlock()
		logger.Error().Err(err).Msg("failed to upgrade websocket connection")
		g.invoke(context.Background(), logger, sundaews.RouteDisconnect, base, "")
		return
	}
	s.conn = conn
	s.mu.Unlock()

	logger.Info().Msg("websocket connection upgraded")
	g.readPump(logger, id, conn, base)
}

func (g *Gateway) readPump(logger zerolog.Logger, id string, conn *websocket.Conn, base events.APIGatewayWebsocketProxyRequest) {
	defer func() {
		g.forget(id)
		conn.Close()
		g.invoke(context.Background(), logger, sundaews.RouteDisconnect, base, "")
	}()

	conn.SetReadLimit(maxMessageSize)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn().Err(err).Msg("unexpected close")
			}
			return
		}
		g.invoke(context.Background(), logger, g.selectRoute(data), base, string(data))
	}
}

// selectRoute mirrors the $request.body.action route selection expression.
func (g *Gateway) selectRoute(data []byte) string {
	var frame struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(data, &frame); err == nil && g.routes[frame.Action] {
		return frame.Action
	}
	return sundaews.RouteDefault
}

func (g *Gateway) event(req *http.Request, id string) events.APIGatewayWebsocketProxyRequest {
	var event events.APIGatewayWebsocketProxyRequest
	event.Headers = map[string]string{}
	for k := range req.Header {
		event.Headers[k] = req.Header.Get(k)
	}
	event.RequestContext.ConnectionID = id
	event.RequestContext.DomainName = req.Host
	event.RequestContext.Stage = g.stage
	event.RequestContext.Identity.SourceIP = req.RemoteAddr
	event.RequestContext.Identity.UserAgent = req.UserAgent()
	return event
}

func (g *Gateway) invoke(ctx context.Context, logger zerolog.Logger, route string, event events.APIGatewayWebsocketProxyRequest, body string) events.APIGatewayProxyResponse {
	event.Body = body
	event.RequestContext.RouteKey = route
	event.RequestContext.RequestTimeEpoch = time.Now().UnixMilli()

	resp, err := g.handler(ctx, event)
	if err != nil {
		logger.Error().Err(err).Str("route", route).Msg("handler failed")
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError, Body: err.Error()}
	}
	logger.Debug().Str("route", route).Int("status", resp.StatusCode).Str("body", resp.Body).Msg("handled")
	return resp
}

func (g *Gateway) forget(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.sockets, id)
}

func (g *Gateway) lookup(id string) (*socket, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s, ok := g.sockets[id]
	return s, ok
}

// Connections returns the number of open sockets.
func (g *Gateway) Connections() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.sockets)
}

// ForEndpoint returns a channel over this gateway's sockets. A Gateway serves
// a single stage, so endpoint is ignored.
func (g *Gateway) ForEndpoint(string) sundaews.Channel {
	return g
}

// Send writes data to the socket of connectionID as a text frame. Unknown
// and closed sockets are Gone.
func (g *Gateway) Send(ctx context.Context, connectionID string, data []byte) (sundaews.Outcome, error) {
	return g.write(ctx, connectionID, func(conn *websocket.Conn, deadline time.Time) error {
		conn.SetWriteDeadline(deadline)
		return conn.WriteMessage(websocket.TextMessage, data)
	})
}

// Probe sends a ping control frame to the socket of connectionID.
func (g *Gateway) Probe(ctx context.Context, connectionID string) (sundaews.Outcome, error) {
	return g.write(ctx, connectionID, func(conn *websocket.Conn, deadline time.Time) error {
		return conn.WriteControl(websocket.PingMessage, nil, deadline)
	})
}

func (g *Gateway) write(ctx context.Context, connectionID string, fn func(conn *websocket.Conn, deadline time.Time) error) (sundaews.Outcome, error) {
	s, ok := g.lookup(connectionID)
	if !ok {
		return sundaews.Gone, fmt.Errorf("GoneException: no socket for connection %v", connectionID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return sundaews.Gone, fmt.Errorf("GoneException: connection %v never opened", connectionID)
	}
	if err := ctx.Err(); err != nil {
		return sundaews.Failed, err
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(writeWait)
	}
	if err := fn(s.conn, deadline); err != nil {
		return sundaews.Gone, fmt.Errorf("writing to connection %v: %w", connectionID, err)
	}
	return sundaews.Delivered, nil
}
