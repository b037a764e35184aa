// Package admin exposes the relay membership and server-initiated broadcasts
// over REST and GraphQL.
package admin

import (
	"context"
	"crypto/subtle"
	_ "embed"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"

	sundaegql "github.com/SundaeSwap-finance/sundae-relay/sundae-gql"
	sundaerest "github.com/SundaeSwap-finance/sundae-relay/sundae-rest"
	sundaews "github.com/SundaeSwap-finance/sundae-relay/sundae-ws"
	"github.com/go-chi/chi/v5"
)

//go:embed schema.gql
var schema string

var ErrMissingEndpoint = errors.New("missing endpoint")

// ConnectionsMaxAge is how long, in seconds, clients may cache GET /connections.
const ConnectionsMaxAge = 5

// Server serves the admin API. It is also the root GraphQL resolver.
type Server struct {
	config     sundaegql.BaseConfig
	registry   *sundaews.Registry
	dispatcher *sundaews.Dispatcher
	token      string
}

type Option func(*Server)

// WithToken requires "Authorization: Bearer {token}" on every route but
// /healthz.
func WithToken(token string) Option {
	return func(s *Server) {
		s.token = token
	}
}

func New(config sundaegql.BaseConfig, dispatcher *sundaews.Dispatcher, opts ...Option) *Server {
	s := &Server{
		config:     config,
		registry:   dispatcher.Registry,
		dispatcher: dispatcher,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Schema() string {
	return sundaegql.MergeSchemas(schema, sundaegql.Common)
}

func (s *Server) Config() *sundaegql.BaseConfig {
	return &s.config
}

// Router returns the GraphQL router with the REST routes added.
func (s *Server) Router() (chi.Router, error) {
	router, err := sundaegql.Router(s, s.authorize)
	if err != nil {
		return nil, err
	}
	router.Get("/healthz", s.healthz)

	protected := router.With(s.authorize)
	protected.Get("/connections", sundaerest.CacheControl(s.listConnections, ConnectionsMaxAge))
	protected.Post("/broadcast", s.broadcast)
	return router, nil
}

func (s *Server) authorize(next http.Handler) http.Handler {
	if s.token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		got, ok := strings.CutPrefix(req.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
			sundaerest.Error(w, req, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, req)
	})
}

func (s *Server) connections(ctx context.Context) ([]string, error) {
	ids, err := s.registry.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// send broadcasts data, the JSON encoding of the payload, falling back to the
// dispatcher's endpoint.
func (s *Server) send(ctx context.Context, endpoint string, data json.RawMessage) (sundaews.Report, error) {
	if endpoint == "" {
		endpoint = s.dispatcher.Endpoint
	}
	if endpoint == "" {
		return sundaews.Report{}, ErrMissingEndpoint
	}
	payload, err := sundaews.EncodePayload(data)
	if err != nil {
		return sundaews.Report{}, err
	}
	return s.dispatcher.Broadcast(ctx, payload, endpoint)
}

func (s *Server) healthz(w http.ResponseWriter, req *http.Request) {
	sundaerest.JSON(w, req, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listConnections(w http.ResponseWriter, req *http.Request) {
	ids, err := s.connections(req.Context())
	if err != nil {
		s.config.Logger.Error().Err(err).Msg("failed to list connections")
		sundaerest.Error(w, req, http.StatusInternalServerError, err.Error())
		return
	}

	sundaerest.JSON(w, req, http.StatusOK, struct {
		Connections []string `json:"connections"`
		Count       int      `json:"count"`
	}{
		Connections: ids,
		Count:       len(ids),
	})
}

func (s *Server) broadcast(w http.ResponseWriter, req *http.Request) {
	var input struct {
		Endpoint string          `json:"endpoint"`
		Data     json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(req.Body).Decode(&input); err != nil {
		sundaerest.Error(w, req, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	report, err := s.send(req.Context(), input.Endpoint, input.Data)
	switch {
	case errors.Is(err, ErrMissingEndpoint), errors.Is(err, sundaews.ErrMissingData), errors.Is(err, sundaews.ErrInvalidMessage):
		sundaerest.Error(w, req, http.StatusBadRequest, err.Error())
	case err != nil:
		s.config.Logger.Error().Err(err).Msg("broadcast failed")
		sundaerest.Error(w, req, http.StatusInternalServerError, err.Error())
	default:
		sundaerest.JSON(w, req, http.StatusOK, report)
	}
}
