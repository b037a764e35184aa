package sundaegql

import (
	"fmt"
	"net/http"

	"github.com/SundaeSwap-finance/sundae-relay/graphiql"
	sundaecli "github.com/SundaeSwap-finance/sundae-relay/sundae-cli"
	sundaerest "github.com/SundaeSwap-finance/sundae-relay/sundae-rest"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/graph-gophers/graphql-go"
	"github.com/graph-gophers/graphql-go/relay"
)

// Serve a mildly opinionated graphql webserver, optionally with playground attached
func Webserver(resolver Resolver) error {
	router, err := Router(resolver)
	if err != nil {
		return err
	}
	return Serve(router, resolver.Config())
}

// Router returns the default router with the resolver mounted on /graphql.
// middlewares wrap the graphql endpoints only. Callers may add further routes
// before serving it.
func Router(resolver Resolver, middlewares ...func(http.Handler) http.Handler) (chi.Router, error) {
	config := resolver.Config()
	relay, err := GraphQLRelay(resolver)
	if err != nil {
		return nil, err
	}

	router := DefaultRouter(config.Service)
	api := router.With(middlewares...)

	api.Post("/graphql", middleware.NoCache(relay).ServeHTTP)
	// Allow arbitrary path parameters, for better UX in the browser
	api.Post("/graphql/*", middleware.NoCache(relay).ServeHTTP)
	if AllowIntrospection() {
		path := "/graphql"
		if config.Service.Subpath != "" {
			path = fmt.Sprintf("/%v/graphql", config.Service.Subpath)
		}
		router.Get("/graphql", graphiql.New(path))
	}
	return router, nil
}

// Construct an http relay that handles graphql requests
func GraphQLRelay(resolver Resolver) (*relay.Handler, error) {
	finalSchema := resolver.Schema()

	config := resolver.Config()
	config.Service.Schema = finalSchema

	opts := []graphql.SchemaOpt{
		graphql.MaxDepth(15),
		graphql.UseFieldResolvers(),
	}
	if !AllowIntrospection() {
		opts = append(opts, graphql.DisableIntrospection())
	}

	schema, err := graphql.ParseSchema(finalSchema, resolver, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse schema: %w", err)
	}

	return &relay.Handler{Schema: schema}, nil
}

// Construct a chi router with the common useful middleware
func DefaultRouter(service sundaecli.Service) chi.Router {
	return sundaerest.Middlewares(service, chi.NewRouter())
}

// Start listening / serving a graphql server, or as a Lambda function
func Serve(router chi.Router, config *BaseConfig) error {
	config.Logger.Info().Int("schema_bytes", len(config.Service.Schema)).Msgf("starting %v", config.Service.Name)
	return sundaerest.Webserver(config.Service, router)
}
