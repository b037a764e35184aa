// Package sundaegql serves GraphQL schemas over the relay's HTTP stack.
//
// Resolvers provide their schema and config; the package parses the schema with
// graph-gophers/graphql-go, mounts it on a chi router and serves it locally or
// behind API Gateway. Introspection and GraphiQL are disabled in prod.
package sundaegql

import (
	sundaecli "github.com/SundaeSwap-finance/sundae-relay/sundae-cli"
)

// ProdEnv is the --env value of the production deployment.
const ProdEnv = "prod"

func AllowIntrospection() bool {
	return sundaecli.CommonOpts.Env != ProdEnv || sundaecli.CommonOpts.Console
}

type Resolver interface {
	Schema() string
	Config() *BaseConfig
}
