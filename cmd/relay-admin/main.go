package main

import (
	"log"
	"os"

	sundaecli "github.com/SundaeSwap-finance/sundae-relay/sundae-cli"
	sundaeddb "github.com/SundaeSwap-finance/sundae-relay/sundae-ddb"
	sundaegql "github.com/SundaeSwap-finance/sundae-relay/sundae-gql"
	sundaesecret "github.com/SundaeSwap-finance/sundae-relay/sundae-secret"
	sundaews "github.com/SundaeSwap-finance/sundae-relay/sundae-ws"
	"github.com/SundaeSwap-finance/sundae-relay/sundae-ws/admin"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/urfave/cli/v2"
)

var service = sundaecli.NewSubpathService("relay-admin")

func main() {
	flags := append(sundaecli.CommonFlags, sundaecli.PortFlag(5001))
	flags = append(flags, sundaeddb.DDBFlags...)
	flags = append(flags, sundaews.DispatchFlags...)
	flags = append(flags, admin.AdminFlags...)

	app := sundaecli.App(service, action, flags...)
	err := app.Run(os.Args)
	if err != nil {
		log.Fatalln(err)
	}
}

func action(_ *cli.Context) error {
	store, err := sundaews.BuildStore()
	if err != nil {
		return err
	}

	var opts []admin.Option
	if name := admin.AdminOpts.SecretName; name != "" {
		token, err := sundaesecret.LoadToken(session.Must(session.NewSession(aws.NewConfig())), name)
		if err != nil {
			return err
		}
		opts = append(opts, admin.WithToken(token))
	}

	server := admin.New(sundaegql.NewConfig(service), sundaews.BuildDispatcher(service, store), opts...)
	router, err := server.Router()
	if err != nil {
		return err
	}
	return sundaegql.Serve(router, server.Config())
}
