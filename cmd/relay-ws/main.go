// Command relay-ws handles the WebSocket API routes. With --console it serves
// WebSockets itself through the local gateway emulator.
package main

import (
	"log"
	"os"

	sundaecli "github.com/SundaeSwap-finance/sundae-relay/sundae-cli"
	sundaeddb "github.com/SundaeSwap-finance/sundae-relay/sundae-ddb"
	sundaerest "github.com/SundaeSwap-finance/sundae-relay/sundae-rest"
	sundaews "github.com/SundaeSwap-finance/sundae-relay/sundae-ws"
	"github.com/SundaeSwap-finance/sundae-relay/sundae-ws/local"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/go-chi/chi/v5"
	"github.com/urfave/cli/v2"
)

var service = sundaecli.NewService("relay-ws")

func main() {
	flags := append(sundaecli.CommonFlags, sundaecli.PortFlag(3001))
	flags = append(flags, sundaeddb.DDBFlags...)
	flags = append(flags, sundaews.DispatchFlags...)
	flags = append(flags, sundaews.GatewayFlags...)

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

	dispatcher := sundaews.BuildDispatcher(service, store)
	handler := &sundaews.Handler{
		Registry:   dispatcher.Registry,
		Dispatcher: dispatcher,
		Logger:     sundaecli.Logger(service),
	}

	if !sundaecli.CommonOpts.Console {
		lambda.Start(handler.HandleEvent)
		return nil
	}

	gateway := local.New(handler.HandleEvent, sundaews.WSOpts.Stage, handler.Logger)
	dispatcher.Channels = gateway

	router := sundaerest.Middlewares(service, chi.NewRouter())
	router.Get("/"+sundaews.WSOpts.Stage, gateway.ServeHTTP)
	return sundaerest.Webserver(service, router)
}
