// Command relay-publisher broadcasts records published to the relay events
// stream with the publish package.
package main

import (
	"context"
	"log"
	"os"

	sundaecli "github.com/SundaeSwap-finance/sundae-relay/sundae-cli"
	sundaeddb "github.com/SundaeSwap-finance/sundae-relay/sundae-ddb"
	sundaews "github.com/SundaeSwap-finance/sundae-relay/sundae-ws"
	"github.com/SundaeSwap-finance/sundae-relay/sundae-ws/publish"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/urfave/cli/v2"
)

var service = sundaecli.NewService("relay-publisher")

func main() {
	flags := append(sundaecli.CommonFlags, sundaeddb.DDBFlags...)
	flags = append(flags, sundaews.DispatchFlags...)
	flags = append(flags, sundaews.StreamFlags...)

	app := sundaecli.App(service, action, flags...)
	err := app.Run(os.Args)
	if err != nil {
		log.Fatalln(err)
	}
}

func action(c *cli.Context) error {
	store, err := sundaews.BuildStore()
	if err != nil {
		return err
	}
	dispatcher := sundaews.BuildDispatcher(service, store)

	if !sundaecli.CommonOpts.Console {
		lambda.Start(dispatcher.HandleKinesisEvent)
		return nil
	}

	streamName := sundaews.WSOpts.StreamName
	if streamName == "" {
		streamName = publish.StreamName(sundaecli.CommonOpts.Env)
	}
	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()
	return dispatcher.ConsumeStream(ctx, streamName)
}
