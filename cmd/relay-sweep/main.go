// Command relay-sweep periodically prunes registered connections that API
// Gateway no longer knows about, such as those whose $disconnect was missed.
package main

import (
	"context"
	"errors"
	"log"
	"os"

	sundaecli "github.com/SundaeSwap-finance/sundae-relay/sundae-cli"
	sundaecron "github.com/SundaeSwap-finance/sundae-relay/sundae-cron"
	sundaeddb "github.com/SundaeSwap-finance/sundae-relay/sundae-ddb"
	sundaews "github.com/SundaeSwap-finance/sundae-relay/sundae-ws"
	"github.com/urfave/cli/v2"
)

var service = sundaecli.NewService("relay-sweep")

func main() {
	flags := append(sundaecli.CommonFlags, sundaeddb.DDBFlags...)
	flags = append(flags, sundaews.DispatchFlags...)

	app := sundaecli.App(service, action, flags...)
	err := app.Run(os.Args)
	if err != nil {
		log.Fatalln(err)
	}
}

func action(_ *cli.Context) error {
	if sundaews.WSOpts.Endpoint == "" {
		return errors.New("--ws-endpoint is required")
	}

	store, err := sundaews.BuildStore()
	if err != nil {
		return err
	}
	dispatcher := sundaews.BuildDispatcher(service, store)

	handler := sundaecron.NewHandler(service, func(ctx context.Context) error {
		_, err := dispatcher.Sweep(ctx, dispatcher.Endpoint)
		return err
	})
	return handler.Start()
}
