// Command relay-feed follows the connections table stream and reports
// connections opening and closing.
package main

import (
	"log"
	"os"

	sundaecli "github.com/SundaeSwap-finance/sundae-relay/sundae-cli"
	sundaeddb "github.com/SundaeSwap-finance/sundae-relay/sundae-ddb"
	sundaews "github.com/SundaeSwap-finance/sundae-relay/sundae-ws"
	"github.com/SundaeSwap-finance/sundae-relay/sundae-ws/connectiondao"
	"github.com/urfave/cli/v2"
)

var service = sundaecli.NewService("relay-feed")

func main() {
	app := sundaecli.App(
		service,
		action,
		append(
			sundaecli.CommonFlags,
			sundaeddb.DDBFlags...,
		)...,
	)
	err := app.Run(os.Args)
	if err != nil {
		log.Fatalln(err)
	}
}

func action(_ *cli.Context) error {
	tableName := sundaeddb.DDBOpts.TableName
	if tableName == "" {
		tableName = connectiondao.TableName(sundaecli.CommonOpts.Env)
	}

	feed := &sundaews.Feed{
		Logger:  sundaecli.Logger(service),
		Metrics: sundaews.BuildMetrics(service),
	}
	handler := sundaeddb.NewHandler(service, tableName, feed.Callbacks())

	return handler.Start()
}
