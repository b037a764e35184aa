package main

import (
	"context"
	"log"
	"os"

	sundaecli "github.com/SundaeSwap-finance/sundae-relay/sundae-cli"
	sundaeddb "github.com/SundaeSwap-finance/sundae-relay/sundae-ddb"
	sundaereport "github.com/SundaeSwap-finance/sundae-relay/sundae-report"
	sundaews "github.com/SundaeSwap-finance/sundae-relay/sundae-ws"
	"github.com/urfave/cli/v2"
)

var service = sundaecli.NewService("relay-census")

func main() {
	flags := append(sundaecli.CommonFlags, sundaeddb.DDBFlags...)
	flags = append(flags, sundaereport.ReportFlags...)

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
	registry := sundaews.NewRegistry(store)
	metrics := sundaews.BuildMetrics(service)

	handler := sundaereport.NewHandler(service, "census", func(ctx context.Context) (interface{}, error) {
		return sundaews.Census(ctx, registry, metrics)
	})
	return handler.Start()
}
