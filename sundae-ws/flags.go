package sundaews

import (
	"time"

	sundaecli "github.com/SundaeSwap-finance/sundae-relay/sundae-cli"
	"github.com/urfave/cli/v2"
)

const (
	DefaultConcurrency = 50
	DefaultSendTimeout = 5 * time.Second
)

var WSOpts struct {
	Concurrency int
	SendTimeout time.Duration
	Endpoint    string
	StreamName  string
	Stage       string
	Memory      bool
}

var ConcurrencyFlag = sundaecli.IntFlag("concurrency", "max concurrent deliveries per broadcast", &WSOpts.Concurrency, DefaultConcurrency)
var SendTimeoutFlag = sundaecli.DurationFlag("send-timeout", "timeout for a single delivery", &WSOpts.SendTimeout, DefaultSendTimeout)
var EndpointFlag = sundaecli.StringFlag("ws-endpoint", "management endpoint (https://{domain}/{stage}) used when a broadcast has none", &WSOpts.Endpoint)
var StreamNameFlag = sundaecli.StringFlag("stream-name", "kinesis stream carrying published broadcasts; defaults to the stream for --env", &WSOpts.StreamName)
var StageFlag = sundaecli.StringFlag("stage", "stage path served by the local gateway in console mode", &WSOpts.Stage, "local")
var MemoryFlag = sundaecli.BoolFlag("memory", "keep membership in process memory instead of DynamoDB (console mode only)", &WSOpts.Memory)

var DispatchFlags = []cli.Flag{
	ConcurrencyFlag,
	SendTimeoutFlag,
	EndpointFlag,
}

var StreamFlags = []cli.Flag{
	StreamNameFlag,
}

var GatewayFlags = []cli.Flag{
	StageFlag,
	MemoryFlag,
}
