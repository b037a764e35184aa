package sundaeddb

import (
	sundaecli "github.com/SundaeSwap-finance/sundae-relay/sundae-cli"
	"github.com/urfave/cli/v2"
)

var DDBOpts struct {
	DAXCluster string
	TableName  string
	Region     string
	Endpoint   string
}

var DAXClusterFlag = sundaecli.StringFlag("dax-cluster", "The DAX cluster to connect to", &DDBOpts.DAXCluster)
var TableNameFlag = sundaecli.StringFlag("table-name", "Overrides the connections table name derived from --env", &DDBOpts.TableName)
var RegionFlag = sundaecli.StringFlag("region", "AWS region of the connections table", &DDBOpts.Region, "us-east-2")
var EndpointFlag = sundaecli.StringFlag("ddb-endpoint", "DynamoDB endpoint override, e.g. http://localhost:8000 for DynamoDB local", &DDBOpts.Endpoint)

var DDBFlags = []cli.Flag{
	DAXClusterFlag,
	TableNameFlag,
	RegionFlag,
	EndpointFlag,
}
