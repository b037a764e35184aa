package admin

import (
	sundaecli "github.com/SundaeSwap-finance/sundae-relay/sundae-cli"
	"github.com/urfave/cli/v2"
)

var AdminOpts struct {
	SecretName string
}

var SecretNameFlag = sundaecli.StringFlag("admin-secret", "secrets manager secret, {\"token\":\"...\"}, holding the admin bearer token; unset leaves the admin api open", &AdminOpts.SecretName)

var AdminFlags = []cli.Flag{
	SecretNameFlag,
}
