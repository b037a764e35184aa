package sundaegql

import (
	sundaecli "github.com/SundaeSwap-finance/sundae-relay/sundae-cli"
	"github.com/rs/zerolog"
)

type BaseConfig struct {
	Logger  zerolog.Logger
	Service sundaecli.Service
}

func NewConfig(service sundaecli.Service) BaseConfig {
	return BaseConfig{
		Logger:  sundaecli.Logger(service),
		Service: service,
	}
}
