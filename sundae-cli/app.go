// Package sundaecli provides the CLI boilerplate shared by every relay binary.
//
// Each binary is a urfave/cli application that runs as a Lambda function by
// default and as a local process when --console is set. The package also owns
// the common flags, structured logging setup, CloudWatch metrics and build
// information.
package sundaecli

import (
	"fmt"
	"runtime/debug"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

func App(service Service, action cli.ActionFunc, flags ...cli.Flag) *cli.App {
	return &cli.App{
		Name:                 service.Name,
		Usage:                fmt.Sprintf("%v relay service", service.Name),
		Version:              service.Version,
		EnableBashCompletion: true,
		Before:               InitCommonOpts,
		Action:               action,
		Flags:                flags,
	}
}

// InitCommonOpts sets the global log level from --log-level.
func InitCommonOpts(_ *cli.Context) error {
	if CommonOpts.LogLevel != "" {
		level, err := zerolog.ParseLevel(CommonOpts.LogLevel)
		if err != nil {
			return fmt.Errorf("invalid log level %v: %w", CommonOpts.LogLevel, err)
		}
		zerolog.SetGlobalLevel(level)
	}
	return nil
}

func CommitHash() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				return setting.Value
			}
		}
		return info.Main.Version
	}
	return "unknown"
}
