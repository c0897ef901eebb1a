package app

import (
	"github.com/faceplate/helperd/config"
	"github.com/faceplate/helperd/internal/shell"
	"github.com/faceplate/helperd/runtime"
	"github.com/faceplate/helperd/util/conf"
	"github.com/faceplate/helperd/util/logging"
	"github.com/urfave/cli/v2"
	"go.uber.org/fx"
)

func New(ctx *cli.Context) (*shell.Shell, error) {
	log, err := logging.LoggerFromContext(ctx.Context)
	if err != nil {
		return nil, err
	}

	config, err := conf.GetConfigFromContext[config.Config](ctx.Context)
	if err != nil {
		return nil, err
	}

	sharedModule := fx.Module(
		"shared",
		// provide global config
		fx.Supply(config),
		// provide supervisor runtime
		runtime.Module(config.Supervisor),
	)

	return shell.New(log, sharedModule), nil
}
