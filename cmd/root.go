package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/faceplate/helperd/config"
	"github.com/faceplate/helperd/internal/shell"
	"github.com/faceplate/helperd/util/conf"
	"github.com/faceplate/helperd/util/logging"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var (
	appName  = "helperd"
	appUsage = `A supervisor for the local speech and vision helper processes
used by the desktop companion app.`
	rootApp = &cli.App{
		Name:            appName,
		Usage:           appUsage,
		HideHelpCommand: true,
		Args:            true,
		Flags: []cli.Flag{
			// general flags
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "set the log level. Options: debug, info, warn, error, panic, fatal.",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				EnvVars: []string{"LOG_FORMAT"},
			},
			// helper flags
			&cli.StringFlag{
				Name:     "models-path",
				Usage:    "the directory containing the helper model files.",
				Aliases:  []string{"m"},
				Category: "helpers",
				EnvVars:  []string{"MODELS_PATH"},
			},
			&cli.StringFlag{
				Name:     "stt-command",
				Usage:    "the command to invoke in order to start the transcription worker.",
				Category: "helpers",
				EnvVars:  []string{"STT_COMMAND"},
			},
			&cli.StringFlag{
				Name:     "piper-command",
				Usage:    "the command to invoke in order to start the piper speech worker.",
				Category: "helpers",
				EnvVars:  []string{"PIPER_COMMAND"},
			},
			&cli.StringFlag{
				Name:     "kokoro-command",
				Usage:    "the command to invoke in order to start the kokoro speech worker.",
				Category: "helpers",
				EnvVars:  []string{"KOKORO_COMMAND"},
			},
			&cli.DurationFlag{
				Name:     "send-timeout",
				Usage:    "deadline for a single helper request. Zero disables the deadline.",
				Category: "helpers",
				EnvVars:  []string{"SEND_TIMEOUT"},
			},
			// tracker flags
			&cli.StringFlag{
				Name:     "tracker-command",
				Usage:    "the command to invoke in order to start the tracker sidecar.",
				Category: "tracker",
				EnvVars:  []string{"TRACKER_COMMAND"},
			},
			&cli.IntFlag{
				Name:     "tracker-port",
				Usage:    "the port the tracker sidecar listens on.",
				Category: "tracker",
				EnvVars:  []string{"TRACKER_PORT"},
			},
			&cli.DurationFlag{
				Name:     "tracker-warmup",
				Usage:    "time to wait before probing the tracker after spawn.",
				Category: "tracker",
				EnvVars:  []string{"TRACKER_WARMUP"},
			},
		},
		Before: func(ctx *cli.Context) error {
			// create the logger
			log, err := createLogger(ctx)
			if err != nil {
				return err
			}

			// inject logger into cli context
			ctx.Context = logging.ContextWithLogger(ctx.Context, log)

			// parse config using cli flags, dotenv and env
			cfg, err := conf.Parse[config.Config](conf.ParseOptions{
				Cli:        ctx,
				CliMap:     rootCliMap,
				Defaults:   config.DefaultConfig,
				DotEnvFile: ".env",
				Log:        log,
			})
			if err != nil {
				return err
			}

			// inject the config into the cli context
			ctx.Context = conf.ContextWithConfig(ctx.Context, cfg)

			return nil
		},
		After: func(ctx *cli.Context) error {
			log, err := logging.LoggerFromContext(ctx.Context)
			if err != nil {
				return err
			}

			log.Sync()

			return nil
		},
	}

	// rootCliMap maps cli flag names to config keys.
	rootCliMap = map[string]string{
		"models-path":     "supervisor.models_path",
		"stt-command":     "supervisor.stt.cmd",
		"piper-command":   "supervisor.piper.cmd",
		"kokoro-command":  "supervisor.kokoro.cmd",
		"send-timeout":    "supervisor.send_timeout",
		"tracker-command": "supervisor.tracker.cmd",
		"tracker-port":    "supervisor.tracker.port",
		"tracker-warmup":  "supervisor.tracker.warmup_delay",
	}
)

func init() {
	cli.VersionFlag = &cli.BoolFlag{
		Name:               "version",
		Usage:              "print the version",
		DisableDefaultText: true,
	}
}

type ExecuteParams struct {
	Version  string
	Compiled time.Time
}

func Execute(params ExecuteParams) {
	rootApp.Version = params.Version
	rootApp.Compiled = params.Compiled

	run(context.Background(), os.Args)
}

func run(ctx context.Context, args []string) {
	err := rootApp.RunContext(ctx, args)

	// if app exited without error, return
	if err == nil {
		return
	}

	// if app exited with ExitError, exit with given exit code
	var exitErr *shell.ExitError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.ExitCode)
	}

	fmt.Printf("exit error: %s\n", err.Error())

	// otherwise, exit with exit code 1
	os.Exit(1)
}

func createLogger(ctx *cli.Context) (*zap.Logger, error) {
	level := getLogLevelFromCLI(ctx)
	format := getLogFormatFromCLI(ctx)

	var config zap.Config
	if format == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
	}

	config.InitialFields = map[string]any{
		"app": appName,
	}

	config.Level = level

	return config.Build()
}

func getLogFormatFromCLI(ctx *cli.Context) string {
	format := ctx.String("log-format")
	if format != "" {
		return format
	}

	return "production"
}

func getLogLevelFromCLI(ctx *cli.Context) zap.AtomicLevel {
	lvl := ctx.String("log-level")

	if atom, err := zap.ParseAtomicLevel(lvl); err == nil {
		return atom
	}

	return zap.NewAtomicLevelAt(zap.InfoLevel)
}
