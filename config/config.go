package config

import (
	"github.com/faceplate/helperd/runtime"
	"github.com/faceplate/helperd/util/conf"
)

type Config struct {
	// LogLevel is the log level for the application
	LogLevel string `conf:"log_level"`

	// LogFormat is the log format for the application
	LogFormat string `conf:"log_format"`

	// Supervisor is the helper supervisor configuration
	Supervisor runtime.Config `conf:"supervisor"`
}

// DefaultConfig composes the application defaults with the supervisor
// defaults, namespaced under their config key.
var DefaultConfig = defaults()

func defaults() conf.DefaultConfig {
	merged := conf.MergeDefaults("supervisor", runtime.DefaultConfig)

	merged["log_level"] = "info"
	merged["log_format"] = "production"

	return merged
}
