package supervise

import (
	"time"

	"github.com/faceplate/helperd/internal/supervise/sidecar"
)

// DefaultConfig carries the supervisor defaults. The tracker port
// matches the fixed port the tracker binds to.
var DefaultConfig = map[string]any{
	"tracker.port":          8765,
	"tracker.warmup_delay":  "3s",
	"tracker.probe_timeout": "2s",
}

// WorkerConfig describes how to launch one pipe-based helper.
type WorkerConfig struct {
	// Cmd is the command to invoke in order to start the helper.
	Cmd string `conf:"cmd"`

	// Args are additional arguments to pass to the helper.
	Args []string `conf:"args"`

	// ModelPath is the model file the helper should load, exported
	// to the process as MODEL_PATH.
	ModelPath string `conf:"model_path"`
}

type Config struct {
	// ModelsPath is the directory holding model weights, exported
	// to every helper as MODELS_PATH.
	ModelsPath string `conf:"models_path"`

	// SendTimeout is the optional per-request deadline for pipe
	// workers. Zero disables it.
	SendTimeout time.Duration `conf:"send_timeout"`

	// Stt configures the speech-to-text helper.
	Stt WorkerConfig `conf:"stt"`

	// Piper configures the Piper text-to-speech helper.
	Piper WorkerConfig `conf:"piper"`

	// Kokoro configures the Kokoro text-to-speech helper.
	Kokoro WorkerConfig `conf:"kokoro"`

	// Tracker configures the object-tracking sidecar.
	Tracker sidecar.Config `conf:"tracker"`
}
