package runtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/faceplate/helperd/internal/supervise"
	"github.com/faceplate/helperd/models"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Runtime is the interface for a runtime.
type Runtime interface {
	Handle(context.Context, Message) (Message, error)

	Start(context.Context) error

	Shutdown(context.Context) error
}

// Config is the runtime-specific type for the config.
type Config = supervise.Config

// DefaultConfig carries the defaults for the runtime config.
var DefaultConfig = supervise.DefaultConfig

// HelperRuntime routes logical commands to the helper supervisor.
type HelperRuntime struct {
	supervisor *supervise.Supervisor

	log *zap.Logger
}

var _ Runtime = (*HelperRuntime)(nil)

// RuntimeParams defines the dependencies for the runtime.
type RuntimeParams struct {
	fx.In

	// Context is the context to use for the underlying supervisor
	Context context.Context

	// Config is the config for the underlying supervisor
	Config Config

	// Log is the logger to use for the runtime
	Log *zap.Logger
}

// NewRuntime creates a new runtime.
func NewRuntime(params RuntimeParams) (Runtime, error) {
	supervisor := supervise.New(supervise.Params{
		Context: params.Context,
		Config:  params.Config,
		Log:     params.Log,
	})

	return &HelperRuntime{
		supervisor: supervisor,
		log:        params.Log.Named("runtime"),
	}, nil
}

func NewLifecycleRuntime(params RuntimeParams, lc fx.Lifecycle) (Runtime, error) {
	r, err := NewRuntime(params)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return r.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return r.Shutdown(ctx)
		},
	})

	return r, nil
}

// Start is a no-op: helpers spawn lazily on first use.
func (r *HelperRuntime) Start(context.Context) error {
	return nil
}

func (r *HelperRuntime) Shutdown(ctx context.Context) error {
	return r.supervisor.Shutdown(ctx)
}

// Handle dispatches a message to the worker that serves its command.
// Helper failures are mapped into a {success:false, error} body, not
// returned as errors: the caller always gets a tagged outcome.
func (r *HelperRuntime) Handle(
	ctx context.Context,
	message Message,
) (Message, error) {
	body, err := r.dispatch(ctx, message.Command, message.Data)
	if err != nil {
		return Message{}, err
	}

	return NewMessage(message.Command, body), nil
}

func (r *HelperRuntime) dispatch(
	ctx context.Context,
	command models.Command,
	data []byte,
) ([]byte, error) {
	var req struct {
		AudioPath string `json:"audio_path"`
		Engine    string `json:"engine"`
		Text      string `json:"text"`
		Image     string `json:"image"`
		Object    string `json:"object"`
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidBody, err)
		}
	}

	switch command {
	case models.CommandTranscribe:
		text, err := r.supervisor.Transcribe(ctx, req.AudioPath)
		if err != nil {
			return failureBody(err)
		}
		return successBody(map[string]any{"text": text})

	case models.CommandSpeak:
		engine, err := supervise.ParseEngine(req.Engine)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidBody, req.Engine)
		}

		audio, err := r.supervisor.Speak(ctx, engine, req.Text)
		if err != nil {
			return failureBody(err)
		}
		return successBody(map[string]any{"audio": audio})

	case models.CommandTrackFace:
		return json.Marshal(r.supervisor.TrackFace(ctx, req.Image))

	case models.CommandTrackObj:
		return json.Marshal(r.supervisor.TrackObject(ctx, req.Image, req.Object))

	case models.CommandTrackAuto:
		return json.Marshal(r.supervisor.TrackAuto(ctx, req.Image))

	case models.CommandTrackSet:
		return json.Marshal(r.supervisor.SetTrackTarget(ctx, req.Object))

	case models.CommandTrackClear:
		return json.Marshal(r.supervisor.ClearTrackTarget(ctx))

	case models.CommandDetect:
		return json.Marshal(r.supervisor.Detect(ctx, req.Image))

	case models.CommandClasses:
		return json.Marshal(r.supervisor.TrackerClasses(ctx))

	default:
		return nil, ErrCommandNotFound
	}
}

func successBody(fields map[string]any) ([]byte, error) {
	fields["success"] = true
	return json.Marshal(fields)
}

func failureBody(err error) ([]byte, error) {
	return json.Marshal(map[string]any{
		"success": false,
		"error":   err.Error(),
	})
}
