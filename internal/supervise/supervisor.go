// Package supervise is the single entry point for talking to the
// local helper processes: speech-to-text, the two text-to-speech
// engines and the object-tracking sidecar.
//
// Workers are started lazily on first use and respawned lazily after
// a crash. Every operation resolves to a structured result; no
// helper failure ever propagates as a panic across this boundary.
package supervise

import (
	"context"
	"sync"

	"github.com/faceplate/helperd/internal/supervise/pool"
	"github.com/faceplate/helperd/internal/supervise/sidecar"
	"go.uber.org/zap"
)

// Supervisor routes logical requests to the worker pool or sidecar
// that serves them. It owns the worker registry; each entry is
// created at most once, under a single critical section, so
// concurrent first calls cannot double-spawn a helper.
type Supervisor struct {
	ctx    context.Context
	config Config

	mu      sync.Mutex
	pools   map[string]*pool.Pool
	tracker *sidecar.Service

	log *zap.Logger
}

// Params defines the dependencies for the supervisor.
type Params struct {
	// Context bounds the lifetime of all helper processes.
	Context context.Context

	// Config is the supervisor configuration.
	Config Config

	// Log is the logger to use for the supervisor.
	Log *zap.Logger
}

func New(params Params) *Supervisor {
	ctx := params.Context
	if ctx == nil {
		ctx = context.Background()
	}

	return &Supervisor{
		ctx:    ctx,
		config: params.Config,
		pools:  make(map[string]*pool.Pool),
		log:    params.Log.Named("supervisor"),
	}
}

// Transcribe submits an audio file to the speech-to-text worker and
// returns the transcript.
func (s *Supervisor) Transcribe(ctx context.Context, audioPath string) (string, error) {
	p := s.ensurePool(workerStt, s.sttSpec)

	return p.Submit(ctx, audioPath)
}

// Speak submits an utterance to the selected text-to-speech worker
// and returns the synthesized audio as a data URL.
func (s *Supervisor) Speak(ctx context.Context, engine Engine, text string) (string, error) {
	var p *pool.Pool

	switch engine {
	case EngineKokoro:
		p = s.ensurePool(workerKokoroTts, func() pool.Spec {
			return s.ttsSpec(workerKokoroTts, s.config.Kokoro)
		})
	default:
		p = s.ensurePool(workerPiperTts, func() pool.Spec {
			return s.ttsSpec(workerPiperTts, s.config.Piper)
		})
	}

	return p.Submit(ctx, text)
}

// TrackFace locates the most prominent face in the frame.
func (s *Supervisor) TrackFace(ctx context.Context, image string) sidecar.Reply {
	return s.withTracker(ctx, func(t *sidecar.Service) sidecar.Reply {
		return t.TrackFace(ctx, image)
	})
}

// TrackObject locates a named object in the frame.
func (s *Supervisor) TrackObject(ctx context.Context, image, object string) sidecar.Reply {
	return s.withTracker(ctx, func(t *sidecar.Service) sidecar.Reply {
		return t.TrackObject(ctx, image, object)
	})
}

// TrackAuto tracks the configured target, or the face if none is set.
func (s *Supervisor) TrackAuto(ctx context.Context, image string) sidecar.Reply {
	return s.withTracker(ctx, func(t *sidecar.Service) sidecar.Reply {
		return t.TrackAuto(ctx, image)
	})
}

// SetTrackTarget sets the object the tracker should follow.
func (s *Supervisor) SetTrackTarget(ctx context.Context, object string) sidecar.Reply {
	return s.withTracker(ctx, func(t *sidecar.Service) sidecar.Reply {
		return t.SetTarget(ctx, object)
	})
}

// ClearTrackTarget reverts the tracker to face tracking.
func (s *Supervisor) ClearTrackTarget(ctx context.Context) sidecar.Reply {
	return s.withTracker(ctx, func(t *sidecar.Service) sidecar.Reply {
		return t.ClearTarget(ctx)
	})
}

// Detect runs full object detection on the frame.
func (s *Supervisor) Detect(ctx context.Context, image string) sidecar.Reply {
	return s.withTracker(ctx, func(t *sidecar.Service) sidecar.Reply {
		return t.Detect(ctx, image)
	})
}

// TrackerClasses lists the object classes the tracker can detect.
func (s *Supervisor) TrackerClasses(ctx context.Context) sidecar.Reply {
	return s.withTracker(ctx, func(t *sidecar.Service) sidecar.Reply {
		return t.Classes(ctx)
	})
}

// TrackerHealth reports the tracker's own health status.
func (s *Supervisor) TrackerHealth(ctx context.Context) sidecar.Reply {
	return s.withTracker(ctx, func(t *sidecar.Service) sidecar.Reply {
		return t.Health(ctx)
	})
}

// Shutdown stops all workers. Queued requests are rejected; the
// tracker process is killed.
func (s *Supervisor) Shutdown(context.Context) error {
	s.mu.Lock()
	pools := make([]*pool.Pool, 0, len(s.pools))
	for _, p := range s.pools {
		pools = append(pools, p)
	}
	s.pools = make(map[string]*pool.Pool)

	tracker := s.tracker
	s.tracker = nil
	s.mu.Unlock()

	for _, p := range pools {
		p.Close()
	}

	if tracker != nil {
		tracker.Stop()
	}

	return nil
}

// ensurePool returns the pool for the given worker id, creating it on
// first use. Creation is serialized to avoid double-spawning under
// concurrent first calls.
func (s *Supervisor) ensurePool(id string, spec func() pool.Spec) *pool.Pool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.pools[id]; ok {
		return p
	}

	s.log.Info("creating worker pool", zap.String("worker", id))

	p := pool.New(pool.Params{
		Context: s.ctx,
		Spec:    spec(),
		Log:     s.log,
	})

	s.pools[id] = p

	return p
}

// withTracker lazily starts the sidecar and applies fn to it. A spawn
// failure is mapped into a failure reply, keeping the no-throw
// contract of the tracking operations.
func (s *Supervisor) withTracker(ctx context.Context, fn func(*sidecar.Service) sidecar.Reply) sidecar.Reply {
	s.mu.Lock()
	if s.tracker == nil {
		s.tracker = sidecar.New(sidecar.Params{
			Context: s.ctx,
			Config:  s.config.Tracker,
			Log:     s.log,
		})
	}
	tracker := s.tracker
	s.mu.Unlock()

	if err := tracker.Start(ctx); err != nil {
		return sidecar.Reply{"success": false, "error": err.Error()}
	}

	return fn(tracker)
}
