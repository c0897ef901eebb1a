// Package sidecar manages the object-tracking helper, a worker of a
// different shape: spawned once, addressed over HTTP instead of a
// stdio line protocol, with a best-effort readiness probe.
//
// Requests are not serialized; the tracker handles its own
// concurrency. Transport failures are mapped into a
// {success:false, error} reply and never surfaced as errors.
package sidecar

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/faceplate/helperd/internal/supervise/worker"
	"go.uber.org/zap"
)

// Status is the lifecycle state of the sidecar service.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"

	// StatusReady means the health probe answered OK.
	StatusReady Status = "ready"

	// StatusUnconfirmed means the probe failed but the process is
	// running. The model may still be loading, so the service is
	// optimistically treated as started; requests simply fail
	// until it is truly up.
	StatusUnconfirmed Status = "unconfirmed"
)

type Config struct {
	// Start describes how to spawn the tracker process.
	Start worker.StartConfig `conf:"start,squash"`

	// Port is the fixed port the tracker listens on.
	Port int `conf:"port"`

	// WarmupDelay is how long to wait after spawning before
	// probing the health endpoint.
	WarmupDelay time.Duration `conf:"warmup_delay"`

	// ProbeTimeout bounds the single readiness probe.
	ProbeTimeout time.Duration `conf:"probe_timeout"`
}

// Params defines the dependencies for the sidecar service.
type Params struct {
	// Context bounds the lifetime of the tracker process.
	Context context.Context

	// Config is the sidecar configuration.
	Config Config

	// Log is the logger to use for the service.
	Log *zap.Logger
}

type Service struct {
	ctx    context.Context
	config Config
	client *http.Client

	mu     sync.Mutex
	proc   *worker.ProcessWorker
	status Status

	log *zap.Logger
}

func New(params Params) *Service {
	ctx := params.Context
	if ctx == nil {
		ctx = context.Background()
	}

	return &Service{
		ctx:    ctx,
		config: params.Config,
		client: &http.Client{},
		status: StatusStopped,
		log:    params.Log.Named("sidecar"),
	}
}

// BaseURL returns the address the tracker listens on.
func (s *Service) BaseURL() string {
	return fmt.Sprintf("http://localhost:%d", s.config.Port)
}

// Status returns the current lifecycle state of the service.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.status
}

// Start spawns the tracker process and probes its health endpoint
// once after a fixed warm-up interval. A failing probe does not fail
// the start: the model may still be loading even though the HTTP
// server is not yet listening. Only a spawn failure is an error.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()

	if s.proc != nil {
		s.mu.Unlock()
		return nil
	}

	s.status = StatusStarting

	w := worker.NewProcessWorker(s.ctx, s.config.Start, s.log)
	if err := w.Start(ctx); err != nil {
		s.status = StatusStopped
		s.mu.Unlock()
		return fmt.Errorf("failed to spawn tracker: %w", err)
	}

	s.proc = w
	s.mu.Unlock()

	// reset to stopped when the process exits, so a later Start
	// can respawn it
	go func() {
		evt := <-w.Exit()
		s.log.Warn("tracker process exited", zap.String("status", evt.String()))

		s.mu.Lock()
		if s.proc == w {
			s.proc = nil
			s.status = StatusStopped
		}
		s.mu.Unlock()
	}()

	s.log.Info("tracker process started",
		zap.Int("pid", w.Pid()),
		zap.String("url", s.BaseURL()),
	)

	select {
	case <-time.After(s.config.WarmupDelay):
	case <-ctx.Done():
		return ctx.Err()
	}

	status := StatusUnconfirmed
	if s.probe(ctx) {
		status = StatusReady
	} else {
		s.log.Warn("health probe failed, assuming tracker is still warming up")
	}

	s.mu.Lock()
	if s.proc == w {
		s.status = status
	}
	s.mu.Unlock()

	return nil
}

// Stop kills the tracker process and clears the handle
// unconditionally. There is no queue to drain.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.proc != nil {
		s.proc.Kill()
		s.proc = nil
	}

	s.status = StatusStopped
}

func (s *Service) probe(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, s.config.ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, s.BaseURL()+"/health", nil)
	if err != nil {
		return false
	}

	res, err := s.client.Do(req)
	if err != nil {
		return false
	}
	defer res.Body.Close()

	return res.StatusCode == http.StatusOK
}
