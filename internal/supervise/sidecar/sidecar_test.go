package sidecar_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/faceplate/helperd/internal/supervise/sidecar"
	"github.com/faceplate/helperd/internal/supervise/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func serverPort(t *testing.T, srv *httptest.Server) int {
	t.Helper()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	return port
}

func newService(t *testing.T, config sidecar.Config) *sidecar.Service {
	t.Helper()

	if config.WarmupDelay == 0 {
		config.WarmupDelay = 10 * time.Millisecond
	}
	if config.ProbeTimeout == 0 {
		config.ProbeTimeout = time.Second
	}

	s := sidecar.New(sidecar.Params{
		Context: context.Background(),
		Config:  config,
		Log:     zap.NewNop(),
	})

	t.Cleanup(s.Stop)

	return s
}

func TestSidecar_Start_ProbeConfirmsReadiness(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	s := newService(t, sidecar.Config{
		Start: worker.StartConfig{Cmd: "sleep", Args: []string{"60"}},
		Port:  serverPort(t, srv),
	})

	err := s.Start(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, sidecar.StatusReady, s.Status())
}

func TestSidecar_Start_FailedProbeIsOptimistic(t *testing.T) {
	// no server is listening on the port; the probe fails but the
	// service is still treated as started
	s := newService(t, sidecar.Config{
		Start:        worker.StartConfig{Cmd: "sleep", Args: []string{"60"}},
		Port:         1,
		ProbeTimeout: 100 * time.Millisecond,
	})

	err := s.Start(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, sidecar.StatusUnconfirmed, s.Status())

	// requests against the unconfirmed service fail without
	// throwing until it is truly up
	reply := s.Detect(context.Background(), "base64frame")
	assert.Equal(t, false, reply["success"])
	assert.NotEmpty(t, reply["error"])
}

func TestSidecar_Start_SpawnFailure(t *testing.T) {
	s := newService(t, sidecar.Config{
		Start: worker.StartConfig{Cmd: "/nonexistent/tracker"},
		Port:  1,
	})

	err := s.Start(context.Background())
	assert.Error(t, err)
	assert.Equal(t, sidecar.StatusStopped, s.Status())
}

func TestSidecar_Start_Idempotent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	s := newService(t, sidecar.Config{
		Start: worker.StartConfig{Cmd: "sleep", Args: []string{"60"}},
		Port:  serverPort(t, srv),
	})

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()))

	assert.Equal(t, sidecar.StatusReady, s.Status())
}

func TestSidecar_Stop_ClearsHandle(t *testing.T) {
	s := newService(t, sidecar.Config{
		Start:        worker.StartConfig{Cmd: "sleep", Args: []string{"60"}},
		Port:         1,
		ProbeTimeout: 100 * time.Millisecond,
	})

	require.NoError(t, s.Start(context.Background()))

	s.Stop()
	assert.Equal(t, sidecar.StatusStopped, s.Status())
}

func TestSidecar_ProcessExit_ResetsStatus(t *testing.T) {
	s := newService(t, sidecar.Config{
		Start:        worker.StartConfig{Cmd: "sh", Args: []string{"-c", "exit 0"}},
		Port:         1,
		ProbeTimeout: 100 * time.Millisecond,
	})

	require.NoError(t, s.Start(context.Background()))

	// the process exits immediately; the service resets itself so a
	// later Start can respawn it
	require.Eventually(t, func() bool {
		return s.Status() == sidecar.StatusStopped
	}, 5*time.Second, 10*time.Millisecond)
}
