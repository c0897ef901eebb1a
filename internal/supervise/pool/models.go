package pool

import (
	"errors"
	"time"

	"github.com/faceplate/helperd/internal/supervise/protocol"
	"github.com/faceplate/helperd/internal/supervise/worker"
)

var (
	// ErrSpawnFailed indicates the worker executable could not be
	// started. The triggering request and everything queued behind
	// it are rejected with this error.
	ErrSpawnFailed = errors.New("failed to spawn worker")

	// ErrProcessExited indicates the worker process exited while a
	// request was in flight.
	ErrProcessExited = errors.New("worker process exited unexpectedly")

	// ErrRequestTimeout indicates the per-request deadline expired
	// before the worker produced a response.
	ErrRequestTimeout = errors.New("request timed out")

	// ErrPoolClosed indicates the pool has been shut down.
	ErrPoolClosed = errors.New("pool closed")
)

// State is the lifecycle state of a pool's worker process.
type State int32

const (
	// Stopped means no process has been spawned yet, or the pool
	// has been closed.
	Stopped State = iota

	// Running means a live process handle exists.
	Running

	// Crashed means the process exited; queued requests are kept
	// and the next dispatch respawns the process.
	Crashed
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	case Crashed:
		return "crashed"
	default:
		return "unknown"
	}
}

// EncodeFunc encodes a request payload into its wire line.
type EncodeFunc func(payload string) ([]byte, error)

// DecodeFunc decodes a stdout line into a protocol reply. The second
// return value is false if the line is not part of the response
// grammar and must be ignored.
type DecodeFunc func(line string) (protocol.Reply, bool)

// PostFunc derives the final result from a successful reply, e.g. by
// reading a generated audio file. If nil, the reply's text is the
// result.
type PostFunc func(reply protocol.Reply) (string, error)

// Spec describes one worker kind: how to spawn it and how to talk to
// it. A Spec is immutable after the pool is created.
type Spec struct {
	// ID is the worker identifier, e.g. "stt" or "piper-tts".
	ID string

	// Start describes the command, arguments and environment
	// overlay used to spawn the helper process.
	Start worker.StartConfig

	// Encode converts a request payload into its wire line.
	Encode EncodeFunc

	// Decode converts a stdout line into a reply.
	Decode DecodeFunc

	// Post is the optional post-processing step applied to a
	// successful reply.
	Post PostFunc

	// SendTimeout is the optional per-request deadline. Zero
	// disables the deadline: a request without a matching response
	// then occupies the worker indefinitely.
	SendTimeout time.Duration
}

type outcome struct {
	value string
	err   error
}

// entry is one queued request together with its completion sink. The
// sink is a oneshot channel, settled exactly once.
type entry struct {
	payload    string
	done       chan outcome
	enqueuedAt time.Time
}

func (e *entry) settle(value string, err error) {
	e.done <- outcome{value: value, err: err}
}
