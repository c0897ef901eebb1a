// Package pool implements the single-flight request queue in front of
// a helper process.
//
// Each pool owns one worker process and serializes requests to it:
// at most one request is ever in flight, all others wait in an
// unbounded FIFO queue. A crashed process rejects only the in-flight
// request; queued requests survive and are drained in original order
// once a later dispatch respawns the process.
//
// All mutable state (the pending slot, the queue, the process handle)
// is owned by a single goroutine per pool. Callers communicate with it
// exclusively through channels, so no two handlers for the same worker
// ever run concurrently.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/faceplate/helperd/internal/supervise/worker"
	"go.uber.org/zap"
)

// Pool composes a worker process, a request queue and a line codec
// into one addressable worker.
type Pool struct {
	spec Spec

	submits chan *entry

	closed    chan struct{}
	closeOnce sync.Once
	finished  chan struct{}

	state atomic.Int32

	log *zap.Logger
}

// Params defines the dependencies for a pool.
type Params struct {
	// Context bounds the lifetime of the pool and its process.
	Context context.Context

	// Spec describes the worker kind this pool manages.
	Spec Spec

	// Log is the logger to use for the pool.
	Log *zap.Logger
}

// New creates a pool for the given spec and starts its dispatch
// goroutine. The worker process itself is spawned lazily, on the
// first submit.
func New(params Params) *Pool {
	ctx := params.Context
	if ctx == nil {
		ctx = context.Background()
	}

	p := &Pool{
		spec:     params.Spec,
		submits:  make(chan *entry),
		closed:   make(chan struct{}),
		finished: make(chan struct{}),
		log:      params.Log.Named("pool").With(zap.String("worker", params.Spec.ID)),
	}

	go p.run(ctx)

	return p
}

// ID returns the worker identifier of this pool.
func (p *Pool) ID() string {
	return p.spec.ID
}

// State returns the current lifecycle state of the worker process.
func (p *Pool) State() State {
	return State(p.state.Load())
}

// Submit enqueues a request and suspends the caller until the worker
// produces a response, the process exits, or the context is done.
// Requests are served in strict enqueue order.
func (p *Pool) Submit(ctx context.Context, payload string) (string, error) {
	e := &entry{
		payload:    payload,
		done:       make(chan outcome, 1),
		enqueuedAt: time.Now(),
	}

	select {
	case p.submits <- e:
	case <-p.closed:
		return "", ErrPoolClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}

	select {
	case out := <-e.done:
		return out.value, out.err
	case <-ctx.Done():
		// the entry stays queued and is settled internally; the
		// caller just stops waiting for it.
		return "", ctx.Err()
	}
}

// Close shuts the pool down: the worker process is killed and every
// pending or queued request is rejected. Close blocks until the
// dispatch goroutine has finished.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.closed)
	})

	<-p.finished
}

// MARK: - dispatch loop

// runner holds the state owned exclusively by the dispatch goroutine.
type runner struct {
	pool *Pool

	pending *entry
	queue   []*entry

	proc  *worker.ProcessWorker
	lines <-chan string
	exits <-chan worker.ExitEvent

	deadline  *time.Timer
	deadlineC <-chan time.Time

	log *zap.Logger
}

func (p *Pool) run(ctx context.Context) {
	defer close(p.finished)

	r := &runner{pool: p, log: p.log}

	for {
		select {
		case e := <-p.submits:
			r.queue = append(r.queue, e)
			r.tryDispatch(ctx)

		case line, ok := <-r.lines:
			if !ok {
				// stdout reached EOF; wait for the exit event
				r.lines = nil
				continue
			}
			r.onLine(line)
			r.tryDispatch(ctx)

		case evt := <-r.exits:
			// consume responses that raced the exit event
			r.drainLines()
			r.onExit(evt)

		case <-r.deadlineC:
			r.onDeadline(ctx)

		case <-p.closed:
			r.shutdown()
			return

		case <-ctx.Done():
			r.shutdown()
			return
		}
	}
}

// tryDispatch promotes the queue head into the pending slot and
// writes it to the process. It is a no-op while a request is in
// flight, which is what enforces the single-flight invariant.
func (r *runner) tryDispatch(ctx context.Context) {
	for {
		if r.pending != nil || len(r.queue) == 0 {
			return
		}

		r.pending = r.queue[0]
		r.queue = r.queue[1:]

		if r.proc == nil {
			if err := r.spawn(ctx); err != nil {
				r.log.Error("spawn failed", zap.Error(err))
				// reject and keep draining: everything queued
				// behind this entry fails for the same reason
				r.settlePending("", fmt.Errorf("%w: %v", ErrSpawnFailed, err))
				continue
			}
		}

		data, err := r.pool.spec.Encode(r.pending.payload)
		if err != nil {
			r.settlePending("", fmt.Errorf("failed to encode request: %w", err))
			continue
		}

		if d := r.pool.spec.SendTimeout; d > 0 {
			r.armDeadline(d)
		}

		if err := r.proc.WriteLine(data); err != nil {
			r.stopDeadline()
			r.settlePending("", err)
			continue
		}

		r.log.Debug("request dispatched",
			zap.Duration("queued_for", time.Since(r.pending.enqueuedAt)),
		)

		return
	}
}

func (r *runner) spawn(ctx context.Context) error {
	w := worker.NewProcessWorker(ctx, r.pool.spec.Start, r.log)

	if err := w.Start(ctx); err != nil {
		return err
	}

	r.proc = w
	r.lines = w.Lines()
	r.exits = w.Exit()
	r.pool.state.Store(int32(Running))

	r.log.Info("worker process started", zap.Int("pid", w.Pid()))

	return nil
}

// onLine handles a single stdout line. Lines outside the response
// grammar are diagnostic output from the child and are ignored.
func (r *runner) onLine(line string) {
	reply, ok := r.pool.spec.Decode(line)
	if !ok {
		r.log.Debug("ignoring non-protocol output", zap.String("line", line))
		return
	}

	if r.pending == nil {
		r.log.Warn("discarding unsolicited reply", zap.String("line", line))
		return
	}

	r.stopDeadline()

	if !reply.Success {
		r.settlePending("", errors.New(reply.Error))
		return
	}

	if r.pool.spec.Post == nil {
		r.settlePending(reply.Text, nil)
		return
	}

	value, err := r.pool.spec.Post(reply)
	if err != nil {
		r.settlePending("", err)
		return
	}

	r.settlePending(value, nil)
}

// onExit settles the in-flight request, if any, and marks the pool
// crashed. The queue is kept: a future submit respawns the process
// and drains it in original order.
func (r *runner) onExit(evt worker.ExitEvent) {
	r.log.Warn("worker process exited",
		zap.String("status", evt.String()),
		zap.String("stderr", evt.Stderr),
	)

	if r.pending != nil {
		r.stopDeadline()
		r.settlePending("", fmt.Errorf("%w (%s)", ErrProcessExited, evt.String()))
	}

	r.proc = nil
	r.lines = nil
	r.exits = nil
	r.pool.state.Store(int32(Crashed))
}

// onDeadline fires when the in-flight request exceeds its deadline.
// The process is killed rather than left running: a late reply from
// it could otherwise be matched to a later request. Unlike a crash,
// the queue advances immediately: no future submit is owed here, so
// entries queued behind the timed-out request would otherwise stall.
func (r *runner) onDeadline(ctx context.Context) {
	r.deadline = nil
	r.deadlineC = nil

	if r.pending == nil {
		return
	}

	r.log.Warn("request deadline expired, killing worker")

	r.settlePending("", ErrRequestTimeout)

	if r.proc != nil {
		r.proc.Kill()
		r.drainLines()
		if r.exits != nil {
			evt := <-r.exits
			r.onExit(evt)
		}
	}

	// respawn and drain, each entry under its own deadline
	r.tryDispatch(ctx)
}

// drainLines consumes stdout lines remaining after the process
// terminated. Replies for the in-flight request are still honored.
func (r *runner) drainLines() {
	if r.lines == nil {
		return
	}

	for line := range r.lines {
		r.onLine(line)
	}

	r.lines = nil
}

func (r *runner) settlePending(value string, err error) {
	r.pending.settle(value, err)
	r.pending = nil
}

func (r *runner) armDeadline(d time.Duration) {
	r.stopDeadline()
	r.deadline = time.NewTimer(d)
	r.deadlineC = r.deadline.C
}

func (r *runner) stopDeadline() {
	if r.deadline != nil {
		r.deadline.Stop()
		r.deadline = nil
		r.deadlineC = nil
	}
}

// shutdown rejects everything and kills the process.
func (r *runner) shutdown() {
	r.stopDeadline()

	if r.pending != nil {
		r.settlePending("", ErrPoolClosed)
	}

	for _, e := range r.queue {
		e.settle("", ErrPoolClosed)
	}
	r.queue = nil

	// reject submitters that already won the select race
	for {
		select {
		case e := <-r.pool.submits:
			e.settle("", ErrPoolClosed)
		default:
			if r.proc != nil {
				r.proc.Kill()
				r.proc = nil
			}
			r.pool.state.Store(int32(Stopped))
			return
		}
	}
}
