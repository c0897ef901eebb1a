package worker

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"syscall"

	"go.uber.org/zap"
)

// stderrTailLines is the number of trailing stderr lines
// retained for the exit event.
const stderrTailLines = 20

// lineBufferSize is the capacity of the stdout line channel.
const lineBufferSize = 16

// ProcessWorker owns a single spawned helper process and its
// standard streams. It emits the process's stdout as a stream
// of lines and a single exit event once the process terminates.
//
// The helpers speak a newline-delimited protocol on stdout and
// write progress logs to stderr. Stderr is never interpreted; it
// is logged and its tail is attached to the exit event.
type ProcessWorker struct {
	ctx    context.Context
	config StartConfig

	processLock sync.Mutex
	process     *proc

	lines    chan string
	exitChan chan ExitEvent

	stderrTail []string
	stderrLock sync.Mutex
	stderrWg   sync.WaitGroup

	log *zap.Logger
}

// NewProcessWorker creates a new process worker. The worker is not
// started until Start is called. The given context bounds the
// lifetime of the process: when it is cancelled, the process is
// killed.
func NewProcessWorker(
	ctx context.Context,
	config StartConfig,
	log *zap.Logger,
) *ProcessWorker {
	return &ProcessWorker{
		ctx:      ctx,
		config:   config,
		lines:    make(chan string, lineBufferSize),
		exitChan: make(chan ExitEvent, 1),
		log:      log.Named("worker"),
	}
}

// Start spawns the worker process. If spawning fails, no process is
// retained and the error is returned to the caller.
func (w *ProcessWorker) Start(ctx context.Context) error {
	w.log.With(
		zap.String("command", w.config.Cmd),
		zap.Strings("args", w.config.Args),
		zap.String("cwd", w.config.Cwd),
		zap.Any("env", w.config.Env),
	).Debug("starting worker process")

	// synchronize access to the process
	w.processLock.Lock()
	defer w.processLock.Unlock()

	// return if the worker is already started
	if w.process != nil {
		return ErrWorkerAlreadyStarted
	}

	// exit early if the context is already cancelled
	if ctx.Err() != nil {
		return fmt.Errorf("failed to start process: %w", ctx.Err())
	}

	process, err := startProc(w.config, w.log)
	if err != nil {
		return fmt.Errorf("failed to start process: %w", err)
	}

	w.process = process

	// read stderr in a separate goroutine. the helpers write
	// progress logs there ("Piper TTS Ready", ...), which must
	// never be mistaken for protocol output.
	w.stderrWg.Add(1)
	go func() {
		defer w.stderrWg.Done()

		scanner := bufio.NewScanner(process.StderrPipe())
		for scanner.Scan() {
			line := scanner.Text()
			w.log.Debug("worker stderr", zap.String("line", line))
			w.appendStderr(line)
		}
	}()

	// read stdout line by line, holding partial lines until the
	// terminating newline arrives. the channel is closed on EOF.
	go func() {
		defer close(w.lines)

		scanner := bufio.NewScanner(process.StdoutPipe())
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			w.lines <- scanner.Text()
		}

		if err := scanner.Err(); err != nil {
			w.log.Debug("stdout closed", zap.Error(err))
		}
	}()

	// wait for the process to terminate and publish the exit
	// event. the event fires at most once per handle.
	go func() {
		err := <-process.termination

		// wait for stderr to be fully read
		w.stderrWg.Wait()

		w.exitChan <- getExitEvent(err, w.takeStderrTail())
		close(w.exitChan)
	}()

	// kill the process if the worker context is cancelled
	go func() {
		select {
		case <-process.Done():
			// the process has terminated, do nothing
		case <-w.ctx.Done():
			process.Kill(-1)
		}
	}()

	return nil
}

// Lines returns the channel of stdout lines. The channel is closed
// when the process's stdout reaches EOF.
func (w *ProcessWorker) Lines() <-chan string {
	return w.lines
}

// Exit returns the channel on which the single exit event is
// published once the process terminates.
func (w *ProcessWorker) Exit() <-chan ExitEvent {
	return w.exitChan
}

// WriteLine writes a single protocol line to the process's stdin.
// The data is expected to already carry its terminating newline.
func (w *ProcessWorker) WriteLine(data []byte) error {
	process := w.acquireProcess()
	if process == nil {
		return ErrWorkerNotStarted
	}

	if _, err := process.StdinPipe().Write(data); err != nil {
		return fmt.Errorf("failed to write to worker: %w", err)
	}

	return nil
}

// Terminate sends a SIGTERM signal to the worker process to request
// it to stop. The method returns without waiting for the process.
func (w *ProcessWorker) Terminate() error {
	if process := w.acquireProcess(); process != nil {
		return process.Terminate(-1)
	}

	return ErrWorkerNotStarted
}

// Kill sends a SIGKILL signal to the worker process to force-terminate
// it. The method returns without waiting for the process.
func (w *ProcessWorker) Kill() error {
	if process := w.acquireProcess(); process != nil {
		return process.Kill(-1)
	}

	return ErrWorkerNotStarted
}

func (w *ProcessWorker) Pid() int {
	if process := w.acquireProcess(); process != nil {
		return process.pid
	}

	return 0
}

// acquireProcess returns the worker process. The method is thread-safe.
func (w *ProcessWorker) acquireProcess() *proc {
	w.processLock.Lock()
	defer w.processLock.Unlock()

	return w.process
}

func (w *ProcessWorker) appendStderr(line string) {
	w.stderrLock.Lock()
	defer w.stderrLock.Unlock()

	w.stderrTail = append(w.stderrTail, line)
	if len(w.stderrTail) > stderrTailLines {
		w.stderrTail = w.stderrTail[len(w.stderrTail)-stderrTailLines:]
	}
}

func (w *ProcessWorker) takeStderrTail() string {
	w.stderrLock.Lock()
	defer w.stderrLock.Unlock()

	return strings.Join(w.stderrTail, "\n")
}

// MARK: - Helpers

func getExitEvent(err error, stderr string) ExitEvent {
	var cell int
	var exitStatus *int
	var signo *int

	if err == nil {
		// the process exited successfully, set the exit code to 0
		exitStatus = &cell
	} else if exitError, ok := err.(*exec.ExitError); ok {
		// the process exited with an error
		if status, ok := exitError.Sys().(syscall.WaitStatus); ok {
			if code := status.ExitStatus(); code >= 0 {
				// the process exited with an exit code
				cell = code
				exitStatus = &cell
			} else {
				// the process was terminated by a signal
				cell = int(status.Signal())
				signo = &cell
			}
		}
	}

	if signo == nil && exitStatus == nil {
		// could not determine the exit status or signal,
		// set exit status to 1
		cell = 1
		exitStatus = &cell
	}

	return ExitEvent{
		Code:   exitStatus,
		Signal: signo,
		Stderr: stderr,
	}
}

// String renders the exit event for error messages.
func (e ExitEvent) String() string {
	if e.Signal != nil {
		return fmt.Sprintf("signal %d", *e.Signal)
	}

	if e.Code != nil {
		return fmt.Sprintf("exit code %d", *e.Code)
	}

	return "unknown"
}
