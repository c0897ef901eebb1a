package worker

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"go.uber.org/zap"
)

type proc struct {
	pid         int
	termination chan error
	done        chan struct{}
	stdout      io.ReadCloser
	stderr      io.ReadCloser
	stdin       io.WriteCloser

	log *zap.Logger
}

func startProc(config StartConfig, log *zap.Logger) (*proc, error) {
	cmd := exec.Command(config.Cmd, config.Args...)

	if config.Env != nil {
		env := os.Environ()
		for k, v := range config.Env {
			env = append(env, fmt.Sprintf("%s=%s", k, v))
		}
		cmd.Env = env
	}

	if config.Cwd != "" {
		cmd.Dir = config.Cwd
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	err = cmd.Start()
	if err != nil {
		return nil, err
	}

	log = log.Named("proc").With(zap.Int("pid", cmd.Process.Pid))

	process := &proc{
		pid:         cmd.Process.Pid,
		termination: make(chan error, 1),
		done:        make(chan struct{}),
		stdout:      stdout,
		stderr:      stderr,
		stdin:       stdin,
		log:         log,
	}

	go func() {
		// block until the process exits
		err := cmd.Wait()

		// report the exit error to the caller
		process.termination <- err
		close(process.termination)

		close(process.done)
	}()

	return process, nil
}

// Done returns a channel that is closed when the process exits.
func (p *proc) Done() <-chan struct{} {
	return p.done
}

func (p *proc) Terminate(timeout time.Duration) error {
	// terminate should report success if the process terminated
	// by the time the caller issues the request.
	select {
	case <-p.done:
		p.log.Debug("process already terminated")
		return nil
	default:
		// continue
	}

	p.kill(syscall.SIGTERM)

	return p.waitForTermination(timeout)
}

func (p *proc) Kill(timeout time.Duration) error {
	select {
	case <-p.done:
		p.log.Debug("process already terminated")
		return nil
	default:
		// continue
	}

	p.kill(syscall.SIGKILL)

	return p.waitForTermination(timeout)
}

func (p *proc) waitForTermination(timeout time.Duration) error {
	// if timeout is < 0, don't wait for the process to exit
	if timeout < 0 {
		return nil
	}

	// if timeout is 0, wait indefinitely
	if timeout == 0 {
		<-p.done
		return nil
	}

	select {
	case <-p.done:
		return nil
	case <-time.After(timeout):
		return ErrKillTimeout
	}
}

func (p *proc) kill(signal syscall.Signal) {
	log := p.log.With(zap.Stringer("signal", signal))

	// close stdin before killing the process, to
	// avoid the process hanging on input
	if err := p.stdin.Close(); err != nil {
		log.Debug("close stdin failed", zap.Error(err))
	}

	log.Info("sending signal")

	// best effort, ignore errors
	if err := p.sendKillSignal(signal); err != nil {
		log.Error("stop failed", zap.Error(err))
	}
}

func (p *proc) sendKillSignal(signal syscall.Signal) error {
	if pgid, err := syscall.Getpgid(p.pid); err == nil {
		// Negative pid sends signal to all in process group
		return syscall.Kill(-pgid, signal)
	} else {
		return syscall.Kill(p.pid, signal)
	}
}

// StdinPipe returns a pipe that is connected to the
// process's standard input.
func (p *proc) StdinPipe() io.WriteCloser {
	return p.stdin
}

// StdoutPipe returns a pipe that is connected to the
// process's standard output.
func (p *proc) StdoutPipe() io.ReadCloser {
	return p.stdout
}

// StderrPipe returns a pipe that is connected to the
// process's standard error.
func (p *proc) StderrPipe() io.ReadCloser {
	return p.stderr
}
