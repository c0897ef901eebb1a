package pool_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/faceplate/helperd/internal/supervise/pool"
	"github.com/faceplate/helperd/internal/supervise/protocol"
	"github.com/faceplate/helperd/internal/supervise/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// echoScript replies to every request line with a success reply
// carrying the line back.
const echoScript = `while read line; do echo "{\"success\":true,\"text\":\"$line\"}"; done`

// countingScript prefixes every reply with a per-process sequence
// number, which makes dispatch order observable.
const countingScript = `i=0
while read line; do
  i=$((i+1))
  sleep 0.1
  echo "{\"success\":true,\"text\":\"$i:$line\"}"
done`

// mortalScript exits with an error when asked to die, and echoes
// otherwise.
const mortalScript = `while read line; do
  if [ "$line" = "die" ]; then exit 1; fi
  echo "{\"success\":true,\"text\":\"$line\"}"
done`

// noisyScript emits log noise on stdout before every reply.
const noisyScript = `while read line; do
  echo "loading model..."
  echo "[INFO] this is not json"
  echo "{\"not\":\"a reply\"}"
  echo "{\"success\":true,\"text\":\"$line\"}"
done`

// silentScript accepts requests but never replies.
const silentScript = `while read line; do :; done`

func shSpec(id, script string) pool.Spec {
	return pool.Spec{
		ID: id,
		Start: worker.StartConfig{
			Cmd:  "sh",
			Args: []string{"-c", script},
		},
		Encode: func(payload string) ([]byte, error) {
			return append([]byte(payload), '\n'), nil
		},
		Decode: protocol.DecodeReply,
	}
}

func newPool(t *testing.T, spec pool.Spec) *pool.Pool {
	t.Helper()

	p := pool.New(pool.Params{
		Context: context.Background(),
		Spec:    spec,
		Log:     zap.NewNop(),
	})

	t.Cleanup(p.Close)

	return p
}

func TestPool_Submit_ReturnsReply(t *testing.T) {
	p := newPool(t, shSpec("echo", echoScript))

	res, err := p.Submit(context.Background(), "hello")
	assert.NoError(t, err)
	assert.Equal(t, "hello", res)
}

func TestPool_SpawnsLazily(t *testing.T) {
	p := newPool(t, shSpec("echo", echoScript))

	// no process before the first submit
	assert.Equal(t, pool.Stopped, p.State())

	_, err := p.Submit(context.Background(), "hello")
	require.NoError(t, err)

	assert.Equal(t, pool.Running, p.State())
}

func TestPool_Submit_ServesInOrder(t *testing.T) {
	p := newPool(t, shSpec("counting", countingScript))

	var wg sync.WaitGroup
	results := make([]string, 3)

	// stagger the submits so the arrival order is deterministic;
	// the first request is still in flight when the rest arrive
	for i, payload := range []string{"a", "b", "c"} {
		wg.Add(1)
		go func(i int, payload string) {
			defer wg.Done()
			res, err := p.Submit(context.Background(), payload)
			assert.NoError(t, err)
			results[i] = res
		}(i, payload)

		time.Sleep(20 * time.Millisecond)
	}

	wg.Wait()

	// each caller got its own reply, in enqueue order
	assert.Equal(t, []string{"1:a", "2:b", "3:c"}, results)
}

func TestPool_CrashRejectsOnlyInFlight(t *testing.T) {
	p := newPool(t, shSpec("mortal", mortalScript))

	var wg sync.WaitGroup
	var dieErr error
	results := make([]string, 2)
	errs := make([]error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, dieErr = p.Submit(context.Background(), "die")
	}()

	// let the poison request reach the worker first, then queue two
	// requests behind it; the second arrival triggers the respawn
	// that drains the queue
	for i, payload := range []string{"ok", "more"} {
		time.Sleep(50 * time.Millisecond)

		wg.Add(1)
		go func(i int, payload string) {
			defer wg.Done()
			results[i], errs[i] = p.Submit(context.Background(), payload)
		}(i, payload)
	}

	wg.Wait()

	// only the in-flight request observed the crash
	assert.ErrorIs(t, dieErr, pool.ErrProcessExited)

	assert.NoError(t, errs[0])
	assert.Equal(t, "ok", results[0])
	assert.NoError(t, errs[1])
	assert.Equal(t, "more", results[1])
}

func TestPool_RespawnsAfterCrash(t *testing.T) {
	p := newPool(t, shSpec("mortal", mortalScript))

	_, err := p.Submit(context.Background(), "die")
	require.ErrorIs(t, err, pool.ErrProcessExited)

	require.Eventually(t, func() bool {
		return p.State() == pool.Crashed
	}, 5*time.Second, 10*time.Millisecond)

	// the next submit respawns the process
	res, err := p.Submit(context.Background(), "hello")
	assert.NoError(t, err)
	assert.Equal(t, "hello", res)
	assert.Equal(t, pool.Running, p.State())
}

func TestPool_IgnoresNonProtocolOutput(t *testing.T) {
	p := newPool(t, shSpec("noisy", noisyScript))

	res, err := p.Submit(context.Background(), "hello")
	assert.NoError(t, err)
	assert.Equal(t, "hello", res)
}

func TestPool_FailureReply_ReturnsError(t *testing.T) {
	script := `while read line; do echo "{\"success\":false,\"error\":\"boom\"}"; done`
	p := newPool(t, shSpec("failing", script))

	_, err := p.Submit(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, "boom", err.Error())
}

func TestPool_SpawnFailure_RejectsQueued(t *testing.T) {
	spec := shSpec("missing", "")
	spec.Start.Cmd = "/nonexistent/helper"
	p := newPool(t, spec)

	var wg sync.WaitGroup
	errs := make([]error, 3)

	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = p.Submit(context.Background(), "hello")
		}(i)
	}

	wg.Wait()

	for _, err := range errs {
		assert.ErrorIs(t, err, pool.ErrSpawnFailed)
	}
}

func TestPool_Deadline_RejectsAndKills(t *testing.T) {
	spec := shSpec("silent", silentScript)
	spec.SendTimeout = 200 * time.Millisecond
	p := newPool(t, spec)

	_, err := p.Submit(context.Background(), "hello")
	assert.ErrorIs(t, err, pool.ErrRequestTimeout)

	// the worker was killed to keep late replies from matching a
	// later request
	require.Eventually(t, func() bool {
		return p.State() == pool.Crashed
	}, 5*time.Second, 10*time.Millisecond)
}

func TestPool_Deadline_AdvancesQueue(t *testing.T) {
	spec := shSpec("silent", silentScript)
	spec.SendTimeout = 200 * time.Millisecond
	p := newPool(t, spec)

	var wg sync.WaitGroup
	errs := make([]error, 2)

	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = p.Submit(context.Background(), "hello")
		}(i)
		time.Sleep(50 * time.Millisecond)
	}

	wg.Wait()

	// the queued request is dispatched after the first one expires,
	// under its own deadline, without needing a further submit
	for _, err := range errs {
		assert.ErrorIs(t, err, pool.ErrRequestTimeout)
	}
}

func TestPool_Deadline_NotAppliedWhenZero(t *testing.T) {
	script := `while read line; do sleep 0.5; echo "{\"success\":true,\"text\":\"$line\"}"; done`
	p := newPool(t, shSpec("slow", script))

	res, err := p.Submit(context.Background(), "hello")
	assert.NoError(t, err)
	assert.Equal(t, "hello", res)
}

func TestPool_Submit_ContextCancelled(t *testing.T) {
	p := newPool(t, shSpec("silent", silentScript))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := p.Submit(ctx, "hello")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPool_Close_RejectsPendingAndQueued(t *testing.T) {
	p := pool.New(pool.Params{
		Context: context.Background(),
		Spec:    shSpec("silent", silentScript),
		Log:     zap.NewNop(),
	})

	var wg sync.WaitGroup
	errs := make([]error, 2)

	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = p.Submit(context.Background(), "hello")
		}(i)
	}

	// let both submits land before closing
	time.Sleep(100 * time.Millisecond)

	p.Close()
	wg.Wait()

	for _, err := range errs {
		assert.ErrorIs(t, err, pool.ErrPoolClosed)
	}

	assert.Equal(t, pool.Stopped, p.State())
}

func TestPool_Submit_AfterClose(t *testing.T) {
	p := pool.New(pool.Params{
		Context: context.Background(),
		Spec:    shSpec("echo", echoScript),
		Log:     zap.NewNop(),
	})

	p.Close()

	_, err := p.Submit(context.Background(), "hello")
	assert.ErrorIs(t, err, pool.ErrPoolClosed)
}
