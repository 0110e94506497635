package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/billm/baaaht/webbridge/internal/logger"
	"github.com/billm/baaaht/webbridge/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingCloser struct {
	mu     sync.Mutex
	calls  *[]string
	closed int
	err    error
}

func (c *recordingCloser) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	*c.calls = append(*c.calls, "close")
	return c.err
}

func TestNewShutdownManager(t *testing.T) {
	sm := NewShutdownManager(nil, 0, logger.NewNop())
	assert.Equal(t, ShutdownStateRunning, sm.State())
	assert.False(t, sm.IsShuttingDown())
	assert.False(t, sm.IsComplete())
	assert.Contains(t, sm.String(), "running")
}

func TestShutdownManagerStartStop(t *testing.T) {
	sm := NewShutdownManager(nil, time.Second, logger.NewNop())
	sm.Start()
	sm.Start()
	assert.Contains(t, sm.String(), "watching: true")
	sm.Stop()
	sm.Stop()
	assert.Contains(t, sm.String(), "watching: false")
}

func TestShutdownRunsHooksAroundClose(t *testing.T) {
	var calls []string
	target := &recordingCloser{calls: &calls}
	sm := NewShutdownManager(target, time.Second, logger.NewNop())

	sm.AddHook(AfterClose, "report", func(ctx context.Context) error {
		calls = append(calls, "report")
		return nil
	})
	sm.AddHook(BeforeClose, "stop-reloader", func(ctx context.Context) error {
		calls = append(calls, "stop-reloader")
		return nil
	})
	sm.AddHook(BeforeClose, "flush", func(ctx context.Context) error {
		calls = append(calls, "flush")
		return errors.New("boom")
	})

	require.NoError(t, sm.Shutdown(context.Background(), "test"))
	assert.Equal(t, []string{"stop-reloader", "flush", "close", "report"}, calls)
	assert.True(t, sm.IsComplete())
	assert.True(t, sm.IsShuttingDown())
	assert.Equal(t, "test", sm.ShutdownReason())
	assert.Equal(t, 1, target.closed)

	require.Error(t, sm.Err())
	assert.True(t, types.IsErrCode(sm.Err(), types.ErrCodeHandlerFailed))
	assert.Contains(t, sm.Err().Error(), "flush")

	select {
	case <-sm.Completed():
	default:
		t.Fatal("completion channel not closed")
	}
}

func TestShutdownOnlyOnce(t *testing.T) {
	var calls []string
	target := &recordingCloser{calls: &calls, err: errors.New("close failed")}
	sm := NewShutdownManager(target, time.Second, logger.NewNop())

	require.NoError(t, sm.Shutdown(context.Background(), "first"))
	err := sm.Shutdown(context.Background(), "second")
	require.Error(t, err)
	assert.True(t, types.IsErrCode(err, types.ErrCodeInvalid))
	assert.Equal(t, "first", sm.ShutdownReason())
	assert.Equal(t, 1, target.closed)
	assert.ErrorContains(t, sm.Err(), "close failed")
}

func TestShutdownAndWait(t *testing.T) {
	var calls []string
	sm := NewShutdownManager(&recordingCloser{calls: &calls}, time.Second, logger.NewNop())

	require.NoError(t, sm.ShutdownAndWait(context.Background(), "wait"))
	require.NoError(t, sm.WaitCompletion(context.Background()))
	assert.NoError(t, sm.Err())
	assert.Equal(t, []string{"close"}, calls)
}

func TestWaitCompletionCanceled(t *testing.T) {
	sm := NewShutdownManager(nil, time.Second, logger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sm.WaitCompletion(ctx)
	require.Error(t, err)
	assert.True(t, types.IsErrCode(err, types.ErrCodeCanceled))
}

func TestShutdownClosesApp(t *testing.T) {
	a := startApp(t, testConfig("memory"))
	sm := NewShutdownManager(a, time.Second, logger.NewNop())

	require.NoError(t, sm.ShutdownAndWait(context.Background(), "test"))
	select {
	case <-a.Done():
	case <-time.After(waitFor):
		t.Fatal("app not closed by shutdown")
	}
}
