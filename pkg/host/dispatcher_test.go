package host

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/billm/baaaht/webbridge/internal/config"
	"github.com/billm/baaaht/webbridge/internal/logger"
	"github.com/billm/baaaht/webbridge/pkg/protocol"
	"github.com/billm/baaaht/webbridge/pkg/transport"
	"github.com/billm/baaaht/webbridge/pkg/types"
	"github.com/billm/baaaht/webbridge/pkg/window"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

type recordingSink struct {
	mu   sync.Mutex
	sent []string
}

func (r *recordingSink) Send(payload string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, payload)
}

func (r *recordingSink) payloads() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sent...)
}

func startDispatcher(t *testing.T, sink ScriptSink) (*Dispatcher, *VirtualWindow) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Relay.RetryDelay = time.Millisecond

	d, err := NewDispatcher(cfg, NewVirtualFactory(cfg, logger.NewNop()), sink, logger.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		_ = d.Close()
		cancel()
	})

	w, err := d.Start(ctx)
	require.NoError(t, err)
	vw, ok := w.(*VirtualWindow)
	require.True(t, ok)
	return d, vw
}

func TestNewDispatcherRequiresFactory(t *testing.T) {
	_, err := NewDispatcher(config.DefaultConfig(), nil, nil, logger.NewNop())
	require.Error(t, err)
	assert.True(t, types.IsErrCode(err, types.ErrCodeInvalidArgument))
}

func TestStartOpensDefaultWindow(t *testing.T) {
	d, w := startDispatcher(t, nil)

	state := w.State()
	assert.Equal(t, "./index.html", state.URL)
	assert.Equal(t, "Webview", state.Title)
	assert.Equal(t, 1680, state.Width)
	assert.Equal(t, 840, state.Height)
	assert.Len(t, d.Windows(), 1)

	_, err := d.Start(context.Background())
	require.Error(t, err)
}

func TestOpenBeforeStart(t *testing.T) {
	cfg := config.DefaultConfig()
	d, err := NewDispatcher(cfg, NewVirtualFactory(cfg, logger.NewNop()), nil, logger.NewNop())
	require.NoError(t, err)

	_, err = d.Open(WindowOptions{})
	require.Error(t, err)
	assert.True(t, types.IsErrCode(err, types.ErrCodeUnavailable))
}

func TestPageCommandsChangeWindowState(t *testing.T) {
	_, w := startDispatcher(t, nil)
	page := w.Page()

	page.Fullscreen()
	require.Eventually(t, w.IsFullscreen, waitFor, time.Millisecond)
	page.Fullscreen()
	require.Eventually(t, func() bool { return !w.IsFullscreen() }, waitFor, time.Millisecond)

	page.Maximize()
	require.Eventually(t, w.IsMaximized, waitFor, time.Millisecond)
	page.Maximize()
	require.Eventually(t, func() bool { return !w.IsMaximized() }, waitFor, time.Millisecond)

	page.Minimize()
	require.Eventually(t, func() bool { return w.State().Minimized }, waitFor, time.Millisecond)
}

func TestFullscreenTogglesAgainstWindowState(t *testing.T) {
	d, w := startDispatcher(t, nil)

	// The window went fullscreen without the page asking; the page flag
	// does not follow.
	w.SetFullscreen(true)
	require.NoError(t, d.Handle(w, "fullscreen"))
	assert.False(t, w.IsFullscreen())
	assert.False(t, w.Page().IsFullscreen())
}

func TestDragRegionGestureDragsWindow(t *testing.T) {
	_, w := startDispatcher(t, nil)
	page := w.Page()

	page.HandlePointerDown(pointerOnDragRegion(1))
	require.Eventually(t, func() bool { return w.State().Drags == 1 }, waitFor, time.Millisecond)

	page.HandlePointerDown(pointerOnDragRegion(2))
	require.Eventually(t, w.IsMaximized, waitFor, time.Millisecond)
}

func TestCreateWindowFromPage(t *testing.T) {
	d, w := startDispatcher(t, nil)

	w.Page().Create("https://x", "T")
	require.Eventually(t, func() bool { return len(d.Windows()) == 2 }, waitFor, time.Millisecond)

	second := d.Windows()[1]
	assert.Equal(t, "https://x", second.URL())
	assert.Equal(t, "T", second.Title())

	got, ok := d.Window(second.ID())
	require.True(t, ok)
	assert.Equal(t, second, got)
}

func TestCreateWindowDefaultsToOrigin(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		wantURL   string
		wantTitle string
	}{
		{"no arguments", "window:", "https://origin", "Origin"},
		{"empty arguments", "window:,", "https://origin", "Origin"},
		{"url only", "window:https://a", "https://a", "Origin"},
		{"url and title", "window:https://a,A", "https://a", "A"},
		{"extra fields ignored", "window:https://a,A,extra", "https://a", "A"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _ := startDispatcher(t, nil)
			origin, err := d.Open(WindowOptions{URL: "https://origin", Title: "Origin"})
			require.NoError(t, err)

			require.NoError(t, d.Handle(origin, tt.payload))
			windows := d.Windows()
			require.Len(t, windows, 3)
			assert.Equal(t, tt.wantURL, windows[2].URL())
			assert.Equal(t, tt.wantTitle, windows[2].Title())
		})
	}
}

func TestPageMessageForwardedToScript(t *testing.T) {
	sink := &recordingSink{}
	d, w := startDispatcher(t, sink)

	w.Page().SendToScript("ping")
	require.Eventually(t, func() bool { return len(sink.payloads()) == 1 }, waitFor, time.Millisecond)
	assert.Equal(t, []string{"ping"}, sink.payloads())
	assert.Equal(t, int64(1), d.Stats().ScriptForwarded)
}

func TestPageMessageWithoutScriptIsDropped(t *testing.T) {
	d, w := startDispatcher(t, nil)
	require.NoError(t, d.Handle(w, "deno:lost"))
	assert.Equal(t, int64(0), d.Stats().ScriptForwarded)
}

func TestScriptMessageBroadcastToEveryPage(t *testing.T) {
	d, first := startDispatcher(t, nil)
	w, err := d.Open(WindowOptions{})
	require.NoError(t, err)
	second := w.(*VirtualWindow)

	var mu sync.Mutex
	var got []string
	first.Page().OnMessage(func(m string) { mu.Lock(); got = append(got, "first:"+m); mu.Unlock() })
	second.Page().OnMessage(func(m string) { mu.Lock(); got = append(got, "second:"+m); mu.Unlock() })

	d.HandleScriptMessage(types.NewMessage("tick"))

	mu.Lock()
	assert.Equal(t, []string{"first:tick", "second:tick"}, got)
	mu.Unlock()
	assert.Equal(t, int64(1), d.Stats().Broadcasts)
}

func TestClosingLastWindowSignalsDone(t *testing.T) {
	d, first := startDispatcher(t, nil)
	second, err := d.Open(WindowOptions{})
	require.NoError(t, err)

	first.Page().Close()
	require.Eventually(t, func() bool { return len(d.Windows()) == 1 }, waitFor, time.Millisecond)
	assert.True(t, first.State().Closed)

	select {
	case <-d.Done():
		t.Fatal("Done closed while a window is open")
	default:
	}

	second.(*VirtualWindow).Page().Close()
	select {
	case <-d.Done():
	case <-time.After(waitFor):
		t.Fatal("Done not closed after last window closed")
	}

	stats := d.Stats()
	assert.Equal(t, 0, stats.OpenWindows)
	assert.Equal(t, int64(2), stats.WindowsOpened)
	assert.Equal(t, int64(2), stats.WindowsClosed)
}

func TestCloseUnknownWindow(t *testing.T) {
	d, _ := startDispatcher(t, nil)
	err := d.CloseWindow(types.NewID("missing"))
	require.Error(t, err)
	assert.True(t, types.IsErrCode(err, types.ErrCodeNotFound))
}

func TestUnknownCommandIsRejected(t *testing.T) {
	d, w := startDispatcher(t, nil)

	err := d.Handle(w, "explode")
	assert.ErrorIs(t, err, protocol.ErrUnknownCommand)
	assert.Equal(t, int64(1), d.Stats().UnknownCommands)
}

func TestDragOnClosedWindowFails(t *testing.T) {
	d, w := startDispatcher(t, nil)
	require.NoError(t, w.Close())

	err := d.Handle(w, "drag_window")
	require.Error(t, err)
	assert.True(t, types.IsErrCode(err, types.ErrCodeUnavailable))
}

func TestSetWindowDefaults(t *testing.T) {
	d, _ := startDispatcher(t, nil)
	cfg := config.DefaultWindowConfig()
	cfg.DefaultURL = "https://reloaded"
	cfg.DefaultTitle = "Reloaded"
	d.SetWindowDefaults(cfg)

	w, err := d.Open(WindowOptions{})
	require.NoError(t, err)
	assert.Equal(t, "https://reloaded", w.URL())
	assert.Equal(t, "Reloaded", w.Title())
}

func TestFactoryErrorIsWrapped(t *testing.T) {
	failing := func(context.Context, WindowOptions) (Window, transport.Transport, error) {
		return nil, nil, errors.New("no display")
	}
	d, err := NewDispatcher(config.DefaultConfig(), failing, nil, logger.NewNop())
	require.NoError(t, err)

	_, err = d.Start(context.Background())
	require.Error(t, err)
	assert.True(t, types.IsErrCode(err, types.ErrCodeInternal))
}

func TestCloseClosesEveryWindow(t *testing.T) {
	d, w := startDispatcher(t, nil)
	require.NoError(t, d.Close())
	require.NoError(t, d.Close())

	assert.True(t, w.State().Closed)
	assert.Empty(t, d.Windows())
	<-d.Done()

	_, err := d.Open(WindowOptions{})
	assert.True(t, types.IsErrCode(err, types.ErrCodeUnavailable))
}

func TestOpenRacingCloseLeavesNoWindow(t *testing.T) {
	cfg := config.DefaultConfig()
	virtual := NewVirtualFactory(cfg, logger.NewNop())

	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	var opened *VirtualWindow
	var calls int
	gated := func(ctx context.Context, opts WindowOptions) (Window, transport.Transport, error) {
		calls++
		w, tr, err := virtual(ctx, opts)
		if calls > 1 {
			opened = w.(*VirtualWindow)
			entered <- struct{}{}
			<-release
		}
		return w, tr, err
	}

	d, err := NewDispatcher(cfg, gated, nil, logger.NewNop())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, err = d.Start(ctx)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := d.Open(WindowOptions{URL: "https://late"})
		errCh <- err
	}()

	<-entered
	require.NoError(t, d.Close())
	close(release)

	select {
	case err := <-errCh:
		assert.True(t, types.IsErrCode(err, types.ErrCodeUnavailable))
	case <-time.After(waitFor):
		t.Fatal("Open did not return")
	}
	assert.Empty(t, d.Windows())
	assert.True(t, opened.State().Closed)
	assert.Equal(t, int64(1), d.Stats().WindowsOpened)
}

func pointerOnDragRegion(clicks int) window.PointerEvent {
	return window.PointerEvent{Buttons: 1, Detail: clicks, Target: window.NewElement("drag-region")}
}

func TestDispatcherEvents(t *testing.T) {
	sink := &recordingSink{}
	d, w := startDispatcher(t, sink)

	var mu sync.Mutex
	var kinds []EventKind
	var failed []error
	unsubscribe := d.OnEvent(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		kinds = append(kinds, e.Kind)
		if e.Err != nil {
			failed = append(failed, e.Err)
		}
	})

	require.NoError(t, d.Handle(w, "deno:hi"))
	require.Error(t, d.Handle(w, "bogus"))
	d.Broadcast("tick")

	mu.Lock()
	assert.Equal(t, []EventKind{EventToScript, EventCommand, EventCommand, EventBroadcast}, kinds)
	require.Len(t, failed, 1)
	assert.ErrorIs(t, failed[0], protocol.ErrUnknownCommand)
	mu.Unlock()

	assert.True(t, unsubscribe())
	d.Broadcast("again")
	mu.Lock()
	assert.Len(t, kinds, 4)
	mu.Unlock()
}
