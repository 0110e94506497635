// Package script runs a WebAssembly guest as the embedded script runtime
// and exposes the ipc channel to it.
//
// The guest imports two functions from the "webview" host module:
//
//	op_ipc_send(ptr, len i32)
//	op_ipc_recv(ptr, cap i32) i32
//
// op_ipc_send posts len bytes at ptr to the host. op_ipc_recv blocks for
// the next host message, copies up to cap bytes of it to ptr and returns
// its full length. When the length exceeds cap the message stays pending
// and the next call returns it again, so the guest can retry with a larger
// buffer. It returns RecvClosed once the host side is gone and
// RecvBadBuffer when ptr/cap lie outside guest memory.
//
// Guests are WASI commands exporting _start, or reactors exporting run.
package script

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/billm/baaaht/webbridge/internal/config"
	"github.com/billm/baaaht/webbridge/internal/logger"
	"github.com/billm/baaaht/webbridge/pkg/listeners"
	"github.com/billm/baaaht/webbridge/pkg/types"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
)

const (
	// HostModule is the import module name guests link against
	HostModule = "webview"

	// RecvClosed is returned by op_ipc_recv when no more messages will arrive
	RecvClosed int32 = -1
	// RecvBadBuffer is returned by op_ipc_recv for an out-of-range buffer
	RecvBadBuffer int32 = -2

	defaultInboxSize = 64
)

// Link is the script side of the ipc channel. *bridge.Bridge satisfies it.
type Link interface {
	Send(payload string)
	OnMessage(fn func(types.Message)) listeners.Unsubscribe
}

// Options configures a Host
type Options struct {
	MemoryLimitPages uint32
	InboxSize        int
	Args             []string
	Stdout           io.Writer
	Stderr           io.Writer
}

// OptionsFromConfig builds Options from the script configuration
func OptionsFromConfig(cfg config.ScriptConfig) Options {
	return Options{MemoryLimitPages: cfg.MemoryLimitPages}
}

// Host runs guests against a wazero runtime
type Host struct {
	runtime     wazero.Runtime
	link        Link
	unsubscribe listeners.Unsubscribe
	opts        Options
	logger      *logger.Logger

	inbox    chan string
	stopped  chan struct{}
	stopOnce sync.Once

	recvMu     sync.Mutex
	pending    string
	hasPending bool

	sent     atomic.Int64
	received atomic.Int64
}

// Stats represents script host statistics
type Stats struct {
	MessagesSent     int64 `json:"messages_sent"`
	MessagesReceived int64 `json:"messages_received"`
	Queued           int   `json:"queued"`
}

// New creates the wazero runtime, instantiates WASI and the webview host
// module, and starts queueing messages arriving on link
func New(ctx context.Context, link Link, opts Options, log *logger.Logger) (*Host, error) {
	if link == nil {
		return nil, types.NewError(types.ErrCodeInvalidArgument, "link cannot be nil")
	}
	if log == nil {
		log = logger.Global()
	}
	if opts.MemoryLimitPages == 0 {
		opts.MemoryLimitPages = config.DefaultMemoryLimitPages
	}
	if opts.InboxSize <= 0 {
		opts.InboxSize = defaultInboxSize
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	rtCfg := wazero.NewRuntimeConfig().
		WithMemoryLimitPages(opts.MemoryLimitPages).
		WithCloseOnContextDone(true)
	rt := wazero.NewRuntimeWithConfig(ctx, rtCfg)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		rt.Close(ctx)
		return nil, types.WrapError(types.ErrCodeInternal, "failed to instantiate WASI", err)
	}

	h := &Host{
		runtime: rt,
		link:    link,
		opts:    opts,
		logger:  log.With("component", "script"),
		inbox:   make(chan string, opts.InboxSize),
		stopped: make(chan struct{}),
	}

	_, err := rt.NewHostModuleBuilder(HostModule).
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, ptr, length uint32) {
			h.ipcSend(m.Memory(), ptr, length)
		}).
		Export("op_ipc_send").
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, ptr, capacity uint32) int32 {
			return h.ipcRecv(ctx, m.Memory(), ptr, capacity)
		}).
		Export("op_ipc_recv").
		Instantiate(ctx)
	if err != nil {
		rt.Close(ctx)
		return nil, types.WrapError(types.ErrCodeInternal, "failed to instantiate host module", err)
	}

	h.unsubscribe = link.OnMessage(h.enqueue)
	return h, nil
}

// Run instantiates and runs a guest. A WASI exit with status 0 is not an
// error.
func (h *Host) Run(ctx context.Context, wasm []byte) error {
	compiled, err := h.runtime.CompileModule(ctx, wasm)
	if err != nil {
		return types.WrapError(types.ErrCodeInvalidArgument, "failed to compile guest", err)
	}
	defer compiled.Close(ctx)

	exports := compiled.ExportedFunctions()
	_, hasStart := exports["_start"]
	_, hasRun := exports["run"]
	if !hasStart && !hasRun {
		return types.NewError(types.ErrCodeInvalidArgument, "guest exports neither _start nor run")
	}

	modCfg := wazero.NewModuleConfig().
		WithName("").
		WithArgs(append([]string{"script"}, h.opts.Args...)...).
		WithStdout(h.opts.Stdout).
		WithStderr(h.opts.Stderr).
		WithSysWalltime().
		WithSysNanotime()
	if hasStart {
		modCfg = modCfg.WithStartFunctions("_start")
	} else {
		modCfg = modCfg.WithStartFunctions()
	}

	h.logger.Info("Starting guest", "entry", entryName(hasStart))

	mod, err := h.runtime.InstantiateModule(ctx, compiled, modCfg)
	if err != nil {
		return exitResult(err)
	}
	defer mod.Close(ctx)

	if !hasStart {
		if _, err := mod.ExportedFunction("run").Call(ctx); err != nil {
			return exitResult(err)
		}
	}

	h.logger.Info("Guest finished", "sent", h.sent.Load(), "received", h.received.Load())
	return nil
}

// RunFile reads a guest from path and runs it
func (h *Host) RunFile(ctx context.Context, path string) error {
	wasm, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return types.WrapError(types.ErrCodeNotFound, "guest module not found: "+path, err)
		}
		return types.WrapError(types.ErrCodeInternal, "failed to read guest module", err)
	}
	return h.Run(ctx, wasm)
}

// Stop ends the message stream. Blocked and later op_ipc_recv calls return
// RecvClosed once the queued messages are consumed.
func (h *Host) Stop() {
	h.stopOnce.Do(func() { close(h.stopped) })
}

// Close stops the message stream and releases the runtime
func (h *Host) Close(ctx context.Context) error {
	h.Stop()
	if h.unsubscribe != nil {
		h.unsubscribe()
	}
	return h.runtime.Close(ctx)
}

// Stats returns script host statistics
func (h *Host) Stats() Stats {
	return Stats{
		MessagesSent:     h.sent.Load(),
		MessagesReceived: h.received.Load(),
		Queued:           len(h.inbox),
	}
}

// enqueue runs on the link's relay goroutine. A full inbox holds the relay
// back until the guest catches up or the host is stopped.
func (h *Host) enqueue(msg types.Message) {
	select {
	case h.inbox <- msg.Payload:
	case <-h.stopped:
		h.logger.Debug("Dropping message after stop", "message_id", msg.ID)
	}
}

func (h *Host) ipcSend(mem api.Memory, ptr, length uint32) {
	data, ok := mem.Read(ptr, length)
	if !ok {
		h.logger.Warn("op_ipc_send buffer out of range", "ptr", ptr, "len", length)
		return
	}
	h.link.Send(string(data))
	h.sent.Add(1)
}

func (h *Host) ipcRecv(ctx context.Context, mem api.Memory, ptr, capacity uint32) int32 {
	h.recvMu.Lock()
	defer h.recvMu.Unlock()

	payload := h.pending
	if !h.hasPending {
		var ok bool
		if payload, ok = h.next(ctx); !ok {
			return RecvClosed
		}
	}

	data := []byte(payload)
	n := min(uint32(len(data)), capacity)
	if !mem.Write(ptr, data[:n]) {
		h.logger.Warn("op_ipc_recv buffer out of range", "ptr", ptr, "cap", capacity)
		h.pending, h.hasPending = payload, true
		return RecvBadBuffer
	}

	if uint32(len(data)) > capacity {
		h.pending, h.hasPending = payload, true
	} else {
		h.pending, h.hasPending = "", false
		h.received.Add(1)
	}
	return int32(len(data))
}

// next waits for a message. Queued messages are still returned after Stop.
func (h *Host) next(ctx context.Context) (string, bool) {
	select {
	case p := <-h.inbox:
		return p, true
	default:
	}
	select {
	case p := <-h.inbox:
		return p, true
	case <-h.stopped:
		return "", false
	case <-ctx.Done():
		return "", false
	}
}

func exitResult(err error) error {
	var exitErr *sys.ExitError
	if errors.As(err, &exitErr) {
		if exitErr.ExitCode() == 0 {
			return nil
		}
		return types.WrapError(types.ErrCodeHandlerFailed, "guest exited with non-zero status", err)
	}
	return types.WrapError(types.ErrCodeHandlerFailed, "guest trapped", err)
}

func entryName(hasStart bool) string {
	if hasStart {
		return "_start"
	}
	return "run"
}
