package script

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/billm/baaaht/webbridge/internal/logger"
	"github.com/billm/baaaht/webbridge/pkg/listeners"
	"github.com/billm/baaaht/webbridge/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// (module (memory (export "memory") 1))
var memoryOnlyWasm = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x05, 0x03, 0x01, 0x00, 0x01,
	0x07, 0x0a, 0x01, 0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00,
}

// (module
//
//	(import "webview" "op_ipc_send" (func $send (param i32 i32)))
//	(memory (export "memory") 1)
//	(data (i32.const 0) "hello")
//	(func (export "run") (call $send (i32.const 0) (i32.const 5))))
var sendHelloWasm = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x09, 0x02, 0x60, 0x02, 0x7f, 0x7f, 0x00, 0x60, 0x00, 0x00,
	0x02, 0x17, 0x01,
	0x07, 'w', 'e', 'b', 'v', 'i', 'e', 'w',
	0x0b, 'o', 'p', '_', 'i', 'p', 'c', '_', 's', 'e', 'n', 'd', 0x00, 0x00,
	0x03, 0x02, 0x01, 0x01,
	0x05, 0x03, 0x01, 0x00, 0x01,
	0x07, 0x10, 0x02,
	0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00,
	0x03, 'r', 'u', 'n', 0x00, 0x01,
	0x0a, 0x0a, 0x01, 0x08, 0x00, 0x41, 0x00, 0x41, 0x05, 0x10, 0x00, 0x0b,
	0x0b, 0x0b, 0x01, 0x00, 0x41, 0x00, 0x0b, 0x05, 'h', 'e', 'l', 'l', 'o',
}

// (module
//
//	(import "webview" "op_ipc_send" (func $send (param i32 i32)))
//	(import "webview" "op_ipc_recv" (func $recv (param i32 i32) (result i32)))
//	(memory (export "memory") 1)
//	(func (export "run") (call $send (i32.const 0) (call $recv (i32.const 0) (i32.const 32)))))
var echoOnceWasm = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x0f, 0x03,
	0x60, 0x02, 0x7f, 0x7f, 0x00,
	0x60, 0x00, 0x00,
	0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f,
	0x02, 0x2d, 0x02,
	0x07, 'w', 'e', 'b', 'v', 'i', 'e', 'w',
	0x0b, 'o', 'p', '_', 'i', 'p', 'c', '_', 's', 'e', 'n', 'd', 0x00, 0x00,
	0x07, 'w', 'e', 'b', 'v', 'i', 'e', 'w',
	0x0b, 'o', 'p', '_', 'i', 'p', 'c', '_', 'r', 'e', 'c', 'v', 0x00, 0x02,
	0x03, 0x02, 0x01, 0x01,
	0x05, 0x03, 0x01, 0x00, 0x01,
	0x07, 0x10, 0x02,
	0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00,
	0x03, 'r', 'u', 'n', 0x00, 0x02,
	0x0a, 0x0e, 0x01, 0x0c, 0x00, 0x41, 0x00, 0x41, 0x00, 0x41, 0x20, 0x10, 0x01, 0x10, 0x00, 0x0b,
}

type fakeLink struct {
	reg *listeners.Registry[types.Message]

	mu   sync.Mutex
	sent []string
}

func newFakeLink() *fakeLink {
	return &fakeLink{reg: listeners.New[types.Message]()}
}

func (f *fakeLink) Send(payload string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, payload)
}

func (f *fakeLink) OnMessage(fn func(types.Message)) listeners.Unsubscribe {
	return f.reg.Register(fn)
}

func (f *fakeLink) deliver(payload string) {
	f.reg.Emit(types.NewMessage(payload))
}

func (f *fakeLink) payloads() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func newTestHost(t *testing.T) (*Host, *fakeLink) {
	t.Helper()
	ctx := context.Background()
	link := newFakeLink()
	h, err := New(ctx, link, Options{}, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close(ctx) })
	return h, link
}

// guestMemory returns one page of linear memory from a module that only
// exports memory
func guestMemory(t *testing.T) api.Memory {
	t.Helper()
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	t.Cleanup(func() { _ = rt.Close(ctx) })

	mod, err := rt.Instantiate(ctx, memoryOnlyWasm)
	require.NoError(t, err)
	mem := mod.Memory()
	require.NotNil(t, mem)
	return mem
}

func TestNewRequiresLink(t *testing.T) {
	_, err := New(context.Background(), nil, Options{}, logger.NewNop())
	require.Error(t, err)
	assert.True(t, types.IsErrCode(err, types.ErrCodeInvalidArgument))
}

func TestIPCSendReadsGuestMemory(t *testing.T) {
	h, link := newTestHost(t)
	mem := guestMemory(t)
	require.True(t, mem.Write(100, []byte("from guest")))

	h.ipcSend(mem, 100, 10)
	h.ipcSend(mem, mem.Size()-2, 10)

	assert.Equal(t, []string{"from guest"}, link.payloads())
	assert.Equal(t, int64(1), h.Stats().MessagesSent)
}

func TestIPCRecvCopiesMessage(t *testing.T) {
	h, link := newTestHost(t)
	mem := guestMemory(t)

	link.deliver("hello")
	n := h.ipcRecv(context.Background(), mem, 8, 64)
	require.Equal(t, int32(5), n)

	got, ok := mem.Read(8, 5)
	require.True(t, ok)
	assert.Equal(t, "hello", string(got))
	assert.Equal(t, int64(1), h.Stats().MessagesReceived)
}

func TestIPCRecvTruncatedMessageStaysPending(t *testing.T) {
	h, link := newTestHost(t)
	mem := guestMemory(t)

	link.deliver("a longer message")
	link.deliver("next")

	n := h.ipcRecv(context.Background(), mem, 0, 4)
	require.Equal(t, int32(16), n)
	got, _ := mem.Read(0, 4)
	assert.Equal(t, "a lo", string(got))

	n = h.ipcRecv(context.Background(), mem, 0, 32)
	require.Equal(t, int32(16), n)
	got, _ = mem.Read(0, 16)
	assert.Equal(t, "a longer message", string(got))

	n = h.ipcRecv(context.Background(), mem, 0, 32)
	require.Equal(t, int32(4), n)
	got, _ = mem.Read(0, 4)
	assert.Equal(t, "next", string(got))
}

func TestIPCRecvBadBuffer(t *testing.T) {
	h, link := newTestHost(t)
	mem := guestMemory(t)

	link.deliver("hello")
	assert.Equal(t, RecvBadBuffer, h.ipcRecv(context.Background(), mem, mem.Size()-1, 64))

	// The message is kept for a retry with a valid buffer.
	assert.Equal(t, int32(5), h.ipcRecv(context.Background(), mem, 0, 64))
}

func TestIPCRecvAfterStop(t *testing.T) {
	h, link := newTestHost(t)
	mem := guestMemory(t)

	link.deliver("queued")
	h.Stop()

	assert.Equal(t, int32(6), h.ipcRecv(context.Background(), mem, 0, 64))
	assert.Equal(t, RecvClosed, h.ipcRecv(context.Background(), mem, 0, 64))
}

func TestIPCRecvBlocksUntilMessage(t *testing.T) {
	h, link := newTestHost(t)
	mem := guestMemory(t)

	result := make(chan int32, 1)
	go func() { result <- h.ipcRecv(context.Background(), mem, 0, 64) }()

	select {
	case <-result:
		t.Fatal("op_ipc_recv returned before a message arrived")
	case <-time.After(20 * time.Millisecond):
	}

	link.deliver("late")
	select {
	case n := <-result:
		assert.Equal(t, int32(4), n)
	case <-time.After(2 * time.Second):
		t.Fatal("op_ipc_recv did not return")
	}
}

func TestIPCRecvHonoursContext(t *testing.T) {
	h, _ := newTestHost(t)
	mem := guestMemory(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, RecvClosed, h.ipcRecv(ctx, mem, 0, 64))
}

func TestRunGuestSends(t *testing.T) {
	h, link := newTestHost(t)

	require.NoError(t, h.Run(context.Background(), sendHelloWasm))
	assert.Equal(t, []string{"hello"}, link.payloads())
}

func TestRunGuestEchoes(t *testing.T) {
	h, link := newTestHost(t)
	link.deliver("ping")

	require.NoError(t, h.Run(context.Background(), echoOnceWasm))
	assert.Equal(t, []string{"ping"}, link.payloads())
	assert.Equal(t, int64(1), h.Stats().MessagesReceived)
}

func TestRunRejectsGuestWithoutEntryPoint(t *testing.T) {
	h, _ := newTestHost(t)

	err := h.Run(context.Background(), memoryOnlyWasm)
	require.Error(t, err)
	assert.True(t, types.IsErrCode(err, types.ErrCodeInvalidArgument))
}

func TestRunRejectsInvalidModule(t *testing.T) {
	h, _ := newTestHost(t)

	err := h.Run(context.Background(), []byte("not wasm"))
	require.Error(t, err)
	assert.True(t, types.IsErrCode(err, types.ErrCodeInvalidArgument))
}

func TestRunFileMissing(t *testing.T) {
	h, _ := newTestHost(t)

	err := h.RunFile(context.Background(), t.TempDir()+"/missing.wasm")
	require.Error(t, err)
	assert.True(t, types.IsErrCode(err, types.ErrCodeNotFound))
}

func TestCloseUnsubscribes(t *testing.T) {
	ctx := context.Background()
	link := newFakeLink()
	h, err := New(ctx, link, Options{}, logger.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 1, link.reg.Len())

	require.NoError(t, h.Close(ctx))
	assert.Equal(t, 0, link.reg.Len())
}
