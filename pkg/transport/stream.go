package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/billm/baaaht/webbridge/pkg/types"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	frameHeaderSize = 4
	poolBufferSize  = 8192
	poolBuffers     = 16

	// DefaultMaxMessageSize bounds a single frame
	DefaultMaxMessageSize = 4 << 20
)

// Serializer converts messages to and from frame payloads
type Serializer interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// MsgpackSerializer is the default Serializer
type MsgpackSerializer struct{}

func (MsgpackSerializer) Marshal(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (MsgpackSerializer) Unmarshal(data []byte, v any) error {
	return msgpack.Unmarshal(data, v)
}

// StreamOptions configures a Stream
type StreamOptions struct {
	MaxMessageSize int
	Serializer     Serializer
}

// Stream frames messages over a byte stream: a 4-byte big-endian length
// followed by the serialized message. A background goroutine reads frames
// so that Receive can honour context cancellation.
type Stream struct {
	rwc        io.ReadWriteCloser
	serializer Serializer
	maxSize    int
	pool       *bufferPool

	writeMu sync.Mutex

	frames  chan []byte
	done    chan struct{}
	once    sync.Once
	readErr error

	sent     atomic.Int64
	received atomic.Int64
	bytesOut atomic.Int64
	bytesIn  atomic.Int64
}

// NewStream starts reading frames from rwc
func NewStream(rwc io.ReadWriteCloser, opts StreamOptions) *Stream {
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = DefaultMaxMessageSize
	}
	if opts.Serializer == nil {
		opts.Serializer = MsgpackSerializer{}
	}

	s := &Stream{
		rwc:        rwc,
		serializer: opts.Serializer,
		maxSize:    opts.MaxMessageSize,
		pool:       newBufferPool(poolBufferSize, poolBuffers),
		frames:     make(chan []byte),
		done:       make(chan struct{}),
	}
	go s.readLoop()
	return s
}

type stdio struct {
	io.Reader
	io.Writer
}

func (stdio) Close() error { return nil }

// NewStdio frames messages over the process's stdin and stdout
func NewStdio(opts StreamOptions) *Stream {
	return NewStream(stdio{Reader: os.Stdin, Writer: os.Stdout}, opts)
}

// Send serializes msg and writes it as one frame
func (s *Stream) Send(ctx context.Context, msg types.Message) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := s.serializer.Marshal(msg)
	if err != nil {
		return types.WrapError(types.ErrCodeInvalid, "failed to serialize message", err)
	}
	if len(payload) > s.maxSize {
		return types.NewError(types.ErrCodeInvalidArgument,
			fmt.Sprintf("message of %d bytes exceeds limit of %d", len(payload), s.maxSize))
	}

	frame := make([]byte, frameHeaderSize+len(payload))
	binary.BigEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[frameHeaderSize:], payload)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if dl, ok := s.rwc.(interface{ SetWriteDeadline(time.Time) error }); ok {
		deadline, _ := ctx.Deadline()
		_ = dl.SetWriteDeadline(deadline)
	}

	if _, err := s.rwc.Write(frame); err != nil {
		if isClosedErr(err) {
			return ErrClosed
		}
		return types.WrapError(types.ErrCodeTransport, "failed to write frame", err)
	}
	if f, ok := s.rwc.(interface{ Flush() error }); ok {
		if err := f.Flush(); err != nil {
			return types.WrapError(types.ErrCodeTransport, "failed to flush frame", err)
		}
	}

	s.sent.Add(1)
	s.bytesOut.Add(int64(len(frame)))
	return nil
}

// Receive returns the next message. A frame that fails to decode is
// reported as an ErrCodeInvalid error and the stream stays usable; a
// broken or closed stream yields an error wrapping ErrClosed.
func (s *Stream) Receive(ctx context.Context) (types.Message, error) {
	select {
	case payload, ok := <-s.frames:
		if !ok {
			return types.Message{}, s.readErr
		}
		var msg types.Message
		if err := s.serializer.Unmarshal(payload, &msg); err != nil {
			return types.Message{}, types.WrapError(types.ErrCodeInvalid, "failed to decode frame", err)
		}
		s.received.Add(1)
		return msg, nil
	case <-s.done:
		return types.Message{}, ErrClosed
	case <-ctx.Done():
		return types.Message{}, ctx.Err()
	}
}

// Close closes the underlying stream
func (s *Stream) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.rwc.Close()
	})
	return err
}

// Stats returns traffic counters
func (s *Stream) Stats() Stats {
	return Stats{
		MessagesSent:     s.sent.Load(),
		MessagesReceived: s.received.Load(),
		BytesSent:        s.bytesOut.Load(),
		BytesReceived:    s.bytesIn.Load(),
	}
}

func (s *Stream) readLoop() {
	defer close(s.frames)

	for {
		payload, err := s.readFrame()
		if err != nil {
			if isClosedErr(err) {
				s.readErr = ErrClosed
			} else {
				s.readErr = fmt.Errorf("%w: %v", ErrClosed, err)
			}
			return
		}

		select {
		case s.frames <- payload:
		case <-s.done:
			s.readErr = ErrClosed
			return
		}
	}
}

func (s *Stream) readFrame() ([]byte, error) {
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(s.rwc, header[:]); err != nil {
		return nil, err
	}

	length := int(binary.BigEndian.Uint32(header[:]))
	if length > s.maxSize {
		return nil, fmt.Errorf("frame of %d bytes exceeds limit of %d", length, s.maxSize)
	}

	var payload []byte
	if length <= s.pool.bufSize {
		buf := s.pool.get()[:length]
		if _, err := io.ReadFull(s.rwc, buf); err != nil {
			s.pool.put(buf)
			return nil, err
		}
		payload = make([]byte, length)
		copy(payload, buf)
		s.pool.put(buf)
	} else {
		payload = make([]byte, length)
		if _, err := io.ReadFull(s.rwc, payload); err != nil {
			return nil, err
		}
	}

	s.bytesIn.Add(int64(frameHeaderSize + length))
	return payload, nil
}

func isClosedErr(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, os.ErrClosed) ||
		errors.Is(err, net.ErrClosed)
}
