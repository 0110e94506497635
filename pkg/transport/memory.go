package transport

import (
	"context"
	"sync"

	"github.com/billm/baaaht/webbridge/pkg/types"
)

// PipeEnd is one side of an in-process pipe
type PipeEnd struct {
	in   <-chan types.Message
	out  chan<- types.Message
	done chan struct{}
	once *sync.Once
}

// NewPipe returns two connected endpoints. Messages sent on one are
// received on the other. Closing either end closes both.
func NewPipe(buffer int) (*PipeEnd, *PipeEnd) {
	ab := make(chan types.Message, buffer)
	ba := make(chan types.Message, buffer)
	done := make(chan struct{})
	once := &sync.Once{}

	a := &PipeEnd{in: ba, out: ab, done: done, once: once}
	b := &PipeEnd{in: ab, out: ba, done: done, once: once}
	return a, b
}

// Send delivers msg to the other end, blocking while its buffer is full
func (p *PipeEnd) Send(ctx context.Context, msg types.Message) error {
	select {
	case <-p.done:
		return ErrClosed
	default:
	}

	select {
	case p.out <- msg:
		return nil
	case <-p.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive returns the next message sent by the other end
func (p *PipeEnd) Receive(ctx context.Context) (types.Message, error) {
	select {
	case msg := <-p.in:
		return msg, nil
	case <-p.done:
		return types.Message{}, ErrClosed
	case <-ctx.Done():
		return types.Message{}, ctx.Err()
	}
}

// Close closes both ends
func (p *PipeEnd) Close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}
