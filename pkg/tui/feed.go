package tui

import (
	"sync"

	"github.com/billm/baaaht/webbridge/pkg/host"
	"github.com/billm/baaaht/webbridge/pkg/listeners"
)

// Feed buffers dispatcher events for the console. Dispatcher listeners must
// not block, so events beyond the buffer are counted and dropped.
type Feed struct {
	events  chan host.Event
	unsub   listeners.Unsubscribe
	mu      sync.Mutex
	dropped int
	closed  bool
}

// NewFeed subscribes to the events of h
func NewFeed(h Host, size int) *Feed {
	if size <= 0 {
		size = 256
	}
	f := &Feed{events: make(chan host.Event, size)}
	f.unsub = h.OnEvent(f.push)
	return f
}

func (f *Feed) push(e host.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	select {
	case f.events <- e:
	default:
		f.dropped++
	}
}

// Events returns the buffered event channel. It is closed by Close.
func (f *Feed) Events() <-chan host.Event {
	return f.events
}

// Dropped returns the number of events lost to a full buffer
func (f *Feed) Dropped() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dropped
}

// Close unsubscribes from the dispatcher and closes the channel
func (f *Feed) Close() {
	f.unsub()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	close(f.events)
}
