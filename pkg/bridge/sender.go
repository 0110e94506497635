package bridge

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/billm/baaaht/webbridge/internal/config"
	"github.com/billm/baaaht/webbridge/internal/logger"
	"github.com/billm/baaaht/webbridge/pkg/listeners"
	"github.com/billm/baaaht/webbridge/pkg/transport"
	"github.com/billm/baaaht/webbridge/pkg/types"
)

// SendError reports a message that could not be delivered to the transport
type SendError struct {
	Message types.Message
	Err     error
}

func (e SendError) Error() string {
	return "send " + e.Message.ID.String() + ": " + e.Err.Error()
}

func (e SendError) Unwrap() error {
	return e.Err
}

// Sender forwards messages to a transport without waiting for delivery.
// Messages are written in the order they were queued by a single worker.
type Sender struct {
	mu           sync.RWMutex
	transport    transport.Transport
	queue        chan types.Message
	errListeners *listeners.Registry[SendError]
	logger       *logger.Logger
	writeTimeout time.Duration
	closed       bool
	closeCh      chan struct{}
	wg           sync.WaitGroup

	queued  atomic.Int64
	sent    atomic.Int64
	failed  atomic.Int64
	dropped atomic.Int64
}

// SenderStats represents sender statistics
type SenderStats struct {
	MessagesQueued  int64 `json:"messages_queued"`
	MessagesSent    int64 `json:"messages_sent"`
	MessagesFailed  int64 `json:"messages_failed"`
	MessagesDropped int64 `json:"messages_dropped"`
	QueueLength     int   `json:"queue_length"`
}

// NewSender creates a sender and starts its worker
func NewSender(t transport.Transport, cfg config.SenderConfig, log *logger.Logger) *Sender {
	if log == nil {
		log = logger.Global()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = config.DefaultSenderQueueSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = config.DefaultSenderWriteTimeout
	}

	s := &Sender{
		transport:    t,
		queue:        make(chan types.Message, cfg.QueueSize),
		errListeners: listeners.New[SendError](),
		logger:       log.With("component", "sender"),
		writeTimeout: cfg.WriteTimeout,
		closeCh:      make(chan struct{}),
	}

	s.wg.Add(1)
	go s.processMessages()
	return s
}

// Send queues msg and returns immediately. A full queue or a closed
// sender drops the message; the drop is reported to OnError listeners.
func (s *Sender) Send(msg types.Message) {
	if msg.ID.IsEmpty() {
		msg.ID = types.GenerateID()
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now()
	}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		s.drop(msg, types.NewError(types.ErrCodeUnavailable, "sender is closed"))
		return
	}
	select {
	case s.queue <- msg:
		s.queued.Add(1)
		s.mu.RUnlock()
	default:
		s.mu.RUnlock()
		s.drop(msg, types.NewError(types.ErrCodeRateLimited, "send queue is full"))
	}
}

// OnError registers fn to be told about every message that was dropped or
// failed to write
func (s *Sender) OnError(fn func(SendError)) listeners.Unsubscribe {
	return s.errListeners.Register(fn)
}

// Close stops accepting messages and waits until every queued message has
// been written
func (s *Sender) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.closeCh)
	s.wg.Wait()

	s.logger.Debug("Sender closed", "sent", s.sent.Load(), "failed", s.failed.Load())
	return nil
}

// Stats returns sender statistics
func (s *Sender) Stats() SenderStats {
	return SenderStats{
		MessagesQueued:  s.queued.Load(),
		MessagesSent:    s.sent.Load(),
		MessagesFailed:  s.failed.Load(),
		MessagesDropped: s.dropped.Load(),
		QueueLength:     len(s.queue),
	}
}

// processMessages writes queued messages until the sender is closed, then
// drains what is left
func (s *Sender) processMessages() {
	defer s.wg.Done()

	for {
		select {
		case msg := <-s.queue:
			s.write(msg)
		case <-s.closeCh:
			for {
				select {
				case msg := <-s.queue:
					s.write(msg)
				default:
					return
				}
			}
		}
	}
}

func (s *Sender) write(msg types.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()

	if err := s.transport.Send(ctx, msg); err != nil {
		s.failed.Add(1)
		s.logger.Error("Failed to send message",
			"message_id", msg.ID,
			"channel", msg.Channel,
			"error", err)
		s.report(SendError{Message: msg, Err: err})
		return
	}

	s.sent.Add(1)
	s.logger.Debug("Message sent", "message_id", msg.ID, "channel", msg.Channel)
}

func (s *Sender) drop(msg types.Message, err error) {
	s.dropped.Add(1)
	s.logger.Warn("Message dropped",
		"message_id", msg.ID,
		"channel", msg.Channel,
		"error", err)
	s.report(SendError{Message: msg, Err: err})
}

func (s *Sender) report(e SendError) {
	for _, err := range s.errListeners.Emit(e) {
		s.logger.Error("Error listener failed", "error", err)
	}
}
