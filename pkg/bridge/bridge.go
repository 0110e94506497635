package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/billm/baaaht/webbridge/internal/config"
	"github.com/billm/baaaht/webbridge/internal/logger"
	"github.com/billm/baaaht/webbridge/pkg/listeners"
	"github.com/billm/baaaht/webbridge/pkg/transport"
	"github.com/billm/baaaht/webbridge/pkg/types"
)

// Bridge is one channel of the bridge: listeners for inbound messages and
// a fire-and-forget sender for outbound ones, over a single transport
type Bridge struct {
	channel   types.Channel
	transport transport.Transport
	listeners *listeners.Registry[types.Message]
	relay     *Relay
	sender    *Sender
	logger    *logger.Logger

	mu     sync.Mutex
	closed bool
}

// Stats represents bridge statistics
type Stats struct {
	Channel   types.Channel `json:"channel"`
	Listeners int           `json:"listeners"`
	Relay     RelayStats    `json:"relay"`
	Sender    SenderStats   `json:"sender"`
}

// String returns a string representation of the stats
func (s Stats) String() string {
	return fmt.Sprintf("Stats{Channel: %s, Listeners: %d, Received: %d, Sent: %d, Failed: %d, Dropped: %d}",
		s.Channel, s.Listeners, s.Relay.MessagesReceived,
		s.Sender.MessagesSent, s.Sender.MessagesFailed, s.Sender.MessagesDropped)
}

// New creates a bridge for channel over t. Outbound messages are stamped
// with channel. Call Run to start delivering inbound messages.
func New(channel types.Channel, t transport.Transport, cfg config.Config, log *logger.Logger) *Bridge {
	if log == nil {
		log = logger.Global()
	}
	log = log.With("channel", string(channel))

	reg := listeners.New[types.Message]()
	return &Bridge{
		channel:   channel,
		transport: t,
		listeners: reg,
		relay:     NewRelay(t, reg, cfg.Relay, log),
		sender:    NewSender(t, cfg.Sender, log),
		logger:    log.With("component", "bridge"),
	}
}

// Channel returns the channel this bridge carries
func (b *Bridge) Channel() types.Channel {
	return b.channel
}

// OnMessage registers fn for every inbound message. Listeners run on the
// relay goroutine, one at a time, in registration order.
func (b *Bridge) OnMessage(fn func(types.Message)) listeners.Unsubscribe {
	return b.listeners.Register(fn)
}

// OnError registers fn for outbound messages that were dropped or could
// not be written
func (b *Bridge) OnError(fn func(SendError)) listeners.Unsubscribe {
	return b.sender.OnError(fn)
}

// Send forwards payload to the other side without waiting
func (b *Bridge) Send(payload string) {
	b.SendMessage(types.NewMessage(payload))
}

// SendMessage forwards msg to the other side without waiting
func (b *Bridge) SendMessage(msg types.Message) {
	if msg.Channel == "" {
		msg.Channel = b.channel
	}
	b.sender.Send(msg)
}

// Run delivers inbound messages until ctx is cancelled or the transport
// closes. See Relay.Run.
func (b *Bridge) Run(ctx context.Context) error {
	return b.relay.Run(ctx)
}

// Close flushes queued outbound messages, then closes the transport
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	if err := b.sender.Close(); err != nil {
		b.logger.Warn("Failed to close sender", "error", err)
	}
	if err := b.transport.Close(); err != nil {
		return types.WrapError(types.ErrCodeTransport, "failed to close transport", err)
	}

	b.logger.Info("Bridge closed", "stats", b.Stats().String())
	return nil
}

// Stats returns bridge statistics
func (b *Bridge) Stats() Stats {
	return Stats{
		Channel:   b.channel,
		Listeners: b.listeners.Len(),
		Relay:     b.relay.Stats(),
		Sender:    b.sender.Stats(),
	}
}
