package bridge

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/billm/baaaht/webbridge/internal/config"
	"github.com/billm/baaaht/webbridge/internal/logger"
	"github.com/billm/baaaht/webbridge/pkg/listeners"
	"github.com/billm/baaaht/webbridge/pkg/transport"
	"github.com/billm/baaaht/webbridge/pkg/types"
)

// Relay delivers inbound messages to listeners
type Relay struct {
	transport     transport.Transport
	listeners     *listeners.Registry[types.Message]
	logger        *logger.Logger
	retryDelay    time.Duration
	maxRetryDelay time.Duration

	running  atomic.Bool
	received atomic.Int64
	errors   atomic.Int64
	panics   atomic.Int64
}

// RelayStats represents relay statistics
type RelayStats struct {
	MessagesReceived int64 `json:"messages_received"`
	ReceiveErrors    int64 `json:"receive_errors"`
	ListenerPanics   int64 `json:"listener_panics"`
}

// NewRelay creates a relay that reads from t and notifies reg
func NewRelay(t transport.Transport, reg *listeners.Registry[types.Message], cfg config.RelayConfig, log *logger.Logger) *Relay {
	if log == nil {
		log = logger.Global()
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = config.DefaultRetryDelay
	}
	if cfg.MaxRetryDelay < cfg.RetryDelay {
		cfg.MaxRetryDelay = cfg.RetryDelay
	}
	return &Relay{
		transport:     t,
		listeners:     reg,
		logger:        log.With("component", "relay"),
		retryDelay:    cfg.RetryDelay,
		maxRetryDelay: cfg.MaxRetryDelay,
	}
}

// Run receives messages until ctx is cancelled or the transport is
// closed. Each message is handed to every listener before the next one is
// received. Receive failures are logged and retried with a doubling delay.
// Run returns nil when the transport closes and ctx.Err() on cancellation.
func (r *Relay) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return types.NewError(types.ErrCodeUnavailable, "relay is already running")
	}
	defer r.running.Store(false)

	r.logger.Debug("Relay started")
	delay := r.retryDelay

	for {
		msg, err := r.transport.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				r.logger.Debug("Relay stopped", "reason", ctx.Err())
				return ctx.Err()
			}
			if errors.Is(err, transport.ErrClosed) {
				r.logger.Debug("Relay stopped", "reason", "transport closed")
				return nil
			}

			r.errors.Add(1)
			if types.IsErrCode(err, types.ErrCodeInvalid) {
				// one bad frame, the transport itself is fine
				r.logger.Warn("Dropped undecodable message", "error", err)
				continue
			}
			r.logger.Warn("Failed to receive message", "error", err, "retry_in", delay.String())

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			delay = min(delay*2, r.maxRetryDelay)
			continue
		}

		delay = r.retryDelay
		r.received.Add(1)
		r.deliver(msg)
	}
}

func (r *Relay) deliver(msg types.Message) {
	for _, err := range r.listeners.Emit(msg) {
		r.panics.Add(1)
		r.logger.Error("Listener failed",
			"message_id", msg.ID,
			"channel", msg.Channel,
			"error", err)
	}
}

// Stats returns relay statistics
func (r *Relay) Stats() RelayStats {
	return RelayStats{
		MessagesReceived: r.received.Load(),
		ReceiveErrors:    r.errors.Load(),
		ListenerPanics:   r.panics.Load(),
	}
}
