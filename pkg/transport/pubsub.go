package transport

import (
	"context"
	"sync"

	"github.com/billm/baaaht/webbridge/pkg/types"
)

// Envelope is a raw payload published on a topic
type Envelope struct {
	Topic   string
	Payload []byte
}

// PubSub is a broadcast medium. Subscribe returns a channel of envelopes
// and a cancel func that closes it.
type PubSub interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(topic string) (<-chan Envelope, func(), error)
}

// MemoryPubSub is a process-local PubSub
type MemoryPubSub struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]chan Envelope
	buffer int
}

// NewMemoryPubSub creates a MemoryPubSub whose subscriptions buffer up to
// buffer envelopes. Publishing to a full subscription drops the envelope
// for that subscriber only.
func NewMemoryPubSub(buffer int) *MemoryPubSub {
	if buffer <= 0 {
		buffer = 64
	}
	return &MemoryPubSub{subs: make(map[string]map[int]chan Envelope), buffer: buffer}
}

// Publish delivers payload to every current subscriber of topic
func (m *MemoryPubSub) Publish(_ context.Context, topic string, payload []byte) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ch := range m.subs[topic] {
		env := Envelope{Topic: topic, Payload: append([]byte(nil), payload...)}
		select {
		case ch <- env:
		default:
		}
	}
	return nil
}

// Subscribe registers a new subscription on topic
func (m *MemoryPubSub) Subscribe(topic string) (<-chan Envelope, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[topic]; !ok {
		m.subs[topic] = make(map[int]chan Envelope)
	}
	id := m.nextID
	m.nextID++
	ch := make(chan Envelope, m.buffer)
	m.subs[topic][id] = ch

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if byTopic, ok := m.subs[topic]; ok {
			if sub, exists := byTopic[id]; exists {
				delete(byTopic, id)
				close(sub)
			}
			if len(byTopic) == 0 {
				delete(m.subs, topic)
			}
		}
	}
	return ch, cancel, nil
}

// Topic is a Transport that publishes on one topic and receives from
// another. Two Topic transports with swapped topics form a link.
type Topic struct {
	ps         PubSub
	sendTopic  string
	serializer Serializer
	in         <-chan Envelope
	cancel     func()
	done       chan struct{}
	once       sync.Once
}

// NewTopic subscribes to recvTopic and publishes on sendTopic
func NewTopic(ps PubSub, sendTopic, recvTopic string, serializer Serializer) (*Topic, error) {
	if serializer == nil {
		serializer = MsgpackSerializer{}
	}
	in, cancel, err := ps.Subscribe(recvTopic)
	if err != nil {
		return nil, types.WrapError(types.ErrCodeUnavailable, "failed to subscribe to "+recvTopic, err)
	}
	return &Topic{
		ps:         ps,
		sendTopic:  sendTopic,
		serializer: serializer,
		in:         in,
		cancel:     cancel,
		done:       make(chan struct{}),
	}, nil
}

// Send publishes msg
func (t *Topic) Send(ctx context.Context, msg types.Message) error {
	select {
	case <-t.done:
		return ErrClosed
	default:
	}

	data, err := t.serializer.Marshal(msg)
	if err != nil {
		return types.WrapError(types.ErrCodeInvalid, "failed to serialize message", err)
	}
	if err := t.ps.Publish(ctx, t.sendTopic, data); err != nil {
		return types.WrapError(types.ErrCodeTransport, "failed to publish on "+t.sendTopic, err)
	}
	return nil
}

// Receive returns the next message published on the receive topic
func (t *Topic) Receive(ctx context.Context) (types.Message, error) {
	select {
	case env, ok := <-t.in:
		if !ok {
			return types.Message{}, ErrClosed
		}
		var msg types.Message
		if err := t.serializer.Unmarshal(env.Payload, &msg); err != nil {
			return types.Message{}, types.WrapError(types.ErrCodeInvalid, "failed to decode envelope", err)
		}
		return msg, nil
	case <-t.done:
		return types.Message{}, ErrClosed
	case <-ctx.Done():
		return types.Message{}, ctx.Err()
	}
}

// Close cancels the subscription
func (t *Topic) Close() error {
	t.once.Do(func() {
		close(t.done)
		t.cancel()
	})
	return nil
}

// TopicNames returns the host-to-script and script-to-host topic names for prefix
func TopicNames(prefix string) (toScript, toHost string) {
	return prefix + "/" + string(types.ChannelIPC) + "/to-script",
		prefix + "/" + string(types.ChannelIPC) + "/to-host"
}
