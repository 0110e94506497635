package transport

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/billm/baaaht/webbridge/internal/logger"
	"github.com/billm/baaaht/webbridge/pkg/types"
	libp2p "github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	mdns "github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	ma "github.com/multiformats/go-multiaddr"
)

// Libp2pOptions configures the gossipsub PubSub
type Libp2pOptions struct {
	ListenAddrs     []string
	Bootstrap       []string
	Rendezvous      string
	EnableMDNS      bool
	IdentityKeyFile string
}

// Libp2pPubSub is a PubSub over libp2p gossipsub, used when the script
// runtime and the host run on different machines.
type Libp2pPubSub struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *logger.Logger

	host host.Host
	ps   *pubsub.PubSub

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
	subs   map[*pubsub.Subscription]struct{}
}

// NewLibp2pPubSub starts a libp2p host and joins gossipsub
func NewLibp2pPubSub(parent context.Context, opts Libp2pOptions, log *logger.Logger) (*Libp2pPubSub, error) {
	if log == nil {
		log = logger.Global()
	}
	ctx, cancel := context.WithCancel(parent)

	listenAddrs := make([]ma.Multiaddr, 0, len(opts.ListenAddrs))
	for _, s := range opts.ListenAddrs {
		if s == "" {
			continue
		}
		a, err := ma.NewMultiaddr(s)
		if err != nil {
			cancel()
			return nil, types.WrapError(types.ErrCodeInvalidArgument, fmt.Sprintf("invalid listen multiaddr %q", s), err)
		}
		listenAddrs = append(listenAddrs, a)
	}
	if len(listenAddrs) == 0 {
		a, _ := ma.NewMultiaddr("/ip4/127.0.0.1/tcp/0")
		listenAddrs = append(listenAddrs, a)
	}

	hostOpts := []libp2p.Option{libp2p.ListenAddrs(listenAddrs...)}
	if opts.IdentityKeyFile != "" {
		key, err := loadOrCreateIdentityKey(opts.IdentityKeyFile)
		if err != nil {
			cancel()
			return nil, types.WrapError(types.ErrCodeInternal, "failed to load identity key", err)
		}
		hostOpts = append(hostOpts, libp2p.Identity(key))
	}

	h, err := libp2p.New(hostOpts...)
	if err != nil {
		cancel()
		return nil, types.WrapError(types.ErrCodeInternal, "failed to create libp2p host", err)
	}

	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		_ = h.Close()
		cancel()
		return nil, types.WrapError(types.ErrCodeInternal, "failed to create gossipsub", err)
	}

	p := &Libp2pPubSub{
		ctx:    ctx,
		cancel: cancel,
		logger: log.With("component", "libp2p", "peer_id", h.ID().String()),
		host:   h,
		ps:     ps,
		topics: make(map[string]*pubsub.Topic),
		subs:   make(map[*pubsub.Subscription]struct{}),
	}

	if opts.EnableMDNS {
		service := mdns.NewMdnsService(h, opts.Rendezvous, &mdnsNotifee{host: h, logger: p.logger})
		if err := service.Start(); err != nil {
			p.logger.Warn("mDNS discovery failed to start", "error", err)
		}
	}

	for _, raw := range opts.Bootstrap {
		if raw == "" {
			continue
		}
		addr, err := ma.NewMultiaddr(raw)
		if err != nil {
			p.logger.Warn("Skipping bootstrap address", "addr", raw, "error", err)
			continue
		}
		info, err := peer.AddrInfoFromP2pAddr(addr)
		if err != nil {
			p.logger.Warn("Skipping bootstrap address", "addr", raw, "error", err)
			continue
		}
		if err := h.Connect(ctx, *info); err != nil {
			p.logger.Warn("Bootstrap connect failed", "peer", info.ID.String(), "error", err)
		} else {
			p.logger.Info("Connected bootstrap peer", "peer", info.ID.String())
		}
	}

	p.logger.Info("libp2p host started", "addrs", p.ListenAddrs())
	return p, nil
}

// Publish publishes payload on topic
func (p *Libp2pPubSub) Publish(ctx context.Context, topic string, payload []byte) error {
	t, err := p.getOrJoinTopic(topic)
	if err != nil {
		return err
	}
	return t.Publish(ctx, payload)
}

// Subscribe subscribes to topic. Envelopes are dropped when the returned
// channel is full.
func (p *Libp2pPubSub) Subscribe(topic string) (<-chan Envelope, func(), error) {
	t, err := p.getOrJoinTopic(topic)
	if err != nil {
		return nil, nil, err
	}
	sub, err := t.Subscribe()
	if err != nil {
		return nil, nil, err
	}
	p.mu.Lock()
	p.subs[sub] = struct{}{}
	p.mu.Unlock()

	out := make(chan Envelope, 64)
	subCtx, subCancel := context.WithCancel(p.ctx)
	go func() {
		defer close(out)
		for {
			msg, err := sub.Next(subCtx)
			if err != nil {
				return
			}
			select {
			case out <- Envelope{Topic: topic, Payload: append([]byte(nil), msg.Data...)}:
			default:
				p.logger.Warn("Subscriber full, dropping envelope", "topic", topic)
			}
		}
	}()

	cancel := func() {
		subCancel()
		p.mu.Lock()
		delete(p.subs, sub)
		p.mu.Unlock()
		sub.Cancel()
	}
	return out, cancel, nil
}

// Close cancels open subscriptions, leaves every topic and stops the host.
// A topic refuses to close while it still has subscriptions.
func (p *Libp2pPubSub) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for sub := range p.subs {
		sub.Cancel()
	}
	clear(p.subs)

	var errs []error
	for name, t := range p.topics {
		if err := t.Close(); err != nil {
			p.logger.Warn("Failed to close topic", "topic", name, "error", err)
			errs = append(errs, fmt.Errorf("close topic %s: %w", name, err))
		}
	}
	clear(p.topics)

	// the pubsub loop must outlive the cancels and closes above
	p.cancel()
	if err := p.host.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// PeerID returns this host's peer ID
func (p *Libp2pPubSub) PeerID() string {
	return p.host.ID().String()
}

// ListenAddrs returns dialable addresses including the /p2p suffix
func (p *Libp2pPubSub) ListenAddrs() []string {
	out := make([]string, 0, len(p.host.Addrs()))
	for _, addr := range p.host.Addrs() {
		out = append(out, fmt.Sprintf("%s/p2p/%s", addr.String(), p.host.ID().String()))
	}
	return out
}

func (p *Libp2pPubSub) getOrJoinTopic(name string) (*pubsub.Topic, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t, ok := p.topics[name]; ok {
		return t, nil
	}
	t, err := p.ps.Join(name)
	if err != nil {
		return nil, err
	}
	p.topics[name] = t
	return t, nil
}

type mdnsNotifee struct {
	host   host.Host
	logger *logger.Logger
}

func (n *mdnsNotifee) HandlePeerFound(info peer.AddrInfo) {
	if err := n.host.Connect(context.Background(), info); err != nil {
		n.logger.Warn("mDNS connect failed", "peer", info.ID.String(), "error", err)
	}
}

func loadOrCreateIdentityKey(path string) (crypto.PrivKey, error) {
	if b, err := os.ReadFile(path); err == nil && len(b) > 0 {
		key, err := crypto.UnmarshalPrivateKey(b)
		if err != nil {
			return nil, fmt.Errorf("unmarshal private key: %w", err)
		}
		return key, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("mkdir key dir: %w", err)
	}
	key, _, err := crypto.GenerateEd25519Key(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 key: %w", err)
	}
	raw, err := crypto.MarshalPrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("marshal private key: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return nil, fmt.Errorf("write private key: %w", err)
	}
	return key, nil
}
