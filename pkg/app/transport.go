package app

import (
	"context"
	"errors"
	"io"

	"github.com/billm/baaaht/webbridge/internal/config"
	"github.com/billm/baaaht/webbridge/internal/logger"
	"github.com/billm/baaaht/webbridge/pkg/transport"
	"github.com/billm/baaaht/webbridge/pkg/types"
)

// Endpoint is one side of the ipc link together with the resources that
// back it.
type Endpoint struct {
	Transport transport.Transport

	// Peer is the script side of an in-memory link. It is nil for every
	// other transport kind.
	Peer transport.Transport

	closers []io.Closer
}

// Close closes the transports and the resources behind them
func (e *Endpoint) Close() error {
	var errs []error
	if e.Peer != nil {
		errs = append(errs, e.Peer.Close())
	}
	if e.Transport != nil {
		errs = append(errs, e.Transport.Close())
	}
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs = append(errs, e.closers[i].Close())
	}
	return errors.Join(errs...)
}

// OpenHostTransport opens the host side of the ipc link. For the unix kind
// it listens on the socket and waits for the script runtime to connect.
func OpenHostTransport(ctx context.Context, cfg config.TransportConfig, log *logger.Logger) (*Endpoint, error) {
	if log == nil {
		log = logger.Global()
	}

	switch cfg.Kind {
	case config.TransportMemory:
		host, script := transport.NewPipe(pipeBuffer)
		return &Endpoint{Transport: host, Peer: script}, nil

	case config.TransportStdio:
		return &Endpoint{Transport: transport.NewStdio(streamOptions(cfg))}, nil

	case config.TransportUnix:
		l, err := transport.Listen(transport.SocketConfig{
			Path:           cfg.SocketPath,
			MaxConnections: cfg.MaxConnections,
			EnableAuth:     cfg.EnableAuth,
			MaxMessageSize: cfg.MaxMessageSize,
			Single:         true,
		}, log)
		if err != nil {
			return nil, err
		}
		log.Info("Waiting for script runtime", "socket_path", cfg.SocketPath)
		conn, err := l.Accept(ctx)
		if err != nil {
			_ = l.Close()
			return nil, types.WrapError(types.ErrCodeUnavailable, "no script runtime connected", err)
		}
		peer := conn.Peer()
		log.Info("Script runtime connected", "conn_id", conn.ID.String(), "pid", peer.PID, "uid", peer.UID)
		return &Endpoint{Transport: conn, closers: []io.Closer{l}}, nil

	case config.TransportLibp2p:
		return openTopic(ctx, cfg, log, true)
	}

	return nil, types.NewError(types.ErrCodeInvalidArgument, "unsupported transport kind: "+cfg.Kind)
}

// DialScriptTransport opens the script side of the ipc link against a
// running host.
func DialScriptTransport(ctx context.Context, cfg config.TransportConfig, log *logger.Logger) (*Endpoint, error) {
	if log == nil {
		log = logger.Global()
	}

	switch cfg.Kind {
	case config.TransportStdio:
		return &Endpoint{Transport: transport.NewStdio(streamOptions(cfg))}, nil

	case config.TransportUnix:
		s, err := transport.Dial(ctx, cfg.SocketPath, streamOptions(cfg))
		if err != nil {
			return nil, err
		}
		return &Endpoint{Transport: s}, nil

	case config.TransportLibp2p:
		return openTopic(ctx, cfg, log, false)

	case config.TransportMemory:
		return nil, types.NewError(types.ErrCodeInvalidArgument, "memory transport only links an in-process script")
	}

	return nil, types.NewError(types.ErrCodeInvalidArgument, "unsupported transport kind: "+cfg.Kind)
}

func openTopic(ctx context.Context, cfg config.TransportConfig, log *logger.Logger, hostSide bool) (*Endpoint, error) {
	ps, err := transport.NewLibp2pPubSub(ctx, transport.Libp2pOptions{
		ListenAddrs:     cfg.Libp2p.ListenAddrs,
		Bootstrap:       cfg.Libp2p.Bootstrap,
		Rendezvous:      cfg.Libp2p.Rendezvous,
		EnableMDNS:      cfg.Libp2p.EnableMDNS,
		IdentityKeyFile: cfg.Libp2p.IdentityKeyFile,
	}, log)
	if err != nil {
		return nil, err
	}

	toScript, toHost := transport.TopicNames(cfg.Libp2p.TopicPrefix)
	send, recv := toScript, toHost
	if !hostSide {
		send, recv = toHost, toScript
	}
	t, err := transport.NewTopic(ps, send, recv, nil)
	if err != nil {
		_ = ps.Close()
		return nil, err
	}

	log.Info("Joined ipc topics",
		"peer_id", ps.PeerID(),
		"listen_addrs", ps.ListenAddrs(),
		"send_topic", send,
		"recv_topic", recv)
	return &Endpoint{Transport: t, closers: []io.Closer{ps}}, nil
}

const pipeBuffer = 64

func streamOptions(cfg config.TransportConfig) transport.StreamOptions {
	return transport.StreamOptions{MaxMessageSize: cfg.MaxMessageSize}
}
