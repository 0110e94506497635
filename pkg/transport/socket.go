package transport

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/billm/baaaht/webbridge/internal/logger"
	"github.com/billm/baaaht/webbridge/pkg/types"
)

// SocketConfig configures a Unix domain socket listener
type SocketConfig struct {
	Path           string
	MaxConnections int
	EnableAuth     bool
	MaxMessageSize int
	// Single admits only the first connection. Later dials are closed
	// straight away so their sends fail instead of queueing unread.
	Single bool
}

// Listener accepts script runtime connections on a Unix domain socket.
// Each accepted connection is a Conn speaking the Stream framing.
type Listener struct {
	path       string
	listener   net.Listener
	logger     *logger.Logger
	maxConns   int
	enableAuth bool
	single     bool
	streamOpts StreamOptions

	mu       sync.RWMutex
	conns    map[types.ID]*Conn
	closed   bool
	acceptCh chan *Conn
	closeCh  chan struct{}
	wg       sync.WaitGroup
	stats    SocketStats
}

// SocketStats represents socket statistics
type SocketStats struct {
	ActiveConnections int   `json:"active_connections"`
	TotalAccepted     int64 `json:"total_accepted"`
	TotalRejected     int64 `json:"total_rejected"`
}

// String returns a string representation of the stats
func (s SocketStats) String() string {
	return fmt.Sprintf("SocketStats{Active: %d, Accepted: %d, Rejected: %d}",
		s.ActiveConnections, s.TotalAccepted, s.TotalRejected)
}

// Conn is an accepted socket connection
type Conn struct {
	*Stream
	ID        types.ID
	CreatedAt time.Time
	peer      PeerInfo
	owner     *Listener
}

// Peer returns the credentials of the connected process, when known
func (c *Conn) Peer() PeerInfo {
	return c.peer
}

// Close closes the connection and forgets it in the listener
func (c *Conn) Close() error {
	c.owner.forget(c.ID)
	return c.Stream.Close()
}

// Listen creates the socket file and starts accepting connections. A
// stale socket file at the same path is removed first.
func Listen(cfg SocketConfig, log *logger.Logger) (*Listener, error) {
	if log == nil {
		log = logger.Global()
	}
	if cfg.Path == "" {
		return nil, types.NewError(types.ErrCodeInvalidArgument, "socket path cannot be empty")
	}

	if _, err := os.Stat(cfg.Path); err == nil {
		if err := os.Remove(cfg.Path); err != nil {
			return nil, types.WrapError(types.ErrCodeInternal, "failed to remove existing socket file", err)
		}
	}

	nl, err := net.Listen("unix", cfg.Path)
	if err != nil {
		return nil, types.WrapError(types.ErrCodeInternal, "failed to listen on socket", err)
	}

	l := &Listener{
		path:       cfg.Path,
		listener:   nl,
		logger:     log.With("component", "socket", "socket_path", cfg.Path),
		maxConns:   cfg.MaxConnections,
		enableAuth: cfg.EnableAuth,
		single:     cfg.Single,
		streamOpts: StreamOptions{MaxMessageSize: cfg.MaxMessageSize},
		conns:      make(map[types.ID]*Conn),
		acceptCh:   make(chan *Conn, 16),
		closeCh:    make(chan struct{}),
	}

	l.wg.Add(1)
	go l.acceptLoop()

	l.logger.Info("Socket listening",
		"max_connections", cfg.MaxConnections,
		"auth_enabled", cfg.EnableAuth,
		"single", cfg.Single)
	return l, nil
}

// Accept waits for the next connection
func (l *Listener) Accept(ctx context.Context) (*Conn, error) {
	select {
	case c, ok := <-l.acceptCh:
		if !ok {
			return nil, ErrClosed
		}
		return c, nil
	case <-l.closeCh:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Path returns the socket file path
func (l *Listener) Path() string {
	return l.path
}

func (l *Listener) acceptLoop() {
	defer l.wg.Done()
	defer close(l.acceptCh)

	var delay time.Duration
	for {
		nc, err := l.listener.Accept()
		if err != nil {
			l.mu.RLock()
			closed := l.closed
			l.mu.RUnlock()
			if closed {
				return
			}
			delay = nextAcceptDelay(delay)
			l.logger.Error("Failed to accept connection", "error", err, "retry_in", delay.String())
			select {
			case <-time.After(delay):
			case <-l.closeCh:
				return
			}
			continue
		}
		delay = 0

		c, err := l.admit(nc)
		if err != nil {
			l.logger.Warn("Connection rejected", "error", err)
			nc.Close()
			continue
		}

		select {
		case l.acceptCh <- c:
		case <-l.closeCh:
			c.Close()
			return
		}
	}
}

func (l *Listener) admit(nc net.Conn) (*Conn, error) {
	var peer PeerInfo
	if uc, ok := nc.(*net.UnixConn); ok {
		p, err := peerCredentials(uc)
		if err == nil {
			peer = p
		} else if l.enableAuth {
			l.countRejected()
			return nil, types.WrapError(types.ErrCodePermission, "failed to read peer credentials", err)
		}
	}
	if l.enableAuth && peer.Known && peer.UID != os.Getuid() {
		l.countRejected()
		return nil, types.NewError(types.ErrCodePermission,
			fmt.Sprintf("peer uid %d does not match %d", peer.UID, os.Getuid()))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.single && l.stats.TotalAccepted > 0 {
		l.stats.TotalRejected++
		return nil, types.NewError(types.ErrCodeUnavailable, "listener already has its connection")
	}
	if l.maxConns > 0 && len(l.conns) >= l.maxConns {
		l.stats.TotalRejected++
		return nil, types.NewError(types.ErrCodeRateLimited,
			fmt.Sprintf("connection limit of %d reached", l.maxConns))
	}

	c := &Conn{
		Stream:    NewStream(nc, l.streamOpts),
		ID:        types.GenerateID(),
		CreatedAt: time.Now(),
		peer:      peer,
		owner:     l,
	}
	l.conns[c.ID] = c
	l.stats.TotalAccepted++

	l.logger.Debug("Connection accepted",
		"conn_id", c.ID,
		"peer_pid", peer.PID,
		"conn_count", len(l.conns))
	return c, nil
}

const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// nextAcceptDelay doubles the pause after a failed Accept, capped at one second
func nextAcceptDelay(prev time.Duration) time.Duration {
	if prev == 0 {
		return minAcceptDelay
	}
	return min(prev*2, maxAcceptDelay)
}

func (l *Listener) countRejected() {
	l.mu.Lock()
	l.stats.TotalRejected++
	l.mu.Unlock()
}

func (l *Listener) forget(id types.ID) {
	l.mu.Lock()
	delete(l.conns, id)
	l.mu.Unlock()
}

// Close stops accepting, closes every connection and removes the socket file
func (l *Listener) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	conns := make([]*Conn, 0, len(l.conns))
	for _, c := range l.conns {
		conns = append(conns, c)
	}
	l.mu.Unlock()

	close(l.closeCh)
	err := l.listener.Close()
	l.wg.Wait()

	for _, c := range conns {
		c.Close()
	}

	if rmErr := os.Remove(l.path); rmErr != nil && !os.IsNotExist(rmErr) {
		l.logger.Warn("Failed to remove socket file", "error", rmErr)
	}

	l.logger.Info("Socket closed")
	return err
}

// Stats returns socket statistics
func (l *Listener) Stats() SocketStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := l.stats
	stats.ActiveConnections = len(l.conns)
	return stats
}

// Dial connects to a listener at path
func Dial(ctx context.Context, path string, opts StreamOptions) (*Stream, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, types.WrapError(types.ErrCodeUnavailable, "failed to dial socket "+path, err)
	}
	return NewStream(nc, opts), nil
}
