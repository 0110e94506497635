// Package transport carries bridge messages between the host and the
// script runtime.
//
// Implementations:
//
//   - Pipe: an in-process pair of connected endpoints
//   - Stream: length-prefixed msgpack frames over any io.ReadWriteCloser
//     (stdio, Unix socket connections)
//   - Listener / Dial: Unix domain socket endpoints built on Stream
//   - Topic: a transport over a PubSub, either in memory or libp2p gossipsub
package transport

import (
	"context"
	"errors"

	"github.com/billm/baaaht/webbridge/pkg/types"
)

// ErrClosed is returned once a transport has been closed, locally or by the peer
var ErrClosed = errors.New("transport closed")

// Transport moves messages across the host boundary. Receive blocks until
// the next message arrives; Send does not wait for the peer to handle it.
type Transport interface {
	Send(ctx context.Context, msg types.Message) error
	Receive(ctx context.Context) (types.Message, error)
	Close() error
}

// Stats counts traffic on a transport
type Stats struct {
	MessagesSent     int64 `json:"messages_sent"`
	MessagesReceived int64 `json:"messages_received"`
	BytesSent        int64 `json:"bytes_sent"`
	BytesReceived    int64 `json:"bytes_received"`
}
