//go:build !linux && !darwin

package transport

import (
	"errors"
	"net"
)

// PeerInfo describes the process on the other end of a Unix socket
type PeerInfo struct {
	Known bool
	PID   int
	UID   int
	GID   int
}

func peerCredentials(*net.UnixConn) (PeerInfo, error) {
	return PeerInfo{}, errors.New("peer credentials are not supported on this platform")
}
