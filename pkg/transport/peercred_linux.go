//go:build linux

package transport

import (
	"net"

	"golang.org/x/sys/unix"
)

// PeerInfo describes the process on the other end of a Unix socket
type PeerInfo struct {
	Known bool
	PID   int
	UID   int
	GID   int
}

func peerCredentials(conn *net.UnixConn) (PeerInfo, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return PeerInfo{}, err
	}

	var cred *unix.Ucred
	var credErr error
	if err := raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	}); err != nil {
		return PeerInfo{}, err
	}
	if credErr != nil {
		return PeerInfo{}, credErr
	}

	return PeerInfo{
		Known: true,
		PID:   int(cred.Pid),
		UID:   int(cred.Uid),
		GID:   int(cred.Gid),
	}, nil
}
