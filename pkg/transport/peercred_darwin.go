//go:build darwin

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

	var cred *unix.Xucred
	var credErr error
	if err := raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptXucred(int(fd), unix.SOL_LOCAL, unix.LOCAL_PEERCRED)
	}); err != nil {
		return PeerInfo{}, err
	}
	if credErr != nil {
		return PeerInfo{}, credErr
	}

	info := PeerInfo{Known: true, UID: int(cred.Uid)}
	if cred.Ngroups > 0 {
		info.GID = int(cred.Groups[0])
	}
	return info, nil
}
