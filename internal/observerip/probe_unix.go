//go:build unix || darwin || linux || freebsd || openbsd || netbsd

package observerip

import (
	"fmt"
	"net"
	"syscall"
)

// enableBroadcast sets SO_BROADCAST so the probe can reach 255.255.255.255.
func enableBroadcast(conn *net.UDPConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return fmt.Errorf("failed to get raw socket: %w", err)
	}

	var sockErr error
	if err := raw.Control(func(fd uintptr) {
		sockErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_BROADCAST, 1)
	}); err != nil {
		return fmt.Errorf("failed to control socket: %w", err)
	}
	if sockErr != nil {
		return fmt.Errorf("failed to set SO_BROADCAST: %w", sockErr)
	}
	return nil
}
