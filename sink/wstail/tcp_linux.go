package wstail

import (
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// setUserTimeout makes the kernel drop the connection when sent data stays
// unacknowledged for longer than timeout
func setUserTimeout(conn net.Conn, timeout time.Duration) error {
	tcp, ok := conn.(*net.TCPConn)
	if !ok || timeout <= 0 {
		return nil
	}
	raw, err := tcp.SyscallConn()
	if err != nil {
		return fmt.Errorf("failed to set TCP_USER_TIMEOUT: %w", err)
	}
	var sockErr error
	if err := raw.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_USER_TIMEOUT, int(timeout/time.Millisecond))
	}); err != nil {
		return fmt.Errorf("failed to set TCP_USER_TIMEOUT: %w", err)
	}
	if sockErr != nil {
		return fmt.Errorf("failed to set TCP_USER_TIMEOUT: %w", sockErr)
	}
	return nil
}
