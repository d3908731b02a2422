//go:build !linux

package wstail

import (
	"net"
	"time"
)

func setUserTimeout(conn net.Conn, timeout time.Duration) error {
	return nil
}
