package tnet

import (
	"errors"
	"net"
	"strings"
)

// IsClosedConnectionError returns if the passed error is "use of closed network
// connection". Some libraries flatten the error into text, so the message is
// matched too.
func IsClosedConnectionError(err error) bool {
	return err != nil && (errors.Is(err, net.ErrClosed) || strings.HasSuffix(err.Error(), "use of closed network connection"))
}

// StripClosedConnectionError returns nil if the passed error is "use of closed
// network connection", and the original error otherwise.
//
// Closing a connection on context cancellation produces this error in every
// pending read, so it is noise in logs.
func StripClosedConnectionError(err error) error {
	if IsClosedConnectionError(err) {
		return nil
	}
	return err
}
