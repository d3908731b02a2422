package tnet

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClosedConnectionError(t *testing.T) {
	l := ListenOnRandomPort()
	require.NoError(t, l.Close())
	_, err := l.Accept()
	require.True(t, IsClosedConnectionError(err))
	require.NoError(t, StripClosedConnectionError(err))

	require.True(t, IsClosedConnectionError(errors.New("read tcp 127.0.0.1:80: use of closed network connection")))

	other := errors.New("connection refused")
	require.False(t, IsClosedConnectionError(other))
	require.Same(t, other, StripClosedConnectionError(other))
}
