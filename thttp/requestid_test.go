package thttp

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/ridge/reqlog/diag"
	"github.com/ridge/reqlog/eventlog"
	"github.com/ridge/reqlog/test"
	"github.com/stretchr/testify/require"
)

func TestRequestIDGenerated(t *testing.T) {
	ctx, collector := diag.Begin(test.Context(t))

	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = w.Header().Get(RequestIDHeader)
	}))
	res := TestCtx(ctx, handler, httptest.NewRequest(http.MethodGet, "/", nil))
	res.Body.Close()

	id := res.Header.Get(RequestIDHeader)
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	require.Equal(t, id, seen)

	completion, ok := collector.TryComplete()
	require.True(t, ok)
	require.Equal(t, []eventlog.Property{{Name: "RequestId", Value: id}}, completion.Properties)
}

func TestRequestIDFromClient(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(RequestIDHeader, "abc")

	// works without a logger or a diag scope in the context
	res := Test(RequestID(http.NotFoundHandler()), r)
	res.Body.Close()
	require.Equal(t, "abc", res.Header.Get(RequestIDHeader))
}
