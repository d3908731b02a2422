package thttp

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ridge/parallel"
	"github.com/ridge/reqlog/test"
	"github.com/ridge/reqlog/tlog"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func oopsHandler(w http.ResponseWriter, r *http.Request) {
	panic(errors.New("oops"))
}

func TestRecover(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ctx := tlog.WithLogger(test.Context(t), zap.New(core))

	res := TestCtx(ctx, Recover(http.HandlerFunc(oopsHandler)), httptest.NewRequest(http.MethodPost, "/", nil))
	require.Equal(t, http.StatusInternalServerError, res.StatusCode)
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.Empty(t, body)
	res.Body.Close()

	entries := logs.FilterMessage("Panic while handling HTTP request").All()
	require.Len(t, entries, 1)
	require.Equal(t, "panic: oops", entries[0].ContextMap()["error"])
	// oopsHandler must be mentioned: the stack is that of the panic location,
	// not where the panic is collected
	require.Regexp(t, "(?s)^goroutine.*oopsHandler", entries[0].ContextMap()["stack"])
}

func TestRecoverAfterHeaderSent(t *testing.T) {
	ctx := test.Context(t)

	handler := Recover(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		panic("late")
	}))
	res := TestCtx(ctx, handler, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusAccepted, res.StatusCode)
	res.Body.Close()
}

func TestRecoverAbortHandler(t *testing.T) {
	ctx := test.Context(t)

	handler := Recover(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	require.PanicsWithValue(t, http.ErrAbortHandler, func() {
		TestCtx(ctx, handler, httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestRunTask(t *testing.T) {
	ctx := test.Context(t)
	errOops := errors.New("oops")

	require.ErrorIs(t, RunTask(ctx, func(ctx context.Context) error { return errOops }), errOops)
	require.NoError(t, RunTask(ctx, func(ctx context.Context) error { return nil }))

	err := RunTask(ctx, func(ctx context.Context) error { panic(errOops) })
	var errPanic parallel.ErrPanic
	require.ErrorAs(t, err, &errPanic)
	require.Equal(t, errOops, errPanic.Value)
	require.Regexp(t, `(?s)^goroutine.*TestRunTask\.func`, string(errPanic.Stack))
}
