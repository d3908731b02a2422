package thttp

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/ridge/parallel"
	"github.com/ridge/reqlog/tlog"
	"go.uber.org/zap"
)

// RunTask executes the task in the current goroutine, recovering from panics.
// A panic is returned as parallel.ErrPanic.
func RunTask(ctx context.Context, task parallel.Task) (err error) {
	defer func() {
		if p := recover(); p != nil {
			panicErr := parallel.ErrPanic{Value: p, Stack: debug.Stack()}
			err = panicErr
		}
	}()
	return task(ctx)
}

// Recover is a middleware that catches and logs panics from HTTP handlers.
//
// The client receives a bare 500 unless the handler has already sent the
// response header. http.ErrAbortHandler is passed through to net/http, which
// aborts the response silently.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sr := NewStatusRecorder(w)
		err := RunTask(r.Context(), func(ctx context.Context) error {
			next.ServeHTTP(sr, r)
			return nil
		})
		if err == nil {
			return
		}

		var errPanic parallel.ErrPanic
		if errors.As(err, &errPanic) && errPanic.Value == http.ErrAbortHandler { //nolint:errorlint // sentinel identity is what net/http checks
			panic(http.ErrAbortHandler)
		}

		tlog.Get(r.Context()).Error("Panic while handling HTTP request", zap.Error(err), zap.ByteString("stack", errPanic.Stack))
		if !sr.WroteHeader() {
			w.WriteHeader(http.StatusInternalServerError)
		}
	})
}
