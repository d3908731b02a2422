package thttp

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/ridge/reqlog/diag"
	"github.com/ridge/reqlog/tlog"
	"go.uber.org/zap"
)

// RequestIDHeader carries the request ID in both directions
const RequestIDHeader = "X-Request-ID"

const maxRequestIDLen = 128

// RequestID is a middleware that assigns an ID to every request.
//
// An ID supplied by the client in X-Request-ID is kept, otherwise a random
// UUID is generated. The ID is echoed in the response header, added to the
// context logger as requestID, and recorded as the RequestId diagnostic
// property when a diag scope is open.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		ctx := r.Context()
		diag.Set(ctx, "RequestId", id)
		if logger, ok := tlog.Lookup(ctx); ok {
			ctx = tlog.WithLogger(ctx, logger.With(zap.String("requestID", id)))
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
