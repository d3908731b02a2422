package thttp

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
)

// StatusRecorder wraps a http.ResponseWriter to record the response status
// code and the number of body bytes written.
//
// Hijacking and flushing are passed through to the wrapped writer.
type StatusRecorder struct {
	http.ResponseWriter
	status  int
	written int64
}

// NewStatusRecorder creates a StatusRecorder
func NewStatusRecorder(w http.ResponseWriter) *StatusRecorder {
	return &StatusRecorder{ResponseWriter: w}
}

// WriteHeader implements http.ResponseWriter
func (sr *StatusRecorder) WriteHeader(statusCode int) {
	if sr.status == 0 && statusCode >= 200 {
		sr.status = statusCode
	}
	sr.ResponseWriter.WriteHeader(statusCode)
}

// Write implements http.ResponseWriter
func (sr *StatusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.written += int64(n)
	return n, err
}

// Status returns the status code sent to the client. If the handler has not
// written anything, it is the status net/http will send: 200.
func (sr *StatusRecorder) Status() int {
	if sr.status == 0 {
		return http.StatusOK
	}
	return sr.status
}

// WroteHeader reports whether the response header has been sent
func (sr *StatusRecorder) WroteHeader() bool {
	return sr.status != 0
}

// Written returns the number of body bytes written
func (sr *StatusRecorder) Written() int64 {
	return sr.written
}

// Flush implements http.Flusher
func (sr *StatusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		if sr.status == 0 {
			sr.status = http.StatusOK
		}
		f.Flush()
	}
}

// Hijack implements http.Hijacker
func (sr *StatusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := sr.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("%T does not support hijacking", sr.ResponseWriter)
	}
	if sr.status == 0 {
		sr.status = http.StatusSwitchingProtocols
	}
	return h.Hijack()
}

// Unwrap returns the wrapped writer, for http.ResponseController
func (sr *StatusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}
