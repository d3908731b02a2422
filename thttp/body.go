package thttp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ridge/must/v2"
	"go.uber.org/zap"
)

// ErrBufferingUnsupported is returned by BufferBody when the request cannot
// carry a replacement body
var ErrBufferingUnsupported = errors.New("request body buffering is not supported")

// BufferedBody is a request body held in memory. Unlike the body coming from
// the network it can be read many times by seeking back to the start.
type BufferedBody struct {
	*bytes.Reader
	data []byte
}

func newBufferedBody(data []byte) *BufferedBody {
	return &BufferedBody{Reader: bytes.NewReader(data), data: data}
}

// Bytes returns the complete body regardless of the read position
func (bb *BufferedBody) Bytes() []byte {
	return bb.data
}

// Rewind moves the read position back to the start
func (bb *BufferedBody) Rewind() {
	must.OK1(bb.Seek(0, io.SeekStart)) // seeking to 0 never fails
}

// Close implements io.Closer. The buffer stays readable after Close.
func (bb *BufferedBody) Close() error {
	return nil
}

// BufferBody reads the whole request body and replaces it with a BufferedBody
// positioned at the start, so that handlers further down the chain see an
// unconsumed body. r.GetBody is set to replay the same bytes.
//
// The original body is not closed: net/http closes it once the handler
// returns. Content-Length is left untouched.
//
// A missing or empty body yields an empty string.
func BufferBody(r *http.Request) (string, error) {
	if r == nil {
		return "", ErrBufferingUnsupported
	}
	if bb, ok := r.Body.(*BufferedBody); ok {
		bb.Rewind()
		return string(bb.data), nil
	}
	if r.Body == nil || r.Body == http.NoBody {
		return "", nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return "", fmt.Errorf("failed to buffer request body: %w", err)
	}

	r.Body = newBufferedBody(data)
	r.GetBody = func() (io.ReadCloser, error) {
		return newBufferedBody(data), nil
	}
	return string(data), nil
}

// JSONResult writes HTTP error code and JSON
func JSONResult(logger *zap.Logger, writer http.ResponseWriter, res any, code int) {
	body := must.OK1(json.Marshal(res))
	writer.Header().Add("Content-Type", "application/json")
	writer.WriteHeader(code)
	if _, err := writer.Write(body); err != nil {
		logger.Debug("failed to write response to client", zap.Error(err))
	}
}
