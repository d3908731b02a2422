package thttp

import (
	"bytes"
	"compress/gzip"
	"net/http"
	"strconv"

	"github.com/kevinpollet/nego"
	"github.com/ridge/must/v2"
)

func gzipCompress(data []byte) []byte {
	compressed := bytes.NewBuffer(nil)
	compressor := gzip.NewWriter(compressed)
	must.OK1(compressor.Write(data)) // writing to bytes.Buffer never fails
	must.OK(compressor.Close())
	return compressed.Bytes()
}

// ShouldGzip returns if gzip-compression is asked for in HTTP request
func ShouldGzip(r *http.Request) bool {
	// nego.NegotiateContentEncoding(r, "gzip") returns "gzip"
	// if there is no "Accept-Encoding" header there. Guard against it.
	return r.Header.Get("Accept-Encoding") != "" && nego.NegotiateContentEncoding(r, "gzip") == "gzip"
}

// WriteCompressible sends a complete response body, gzipped if the client
// asks for it
func WriteCompressible(w http.ResponseWriter, r *http.Request, contentType string, status int, body []byte) error {
	w.Header().Add("Vary", "Accept-Encoding")
	w.Header().Set("Content-Type", contentType)
	if ShouldGzip(r) {
		w.Header().Set("Content-Encoding", "gzip")
		body = gzipCompress(body)
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	_, err := w.Write(body)
	return err
}
