package thttp

import (
	"net/http"

	"github.com/gorilla/handlers"
)

var (
	allowedMethods = []string{
		http.MethodGet,
		http.MethodPost,
		http.MethodOptions,
		http.MethodDelete,
	}
	allowedHeaders = []string{
		"Cache-Control",
		"Content-Type",
		"DNT",
		"If-Modified-Since",
		"Range",
		"User-Agent",
		"X-Requested-With",
		RequestIDHeader,
	}
	exposedHeaders = []string{
		"Content-Encoding",
		"Content-Length",
		RequestIDHeader,
	}
)

// NewCORS returns a middleware that allows cross-origin requests from the
// given origins ("*" for any)
func NewCORS(origins []string) func(http.Handler) http.Handler {
	return handlers.CORS(
		handlers.AllowedMethods(allowedMethods),
		handlers.AllowedHeaders(allowedHeaders),
		handlers.ExposedHeaders(exposedHeaders),
		handlers.AllowedOrigins(origins),
	)
}

// CORS is a middleware that allows cross-origin requests from any origin
var CORS = NewCORS([]string{"*"})
