package thttp

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

func getScheme(r *http.Request) (string, error) {
	p := r.Header.Get("X-Forwarded-Proto")
	switch p {
	case "":
		if r.TLS != nil {
			return "https", nil
		}
		return "http", nil
	case "http", "https":
		return p, nil
	default:
		return "", fmt.Errorf("unexpected X-Forwarded-Proto %q", p)
	}
}

// Origin returns the origin of HTTP request.
func Origin(r *http.Request) (string, error) {
	scheme, err := getScheme(r)
	if err != nil {
		return "", err
	}
	if r.Host == "" {
		return "", errors.New("missing Host header")
	}
	return scheme + "://" + r.Host, nil
}

// SameOrigin reports whether a request is not cross-origin: either it has no
// Origin header, or the header matches the origin the request was sent to.
// Suitable as the CheckOrigin function of WebSocket upgrades.
func SameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	own, err := Origin(r)
	return err == nil && strings.EqualFold(origin, own)
}
