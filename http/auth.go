package http

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/quadcull/websocket"
	xwebsocket "golang.org/x/net/websocket"
)

const (
	ErrTypeUnauthorized = "unauthorized"

	tokenQueryKey = "token"
)

// GetTokenFromHTTPRequest returns the bearer token of the request, or its
// token query parameter when there is no Authorization header.
func GetTokenFromHTTPRequest(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return r.URL.Query().Get(tokenQueryKey)
}

func verifyToken(expected string, r *http.Request) error {
	if expected == "" {
		return nil
	}

	token := GetTokenFromHTTPRequest(r)
	if subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
		return errors.New("invalid auth token").
			WithType(ErrTypeUnauthorized).
			WithTag("path", r.URL.Path)
	}
	return nil
}

// VerifyAuthToken returns a websocket handshake that rejects requests without
// the given token. Every request is accepted when token is empty.
func VerifyAuthToken(token string) func(*xwebsocket.Config, *http.Request) error {
	return func(c *xwebsocket.Config, r *http.Request) error {
		if err := verifyToken(token, r); err != nil {
			logs.WithClientID(r.Header.Get(websocket.HeaderClientID)).Error(err)
			return err
		}

		return nil
	}
}

func VerifyAuthTokenHandler(token string, next http.HandlerFunc) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := verifyToken(token, r); err != nil {
			logs.WithClientID(r.Header.Get(websocket.HeaderClientID)).Error(err)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	}
}
