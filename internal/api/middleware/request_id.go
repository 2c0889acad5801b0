// Package middleware provides HTTP middleware for the SmartRunning API.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/smartrunning/smartrunning/internal/api/models"
)

const (
	requestIDHeader   = "X-Request-Id"
	requestIDPrefix   = "req_"
	maxRequestIDBytes = 128
)

type requestIDKey struct{}

// RequestID tags each request with an ID, taken from X-Request-Id when the
// caller sent a usable one, and echoes it in the response header.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" || len(id) > maxRequestIDBytes {
			id = newRequestID()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func newRequestID() string {
	return requestIDPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// writeProblem is the middleware counterpart of the response helpers, which
// import this package.
func writeProblem(w http.ResponseWriter, r *http.Request, kind models.Kind, detail string) {
	p := models.New(kind, GetRequestID(r.Context()), detail)
	p.Instance = r.URL.Path
	p.Write(w)
}
