package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/smartrunning/smartrunning/internal/api/models"
	"github.com/smartrunning/smartrunning/internal/auth"
)

// 401 details. Expired and forged tokens are not distinguished.
const (
	msgAuthRequired = "Authentication required"
	msgInvalidToken = "Invalid or expired token"
)

type userIDKey struct{}

// TokenValidator resolves an access token to a user ID. *auth.Service
// satisfies it.
type TokenValidator interface {
	ValidateAccessToken(token string) (string, error)
}

var _ TokenValidator = (*auth.Service)(nil)

// Auth rejects requests without a valid "Authorization: Bearer <jwt>" header
// and stores the caller's user ID in the request context.
func Auth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeUnauthorized(w, r, msgAuthRequired)
				return
			}

			userID, err := validator.ValidateAccessToken(token)
			if err != nil || userID == "" {
				writeUnauthorized(w, r, msgInvalidToken)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// bearerToken extracts the token from an Authorization header. The scheme is
// matched case-insensitively.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// writeUnauthorized adds the Bearer challenge to a 401 problem.
func writeUnauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="smartrunning"`)
	writeProblem(w, r, models.KindUnauthorized, detail)
}

// WithUserID returns ctx carrying userID as the authenticated caller.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// GetUserID returns the authenticated user ID, or "" for anonymous requests.
func GetUserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey{}).(string)
	return id
}
