package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/smartrunning/smartrunning/internal/api/models"
)

// RatePolicy is a fixed-window request budget.
type RatePolicy struct {
	// Name appears in the 429 detail, e.g. "route generation".
	Name     string
	Requests int
	Window   time.Duration
}

// Budgets per endpoint class.
var (
	// AuthPolicy covers register, login and refresh, keyed by client IP.
	AuthPolicy = RatePolicy{Name: "authentication", Requests: 10, Window: time.Minute}

	// RoutePolicy covers loop generation and GPX export, keyed by user.
	RoutePolicy = RatePolicy{Name: "route generation", Requests: 30, Window: time.Minute}

	// StandardPolicy covers activity and profile CRUD, keyed by user.
	StandardPolicy = RatePolicy{Name: "API", Requests: 100, Window: time.Minute}
)

// RateLimitByIP limits by the client address resolved by chi's RealIP.
func RateLimitByIP(p RatePolicy) func(http.Handler) http.Handler {
	return p.limiter(httprate.KeyByRealIP)
}

// RateLimitByUser limits by authenticated user, falling back to the client
// address when the request is anonymous. Mount it after Auth.
func RateLimitByUser(p RatePolicy) func(http.Handler) http.Handler {
	return p.limiter(keyByUserOrIP)
}

func (p RatePolicy) limiter(key httprate.KeyFunc) func(http.Handler) http.Handler {
	return httprate.Limit(
		p.Requests,
		p.Window,
		httprate.WithKeyFuncs(key),
		httprate.WithLimitHandler(p.exceeded),
	)
}

func keyByUserOrIP(r *http.Request) (string, error) {
	if userID := GetUserID(r.Context()); userID != "" {
		return "user:" + userID, nil
	}
	return httprate.KeyByRealIP(r)
}

// exceeded writes a 429 problem. httprate does not expose the window reset,
// so Retry-After is the full window.
func (p RatePolicy) exceeded(w http.ResponseWriter, r *http.Request) {
	retry := int(math.Ceil(p.Window.Seconds()))
	w.Header().Set("Retry-After", strconv.Itoa(retry))

	detail := fmt.Sprintf("Rate limit exceeded for %s requests. Please try again in %d seconds.", p.Name, retry)
	writeProblem(w, r, models.KindRateLimited, detail)
}
