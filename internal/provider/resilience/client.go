package resilience

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned without contacting the provider while its
// breaker is open or its half-open probe budget is spent.
var ErrCircuitOpen = errors.New("circuit breaker is open")

const (
	defaultTimeout         = 10 * time.Second
	defaultInitialInterval = 100 * time.Millisecond
	defaultMaxInterval     = 2 * time.Second
)

// ClientConfig configures a resilient HTTP client. Zero durations take the
// package defaults.
type ClientConfig struct {
	// Name keys the breaker and the registry entry.
	Name string

	// Timeout bounds each attempt.
	Timeout time.Duration
	// MaxRetries counts attempts after the first; zero disables retries.
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration

	// CircuitBreaker defaults to DefaultCircuitBreakerConfig(Name).
	CircuitBreaker *CircuitBreakerConfig
	Registry       *Registry

	// UserAgent is sent when a request carries none.
	UserAgent string
	Transport http.RoundTripper
	Logger    zerolog.Logger
}

// DefaultClientConfig is the setup shared by provider clients: two retries
// and the default breaker.
func DefaultClientConfig(name string) ClientConfig {
	cb := DefaultCircuitBreakerConfig(name)
	return ClientConfig{
		Name:            name,
		Timeout:         defaultTimeout,
		MaxRetries:      2,
		InitialInterval: defaultInitialInterval,
		MaxInterval:     defaultMaxInterval,
		CircuitBreaker:  &cb,
		Logger:          zerolog.Nop(),
	}
}

func (cfg *ClientConfig) applyDefaults() {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = defaultInitialInterval
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = defaultMaxInterval
	}
	if cfg.CircuitBreaker == nil {
		cb := DefaultCircuitBreakerConfig(cfg.Name)
		cfg.CircuitBreaker = &cb
	}
}

// Client is an http.Client behind a circuit breaker with exponential retry.
type Client struct {
	cfg     ClientConfig
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
	log     zerolog.Logger
}

// NewClient builds the client and registers its breaker with cfg.Registry.
func NewClient(cfg ClientConfig) *Client {
	cfg.applyDefaults()
	c := &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout, Transport: cfg.Transport},
		breaker: NewCircuitBreaker[*http.Response](*cfg.CircuitBreaker, cfg.Logger), //nolint:bodyclose // type parameter
		log:     cfg.Logger.With().Str("provider", cfg.Name).Logger(),
	}
	if cfg.Registry != nil {
		cfg.Registry.Register(cfg.Name, c.breaker)
	}
	return c
}

func (c *Client) Name() string { return c.cfg.Name }

// Do sends req, retrying transport errors and 5xx replies. 4xx replies are
// final. When retries run out on a 5xx the last reply is returned with a nil
// error so callers can map the status themselves.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	var (
		last    *http.Response
		attempt int
	)

	op := func() error {
		attempt++
		if last != nil {
			last.Body.Close()
			last = nil
		}
		resp, err := c.breaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // returned to caller
			return c.send(req, attempt)
		})
		last = resp
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(ErrCircuitOpen)
		}
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.InitialInterval
	bo.MaxInterval = c.cfg.MaxInterval
	bo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.cfg.MaxRetries), ctx)

	err := backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
		c.log.Debug().Err(err).Int("attempt", attempt).Dur("retry_in", wait).Msg("provider request failed, retrying")
	})
	if err == nil {
		c.record(nil)
		return last, nil
	}

	c.record(err)
	if last != nil && !errors.Is(err, ErrCircuitOpen) {
		return last, nil
	}
	return nil, err
}

// send performs one attempt. Bodies are replayed from GetBody on retries.
func (c *Client) send(req *http.Request, attempt int) (*http.Response, error) {
	r := req.Clone(req.Context())
	if attempt > 1 && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		r.Body = body
	}
	if c.cfg.UserAgent != "" && r.Header.Get("User-Agent") == "" {
		r.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := c.http.Do(r)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return resp, &ServerError{StatusCode: resp.StatusCode}
	}
	return resp, nil
}

func (c *Client) record(err error) {
	if c.cfg.Registry == nil {
		return
	}
	if err != nil {
		c.cfg.Registry.RecordFailure(c.cfg.Name, err)
		return
	}
	c.cfg.Registry.RecordSuccess(c.cfg.Name)
}

func (c *Client) CircuitBreakerState() gobreaker.State   { return c.breaker.State() }
func (c *Client) CircuitBreakerCounts() gobreaker.Counts { return c.breaker.Counts() }

// ServerError reports a 5xx reply from a provider.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "server error: " + strconv.Itoa(e.StatusCode) + " " + http.StatusText(e.StatusCode)
}
