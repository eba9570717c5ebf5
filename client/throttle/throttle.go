// Package throttle provides an [http.RoundTripper] that rate-limits
// outbound requests with a token bucket from [golang.org/x/time/rate].
//
// When the bucket is empty a request waits for a token or for its context
// to end, whichever comes first:
//
//	rt, err := throttle.New(throttle.Config{RPS: 10, Burst: 5}, http.DefaultTransport)
//	hc := &http.Client{Transport: rt}
package throttle

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

var (
	ErrMustNotBeZero = errors.New("must be greater than zero")
	ErrWaitingFailed = errors.New("limiter waiting failed")
	ErrContextEnded  = errors.New("throttle context ended")
)

// Config holds the requests per second and burst capacity of the bucket.
type Config struct {
	RPS   int
	Burst int
}

// Validate reports whether both limits are positive.
func (c Config) Validate() error {
	if c.RPS <= 0 || c.Burst <= 0 {
		return fmt.Errorf("rps[%d] and burst[%d] %w", c.RPS, c.Burst, ErrMustNotBeZero)
	}

	return nil
}

// Option configures the throttling RoundTripper.
type Option func(*RoundTripper)

// WithLogger resolves the logger lazily at request time so option order
// in the owning client doesn't matter. A nil logger disables wait logging.
func WithLogger(fn func() *slog.Logger) Option {
	return func(rt *RoundTripper) {
		rt.logFn = fn
	}
}

// RoundTripper delays requests that exceed the configured rate.
type RoundTripper struct {
	limiter *rate.Limiter
	cfg     Config
	next    http.RoundTripper
	logFn   func() *slog.Logger
}

// New wraps next with a token bucket limiter described by cfg.
func New(cfg Config, next http.RoundTripper, optFns ...Option) (*RoundTripper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if next == nil {
		next = http.DefaultTransport
	}

	rt := &RoundTripper{
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		cfg:     cfg,
		next:    next,
		logFn:   func() *slog.Logger { return nil },
	}
	for _, opt := range optFns {
		opt(rt)
	}

	return rt, nil
}

// Config returns the limits the RoundTripper was built with.
func (t *RoundTripper) Config() Config { return t.cfg }

func (t *RoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	ctx := r.Context()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w early: %w", ErrContextEnded, err)
	}

	logger := t.logFn()
	exhausted := logger != nil && t.limiter.Tokens() < 1
	if exhausted {
		logger.Info("throttle tokens exhausted", "rate", t.cfg.RPS, "burst", t.cfg.Burst, "url", r.URL.Redacted())
	}

	start := time.Now()
	err := t.limiter.Wait(ctx)
	if exhausted {
		logger.Info("throttle wait complete", "waited", time.Since(start).String(), "rate", t.cfg.RPS, "burst", t.cfg.Burst)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWaitingFailed, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w post-wait: %w", ErrContextEnded, err)
	}

	return t.next.RoundTrip(r)
}
