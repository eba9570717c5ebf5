package client

import (
	"errors"
	"fmt"
	"hash"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/adamwoolhether/httpkit/client/download"
	"github.com/adamwoolhether/httpkit/client/throttle"
	"github.com/adamwoolhether/httpkit/scope"
)

// Option is a functional option for configuring a [Client] via [Build].
type Option func(*options) error
type options struct {
	client            *http.Client
	rt                http.RoundTripper
	timeout           *time.Duration
	userAgent         string
	throttle          *throttle.Config
	noFollowRedirects bool
	logger            *slog.Logger
	tracer            trace.Tracer
	debug             bool
	maxConcurrent     int
	downloadDir       string
}

// WithClient replaces the default [http.Client] used by the [Client].
// The client is copied, so later changes to hc are not observed.
func WithClient(hc *http.Client) Option {
	return func(c *options) error {
		if hc == nil {
			return errors.New("client must not be nil")
		}
		c.client = hc
		return nil
	}
}

// WithTransport sets a custom [http.RoundTripper] as the base transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *options) error {
		if rt == nil {
			return errors.New("transport must not be nil")
		}
		c.rt = rt
		return nil
	}
}

// WithTimeout sets the overall request timeout on the underlying [http.Client].
func WithTimeout(d time.Duration) Option {
	return func(c *options) error {
		if d < 0 {
			return errors.New("timeout must not be negative")
		}
		c.timeout = &d
		return nil
	}
}

// WithUserAgent sets the User-Agent of outgoing requests that do not
// carry one.
func WithUserAgent(header string) Option {
	return func(c *options) error {
		c.userAgent = header
		return nil
	}
}

// WithThrottle enables token-bucket rate limiting with the given requests per second and burst capacity.
func WithThrottle(rps, burst int) Option {
	return func(c *options) error {
		cfg := throttle.Config{RPS: rps, Burst: burst}
		if err := cfg.Validate(); err != nil {
			return err
		}
		c.throttle = &cfg
		return nil
	}
}

// WithNoFollowRedirects prevents the [Client] from following HTTP redirects.
func WithNoFollowRedirects() Option {
	return func(c *options) error {
		c.noFollowRedirects = true
		return nil
	}
}

// WithLogger injects a custom [slog.Logger] into the [Client].
func WithLogger(logger *slog.Logger) Option {
	return func(c *options) error {
		if logger == nil {
			return errors.New("logger must not be nil")
		}
		c.logger = logger
		return nil
	}
}

// WithTracer sets the tracer used to open one span per task.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *options) error {
		if tracer == nil {
			return errors.New("tracer must not be nil")
		}
		c.tracer = tracer
		return nil
	}
}

// WithDebug logs every request and its outcome at debug level.
func WithDebug() Option {
	return func(c *options) error {
		c.debug = true
		return nil
	}
}

// WithMaxConcurrent bounds the number of tasks running at once. Tasks
// beyond the limit wait for a slot. n <= 0 means unlimited.
func WithMaxConcurrent(n int) Option {
	return func(c *options) error {
		c.maxConcurrent = n
		return nil
	}
}

// WithDownloadDir sets the directory holding partial downloads.
// Defaults to [os.TempDir].
func WithDownloadDir(dir string) Option {
	return func(c *options) error {
		if dir == "" {
			return errors.New("download dir must not be empty")
		}
		c.downloadDir = dir
		return nil
	}
}

// userAgent is an http.RoundTripper, enabling the persistent User-Agent
// header. A User-Agent already on the request, from the descriptor or a
// modifier, is kept.
type userAgent struct {
	value string
	base  http.RoundTripper
}

func (ua userAgent) RoundTrip(r *http.Request) (*http.Response, error) {
	if r.Header.Get("User-Agent") != "" {
		return ua.base.RoundTrip(r)
	}

	cpy := r.Clone(r.Context())
	cpy.Header.Set("User-Agent", ua.value)
	return ua.base.RoundTrip(cpy)
}

// =============================================================================

// TaskOption is a functional option for a single task.
type TaskOption func(*taskOpts) error

type taskOpts struct {
	modifier   func(*http.Request) error
	progress   ProgressFunc
	completion func(Response, error)
	scope      *scope.Scope
	download   []download.Option
}

func applyTaskOptions(optFns []TaskOption) (taskOpts, error) {
	var opts taskOpts
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return taskOpts{}, fmt.Errorf("applying task option: %w", err)
		}
	}

	return opts, nil
}

// WithModifier runs fn on the outgoing request after every other
// header has been set, immediately before dispatch. An error fails the
// task.
func WithModifier(fn func(*http.Request) error) TaskOption {
	return func(o *taskOpts) error {
		if fn == nil {
			return errors.New("modifier must not be nil")
		}
		o.modifier = fn
		return nil
	}
}

// WithProgress reports transfer progress of uploads and downloads.
// It is ignored by Fetch.
func WithProgress(fn ProgressFunc) TaskOption {
	return func(o *taskOpts) error {
		if fn == nil {
			return errors.New("progress func must not be nil")
		}
		o.progress = fn
		o.download = append(o.download, download.WithProgress(fn))
		return nil
	}
}

// WithCompletion calls fn exactly once when the task finishes, with the
// same values [Task.Wait] returns.
func WithCompletion(fn func(Response, error)) TaskOption {
	return func(o *taskOpts) error {
		if fn == nil {
			return errors.New("completion func must not be nil")
		}
		o.completion = fn
		return nil
	}
}

// WithScope cancels the task when s is closed.
func WithScope(s *scope.Scope) TaskOption {
	return func(o *taskOpts) error {
		if s == nil {
			return errors.New("scope must not be nil")
		}
		o.scope = s
		return nil
	}
}

// WithDestination sets the policy placing a finished download.
func WithDestination(p download.Policy) TaskOption {
	return func(o *taskOpts) error {
		if p == nil {
			return errors.New("destination policy must not be nil")
		}
		o.download = append(o.download, download.WithDestination(p))
		return nil
	}
}

// WithChecksum enables checksum validation of the downloaded file.
// h is a [hash.Hash] instance (e.g. sha256.New()), and expected is the
// hex-encoded expected checksum string.
func WithChecksum(h hash.Hash, expected string) TaskOption {
	return func(o *taskOpts) error {
		o.download = append(o.download, download.WithChecksum(h, expected))
		return nil
	}
}
