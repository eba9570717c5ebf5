// Package stub is a development server answering with application
// envelopes. It backs the serve command of cmd/httpkit and the
// end-to-end tests of the client.
package stub

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Handler is a http.Handler that returns an error.
type Handler func(ctx context.Context, w http.ResponseWriter, r *http.Request) error

// Middleware defines a signature to chain Handler together.
type Middleware func(handler Handler) Handler

// Server routes stub endpoints.
type Server struct {
	mux    *http.ServeMux
	mw     []Middleware
	logger *slog.Logger
	tracer trace.Tracer
	files  map[string][]byte
}

// Option configures a Server.
type Option func(*options)

type options struct {
	logger *slog.Logger
	tracer trace.Tracer
	files  map[string][]byte
	mw     []Middleware
}

// WithLogger sets the request logger. Default is slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(o *options) {
		o.logger = log
	}
}

// WithTracer sets the tracer opening one span per request.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}

// WithFile serves content under /files/{name}.
func WithFile(name string, content []byte) Option {
	return func(o *options) {
		if o.files == nil {
			o.files = make(map[string][]byte)
		}
		o.files[name] = content
	}
}

// WithMiddleware appends mw to the stack wrapping every route.
func WithMiddleware(mw ...Middleware) Option {
	return func(o *options) {
		o.mw = append(o.mw, mw...)
	}
}

// New creates a Server with every stub route registered.
func New(optFns ...Option) *Server {
	var opts options
	for _, opt := range optFns {
		opt(&opts)
	}
	if opts.logger == nil {
		opts.logger = slog.Default()
	}
	if opts.tracer == nil {
		opts.tracer = noop.NewTracerProvider().Tracer("no-op tracer")
	}

	s := &Server{
		mux:    http.NewServeMux(),
		mw:     append([]Middleware{Logger(opts.logger), Panics()}, opts.mw...),
		logger: opts.logger,
		tracer: opts.tracer,
		files:  opts.files,
	}
	s.routes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handle registers handler for a ServeMux pattern such as "GET /files/{name}".
func (s *Server) handle(pattern string, handler Handler) {
	handler = wrap(s.mw, handler)

	h := func(w http.ResponseWriter, r *http.Request) {
		ctx, span := s.startSpan(w, r)
		defer span.End()

		traceID := span.SpanContext().TraceID().String()
		if !span.SpanContext().TraceID().IsValid() {
			traceID = uuid.New().String()
		}

		v := values{
			TraceID: traceID,
			Now:     time.Now().UTC(),
		}

		r = r.WithContext(setValues(ctx, &v))

		if err := handler(r.Context(), w, r); err != nil {
			s.logger.Error("stub", "handle", err)
		}
	}

	s.mux.HandleFunc(pattern, h)
}

// startSpan continues the caller's trace and echoes its propagation
// headers on the response.
func (s *Server) startSpan(w http.ResponseWriter, r *http.Request) (context.Context, trace.Span) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	ctx, span := s.tracer.Start(ctx, "stub.handler", trace.WithSpanKind(trace.SpanKindServer))
	span.SetAttributes(attribute.String("path", r.RequestURI))

	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(w.Header()))

	return ctx, span
}

// wrap middleware around the handler and execute in order given.
func wrap(mw []Middleware, handler Handler) Handler {
	for _, mwFn := range slices.Backward(mw) {
		if mwFn != nil {
			handler = mwFn(handler)
		}
	}

	return handler
}

// =============================================================================

type ctxKey int

const base ctxKey = 1

type values struct {
	TraceID    string
	Now        time.Time
	StatusCode int
}

func setValues(ctx context.Context, v *values) context.Context {
	return context.WithValue(ctx, base, v)
}

func getValues(ctx context.Context) *values {
	v, ok := ctx.Value(base).(*values)
	if !ok {
		return &values{TraceID: uuid.Nil.String(), Now: time.Now()}
	}

	return v
}

func setStatusCode(ctx context.Context, statusCode int) {
	if v, ok := ctx.Value(base).(*values); ok {
		v.StatusCode = statusCode
	}
}
