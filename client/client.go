package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/adamwoolhether/httpkit/client/download"
	"github.com/adamwoolhether/httpkit/client/task"
	"github.com/adamwoolhether/httpkit/client/throttle"
	"github.com/adamwoolhether/httpkit/errs"
	"github.com/adamwoolhether/httpkit/internal/compress"
	"github.com/adamwoolhether/httpkit/request"
)

const (
	tracerName = "github.com/adamwoolhether/httpkit/client"
	maxDrain   = 256 << 10
)

// Client wraps the std-lib *http.Client and runs every request as a
// background [Task]. It sets a default *http.Client and
// *http.Transport, which can be customized via optional funcs.
type Client struct {
	c      *http.Client
	logger *slog.Logger
	tracer trace.Tracer
	debug  bool
	dir    string
	group  *task.Group
}

// Build constructs a Client.
func Build(optFns ...Option) (*Client, error) {
	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying client option: %w", err)
		}
	}

	client := &Client{
		c:      &http.Client{},
		logger: slog.Default(),
		tracer: noop.NewTracerProvider().Tracer(tracerName),
		debug:  opts.debug,
		dir:    opts.downloadDir,
		group:  task.NewGroup(opts.maxConcurrent),
	}

	if opts.client != nil {
		cpy := *opts.client
		client.c = &cpy
	}

	if opts.logger != nil {
		client.logger = opts.logger
	}

	if opts.tracer != nil {
		client.tracer = opts.tracer
	}

	if opts.timeout != nil {
		client.c.Timeout = *opts.timeout
	}

	if opts.noFollowRedirects {
		client.c.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	var transport http.RoundTripper
	switch {
	case opts.rt != nil:
		transport = opts.rt
	case opts.client != nil && opts.client.Transport != nil:
		transport = opts.client.Transport
	default:
		transport = http.DefaultTransport
	}
	if opts.userAgent != "" {
		transport = userAgent{value: opts.userAgent, base: transport}
	}
	if opts.throttle != nil {
		rt, err := throttle.New(*opts.throttle, transport, throttle.WithLogger(func() *slog.Logger { return client.logger }))
		if err != nil {
			return nil, fmt.Errorf("configuring throttle: %w", err)
		}
		transport = rt
	}
	client.c.Transport = transport

	return client, nil
}

// Fetch sends d and buffers the response body. Multipart bodies are
// rejected with [errs.ErrMultipartBody]; use [Client.Upload].
func (c *Client) Fetch(ctx context.Context, d request.Descriptor, optFns ...TaskOption) (*Task, error) {
	if request.IsMultipart(d.Body()) {
		return nil, errs.ErrMultipartBody
	}

	opts, err := applyTaskOptions(optFns)
	if err != nil {
		return nil, err
	}

	enc, err := request.Encode(d.Body())
	if err != nil {
		return nil, fmt.Errorf("encoding body: %w", err)
	}

	header := withEncoding(d.HTTPHeader(), enc.Header)

	fetchFn := func(ctx context.Context, t *Task) (Response, error) {
		req, err := c.newRequest(ctx, d.Method(), d.URL(), header, bodyReader(enc.Body))
		if err != nil {
			return Response{}, err
		}

		resp, err := c.do(req, opts.modifier)
		if err != nil {
			return Response{}, err
		}

		return c.readResponse(resp)
	}

	return c.start(ctx, "fetch", d.Method(), d.URL(), &d, header, opts, fetchFn), nil
}

// Upload streams the multipart body of d. Any other body is rejected
// with [errs.ErrNotMultipart]. Files on disk are read while sending.
func (c *Client) Upload(ctx context.Context, d request.Descriptor, optFns ...TaskOption) (*Task, error) {
	m, ok := d.Body().(request.Multipart)
	if !ok {
		return nil, errs.ErrNotMultipart
	}

	opts, err := applyTaskOptions(optFns)
	if err != nil {
		return nil, err
	}

	mb, err := request.EncodeMultipart(m)
	if err != nil {
		return nil, fmt.Errorf("encoding multipart body: %w", err)
	}

	header := d.HTTPHeader()
	if header.Get("Content-Type") == "" {
		header.Set("Content-Type", mb.ContentType())
	}

	uploadFn := func(ctx context.Context, t *Task) (Response, error) {
		body := mb.Open()
		if opts.progress != nil {
			body = &uploadProgress{rc: body, fn: opts.progress, size: mb.Len()}
		}

		req, err := c.newRequest(ctx, d.Method(), d.URL(), header, body)
		if err != nil {
			body.Close()
			return Response{}, err
		}
		req.ContentLength = mb.Len()
		req.GetBody = func() (io.ReadCloser, error) {
			return mb.Open(), nil
		}

		resp, err := c.do(req, opts.modifier)
		if err != nil {
			return Response{}, err
		}

		return c.readResponse(resp)
	}

	return c.start(ctx, "upload", d.Method(), d.URL(), &d, header, opts, uploadFn), nil
}

// Download streams the response to d into a file. The Response body of
// a successful task holds the path of the placed file. When the
// transfer is interrupted, [Task.ResumeToken] may allow continuing it
// with [Client.ResumeDownload].
func (c *Client) Download(ctx context.Context, d request.Descriptor, optFns ...TaskOption) (*Task, error) {
	if request.IsMultipart(d.Body()) {
		return nil, errs.ErrMultipartBody
	}

	opts, err := applyTaskOptions(optFns)
	if err != nil {
		return nil, err
	}

	enc, err := request.Encode(d.Body())
	if err != nil {
		return nil, fmt.Errorf("encoding body: %w", err)
	}

	header := withEncoding(d.HTTPHeader(), enc.Header)

	downloadFn := func(ctx context.Context, t *Task) (Response, error) {
		req, err := c.newRequest(ctx, d.Method(), d.URL(), header, bodyReader(enc.Body))
		if err != nil {
			return Response{}, err
		}

		resp, err := c.do(req, opts.modifier)
		if err != nil {
			return Response{}, err
		}

		s := download.Session{URL: d.URL(), Header: header, Dir: c.dir}
		return c.saveResponse(ctx, t, s, resp, opts)
	}

	return c.start(ctx, "download", d.Method(), d.URL(), &d, header, opts, downloadFn), nil
}

// ResumeDownload continues an interrupted download with a GET carrying
// Range and If-Range headers. A server that ignores the range restarts
// the file from zero.
func (c *Client) ResumeDownload(ctx context.Context, tok download.ResumeToken, optFns ...TaskOption) (*Task, error) {
	r, err := download.ParseResumeToken(tok)
	if err != nil {
		return nil, err
	}

	opts, err := applyTaskOptions(optFns)
	if err != nil {
		return nil, err
	}

	resumeFn := func(ctx context.Context, t *Task) (Response, error) {
		header := r.Header.Clone()
		if header == nil {
			header = http.Header{}
		}
		header.Set("Range", r.RangeHeader())
		header.Set("Accept-Encoding", "identity")
		if r.Validator != "" {
			header.Set("If-Range", r.Validator)
		}

		req, err := c.newRequest(ctx, request.MethodGet, r.URL, header, nil)
		if err != nil {
			return Response{}, err
		}

		resp, err := c.do(req, opts.modifier)
		if err != nil {
			return Response{}, err
		}

		saved, err := c.saveResponse(ctx, t, r.Session, resp, opts)
		if errors.Is(err, download.ErrResumeRejected) {
			t.resume = tok
		}

		return saved, err
	}

	return c.start(ctx, "resume", request.MethodGet, r.URL, nil, nil, opts, resumeFn), nil
}

// Shutdown stops tasks that have not started running. Running tasks are
// not interrupted; they fail with [ErrGroupShutdown] only if they were
// still waiting for a slot.
func (c *Client) Shutdown() {
	c.group.Shutdown()
}

// Wait blocks until every task started so far completes and returns
// their errors joined.
func (c *Client) Wait() error {
	return c.group.Wait()
}

// =============================================================================

// start runs fn as a task. d, when set, is written to the debug trace
// with header, the headers sent before the modifier runs.
func (c *Client) start(ctx context.Context, op string, method request.Method, rawURL string, d *request.Descriptor, header http.Header, opts taskOpts, fn workFn) *Task {
	ctx, span := c.tracer.Start(ctx, "httpkit."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", string(method)),
			attribute.String("url.full", rawURL),
		),
	)

	t := &Task{op: op, url: rawURL}

	// ready is closed once t is fully registered; both callbacks below
	// read fields assigned after group.Start returns.
	ready := make(chan struct{})
	release := func() {}

	work := func(ctx context.Context) error {
		<-ready
		if d != nil {
			c.traceRequest(t.ID(), *d, header)
		}

		resp, err := fn(ctx, t)
		if err != nil {
			return err
		}
		t.resp = resp

		return nil
	}

	onDone := func(err error) {
		<-ready
		resp, err := t.result(err)

		c.traceResult(t, resp, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
		}
		span.End()

		release()
		if opts.completion != nil {
			opts.completion(resp, err)
		}
	}

	t.h = c.group.Start(ctx, work, onDone)
	if opts.scope != nil {
		release = opts.scope.Add(t.Cancel)
	}
	close(ready)

	return t
}

func (c *Client) newRequest(ctx context.Context, method request.Method, rawURL string, header http.Header, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, string(method), rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("instantiating request: %w", err)
	}

	for k, v := range header {
		for _, element := range v {
			req.Header.Add(k, element)
		}
	}

	return req, nil
}

// do injects trace propagation headers, runs the modifier and sends req.
func (c *Client) do(req *http.Request, modifier func(*http.Request) error) (*http.Response, error) {
	otel.GetTextMapPropagator().Inject(req.Context(), propagation.HeaderCarrier(req.Header))

	if modifier != nil {
		if err := modifier(req); err != nil {
			if req.Body != nil {
				req.Body.Close()
			}
			return nil, fmt.Errorf("modifying request: %w", err)
		}
	}

	resp, err := c.c.Do(req)
	if err != nil {
		return nil, fmt.Errorf("exec http do: %w", err)
	}

	return resp, nil
}

// readResponse buffers the decoded body of resp.
func (c *Client) readResponse(resp *http.Response) (Response, error) {
	defer c.closeBody(resp)

	body, decoded, err := c.decodeBody(resp)
	if err != nil {
		return Response{}, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return Response{}, fmt.Errorf("reading body: %w", err)
	}
	if len(data) == 0 {
		data = nil
	}

	return newResponse(resp, data, decoded), nil
}

// saveResponse streams the decoded body of resp to disk.
func (c *Client) saveResponse(ctx context.Context, t *Task, s download.Session, resp *http.Response, opts taskOpts) (Response, error) {
	defer c.closeBody(resp)

	body, decoded, err := c.decodeBody(resp)
	if err != nil {
		return Response{}, err
	}
	defer body.Close()

	// The decoded length is unknown. A body the transport decompressed
	// itself is no more resumable than one decoded here.
	if decoded {
		resp.ContentLength = -1
	}
	s.Decoded = decoded || resp.Uncompressed

	path, tok, err := download.Handle(ctx, s, resp, body, c.logger, opts.download...)
	if tok != nil {
		t.resume = tok
	}
	if err != nil {
		return Response{}, fmt.Errorf("download: %w", err)
	}

	return newResponse(resp, []byte(path), decoded), nil
}

// decodeBody wraps the body of resp in a decompressor matching its
// Content-Encoding. Encodings this package cannot decode are passed
// through untouched.
func (c *Client) decodeBody(resp *http.Response) (io.ReadCloser, bool, error) {
	ce := resp.Header.Get("Content-Encoding")
	if resp.Uncompressed || ce == "" || resp.ContentLength == 0 || resp.Request != nil && resp.Request.Method == http.MethodHead {
		return io.NopCloser(resp.Body), false, nil
	}

	if _, err := compress.Parse(ce); err != nil {
		c.logger.Debug("leaving response body encoded", "error", err)
		return io.NopCloser(resp.Body), false, nil
	}

	rc, err := compress.NewReader(resp.Body, ce)
	if err != nil {
		return nil, false, fmt.Errorf("decoding body: %w", err)
	}

	return rc, true, nil
}

// closeBody drains a bounded remainder of the body so the connection
// can be reused.
func (c *Client) closeBody(resp *http.Response) {
	if _, err := io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain)); err != nil {
		c.logger.Debug("failed to discard unused body", "error", err)
	}
	if err := resp.Body.Close(); err != nil {
		c.logger.Error("failed to close response body", "error", err)
	}
}

func newResponse(resp *http.Response, body []byte, decoded bool) Response {
	status := resp.StatusCode
	if status == 0 {
		status = StatusCodeMissing
	}

	header := resp.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	if decoded {
		header.Del("Content-Encoding")
		header.Del("Content-Length")
	}

	return Response{StatusCode: status, Header: header, Body: body}
}

// withEncoding adds the encoder's headers the caller did not set.
func withEncoding(header, encoded http.Header) http.Header {
	for k, v := range encoded {
		if header.Get(k) == "" {
			header[k] = v
		}
	}

	return header
}

func bodyReader(b []byte) io.Reader {
	if b == nil {
		return nil
	}

	return bytes.NewReader(b)
}
