// Package request describes outgoing HTTP calls as immutable values and
// encodes their bodies for the wire.
package request

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
)

// Method is an HTTP request method.
type Method string

const (
	MethodGet     Method = http.MethodGet
	MethodHead    Method = http.MethodHead
	MethodPost    Method = http.MethodPost
	MethodPut     Method = http.MethodPut
	MethodPatch   Method = http.MethodPatch
	MethodDelete  Method = http.MethodDelete
	MethodOptions Method = http.MethodOptions
)

// Header is a single header entry. Descriptors keep headers in the order
// they were given.
type Header struct {
	Key   string
	Value string
}

// Descriptor is an immutable description of one logical HTTP call.
// Construct it with [New]; the zero value is not usable.
type Descriptor struct {
	method  Method
	url     string
	headers []Header
	body    Body
}

// New validates and returns a Descriptor. The body defaults to [None].
func New(method Method, rawURL string, optFns ...Option) (Descriptor, error) {
	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return Descriptor{}, fmt.Errorf("applying request option: %w", err)
		}
	}

	d := Descriptor{
		method:  Method(strings.ToUpper(string(method))),
		url:     rawURL,
		headers: opts.headers,
		body:    opts.body,
	}
	if d.body == nil {
		d.body = None{}
	}

	if err := validateDescriptor(d); err != nil {
		return Descriptor{}, err
	}

	return d, nil
}

// Method returns the request method.
func (d Descriptor) Method() Method { return d.method }

// URL returns the request URL.
func (d Descriptor) URL() string { return d.url }

// Body returns the request body variant.
func (d Descriptor) Body() Body { return d.body }

// Headers returns a copy of the ordered headers.
func (d Descriptor) Headers() []Header { return slices.Clone(d.headers) }

// Header returns the last value set for key, compared case-insensitively.
func (d Descriptor) Header(key string) (string, bool) {
	for _, h := range slices.Backward(d.headers) {
		if strings.EqualFold(h.Key, key) {
			return h.Value, true
		}
	}

	return "", false
}

// HTTPHeader converts the ordered headers into an [http.Header].
func (d Descriptor) HTTPHeader() http.Header {
	h := make(http.Header, len(d.headers))
	for _, kv := range d.headers {
		h.Add(kv.Key, kv.Value)
	}

	return h
}

// Option configures a [Descriptor] under construction.
type Option func(*options) error

type options struct {
	headers []Header
	body    Body
}

// WithHeader appends a header. Repeated keys are kept in order.
func WithHeader(key, value string) Option {
	return func(opts *options) error {
		if key == "" {
			return fmt.Errorf("header key must not be empty")
		}
		opts.headers = append(opts.headers, Header{Key: key, Value: value})
		return nil
	}
}

// WithHeaders appends headers in the given order.
func WithHeaders(headers ...Header) Option {
	return func(opts *options) error {
		for _, h := range headers {
			if h.Key == "" {
				return fmt.Errorf("header key must not be empty")
			}
		}
		opts.headers = append(opts.headers, headers...)
		return nil
	}
}

// WithBody sets the body variant.
func WithBody(b Body) Option {
	return func(opts *options) error {
		if b == nil {
			return fmt.Errorf("body must not be nil, use request.None{}")
		}
		opts.body = b
		return nil
	}
}
