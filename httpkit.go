// Package httpkit builds clients for services answering with JSON
// envelopes. The work lives in the client, request and envelope
// packages; this package only wires them together.
package httpkit

import (
	"github.com/adamwoolhether/httpkit/client"
)

// NewClient instantiates a new *client.Client with the provided options.
// If not specified, a fresh http.Client over http.DefaultTransport is used.
func NewClient(opts ...client.Option) (*client.Client, error) {
	return client.Build(opts...)
}
