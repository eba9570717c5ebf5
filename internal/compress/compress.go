// Package compress decodes response bodies according to their
// Content-Encoding header.
package compress

import (
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

type Encoding = int8

const (
	EncodingIdentity Encoding = 0
	EncodingGzip     Encoding = 1
	EncodingZstd     Encoding = 2
	EncodingBr       Encoding = 3
)

var lookup = map[string]Encoding{
	"":         EncodingIdentity,
	"identity": EncodingIdentity,
	"gzip":     EncodingGzip,
	"x-gzip":   EncodingGzip,
	"zstd":     EncodingZstd,
	"br":       EncodingBr,
}

// Parse maps a Content-Encoding header value to an Encoding.
func Parse(contentEncoding string) (Encoding, error) {
	enc, ok := lookup[strings.ToLower(strings.TrimSpace(contentEncoding))]
	if !ok {
		return 0, fmt.Errorf("%s encoding not supported", contentEncoding)
	}

	return enc, nil
}

// NewReader wraps r so that reads yield the decoded body. Closing the
// returned reader releases decoder state but does not close r.
func NewReader(r io.Reader, contentEncoding string) (io.ReadCloser, error) {
	enc, err := Parse(contentEncoding)
	if err != nil {
		return nil, err
	}

	switch enc {
	case EncodingGzip:
		z, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		return z, nil

	case EncodingZstd:
		d, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		return d.IOReadCloser(), nil

	case EncodingBr:
		return io.NopCloser(brotli.NewReader(r)), nil

	default:
		return io.NopCloser(r), nil
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// NewWriter wraps w so that writes are encoded per contentEncoding.
// Close flushes the encoder but does not close w.
func NewWriter(w io.Writer, contentEncoding string) (io.WriteCloser, error) {
	enc, err := Parse(contentEncoding)
	if err != nil {
		return nil, err
	}

	switch enc {
	case EncodingGzip:
		return gzip.NewWriter(w), nil

	case EncodingZstd:
		z, err := zstd.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("zstd writer: %w", err)
		}
		return z, nil

	case EncodingBr:
		return brotli.NewWriter(w), nil

	default:
		return nopWriteCloser{w}, nil
	}
}
