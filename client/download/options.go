package download

import (
	"errors"
	"hash"
)

// Option defines optional settings for downloading files.
type Option func(*options) error

type options struct {
	checksum *checksumVerifier
	progress ProgressFunc
	policy   Policy
}

// WithChecksum enables checksum validation of the downloaded file.
// h is a hash.Hash instance (e.g. sha256.New()), and expected is the
// hex-encoded expected checksum string. Resumed downloads hash the bytes
// already on disk first.
func WithChecksum(h hash.Hash, expected string) Option {
	return func(opts *options) error {
		if h == nil {
			return errors.New("hash must not be nil")
		}

		if expected == "" {
			return errors.New("expected checksum must not be empty")
		}

		opts.checksum = &checksumVerifier{hash: h, expected: expected}
		return nil
	}
}

// WithProgress reports transferred bytes to fn.
func WithProgress(fn ProgressFunc) Option {
	return func(opts *options) error {
		if fn == nil {
			return errors.New("progress func must not be nil")
		}
		opts.progress = fn
		return nil
	}
}

// WithDestination sets the policy choosing the final file location.
func WithDestination(p Policy) Option {
	return func(opts *options) error {
		if p == nil {
			return errors.New("destination policy must not be nil")
		}
		opts.policy = p
		return nil
	}
}
