package client

import (
	"github.com/adamwoolhether/httpkit/client/download"
	"github.com/adamwoolhether/httpkit/client/task"
)

// ————————————————————————————————————————————————————————————————————
// Type aliases – re-export user-facing types from [download].
// ————————————————————————————————————————————————————————————————————

type (
	// DownloadError wraps a sentinel error with additional detail.
	DownloadError = download.Error

	// DestinationPolicy maps a suggested file name to the final path.
	DestinationPolicy = download.Policy

	// ResumeToken is an opaque snapshot of an interrupted download.
	ResumeToken = download.ResumeToken
)

// ————————————————————————————————————————————————————————————————————
// Sentinel errors
// ————————————————————————————————————————————————————————————————————

var (
	// ErrContentLengthMismatch indicates the byte count did not match Content-Length.
	ErrContentLengthMismatch = download.ErrContentLengthMismatch

	// ErrChecksumMismatch indicates the file checksum did not match the expected value.
	ErrChecksumMismatch = download.ErrChecksumMismatch

	// ErrRangeMismatch indicates a resumed response did not continue at the recorded offset.
	ErrRangeMismatch = download.ErrRangeMismatch

	// ErrResumeRejected indicates a resume request was answered with neither
	// a usable 206 nor a 200. The partial file and its token stay valid.
	ErrResumeRejected = download.ErrResumeRejected

	// ErrGroupShutdown indicates the client was shut down before the task ran.
	ErrGroupShutdown = task.ErrGroupShutdown
)

// DefaultDownloadPrefix is prepended to the file name by the default
// destination policy.
const DefaultDownloadPrefix = download.DefaultPrefix
