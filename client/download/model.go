package download

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrContentLengthMismatch = errors.New("content length mismatch")
	ErrChecksumMismatch      = errors.New("checksum mismatch")
	ErrRangeMismatch         = errors.New("content range does not continue partial file")
	ErrResumeRejected        = errors.New("server did not resume the download")
)

// Error wraps a sentinel error with additional detail.
type Error struct {
	Detail string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Progress reports transferred bytes. Total is -1 when unknown.
type Progress struct {
	Completed int64
	Total     int64
}

// Fraction returns the completed share in [0, 1], or -1 when the total
// is unknown.
func (p Progress) Fraction() float64 {
	if p.Total < 0 {
		return -1
	}
	if p.Total == 0 {
		return 1
	}

	return float64(p.Completed) / float64(p.Total)
}

// ProgressFunc receives progress updates.
type ProgressFunc func(Progress)

// Session describes one attempt at downloading into a partial file.
type Session struct {
	// URL and Header are repeated when the download is resumed.
	URL    string
	Header http.Header

	// Partial is the partial file path. Empty creates a new one in Dir.
	Partial string

	// Dir holds new partial files. Empty means os.TempDir().
	Dir string

	// Offset is the number of bytes already in Partial.
	Offset int64

	// Decoded marks a body that is a decoded form of the response
	// representation. Byte counts into it do not address the
	// representation, so it is never resumed or appended.
	Decoded bool
}
