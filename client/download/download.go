package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Handle streams body, the (decoded) body of resp, into the session's
// partial file and moves the finished file to its destination, which is
// returned.
//
// A 206 response to a session with a non-zero Offset is appended to the
// partial file and a 200 restarts it from zero. Any other status, or a
// decoded 206, fails with ErrResumeRejected and leaves the partial file
// untouched. When the transfer fails after writing some bytes the partial
// file is kept and a ResumeToken is returned alongside the error, unless
// the body was decoded. Length and checksum mismatches are not resumable
// and remove the partial file.
func Handle(ctx context.Context, s Session, resp *http.Response, body io.Reader, logger *slog.Logger, optFns ...Option) (string, ResumeToken, error) {
	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return "", nil, fmt.Errorf("applying option: %w", err)
		}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if s.Offset > 0 {
		switch {
		case resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent:
			return "", nil, &Error{Err: ErrResumeRejected, Detail: fmt.Sprintf("status %d", resp.StatusCode)}
		case resp.StatusCode == http.StatusPartialContent && s.Decoded:
			return "", nil, &Error{Err: ErrResumeRejected, Detail: "partial content is content-encoded"}
		}
	}

	offset := int64(0)
	if s.Offset > 0 && resp.StatusCode == http.StatusPartialContent {
		if err := checkContentRange(resp.Header.Get("Content-Range"), s.Offset); err != nil {
			return "", nil, err
		}
		offset = s.Offset
	}

	file, err := openPartial(s, offset)
	if err != nil {
		return "", nil, err
	}
	partial := file.Name()

	var keep, successful bool
	defer func() {
		if err := file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			logger.Error("defer closing partial file", "error", err)
		}
		if !successful && !keep {
			if err := os.Remove(partial); err != nil && !errors.Is(err, os.ErrNotExist) {
				logger.Error("failed to remove partial file", "error", err)
			}
		}
	}()

	if err := opts.checksum.seed(partial, offset); err != nil {
		return "", nil, err
	}

	total := int64(-1)
	if resp.ContentLength >= 0 {
		total = offset + resp.ContentLength
	}

	var writer io.Writer = file
	if opts.checksum != nil {
		writer = io.MultiWriter(writer, opts.checksum)
	}
	pw := newProgressWriter(writer, opts.progress, logger, offset, total)

	n, err := io.Copy(pw, &contextReader{ctx: ctx, r: body})
	if err != nil {
		if offset+n == 0 || s.Decoded || !resumable(resp) {
			return "", nil, fmt.Errorf("copying body: %w", err)
		}

		if serr := file.Sync(); serr != nil {
			return "", nil, errors.Join(fmt.Errorf("copying body: %w", err), serr)
		}

		tok, terr := newToken(s, partial, offset+n, resp)
		if terr != nil {
			return "", nil, errors.Join(fmt.Errorf("copying body: %w", err), terr)
		}

		keep = true
		return "", tok, fmt.Errorf("copying body: %w", err)
	}

	pw.finish()

	if resp.ContentLength >= 0 && n != resp.ContentLength {
		return "", nil, &Error{
			Err:    ErrContentLengthMismatch,
			Detail: fmt.Sprintf("expected %d bytes, got %d", resp.ContentLength, n),
		}
	}

	if err := opts.checksum.Verify(); err != nil {
		return "", nil, err
	}

	if err := file.Sync(); err != nil {
		return "", nil, fmt.Errorf("syncing partial file: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", nil, fmt.Errorf("closing partial file: %w", err)
	}

	dest := defaultDestination(partial)
	if opts.policy != nil {
		dest = opts.policy(SuggestedName(resp, s.URL, filepath.Base(partial)))
	}
	if dest == "" {
		return "", nil, errors.New("destination policy returned an empty path")
	}

	if err := place(partial, dest); err != nil {
		return "", nil, err
	}

	successful = true
	logger.Debug("download placed", "path", dest, "bytes", offset+n)

	return dest, nil, nil
}

// openPartial opens the session's partial file positioned at offset,
// discarding anything past it, or creates a new one.
func openPartial(s Session, offset int64) (*os.File, error) {
	if s.Partial == "" {
		dir := s.Dir
		if dir == "" {
			dir = os.TempDir()
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating partial directory: %w", err)
		}

		file, err := os.CreateTemp(dir, "httpkit-dl-*")
		if err != nil {
			return nil, fmt.Errorf("creating partial file: %w", err)
		}
		return file, nil
	}

	file, err := os.OpenFile(s.Partial, os.O_WRONLY|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening partial file: %w", err)
	}

	if err := file.Truncate(offset); err != nil {
		file.Close()
		return nil, fmt.Errorf("truncating partial file: %w", err)
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		file.Close()
		return nil, fmt.Errorf("seeking partial file: %w", err)
	}

	return file, nil
}

// checkContentRange verifies "bytes start-end/size" starts at offset.
func checkContentRange(v string, offset int64) error {
	rng, ok := strings.CutPrefix(v, "bytes ")
	if !ok {
		return &Error{Err: ErrRangeMismatch, Detail: fmt.Sprintf("unparseable Content-Range %q", v)}
	}

	startStr, _, _ := strings.Cut(rng, "-")
	start, err := strconv.ParseInt(strings.TrimSpace(startStr), 10, 64)
	if err != nil || start != offset {
		return &Error{Err: ErrRangeMismatch, Detail: fmt.Sprintf("expected start %d, got %q", offset, v)}
	}

	return nil
}

func resumable(resp *http.Response) bool {
	return !strings.EqualFold(resp.Header.Get("Accept-Ranges"), "none")
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}

	return cr.r.Read(p)
}
