package client

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/adamwoolhether/httpkit/client/download"
)

// StatusCodeMissing is the StatusCode of a Response whose transport did
// not report one.
const StatusCodeMissing = -1

// Response is the outcome of a completed task. The status code is never
// interpreted: a 500 is a successful task carrying a 500 Response.
type Response struct {
	StatusCode int
	Header     http.Header

	// Body is nil when the server sent no bytes. For downloads it holds
	// the path of the placed file.
	Body []byte
}

// Progress re-exports [download.Progress]; uploads report through it too.
type Progress = download.Progress

// ProgressFunc receives transfer progress.
type ProgressFunc = download.ProgressFunc

// workFn performs the network part of a task.
type workFn func(ctx context.Context, t *Task) (Response, error)

// uploadProgress is an io.ReadCloser reporting bytes consumed by the
// transport.
type uploadProgress struct {
	rc   io.ReadCloser
	fn   ProgressFunc
	mu   sync.Mutex
	read int64
	size int64
	last time.Time
	done bool
}

func (u *uploadProgress) Read(p []byte) (int, error) {
	n, err := u.rc.Read(p)

	u.mu.Lock()
	defer u.mu.Unlock()

	u.read += int64(n)
	switch {
	case u.done:
	case u.read == u.size || err == io.EOF:
		u.done = true
		u.fn(Progress{Completed: u.read, Total: u.size})
	case n > 0 && time.Since(u.last) >= 100*time.Millisecond:
		u.last = time.Now()
		u.fn(Progress{Completed: u.read, Total: u.size})
	}

	return n, err
}

func (u *uploadProgress) Close() error {
	return u.rc.Close()
}
