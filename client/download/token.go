package download

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/goccy/go-json"

	"github.com/adamwoolhether/httpkit/errs"
)

// ResumeToken is an opaque snapshot of an interrupted download.
type ResumeToken []byte

type tokenState struct {
	Version      int         `json:"v"`
	URL          string      `json:"url"`
	Header       http.Header `json:"header,omitempty"`
	Partial      string      `json:"partial"`
	Offset       int64       `json:"offset"`
	ETag         string      `json:"etag,omitempty"`
	LastModified string      `json:"lastModified,omitempty"`
}

const tokenVersion = 1

func newToken(s Session, partial string, offset int64, resp *http.Response) (ResumeToken, error) {
	st := tokenState{
		Version: tokenVersion,
		URL:     s.URL,
		Header:  s.Header,
		Partial: partial,
		Offset:  offset,
	}
	if resp != nil {
		st.ETag = resp.Header.Get("ETag")
		st.LastModified = resp.Header.Get("Last-Modified")
	}

	return json.Marshal(st)
}

// Resume is a parsed ResumeToken.
type Resume struct {
	Session

	// Validator is sent as If-Range so a changed resource restarts from zero.
	Validator string
}

// ParseResumeToken decodes tok and checks that its partial file still
// holds at least the recorded bytes.
func ParseResumeToken(tok ResumeToken) (Resume, error) {
	var st tokenState
	if err := json.Unmarshal(tok, &st); err != nil {
		return Resume{}, fmt.Errorf("%w: %w", errs.ErrResumeToken, err)
	}

	if st.Version != tokenVersion || st.URL == "" || st.Partial == "" || st.Offset <= 0 {
		return Resume{}, fmt.Errorf("%w: incomplete token", errs.ErrResumeToken)
	}

	info, err := os.Stat(st.Partial)
	if err != nil {
		return Resume{}, fmt.Errorf("%w: %w", errs.ErrResumeToken, err)
	}
	if info.Size() < st.Offset {
		return Resume{}, fmt.Errorf("%w: partial file holds %d of %d bytes", errs.ErrResumeToken, info.Size(), st.Offset)
	}

	// Weak validators are not allowed in If-Range.
	validator := st.ETag
	if validator == "" || strings.HasPrefix(validator, "W/") {
		validator = st.LastModified
	}

	return Resume{
		Session: Session{
			URL:     st.URL,
			Header:  st.Header,
			Partial: st.Partial,
			Offset:  st.Offset,
		},
		Validator: validator,
	}, nil
}

// RangeHeader returns the Range header value continuing the download.
func (r Resume) RangeHeader() string {
	return fmt.Sprintf("bytes=%d-", r.Offset)
}
