package download

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/adamwoolhether/httpkit/errs"
)

var testLogger = slog.New(slog.DiscardHandler)

func response(status int, body []byte, header http.Header) *http.Response {
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		StatusCode:    status,
		Header:        header,
		ContentLength: int64(len(body)),
		Body:          io.NopCloser(bytes.NewReader(body)),
	}
}

// failingReader yields data and then fails.
type failingReader struct {
	r   io.Reader
	err error
}

func (f *failingReader) Read(p []byte) (int, error) {
	n, err := f.r.Read(p)
	if err == io.EOF {
		return n, f.err
	}
	return n, err
}

func TestHandle_DefaultDestination(t *testing.T) {
	dir := t.TempDir()
	content := []byte("hello download")
	resp := response(http.StatusOK, content, nil)

	path, tok, err := Handle(t.Context(), Session{URL: "http://example.com/f", Dir: dir}, resp, resp.Body, testLogger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok != nil {
		t.Errorf("expected no resume token on success")
	}

	if filepath.Dir(path) != dir {
		t.Errorf("expected file in %s, got %s", dir, path)
	}
	if !strings.HasPrefix(filepath.Base(path), DefaultPrefix+"httpkit-dl-") {
		t.Errorf("expected default prefix on %s", filepath.Base(path))
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("expected %q, got %q", content, got)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("expected only the final file to remain, got %d entries", len(entries))
	}
}

func TestHandle_Policy(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "nested", "deeper")

	if err := os.MkdirAll(target, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(target, "report.pdf"), []byte("old"), 0o600); err != nil {
		t.Fatal(err)
	}

	header := http.Header{}
	header.Set("Content-Disposition", `attachment; filename="report.pdf"`)
	resp := response(http.StatusOK, []byte("new content"), header)

	var suggested string
	path, _, err := Handle(t.Context(), Session{URL: "http://example.com/download?id=1", Dir: t.TempDir()}, resp, resp.Body, testLogger,
		WithDestination(func(name string) string {
			suggested = name
			return filepath.Join(target, name)
		}),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if suggested != "report.pdf" {
		t.Errorf("expected suggested name report.pdf, got %q", suggested)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "new content" {
		t.Errorf("expected existing file to be replaced, got %q", got)
	}
}

func TestHandle_InterruptedThenResumed(t *testing.T) {
	dir := t.TempDir()
	content := []byte(strings.Repeat("0123456789", 100))
	sum := sha256.Sum256(content)
	checksum := hex.EncodeToString(sum[:])

	header := http.Header{}
	header.Set("ETag", `"v1"`)
	first := response(http.StatusOK, content, header)
	body := &failingReader{r: bytes.NewReader(content[:400]), err: io.ErrUnexpectedEOF}

	session := Session{URL: "http://example.com/big.bin", Header: http.Header{"X-Key": {"k"}}, Dir: dir}
	_, tok, err := Handle(t.Context(), session, first, body, testLogger)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected interruption error, got %v", err)
	}
	if tok == nil {
		t.Fatal("expected a resume token")
	}

	resume, err := ParseResumeToken(tok)
	if err != nil {
		t.Fatalf("parsing token: %v", err)
	}
	if resume.Offset != 400 {
		t.Errorf("expected offset 400, got %d", resume.Offset)
	}
	if resume.Validator != `"v1"` {
		t.Errorf("expected etag validator, got %q", resume.Validator)
	}
	if resume.RangeHeader() != "bytes=400-" {
		t.Errorf("unexpected range header %q", resume.RangeHeader())
	}
	if diff := cmp.Diff(session.Header, resume.Header); diff != "" {
		t.Errorf("header mismatch (-want +got):\n%s", diff)
	}

	rest := content[400:]
	h2 := http.Header{}
	h2.Set("Content-Range", fmt.Sprintf("bytes 400-%d/%d", len(content)-1, len(content)))
	second := response(http.StatusPartialContent, rest, h2)

	var last Progress
	path, tok, err := Handle(t.Context(), resume.Session, second, second.Body, testLogger,
		WithChecksum(sha256.New(), checksum),
		WithProgress(func(p Progress) { last = p }),
	)
	if err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if tok != nil {
		t.Error("expected no token after success")
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("resumed content mismatch: got %d bytes", len(got))
	}

	want := Progress{Completed: int64(len(content)), Total: int64(len(content))}
	if last != want {
		t.Errorf("expected final progress %+v, got %+v", want, last)
	}
	if last.Fraction() != 1 {
		t.Errorf("expected fraction 1, got %v", last.Fraction())
	}
}

func TestHandle_ResumeRestartsOnFullResponse(t *testing.T) {
	dir := t.TempDir()
	partial := filepath.Join(dir, "partial")
	if err := os.WriteFile(partial, []byte("stale-bytes"), 0o600); err != nil {
		t.Fatal(err)
	}

	fresh := []byte("fresh")
	resp := response(http.StatusOK, fresh, nil)

	path, _, err := Handle(t.Context(), Session{URL: "http://example.com/x", Partial: partial, Offset: 5}, resp, resp.Body, testLogger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := os.ReadFile(path)
	if !bytes.Equal(got, fresh) {
		t.Errorf("expected restart with %q, got %q", fresh, got)
	}
}

func TestHandle_DecodedNotResumable(t *testing.T) {
	dir := t.TempDir()
	content := []byte(strings.Repeat("0123456789", 100))

	header := http.Header{}
	header.Set("ETag", `"v1"`)
	resp := response(http.StatusOK, content, header)
	resp.ContentLength = -1
	body := &failingReader{r: bytes.NewReader(content[:400]), err: io.ErrUnexpectedEOF}

	_, tok, err := Handle(t.Context(), Session{URL: "http://example.com/x", Dir: dir, Decoded: true}, resp, body, testLogger)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected interruption error, got %v", err)
	}
	if tok != nil {
		t.Error("decoded body must not be resumable")
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("expected partial file to be removed, found %d entries", len(entries))
	}
}

func TestHandle_ResumeRejected(t *testing.T) {
	testCases := map[string]struct {
		status  int
		decoded bool
		header  http.Header
	}{
		"range not satisfiable": {status: http.StatusRequestedRangeNotSatisfiable},
		"server error":          {status: http.StatusInternalServerError},
		"decoded partial":       {status: http.StatusPartialContent, decoded: true, header: http.Header{"Content-Range": {"bytes 5-9/10"}}},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			partial := filepath.Join(t.TempDir(), "partial")
			if err := os.WriteFile(partial, []byte("12345"), 0o600); err != nil {
				t.Fatal(err)
			}

			resp := response(tc.status, []byte("67890"), tc.header)
			session := Session{URL: "http://example.com/x", Partial: partial, Offset: 5, Decoded: tc.decoded}

			_, tok, err := Handle(t.Context(), session, resp, resp.Body, testLogger)
			if !errors.Is(err, ErrResumeRejected) {
				t.Fatalf("expected ErrResumeRejected, got %v", err)
			}
			if tok != nil {
				t.Error("expected no new token")
			}

			got, err := os.ReadFile(partial)
			if err != nil {
				t.Fatalf("expected partial file to survive: %v", err)
			}
			if string(got) != "12345" {
				t.Errorf("expected partial file untouched, got %q", got)
			}
		})
	}
}

func TestHandle_RangeMismatch(t *testing.T) {
	dir := t.TempDir()
	partial := filepath.Join(dir, "partial")
	if err := os.WriteFile(partial, []byte("12345"), 0o600); err != nil {
		t.Fatal(err)
	}

	h := http.Header{}
	h.Set("Content-Range", "bytes 3-9/10")
	resp := response(http.StatusPartialContent, []byte("4567890"), h)

	_, _, err := Handle(t.Context(), Session{URL: "http://example.com/x", Partial: partial, Offset: 5}, resp, resp.Body, testLogger)
	if !errors.Is(err, ErrRangeMismatch) {
		t.Errorf("expected ErrRangeMismatch, got %v", err)
	}
}

func TestHandle_ContentLengthMismatch(t *testing.T) {
	dir := t.TempDir()
	resp := response(http.StatusOK, []byte("short"), nil)
	resp.ContentLength = 100

	_, tok, err := Handle(t.Context(), Session{URL: "http://example.com/x", Dir: dir}, resp, resp.Body, testLogger)
	if !errors.Is(err, ErrContentLengthMismatch) {
		t.Errorf("expected ErrContentLengthMismatch, got %v", err)
	}
	if tok != nil {
		t.Error("length mismatch must not be resumable")
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("expected partial file to be removed, found %d entries", len(entries))
	}
}

func TestHandle_ChecksumMismatch(t *testing.T) {
	resp := response(http.StatusOK, []byte("data"), nil)

	_, _, err := Handle(t.Context(), Session{URL: "http://example.com/x", Dir: t.TempDir()}, resp, resp.Body, testLogger,
		WithChecksum(sha256.New(), "deadbeef"),
	)
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("expected ErrChecksumMismatch, got %v", err)
	}
}

func TestParseResumeToken_Invalid(t *testing.T) {
	testCases := map[string]ResumeToken{
		"garbage":       ResumeToken("not json"),
		"empty":         ResumeToken(`{}`),
		"missing file":  ResumeToken(`{"v":1,"url":"http://x","partial":"/nonexistent/partial","offset":3}`),
		"wrong version": ResumeToken(`{"v":9,"url":"http://x","partial":"/tmp","offset":3}`),
	}

	for name, tok := range testCases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseResumeToken(tok); !errors.Is(err, errs.ErrResumeToken) {
				t.Errorf("expected ErrResumeToken, got %v", err)
			}
		})
	}
}

func TestSuggestedName(t *testing.T) {
	withCD := func(v string) *http.Response {
		h := http.Header{}
		h.Set("Content-Disposition", v)
		return &http.Response{Header: h}
	}

	testCases := []struct {
		name     string
		resp     *http.Response
		url      string
		fallback string
		want     string
	}{
		{name: "content disposition", resp: withCD(`attachment; filename="a.txt"`), url: "http://x/b.txt", want: "a.txt"},
		{name: "traversal stripped", resp: withCD(`attachment; filename="../../etc/passwd"`), url: "http://x/", want: "passwd"},
		{name: "url path", resp: &http.Response{Header: http.Header{}}, url: "http://x/files/b.txt?sig=1", want: "b.txt"},
		{name: "fallback", resp: &http.Response{Header: http.Header{}}, url: "http://x/", fallback: "tmp-123", want: "tmp-123"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SuggestedName(tc.resp, tc.url, tc.fallback); got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		})
	}
}
