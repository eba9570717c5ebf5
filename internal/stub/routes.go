package stub

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/adamwoolhether/httpkit/internal/compress"
)

// modTime is reported for every served file so If-Range by date works.
var modTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func (s *Server) routes() {
	s.handle("/echo", s.echo)
	s.handle("POST /upload", s.upload)
	s.handle("GET /files/{name}", s.file)
	s.handle("GET /status/{code}", s.status)
	s.handle("GET /slow", s.slow)
	s.handle("GET /empty", s.empty)
	s.handle("GET /encoded/{encoding}", s.encoded)
}

// echo answers with the request it received.
func (s *Server) echo(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return Respond(ctx, w, http.StatusBadRequest, CodeBadRequest, "reading body: "+err.Error(), nil)
	}

	headers := make(map[string]string, len(r.Header))
	for k, v := range r.Header {
		headers[k] = strings.Join(v, ", ")
	}

	query := make(map[string]string, len(r.URL.Query()))
	for k, v := range r.URL.Query() {
		query[k] = strings.Join(v, ",")
	}

	data := map[string]any{
		"method":  r.Method,
		"path":    r.URL.Path,
		"query":   query,
		"headers": headers,
		"body":    string(body),
	}

	return Respond(ctx, w, http.StatusOK, CodeOK, "ok", data)
}

type uploadedFile struct {
	Field       string `json:"field"`
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
}

// upload reports the parts of a multipart request.
func (s *Server) upload(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return Respond(ctx, w, http.StatusBadRequest, CodeBadRequest, "parsing multipart form: "+err.Error(), nil)
	}
	defer r.MultipartForm.RemoveAll()

	fields := make(map[string]string, len(r.MultipartForm.Value))
	for k, v := range r.MultipartForm.Value {
		fields[k] = strings.Join(v, ",")
	}

	files := []uploadedFile{}
	for field, hdrs := range r.MultipartForm.File {
		for _, hdr := range hdrs {
			files = append(files, uploadedFile{
				Field:       field,
				Name:        hdr.Filename,
				Size:        hdr.Size,
				ContentType: hdr.Header.Get("Content-Type"),
			})
		}
	}

	return Respond(ctx, w, http.StatusOK, CodeOK, "uploaded", map[string]any{
		"fields": fields,
		"files":  files,
		"parts":  len(fields) + len(files),
	})
}

// file serves a registered file with range support. ?cut=N aborts a
// full response after N bytes, simulating a dropped connection.
func (s *Server) file(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	content, ok := s.files[r.PathValue("name")]
	if !ok {
		return Respond(ctx, w, http.StatusNotFound, CodeNotFound, "no such file", nil)
	}

	sum := sha256.Sum256(content)
	w.Header().Set("ETag", `"`+hex.EncodeToString(sum[:8])+`"`)

	if cut, err := strconv.Atoi(r.URL.Query().Get("cut")); err == nil && cut >= 0 && cut < len(content) && r.Header.Get("Range") == "" {
		setStatusCode(ctx, http.StatusOK)
		w.Header().Set("Content-Length", strconv.Itoa(len(content)))
		w.WriteHeader(http.StatusOK)
		w.Write(content[:cut])
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		panic(http.ErrAbortHandler)
	}

	setStatusCode(ctx, http.StatusOK)
	if r.Header.Get("Range") != "" {
		setStatusCode(ctx, http.StatusPartialContent)
	}
	http.ServeContent(w, r, r.PathValue("name"), modTime, bytes.NewReader(content))

	return nil
}

// status answers with the requested HTTP status and the same errorCode.
func (s *Server) status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	code, err := strconv.Atoi(r.PathValue("code"))
	if err != nil || code < 200 || code > 599 {
		return Respond(ctx, w, http.StatusBadRequest, CodeBadRequest, "invalid status code", nil)
	}

	return Respond(ctx, w, code, code, http.StatusText(code), nil)
}

// slow waits ?delay=, default one second, or until the client leaves.
func (s *Server) slow(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	delay := time.Second
	if d, err := time.ParseDuration(r.URL.Query().Get("delay")); err == nil {
		delay = d
	}

	select {
	case <-time.After(delay):
		return Respond(ctx, w, http.StatusOK, CodeOK, "slept "+delay.String(), nil)
	case <-ctx.Done():
		setStatusCode(ctx, 499)
		return ctx.Err()
	}
}

func (s *Server) empty(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return Respond(ctx, w, http.StatusNoContent, CodeOK, "", nil)
}

// encoded answers with an envelope compressed with the named encoding.
func (s *Server) encoded(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	encoding := r.PathValue("encoding")

	body, err := json.Marshal(Envelope{ErrorCode: CodeOK, Data: map[string]any{"encoding": encoding}})
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	cw, err := compress.NewWriter(&buf, encoding)
	if err != nil {
		return Respond(ctx, w, http.StatusBadRequest, CodeBadRequest, err.Error(), nil)
	}
	if _, err := cw.Write(body); err != nil {
		return err
	}
	if err := cw.Close(); err != nil {
		return err
	}

	setStatusCode(ctx, http.StatusOK)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Encoding", encoding)
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(buf.Bytes())

	return err
}
