package request_test

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"

	"github.com/adamwoolhether/httpkit/errs"
	"github.com/adamwoolhether/httpkit/request"
)

func TestNew(t *testing.T) {
	d, err := request.New("post", "https://example.com/users",
		request.WithHeader("X-Trace", "1"),
		request.WithHeader("x-trace", "2"),
		request.WithBody(request.Plain{Text: "hi"}),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if d.Method() != request.MethodPost {
		t.Errorf("exp method POST, got %q", d.Method())
	}

	want := []request.Header{{Key: "X-Trace", Value: "1"}, {Key: "x-trace", Value: "2"}}
	if diff := cmp.Diff(want, d.Headers()); diff != "" {
		t.Errorf("headers mismatch (-want +got):\n%s", diff)
	}

	if v, ok := d.Header("X-TRACE"); !ok || v != "2" {
		t.Errorf("exp last header value 2, got %q (found=%v)", v, ok)
	}

	// Mutating the returned slice must not leak into the descriptor.
	hs := d.Headers()
	hs[0].Value = "changed"
	if d.Headers()[0].Value != "1" {
		t.Error("descriptor headers were mutated through accessor")
	}
}

func TestNew_DefaultsToNone(t *testing.T) {
	d, err := request.New(request.MethodGet, "http://localhost:8080")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := d.Body().(request.None); !ok {
		t.Errorf("exp None body, got %T", d.Body())
	}
}

func TestNew_Validation(t *testing.T) {
	testCases := []struct {
		name   string
		method request.Method
		url    string
		body   request.Body
		field  string
	}{
		{name: "unknown method", method: "BREW", url: "https://example.com", field: "method"},
		{name: "empty url", method: request.MethodGet, url: "", field: "url"},
		{name: "relative url", method: request.MethodGet, url: "/just/a/path", field: "url"},
		{
			name:   "on-disk part missing mime type",
			method: request.MethodPost,
			url:    "https://example.com/upload",
			body: request.Multipart{Files: []request.FilePart{
				request.OnDisk{Path: "/tmp/a.txt", FieldName: "file", FileName: "a.txt"},
			}},
			field: "files[0].MimeType",
		},
		{
			name:   "in-memory part missing field name",
			method: request.MethodPost,
			url:    "https://example.com/upload",
			body: request.Multipart{Files: []request.FilePart{
				request.InMemory{Data: []byte("x")},
			}},
			field: "files[0].FieldName",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var opts []request.Option
			if tc.body != nil {
				opts = append(opts, request.WithBody(tc.body))
			}

			_, err := request.New(tc.method, tc.url, opts...)
			if !errors.Is(err, errs.ErrInvalidDescriptor) {
				t.Fatalf("exp ErrInvalidDescriptor, got %v", err)
			}

			var fields request.FieldErrors
			if !errors.As(err, &fields) {
				t.Fatalf("exp FieldErrors, got %T", err)
			}

			var found bool
			for _, f := range fields {
				if f.Field == tc.field {
					found = true
				}
			}
			if !found {
				t.Errorf("exp error on field %q, got %v", tc.field, fields)
			}
		})
	}
}

func TestEncode(t *testing.T) {
	testCases := []struct {
		name        string
		body        request.Body
		expBody     []byte
		contentType string
	}{
		{name: "none", body: request.None{}, expBody: nil},
		{name: "plain", body: request.Plain{Text: "héllo {not json}"}, expBody: []byte("héllo {not json}")},
		{name: "json", body: request.JSON{Params: map[string]any{"b": 1, "a": "x"}}, expBody: []byte(`{"a":"x","b":1}`), contentType: request.ContentTypeJSON},
		{name: "json nil params", body: request.JSON{}, expBody: []byte(`{}`), contentType: request.ContentTypeJSON},
		{name: "query", body: request.Query{Params: map[string]string{"q": "a b", "lang": "en&fr"}}, expBody: []byte("lang=en%26fr&q=a+b"), contentType: request.ContentTypeForm},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			enc, err := request.Encode(tc.body)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if !bytes.Equal(enc.Body, tc.expBody) {
				t.Errorf("exp body %q, got %q", tc.expBody, enc.Body)
			}

			if got := enc.Header.Get("Content-Type"); got != tc.contentType {
				t.Errorf("exp content type %q, got %q", tc.contentType, got)
			}
		})
	}
}

func TestEncode_Idempotent(t *testing.T) {
	bodies := []request.Body{
		request.None{},
		request.JSON{Params: map[string]any{"z": []any{1, "two", 3.5}, "a": map[string]any{"k": true}, "m": nil}},
		request.Query{Params: map[string]string{"c": "3", "a": "1", "b": "2"}},
	}

	for _, b := range bodies {
		first, err := request.Encode(b)
		if err != nil {
			t.Fatalf("%T: unexpected error: %v", b, err)
		}

		for range 10 {
			again, err := request.Encode(b)
			if err != nil {
				t.Fatalf("%T: unexpected error: %v", b, err)
			}
			if !bytes.Equal(first.Body, again.Body) {
				t.Fatalf("%T: encoding not idempotent: %q vs %q", b, first.Body, again.Body)
			}
		}
	}
}

func TestEncode_JSONRoundTrip(t *testing.T) {
	params := map[string]any{
		"name":  "alice",
		"age":   float64(30),
		"admin": false,
		"tags":  []any{"a", "b"},
		"meta":  map[string]any{"score": 1.5, "nested": map[string]any{"ok": true}},
		"empty": nil,
	}

	enc, err := request.Encode(request.JSON{Params: params})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(enc.Body, &got); err != nil {
		t.Fatalf("decoding encoded body: %v", err)
	}

	if diff := cmp.Diff(params, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestEncode_RejectsMultipart(t *testing.T) {
	_, err := request.Encode(request.Multipart{Fields: map[string]string{"a": "b"}})
	if !errors.Is(err, errs.ErrMultipartBody) {
		t.Errorf("exp ErrMultipartBody, got %v", err)
	}
}

func TestEncodeMultipart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.csv")
	diskContent := []byte("id,name\n1,a\n")
	if err := os.WriteFile(path, diskContent, 0o600); err != nil {
		t.Fatal(err)
	}

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	mb, err := request.EncodeMultipart(request.Multipart{
		Fields: map[string]string{"title": "monthly", "author": "bob"},
		Files: []request.FilePart{
			request.InMemory{Data: png, FieldName: "avatar", FileName: "me.png"},
			request.OnDisk{Path: path, FieldName: "report", FileName: "report.csv", MimeType: "text/csv"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if mb.Parts() != 4 {
		t.Errorf("exp 4 parts, got %d", mb.Parts())
	}

	rc := mb.Open()
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}

	if int64(len(raw)) != mb.Len() {
		t.Errorf("exp length %d, got %d", mb.Len(), len(raw))
	}

	_, params, err := mime.ParseMediaType(mb.ContentType())
	if err != nil {
		t.Fatalf("parsing content type: %v", err)
	}

	type part struct {
		Name, FileName, ContentType, Body string
	}
	var got []part

	mr := multipart.NewReader(bytes.NewReader(raw), params["boundary"])
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("next part: %v", err)
		}
		body, _ := io.ReadAll(p)
		got = append(got, part{
			Name:        p.FormName(),
			FileName:    p.FileName(),
			ContentType: p.Header.Get("Content-Type"),
			Body:        string(body),
		})
	}

	want := []part{
		{Name: "author", Body: "bob"},
		{Name: "title", Body: "monthly"},
		{Name: "avatar", FileName: "me.png", ContentType: "image/png", Body: string(png)},
		{Name: "report", FileName: "report.csv", ContentType: "text/csv", Body: string(diskContent)},
	}

	// Text fields carry a default content type we don't care about.
	for i := range got {
		if got[i].FileName == "" {
			got[i].ContentType = ""
		}
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("parts mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeMultipart_MissingFile(t *testing.T) {
	_, err := request.EncodeMultipart(request.Multipart{
		Files: []request.FilePart{
			request.OnDisk{Path: filepath.Join(t.TempDir(), "nope"), FieldName: "f", FileName: "nope", MimeType: "text/plain"},
		},
	})
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("exp os.ErrNotExist, got %v", err)
	}
}

func TestDescribe(t *testing.T) {
	got := request.Describe(request.Multipart{
		Fields: map[string]string{"title": "hello"},
		Files: []request.FilePart{
			request.InMemory{Data: []byte("secret-bytes"), FieldName: "blob"},
			request.OnDisk{Path: "/etc/passwd", FieldName: "doc", FileName: "d", MimeType: "text/plain"},
		},
	})

	if strings.Contains(got, "secret-bytes") {
		t.Errorf("binary content leaked into description: %s", got)
	}

	var form map[string]string
	if err := json.Unmarshal([]byte(got), &form); err != nil {
		t.Fatalf("description is not JSON: %v", err)
	}

	want := map[string]string{
		"title": "hello",
		"blob":  request.RedactedMemory,
		"doc":   request.RedactedFile,
	}
	if diff := cmp.Diff(want, form); diff != "" {
		t.Errorf("description mismatch (-want +got):\n%s", diff)
	}

	if got := request.Describe(request.None{}); got != "null" {
		t.Errorf("exp null, got %q", got)
	}

	q := request.Describe(request.Query{Params: map[string]string{"b": "2", "a": "1"}})
	if q != "a=1&b=2" {
		t.Errorf("exp a=1&b=2, got %q", q)
	}

	if _, err := url.ParseQuery(q); err != nil {
		t.Errorf("query description not parseable: %v", err)
	}
}
