package request

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"mime/multipart"
	"net/textproto"
	"os"
	"slices"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MultipartBody is a streaming encoding of a [Multipart] body. The exact
// length is known up front so uploads can report fractional progress.
type MultipartBody struct {
	boundary string
	keys     []string
	fields   map[string]string
	files    []resolvedFile
	length   int64
}

type resolvedFile struct {
	part     FilePart
	mimeType string
	size     int64
}

// EncodeMultipart resolves MIME types and file sizes and computes the
// encoded length of m. File content is not read until [MultipartBody.Open].
func EncodeMultipart(m Multipart) (*MultipartBody, error) {
	b := &MultipartBody{
		boundary: multipart.NewWriter(io.Discard).Boundary(),
		keys:     slices.Sorted(maps.Keys(m.Fields)),
		fields:   m.Fields,
	}

	for i, f := range m.Files {
		rf := resolvedFile{part: f}

		switch f := f.(type) {
		case InMemory:
			rf.size = int64(len(f.Data))
			rf.mimeType = f.MimeType
			if rf.mimeType == "" {
				rf.mimeType = mimetype.Detect(f.Data).String()
			}

		case OnDisk:
			info, err := os.Stat(f.Path)
			if err != nil {
				return nil, fmt.Errorf("stat file part %d: %w", i, err)
			}
			if !info.Mode().IsRegular() {
				return nil, fmt.Errorf("file part %d: %s is not a regular file", i, f.Path)
			}
			rf.size = info.Size()
			rf.mimeType = f.MimeType

		default:
			return nil, fmt.Errorf("unsupported file part type %T", f)
		}

		b.files = append(b.files, rf)
	}

	cw := &countingWriter{}
	if err := b.write(cw, true); err != nil {
		return nil, fmt.Errorf("measuring multipart body: %w", err)
	}
	b.length = cw.n

	return b, nil
}

// ContentType returns the multipart/form-data content type with boundary.
func (b *MultipartBody) ContentType() string {
	return "multipart/form-data; boundary=" + b.boundary
}

// Len returns the exact number of bytes Open will produce.
func (b *MultipartBody) Len() int64 { return b.length }

// Parts returns the number of parts: text fields plus files.
func (b *MultipartBody) Parts() int { return len(b.keys) + len(b.files) }

// Open returns a reader streaming the encoded body. On-disk files are
// read while the reader is consumed. Closing the reader early stops the
// encoder.
func (b *MultipartBody) Open() io.ReadCloser {
	pr, pw := io.Pipe()

	go func() {
		pw.CloseWithError(b.write(pw, false))
	}()

	return pr
}

// write emits the body. In a dry run file content is counted, not read.
func (b *MultipartBody) write(w io.Writer, dry bool) error {
	mw := multipart.NewWriter(w)
	if err := mw.SetBoundary(b.boundary); err != nil {
		return err
	}

	for _, k := range b.keys {
		if err := mw.WriteField(k, b.fields[k]); err != nil {
			return fmt.Errorf("writing field %q: %w", k, err)
		}
	}

	for _, f := range b.files {
		pw, err := mw.CreatePart(partHeader(f))
		if err != nil {
			return fmt.Errorf("creating part %q: %w", f.part.fieldName(), err)
		}

		if dry {
			if cw, ok := w.(*countingWriter); ok {
				cw.n += f.size
			}
			continue
		}

		if err := copyFile(pw, f); err != nil {
			return fmt.Errorf("writing part %q: %w", f.part.fieldName(), err)
		}
	}

	return mw.Close()
}

func copyFile(w io.Writer, f resolvedFile) error {
	switch p := f.part.(type) {
	case InMemory:
		_, err := w.Write(p.Data)
		return err

	case OnDisk:
		file, err := os.Open(p.Path)
		if err != nil {
			return err
		}
		defer file.Close()

		n, err := io.CopyN(w, file, f.size)
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%s shrank while uploading: wrote %d of %d bytes", p.Path, n, f.size)
		}
		return err
	}

	return nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func partHeader(f resolvedFile) textproto.MIMEHeader {
	var fileName string
	switch p := f.part.(type) {
	case InMemory:
		fileName = p.FileName
	case OnDisk:
		fileName = p.FileName
	}

	disposition := fmt.Sprintf(`form-data; name="%s"`, quoteEscaper.Replace(f.part.fieldName()))
	if fileName != "" {
		disposition += fmt.Sprintf(`; filename="%s"`, quoteEscaper.Replace(fileName))
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", disposition)
	h.Set("Content-Type", f.mimeType)

	return h
}

type countingWriter struct {
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	cw.n += int64(len(p))
	return len(p), nil
}
