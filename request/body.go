package request

// Body is the body of a request. It is one of [None], [Plain], [JSON],
// [Query] or [Multipart]; the set is closed.
type Body interface {
	isBody()
}

// None sends no body.
type None struct{}

// Plain sends Text verbatim as UTF-8, bypassing any parameter encoding.
type Plain struct {
	Text string
}

// JSON sends Params serialized as a JSON object.
type JSON struct {
	Params map[string]any
}

// Query sends Params URL-encoded in the request body rather than the
// URL's query string.
type Query struct {
	Params map[string]string
}

// Multipart sends Fields as text parts followed by Files. Only the
// upload operation accepts it.
type Multipart struct {
	Fields map[string]string
	Files  []FilePart
}

func (None) isBody()      {}
func (Plain) isBody()     {}
func (JSON) isBody()      {}
func (Query) isBody()     {}
func (Multipart) isBody() {}

// FilePart is a file within a [Multipart] body: either [InMemory] or [OnDisk].
type FilePart interface {
	isFilePart()
	fieldName() string
}

// InMemory is a file part whose content is held in memory. FileName and
// MimeType are optional; a missing MimeType is detected from Data.
type InMemory struct {
	Data      []byte
	FieldName string `validate:"required"`
	FileName  string
	MimeType  string
}

// OnDisk is a file part streamed from Path when the request is sent.
type OnDisk struct {
	Path      string `validate:"required"`
	FieldName string `validate:"required"`
	FileName  string `validate:"required"`
	MimeType  string `validate:"required"`
}

func (InMemory) isFilePart() {}
func (OnDisk) isFilePart()   {}

func (f InMemory) fieldName() string { return f.FieldName }
func (f OnDisk) fieldName() string   { return f.FieldName }

// IsMultipart reports whether b is a multipart body.
func IsMultipart(b Body) bool {
	_, ok := b.(Multipart)
	return ok
}
