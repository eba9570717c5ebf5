package request

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/goccy/go-json"

	"github.com/adamwoolhether/httpkit/errs"
)

const (
	ContentTypeJSON = "application/json"
	ContentTypeForm = "application/x-www-form-urlencoded; charset=utf-8"
)

// Encoded is a body ready for the wire. Body is nil when there is
// nothing to send.
type Encoded struct {
	Body   []byte
	Header http.Header
}

// Encode maps a non-multipart body to wire bytes and the headers it
// implies. Multipart bodies are streamed by [EncodeMultipart] instead and
// are rejected here with [errs.ErrMultipartBody].
func Encode(b Body) (Encoded, error) {
	switch b := b.(type) {
	case nil, None:
		return Encoded{Header: http.Header{}}, nil

	case Plain:
		return Encoded{Body: []byte(b.Text), Header: http.Header{}}, nil

	case JSON:
		params := b.Params
		if params == nil {
			params = map[string]any{}
		}

		data, err := json.Marshal(params)
		if err != nil {
			return Encoded{}, fmt.Errorf("encoding json body: %w", err)
		}

		h := http.Header{}
		h.Set("Content-Type", ContentTypeJSON)
		return Encoded{Body: data, Header: h}, nil

	case Query:
		values := make(url.Values, len(b.Params))
		for k, v := range b.Params {
			values.Set(k, v)
		}

		h := http.Header{}
		h.Set("Content-Type", ContentTypeForm)
		return Encoded{Body: []byte(values.Encode()), Header: h}, nil

	case Multipart:
		return Encoded{}, errs.ErrMultipartBody

	default:
		return Encoded{}, fmt.Errorf("unsupported body type %T", b)
	}
}
