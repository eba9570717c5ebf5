// Package envelope decodes the application envelope carried by JSON
// responses:
//
//	{"errorCode": 0, "message": "ok", "data": ...}
//
// [Decode] turns a [client.Response] into a [Payload]; [Deserialize]
// projects the payload's data into a caller-chosen shape through an
// explicit [Strategy].
package envelope

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"golang.org/x/net/html/charset"

	"github.com/adamwoolhether/httpkit/client"
	"github.com/adamwoolhether/httpkit/errs"
)

// Decode failure messages.
const (
	MsgEmptyBody = "empty or missing body"
	MsgMalformed = "malformed JSON / missing errorCode"
)

// Payload is the decoded envelope. Data holds JSON values with numbers
// normalized to int64 when integral and float64 otherwise.
type Payload struct {
	ErrorCode int
	Message   *string
	Data      any
}

// CheckFunc interprets the status code and errorCode of a response
// before its payload is built. A non-nil error is returned by Decode
// unchanged.
type CheckFunc func(statusCode, errorCode int) error

// Option configures [Decode] and the Call helpers.
type Option func(*options) error

type options struct {
	check    CheckFunc
	taskOpts []client.TaskOption
}

// WithCheck installs fn as the project-specific status policy.
func WithCheck(fn CheckFunc) Option {
	return func(o *options) error {
		if fn == nil {
			return errors.New("check func must not be nil")
		}
		o.check = fn
		return nil
	}
}

// WithTaskOptions passes opts to the fetch issued by [Call] and
// [CallData]. Decode ignores them.
func WithTaskOptions(opts ...client.TaskOption) Option {
	return func(o *options) error {
		o.taskOpts = append(o.taskOpts, opts...)
		return nil
	}
}

func applyOptions(optFns []Option) (options, error) {
	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return options{}, err
		}
	}

	return opts, nil
}

// Decode parses resp.Body as an envelope. It returns a
// [*errs.DecodeError] for any body that is not a JSON object with an
// integer errorCode, and never panics.
func Decode(resp client.Response, optFns ...Option) (Payload, error) {
	opts, err := applyOptions(optFns)
	if err != nil {
		return Payload{}, err
	}

	if len(resp.Body) == 0 {
		return Payload{}, errs.NewDecodeError(MsgEmptyBody, nil)
	}

	body, err := toUTF8(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return Payload{}, errs.NewDecodeError(MsgMalformed, err)
	}

	obj, err := parseObject(body)
	if err != nil {
		return Payload{}, errs.NewDecodeError(MsgMalformed, err)
	}

	code, ok := integer(obj["errorCode"])
	if !ok {
		return Payload{}, errs.NewDecodeError(MsgMalformed, nil)
	}

	if opts.check != nil {
		if err := opts.check(resp.StatusCode, code); err != nil {
			return Payload{}, err
		}
	}

	data, err := normalize(obj["data"])
	if err != nil {
		return Payload{}, errs.NewDecodeError(MsgMalformed, err)
	}

	p := Payload{
		ErrorCode: code,
		Data:      data,
	}
	if msg, ok := obj["message"].(string); ok {
		p.Message = &msg
	}

	return p, nil
}

// toUTF8 transcodes b when contentType names a charset other than UTF-8.
func toUTF8(b []byte, contentType string) ([]byte, error) {
	if contentType == "" {
		return b, nil
	}

	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return b, nil
	}

	label := strings.TrimSpace(params["charset"])
	if label == "" || strings.EqualFold(label, "utf-8") || strings.EqualFold(label, "utf8") {
		return b, nil
	}

	enc, name := charset.Lookup(label)
	if enc == nil {
		return nil, errors.New("unknown charset " + label)
	}
	if name == "utf-8" {
		return b, nil
	}

	return enc.NewDecoder().Bytes(b)
}

// parseObject decodes b as a single JSON object. b must be valid UTF-8.
func parseObject(b []byte) (obj map[string]any, err error) {
	if !utf8.Valid(b) {
		return nil, errors.New("body is not valid UTF-8")
	}

	defer func() {
		if rec := recover(); rec != nil {
			obj, err = nil, fmt.Errorf("decoder panic: %v", rec)
		}
	}()

	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errors.New("top-level value is not an object")
	}

	var trailing any
	if err := dec.Decode(&trailing); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after top-level object")
	}

	return obj, nil
}

// normalize replaces json.Number values in v, recursively. A number
// outside the float64 range is an error.
func normalize(v any) (any, error) {
	switch v := v.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, nil
		}
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("number %s out of range", v)
		}
		return f, nil

	case map[string]any:
		for k, e := range v {
			n, err := normalize(e)
			if err != nil {
				return nil, fmt.Errorf("%q: %w", k, err)
			}
			v[k] = n
		}
		return v, nil

	case []any:
		for i, e := range v {
			n, err := normalize(e)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			v[i] = n
		}
		return v, nil

	default:
		return v, nil
	}
}

// integer reports whether v, raw or normalized, is an integral number
// fitting an int.
func integer(v any) (int, bool) {
	switch n := v.(type) {
	case json.Number:
		v, err := normalize(n)
		if err != nil {
			return 0, false
		}
		return integer(v)
	case int64:
		if n < math.MinInt || n > math.MaxInt {
			return 0, false
		}
		return int(n), true
	case float64:
		if n != math.Trunc(n) || n < math.MinInt || n >= math.MaxInt {
			return 0, false
		}
		return int(n), true
	}

	return 0, false
}
