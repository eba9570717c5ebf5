package client

import (
	"bytes"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/goccy/go-json"

	"github.com/adamwoolhether/httpkit/errs"
	"github.com/adamwoolhether/httpkit/request"
)

// NotPrintable replaces a response body in the debug trace when it is
// neither JSON nor UTF-8 text.
const NotPrintable = "<body not printable>"

// traceRequest logs d with header, the descriptor's headers merged with
// those implied by its encoded body.
func (c *Client) traceRequest(id string, d request.Descriptor, header http.Header) {
	if !c.debug {
		return
	}

	c.logger.Debug("http request",
		"task", id,
		"request", string(d.Method())+" "+d.URL(),
		"headers", prettyHeader(header),
		"body", request.Describe(d.Body()),
	)
}

func (c *Client) traceResult(t *Task, resp Response, err error) {
	if !c.debug {
		return
	}

	if err != nil {
		desc := err.Error()
		var te *errs.TransportError
		if errors.As(err, &te) {
			desc = te.Description()
		}

		c.logger.Debug("http request failed", "task", t.ID(), "url", t.url, "error", desc)
		return
	}

	c.logger.Debug("http response",
		"task", t.ID(),
		"url", t.url,
		"status", resp.StatusCode,
		"headers", prettyHeader(resp.Header),
		"body", RenderBody(resp.Body),
	)
}

// RenderBody formats a response body for display: indented JSON, else
// UTF-8 text, else [NotPrintable]. An empty body renders as "null".
func RenderBody(b []byte) string {
	if len(b) == 0 {
		return "null"
	}

	if json.Valid(b) {
		var buf bytes.Buffer
		if err := json.Indent(&buf, b, "", "  "); err == nil {
			return buf.String()
		}
	}

	if utf8.Valid(b) {
		return string(b)
	}

	return NotPrintable
}

func prettyHeader(h http.Header) string {
	flat := make(map[string]string, len(h))
	for k, v := range h {
		flat[k] = strings.Join(v, ", ")
	}

	b, err := json.MarshalIndent(flat, "", "  ")
	if err != nil {
		return "{}"
	}

	return string(b)
}
