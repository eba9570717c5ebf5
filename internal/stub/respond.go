package stub

import (
	"context"
	"net/http"

	"github.com/goccy/go-json"
)

// Error codes carried in the envelope.
const (
	CodeOK         = 0
	CodeBadRequest = 400
	CodeNotFound   = 404
	CodeInternal   = 500
)

// Envelope is the response body of every stub route.
type Envelope struct {
	ErrorCode int     `json:"errorCode"`
	Message   *string `json:"message,omitempty"`
	Data      any     `json:"data,omitempty"`
}

// Respond writes an envelope with the given HTTP status. A 204 is
// written without a body.
func Respond(ctx context.Context, w http.ResponseWriter, statusCode, errorCode int, message string, data any) error {
	setStatusCode(ctx, statusCode)

	if statusCode == http.StatusNoContent {
		w.WriteHeader(statusCode)
		return nil
	}

	env := Envelope{ErrorCode: errorCode, Data: data}
	if message != "" {
		env.Message = &message
	}

	jsonData, err := json.Marshal(env)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)

	if _, err = w.Write(jsonData); err != nil {
		return err
	}

	return nil
}
