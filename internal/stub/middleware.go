package stub

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"
)

// Logger logs the start and completion of every request.
func Logger(log *slog.Logger) Middleware {
	m := func(handler Handler) Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			v := getValues(ctx)

			path := r.URL.Path
			if r.URL.RawQuery != "" {
				path = fmt.Sprintf("%s?%s", path, r.URL.RawQuery)
			}

			log.Info("request started", "method", r.Method, "path", path, "traceid", v.TraceID)

			err := handler(ctx, w, r)

			log.Info("request completed", "method", r.Method, "path", path, "statusCode", v.StatusCode, "since", time.Since(v.Now).String())

			return err
		}

		return h
	}

	return m
}

// Panics recovers from panics if they occur. http.ErrAbortHandler is
// re-raised so the connection is cut.
func Panics() Middleware {
	m := func(handler Handler) Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					err = fmt.Errorf("PANIC [%v] TRACE[%s]", rec, string(debug.Stack()))
					Respond(ctx, w, http.StatusInternalServerError, CodeInternal, "internal error", nil)
				}
			}()

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}
