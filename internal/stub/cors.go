package stub

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"
)

// CORS answers cross-origin requests from allowedOrigins. An entry may be
// "*" or a path.Match pattern such as "https://*.example.com". Disallowed
// origins receive a 403 envelope; preflights are answered with 204.
func CORS(allowedOrigins []string, allowedHeaders ...string) Middleware {
	if len(allowedHeaders) == 0 {
		allowedHeaders = []string{"Authorization", "Content-Type", "Accept", "X-Requested-With", "Cache-Control"}
	}

	originAllowed := checkOrigin(allowedOrigins)
	headers := strings.Join(allowedHeaders, ", ")

	m := func(handler Handler) Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return handler(ctx, w, r)
			}

			if !originAllowed(origin) {
				return Respond(ctx, w, http.StatusForbidden, http.StatusForbidden, fmt.Sprintf("CORS origin[%s] not allowed", origin), nil)
			}

			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS, PUT, POST, PATCH, DELETE")
			w.Header().Set("Access-Control-Max-Age", "86400")
			w.Header().Set("Access-Control-Allow-Headers", headers)

			if r.Method == http.MethodOptions {
				return Respond(ctx, w, http.StatusNoContent, CodeOK, "", nil)
			}

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}

// checkOrigin splits comma-separated entries and returns a matcher over
// exact origins and wildcard patterns.
func checkOrigin(allowedOrigins []string) func(string) bool {
	allowed := make(map[string]bool)
	var wildcards []string

	for _, entry := range allowedOrigins {
		for o := range strings.SplitSeq(entry, ",") {
			switch o = strings.TrimSpace(o); {
			case o == "":
			case strings.Contains(o, "*") && o != "*":
				wildcards = append(wildcards, o)
			default:
				allowed[o] = true
			}
		}
	}
	allowAll := allowed["*"]

	return func(origin string) bool {
		if allowAll || allowed[origin] {
			return true
		}
		for _, pattern := range wildcards {
			if ok, err := path.Match(pattern, origin); ok && err == nil {
				return true
			}
		}
		return false
	}
}
