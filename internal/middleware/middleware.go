package middleware

import (
	"net/http"
	"os"
	"strings"
)

// DefaultOrigins are allowed when STATUS_ALLOWED_ORIGINS is unset.
var DefaultOrigins = []string{
	"http://localhost:5173",
	"http://localhost:3000",
}

// OriginsFromEnv reads a comma-separated allow-list from STATUS_ALLOWED_ORIGINS.
func OriginsFromEnv() []string {
	raw := strings.TrimSpace(os.Getenv("STATUS_ALLOWED_ORIGINS"))
	if raw == "" {
		return DefaultOrigins
	}
	var out []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// CORS builds a middleware that echoes the request origin when it is on the
// allow-list. The status surface is read-only so only GET and OPTIONS are
// advertised.
func CORS(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			// Echo the origin back only if it's on our allow-list
			if _, ok := allowed[origin]; ok {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin") // important for caches
				w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			}

			w.Header().Set("Access-Control-Expose-Headers", "X-Pipeline-State, Cache-Control")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
