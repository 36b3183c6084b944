package auth

import (
	"encoding/json"
	"net/http"
)

// QueryParam is the query-string fallback for the API key. Browsers cannot
// set headers on WebSocket upgrades, so the dashboard passes the key here.
const QueryParam = "api_key"

// HTTPMiddleware applies the same Guard as APIKeyInterceptor to REST and
// WebSocket requests. The key comes from header, falling back to the api_key
// query parameter. Paths in exempt and CORS preflights always pass.
// Rejections are 401 with a JSON error body.
func HTTPMiddleware(mode, header, key string, exempt ...string) func(http.Handler) http.Handler {
	g := NewGuard(mode, header, key)
	skip := make(map[string]bool, len(exempt))
	for _, p := range exempt {
		skip[p] = true
	}
	return func(next http.Handler) http.Handler {
		if !g.Enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip[r.URL.Path] || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			got := r.Header.Get(g.Header())
			if got == "" {
				got = r.URL.Query().Get(QueryParam)
			}
			if err := g.Check(got); err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"error": err.Error()}) //nolint:errcheck
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
