package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func serve(h http.Handler, method, target string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHTTPMiddleware(t *testing.T) {
	h := HTTPMiddleware("apikey", "x-api-key", "s3cret", "/api/v1/health")(okHandler)

	cases := []struct {
		name   string
		method string
		target string
		header map[string]string
		want   int
	}{
		{"correct header", "GET", "/api/v1/sessions", map[string]string{"X-Api-Key": "s3cret"}, 200},
		{"wrong header", "GET", "/api/v1/sessions", map[string]string{"X-Api-Key": "nope"}, 401},
		{"missing", "GET", "/api/v1/sessions", nil, 401},
		{"header name case", "GET", "/api/v1/sessions", map[string]string{"x-API-key": "s3cret"}, 200},
		{"query fallback", "GET", "/ws?api_key=s3cret", nil, 200},
		{"wrong query", "GET", "/ws?api_key=bad", nil, 401},
		{"exempt path", "GET", "/api/v1/health", nil, 200},
		{"preflight", "OPTIONS", "/api/v1/sessions", nil, 200},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(h, tc.method, tc.target, tc.header)
			if rec.Code != tc.want {
				t.Errorf("status: got %d, want %d", rec.Code, tc.want)
			}
			if tc.want == 401 && !strings.Contains(rec.Body.String(), "api key") {
				t.Errorf("body: %s", rec.Body.String())
			}
		})
	}
}

func TestHTTPMiddleware_Disabled(t *testing.T) {
	for _, h := range []http.Handler{
		HTTPMiddleware("none", "x-api-key", "s3cret")(okHandler),
		HTTPMiddleware("apikey", "x-api-key", "")(okHandler),
	} {
		if rec := serve(h, "GET", "/api/v1/sessions", nil); rec.Code != 200 {
			t.Errorf("status: got %d, want 200", rec.Code)
		}
	}
}
