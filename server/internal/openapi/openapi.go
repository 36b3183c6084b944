package openapi

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	middleware "github.com/oapi-codegen/nethttp-middleware"
)

// DocPath is where Handler is mounted.
const DocPath = "/api/v1/openapi.json"

//go:embed openapi.yaml
var document []byte

// Load parses the embedded document and validates it.
func Load() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(document)
	if err != nil {
		return nil, fmt.Errorf("openapi: parse: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("openapi: validate: %w", err)
	}
	return doc, nil
}

// Handler serves doc as JSON.
func Handler(doc *openapi3.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeErr(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		b, err := json.Marshal(doc)
		if err != nil {
			slog.Error("openapi: encode document", "err", err)
			writeErr(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(b) //nolint:errcheck
	})
}

// Validator returns middleware that checks each request against doc.
// The document itself is exempt so clients can always fetch it.
func Validator(doc *openapi3.T) func(http.Handler) http.Handler {
	validate := middleware.OapiRequestValidatorWithOptions(doc, &middleware.Options{
		ErrorHandler: writeErr,
	})
	return func(next http.Handler) http.Handler {
		checked := validate(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == DocPath || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			checked.ServeHTTP(w, r)
		})
	}
}

func writeErr(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": firstLine(message)}) //nolint:errcheck
}

// firstLine trims kin-openapi's multi-line schema dumps down to the summary.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
