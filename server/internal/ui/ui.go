package ui

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/olivere/vite"

	"github.com/vitalsmon/vitalsmon/server/internal/config"
)

// New returns the dashboard handler for cfg. Callers should check
// cfg.Enabled first.
func New(cfg config.UIConfig) (http.Handler, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = "."
	}
	if !cfg.Dev {
		if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
			return nil, fmt.Errorf("ui: %s is not a directory", dir)
		}
	}
	viteURL := cfg.ViteURL
	if viteURL == "" {
		viteURL = config.DefaultViteURL
	}

	h, err := vite.NewHandler(vite.Config{
		FS:      os.DirFS(dir),
		IsDev:   cfg.Dev,
		ViteURL: viteURL,
	})
	if err != nil {
		return nil, fmt.Errorf("ui: %w", err)
	}
	slog.Info("ui: dashboard mounted", "dir", dir, "dev", cfg.Dev, "vite_url", viteURL)
	return spaFallback(h), nil
}

// spaFallback rewrites extensionless paths to "/" and rejects anything
// other than GET and HEAD.
func spaFallback(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if p := path.Clean(r.URL.Path); p != "/" && !strings.Contains(path.Base(p), ".") {
			r2 := r.Clone(r.Context())
			r2.URL.Path = "/"
			r2.URL.RawPath = ""
			next.ServeHTTP(w, r2)
			return
		}
		next.ServeHTTP(w, r)
	})
}
