package httpserver

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
)

// UploadRoutes serves locally stored avatars at /uploads/avatars/<user>/<file>.
func UploadRoutes(dir string) chi.Router {
	r := chi.NewRouter()

	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		rel := chi.URLParam(r, "*")
		if rel == "" {
			http.Error(w, "missing filename", http.StatusBadRequest)
			return
		}
		// Prevent path traversal: the cleaned path must stay the same and relative.
		if cleaned := path.Clean(rel); cleaned != rel || strings.HasPrefix(cleaned, "..") || strings.HasPrefix(cleaned, "/") {
			http.Error(w, "invalid filename", http.StatusBadRequest)
			return
		}
		full := filepath.Join(dir, filepath.FromSlash(rel))
		if fi, err := os.Stat(full); err != nil || fi.IsDir() {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		http.ServeFile(w, r, full)
	})

	return r
}
