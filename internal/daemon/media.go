package daemon

import (
	"errors"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"songflow/internal/logging"
)

// handleMedia serves saved audio and cover files with range support.
func (s *apiServer) handleMedia(w http.ResponseWriter, r *http.Request) {
	rel := chi.URLParam(r, "*")
	file, err := s.daemon.library.Open(rel)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		s.log().Warn("media open failed", logging.String("path", rel), logging.Error(err))
		http.Error(w, "media unavailable", http.StatusInternalServerError)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeContent(w, r, info.Name(), info.ModTime(), file)
}
