package api

import (
	"encoding/json"
	"net/http"

	"github.com/dgallion1/docview/internal/convert"
	"github.com/dgallion1/docview/internal/export"
	"github.com/dgallion1/docview/internal/highlight"
	"github.com/dgallion1/docview/internal/view"
)

type convertRequest struct {
	Source string `json:"source"`
	Title  string `json:"title"`
	Mode   string `json:"mode"`
	Format string `json:"format"`
}

// handleConvert is the stateless path: one source in, one snapshot or
// export out. Images are not probed, so every image keeps the fallback size.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	var req convertRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	opts := convert.Options{
		Title:           req.Title,
		BaseDir:         s.cfg.DocumentRoot,
		MonospaceFamily: s.cfg.MonospaceFont,
	}

	if req.Format != "" {
		e, err := export.ForFormat(req.Format)
		if err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", e.ContentType())
		if err := e.Export(w, convert.Markdown(req.Source, opts)); err != nil {
			s.log.Error("export failed", "format", req.Format, "error", err)
		}
		return
	}

	mode := view.ModeRendered
	if req.Mode != "" {
		m, err := view.ParseMode(req.Mode)
		if err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		mode = m
	}

	b := view.Builder{
		Convert:     opts,
		Highlighter: highlight.Highlighter{CodeTokens: s.cfg.CodeTokens},
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(b.Build(req.Source, mode))
}
