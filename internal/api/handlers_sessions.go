package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/docview/internal/export"
	"github.com/dgallion1/docview/internal/session"
	"github.com/dgallion1/docview/internal/view"
)

const maxSnapshotWait = 30 * time.Second

type openRequest struct {
	Name    string `json:"name"`
	BaseDir string `json:"base_dir"`
	Source  string `json:"source"`
	Mode    string `json:"mode"`
}

// handleOpenSession accepts either a JSON body or a multipart upload with
// a "file" part.
func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		// Limit total request size.
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

		if err := r.ParseMultipartForm(32 << 20); err != nil {
			jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
			return
		}
		defer r.MultipartForm.RemoveAll()

		file, header, err := r.FormFile("file")
		if err != nil {
			jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
		if err != nil {
			jsonError(w, "failed to read file", http.StatusInternalServerError)
			return
		}
		if int64(len(data)) > s.cfg.MaxUploadBytes {
			jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
			return
		}

		req.Source = string(data)
		req.Name = r.FormValue("name")
		if req.Name == "" {
			req.Name = sanitizeFilename(header.Filename)
		}
		req.BaseDir = r.FormValue("base_dir")
		req.Mode = r.FormValue("mode")
	} else if !s.decodeJSON(w, r, &req) {
		return
	}

	var mode view.Mode
	if req.Mode != "" {
		m, err := view.ParseMode(req.Mode)
		if err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		mode = m
	}

	sess, err := s.sessions.Open(session.Options{
		Name:    req.Name,
		BaseDir: s.resolveBaseDir(req.BaseDir),
		Source:  req.Source,
		Mode:    mode,
	})
	if err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"session":      sess.Info(),
		"snapshot_url": fmt.Sprintf("/api/sessions/%s/snapshot", sess.ID),
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"sessions": s.sessions.List()})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sess.Info())
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if err := s.sessions.Close(id); err != nil {
		jsonError(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetSource(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req struct {
		Source string `json:"source"`
	}
	if !s.decodeJSON(w, r, &req) {
		return
	}
	sess.SetSource(req.Source)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sess.Info())
}

func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req struct {
		Mode string `json:"mode"`
	}
	if !s.decodeJSON(w, r, &req) {
		return
	}
	mode, err := view.ParseMode(req.Mode)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	sess.SetMode(mode)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sess.Info())
}

// handleSnapshot builds the current view. With ?wait=<duration> the images
// referenced by the document are awaited before the final build.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	mode := sess.Mode()
	if v := r.URL.Query().Get("mode"); v != "" {
		m, err := view.ParseMode(v)
		if err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		mode = m
	}

	if v := r.URL.Query().Get("wait"); v != "" {
		wait, err := time.ParseDuration(v)
		if err != nil || wait < 0 {
			jsonError(w, "invalid wait duration: "+v, http.StatusBadRequest)
			return
		}
		sess.SnapshotMode(mode)
		ctx, cancel := context.WithTimeout(r.Context(), min(wait, maxSnapshotWait))
		err = session.AwaitImages(ctx, sess)
		cancel()
		if err != nil {
			s.log.Debug("snapshot wait ended with pending images", "session_id", sess.ID, "pending", sess.PendingImages())
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sess.SnapshotMode(mode))
}

func (s *Server) handleOutline(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"outline": sess.Outline()})
}

func (s *Server) handleImages(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"images": sess.Assets(),
		"stats":  sess.ImageStats(),
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format := chi.URLParam(r, "format")
	if !export.IsSupportedFormat(format) {
		jsonError(w, fmt.Sprintf("%s: %s", export.ErrUnknownFormat, format), http.StatusBadRequest)
		return
	}
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	e, _ := export.ForFormat(format)

	var buf bytes.Buffer
	if err := sess.Export(&buf, format); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	name := sess.Name
	if name == "" {
		name = sess.ID
	}
	name = strings.TrimSuffix(name, filepath.Ext(name)) + e.Extension()
	w.Header().Set("Content-Type", e.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Write(buf.Bytes())
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, session.ErrNotFound) {
			code = http.StatusNotFound
		}
		jsonError(w, err.Error(), code)
		return nil, false
	}
	return sess, true
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, fmt.Sprintf("body exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
			return false
		}
		jsonError(w, "invalid json body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// resolveBaseDir confines a client supplied directory to DOCUMENT_ROOT.
func (s *Server) resolveBaseDir(dir string) string {
	if dir == "" {
		return s.cfg.DocumentRoot
	}
	return filepath.Join(s.cfg.DocumentRoot, filepath.Clean("/"+dir))
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	// Remove any path separators that might have survived.
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
