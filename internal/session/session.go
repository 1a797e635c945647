// Package session keeps open documents alive between requests. Each session
// owns one image cache; its mutex is what serializes Request and Poll.
package session

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dgallion1/docview/internal/convert"
	"github.com/dgallion1/docview/internal/doctree"
	"github.com/dgallion1/docview/internal/export"
	"github.com/dgallion1/docview/internal/highlight"
	"github.com/dgallion1/docview/internal/imagecache"
	"github.com/dgallion1/docview/internal/view"
)

var (
	ErrNotFound        = errors.New("session not found")
	ErrTooManySessions = errors.New("too many open sessions")
)

// Options describes a session to open.
type Options struct {
	Name    string
	BaseDir string
	Source  string
	Mode    view.Mode

	MonospaceFamily string
	CodeTokens      bool
	Images          imagecache.Config
}

// Session is one open document.
type Session struct {
	mu sync.Mutex

	ID      string
	Name    string
	BaseDir string

	source    string
	mode      view.Mode
	images    *imagecache.Cache
	views     view.Builder
	createdAt time.Time
	updatedAt time.Time
}

// Info is a read-only, JSON-safe copy of session state.
type Info struct {
	ID            string    `json:"session_id"`
	Name          string    `json:"name"`
	BaseDir       string    `json:"base_dir"`
	Mode          view.Mode `json:"mode"`
	SourceBytes   int       `json:"source_bytes"`
	SourceLines   int       `json:"source_lines"`
	PendingImages int       `json:"pending_images"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func newSession(id string, opts Options) *Session {
	if opts.Mode == "" {
		opts.Mode = view.ModeRendered
	}
	opts.Images.BaseDir = opts.BaseDir
	images := imagecache.New(opts.Images)

	now := time.Now()
	return &Session{
		ID:      id,
		Name:    opts.Name,
		BaseDir: opts.BaseDir,
		source:  opts.Source,
		mode:    opts.Mode,
		images:  images,
		views: view.Builder{
			Convert: convert.Options{
				Title:           opts.Name,
				BaseDir:         opts.BaseDir,
				Images:          images,
				MonospaceFamily: opts.MonospaceFamily,
			},
			Highlighter: highlight.Highlighter{CodeTokens: opts.CodeTokens},
		},
		createdAt: now,
		updatedAt: now,
	}
}

// SetSource replaces the document text. Image entries already cached are
// kept, so unchanged references are not probed again.
func (s *Session) SetSource(source string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = source
	s.updatedAt = time.Now()
}

// SetMode changes the mode used by Snapshot.
func (s *Session) SetMode(m view.Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = m
	s.updatedAt = time.Now()
}

func (s *Session) Mode() view.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *Session) Source() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// Snapshot builds the view for the current mode.
func (s *Session) Snapshot() view.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updatedAt = time.Now()
	return s.views.Build(s.source, s.mode)
}

// SnapshotMode builds the view for m without changing the session mode.
func (s *Session) SnapshotMode(m view.Mode) view.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updatedAt = time.Now()
	return s.views.Build(s.source, m)
}

// Document converts the current source.
func (s *Session) Document() *doctree.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updatedAt = time.Now()
	return convert.Markdown(s.source, s.views.Convert)
}

func (s *Session) Outline() []convert.OutlineEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updatedAt = time.Now()
	return convert.Outline(s.source, s.views.Convert)
}

// Export writes the current document in the named format. The tree is
// built under the lock and serialized after it is released.
func (s *Session) Export(w io.Writer, format string) error {
	e, err := export.ForFormat(format)
	if err != nil {
		return err
	}
	if err := e.Export(w, s.Document()); err != nil {
		return fmt.Errorf("export %s: %w", s.ID, err)
	}
	return nil
}

// Poll drains finished image probes and returns how many changed state.
func (s *Session) Poll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.images.Poll()
}

func (s *Session) PendingImages() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.images.Pending()
}

func (s *Session) Assets() []imagecache.Asset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.images.Assets()
}

func (s *Session) ImageStats() imagecache.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.images.Stats()
}

// Info returns a JSON-safe copy of the session state.
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := strings.Count(s.source, "\n")
	if s.source != "" && !strings.HasSuffix(s.source, "\n") {
		lines++
	}
	return Info{
		ID:            s.ID,
		Name:          s.Name,
		BaseDir:       s.BaseDir,
		Mode:          s.mode,
		SourceBytes:   len(s.source),
		SourceLines:   lines,
		PendingImages: s.images.Pending(),
		CreatedAt:     s.createdAt,
		UpdatedAt:     s.updatedAt,
	}
}

// Close stops the image workers and waits for queued probes to finish.
// The wait happens outside the session lock so readers are not blocked
// behind a slow probe.
func (s *Session) Close() {
	s.mu.Lock()
	s.images.Shutdown()
	s.mu.Unlock()
	s.images.Wait()
}

func (s *Session) lastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}
