package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/docview/internal/config"
	"github.com/dgallion1/docview/internal/imagecache"
)

const cleanupInterval = 5 * time.Minute

// Manager owns the open sessions and drives their image polling.
type Manager struct {
	sessions *Store
	latency  *imagecache.Latency
	log      *slog.Logger
	cfg      config.Config

	openMu sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a manager. Call Start to begin background polling.
func NewManager(cfg config.Config, log *slog.Logger) *Manager {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = time.Hour
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 100
	}
	return &Manager{
		sessions: NewStore(cfg.SessionTTL),
		latency:  imagecache.NewLatency(time.Hour),
		log:      log,
		cfg:      cfg,
	}
}

// Start launches the poll and cleanup loops.
func (m *Manager) Start(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.cfg.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				m.PollAll()
			}
		}
	}()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(min(cleanupInterval, m.cfg.SessionTTL))
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				m.Cleanup()
			}
		}
	}()
}

// Stop ends the background loops and closes every open session.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	for _, s := range m.sessions.All() {
		m.sessions.Delete(s.ID)
		s.Close()
	}
}

// Open creates a session. An empty base dir falls back to DOCUMENT_ROOT and
// an empty mode to DEFAULT_VIEW_MODE.
func (m *Manager) Open(opts Options) (*Session, error) {
	m.openMu.Lock()
	defer m.openMu.Unlock()

	if n := m.sessions.Len(); n >= m.cfg.MaxSessions {
		return nil, fmt.Errorf("%w (%d)", ErrTooManySessions, n)
	}

	if opts.BaseDir == "" {
		opts.BaseDir = m.cfg.DocumentRoot
	}
	if opts.Mode == "" {
		opts.Mode = m.cfg.DefaultViewMode
	}
	if opts.MonospaceFamily == "" {
		opts.MonospaceFamily = m.cfg.MonospaceFont
	}
	opts.CodeTokens = m.cfg.CodeTokens
	opts.Images = imagecache.Config{
		Workers:   m.cfg.ImageWorkers,
		QueueSize: m.cfg.ImageQueueSize,
		Root:      m.cfg.DocumentRoot,
		Latency:   m.latency,
		Logger:    m.log,
	}

	s := newSession(uuid.NewString(), opts)
	m.sessions.Put(s)
	m.log.Info("session opened", "session_id", s.ID, "name", s.Name, "base_dir", s.BaseDir, "mode", opts.Mode)
	return s, nil
}

func (m *Manager) Get(id string) (*Session, error) {
	s := m.sessions.Get(id)
	if s == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

// Close removes a session and stops its image workers.
func (m *Manager) Close(id string) error {
	s := m.sessions.Delete(id)
	if s == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.Close()
	m.log.Info("session closed", "session_id", id)
	return nil
}

// List returns info for every open session.
func (m *Manager) List() []Info {
	all := m.sessions.All()
	out := make([]Info, len(all))
	for i, s := range all {
		out[i] = s.Info()
	}
	return out
}

func (m *Manager) Count() int {
	return m.sessions.Len()
}

// PollAll drains finished image probes of every session.
func (m *Manager) PollAll() int {
	total := 0
	for _, s := range m.sessions.All() {
		if n := s.Poll(); n > 0 {
			m.log.Debug("images resolved", "session_id", s.ID, "count", n)
			total += n
		}
	}
	return total
}

// Cleanup evicts idle sessions.
func (m *Manager) Cleanup() int {
	expired := m.sessions.Cleanup()
	for _, s := range expired {
		s.Close()
		m.log.Info("session expired", "session_id", s.ID)
	}
	return len(expired)
}

// ImageStats sums the image cache counters of the open sessions. Latency
// covers every resolution recorded since start.
func (m *Manager) ImageStats() imagecache.Stats {
	total := imagecache.Stats{Latency: m.latency.Snapshot()}
	for _, s := range m.sessions.All() {
		total = total.Add(s.ImageStats())
	}
	return total
}
