// Package imagecache resolves image references to pixel dimensions in the
// background. Requests never block; the owner drains finished work with Poll.
package imagecache

import (
	"errors"
	"fmt"
	"image"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Status is the lifecycle state of a cached asset.
type Status string

const (
	StatusPlaceholder Status = "placeholder"
	StatusReady       Status = "ready"
	StatusFailed      Status = "failed"
)

var (
	ErrRemoteDeferred = errors.New("remote image download deferred")
	ErrQueueFull      = errors.New("image resolution queue is full")
	ErrClosed         = errors.New("image cache is closed")
	ErrDisconnected   = errors.New("image resolution task ended without a result")
	ErrOutsideRoot    = errors.New("image reference outside the document root")
	ErrNotFound       = errors.New("image file not found")
	ErrUnreadable     = errors.New("image file unreadable")
	ErrUnsupported    = errors.New("unsupported image format")
)

// Asset is the cache entry for one image reference. Width and Height are
// only set when Status is StatusReady.
type Asset struct {
	Reference string `json:"reference"`
	AltText   string `json:"alt_text,omitempty"`
	Path      string `json:"path,omitempty"`
	Status    Status `json:"status"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (a Asset) Ready() bool { return a.Status == StatusReady }

// Config controls how a Cache resolves references. When Root is set, local
// references resolving outside it fail without being probed.
type Config struct {
	BaseDir   string
	Root      string
	Workers   int
	QueueSize int
	Probe     ProbeFunc
	Latency   *Latency
	Logger    *slog.Logger
}

type result struct {
	width, height int
	err           error
	elapsed       time.Duration
}

// Cache deduplicates image resolution by reference string. It has no internal
// locking: Request, Poll and the accessors must be called from one goroutine
// at a time.
type Cache struct {
	cfg     Config
	log     *slog.Logger
	pool    *pool
	latency *Latency

	entries map[string]*Asset
	pending map[string]<-chan result
	closed  bool

	requests int
	hits     int
	misses   int
	spawned  int
}

// New creates a cache and starts its worker pool.
func New(cfg Config) *Cache {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Probe == nil {
		cfg.Probe = ProbeFile
	}
	if cfg.Latency == nil {
		cfg.Latency = NewLatency(time.Hour)
	}
	if cfg.Root != "" {
		if abs, err := filepath.Abs(cfg.Root); err == nil {
			cfg.Root = abs
		}
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Cache{
		cfg:     cfg,
		log:     log.With("component", "imagecache"),
		pool:    newPool(cfg.Workers, cfg.QueueSize),
		latency: cfg.Latency,
		entries: make(map[string]*Asset),
		pending: make(map[string]<-chan result),
	}
}

// Request returns the current asset for ref. An unseen local reference is
// cached as a placeholder and one background probe is queued for it.
func (c *Cache) Request(ref, altText string) Asset {
	c.requests++
	if a, ok := c.entries[ref]; ok {
		c.hits++
		return *a
	}
	c.misses++

	a := &Asset{Reference: ref, AltText: altText, Status: StatusPlaceholder}
	c.entries[ref] = a

	switch {
	case c.closed:
		a.fail(ErrClosed)
		return *a
	case IsRemote(ref):
		a.fail(ErrRemoteDeferred)
		return *a
	}

	path := ResolvePath(c.cfg.BaseDir, ref)
	if !c.withinRoot(path) {
		c.log.Warn("image outside document root", "reference", ref)
		a.fail(ErrOutsideRoot)
		return *a
	}
	a.Path = path
	if _, busy := c.pending[ref]; busy {
		return *a
	}

	out := make(chan result, 1)
	if !c.pool.submit(c.task(ref, a.Path, out)) {
		c.log.Warn("image queue full", "reference", ref, "queue_size", c.cfg.QueueSize)
		a.fail(ErrQueueFull)
		return *a
	}
	c.pending[ref] = out
	c.spawned++
	return *a
}

func (c *Cache) task(ref, path string, out chan<- result) func() {
	probe := c.cfg.Probe
	return func() {
		defer close(out)
		defer func() {
			if r := recover(); r != nil {
				c.log.Error("image probe panicked", "reference", ref, "panic", fmt.Sprint(r))
			}
		}()
		start := time.Now()
		w, h, err := probe(path)
		out <- result{width: w, height: h, err: err, elapsed: time.Since(start)}
	}
}

// Poll applies every finished probe to its entry and returns how many
// entries changed state. It never waits for running probes.
func (c *Cache) Poll() int {
	resolved := 0
	for ref, ch := range c.pending {
		var (
			r  result
			ok bool
		)
		select {
		case r, ok = <-ch:
		default:
			continue
		}
		delete(c.pending, ref)
		resolved++

		a := c.entries[ref]
		switch {
		case !ok:
			a.fail(ErrDisconnected)
		case r.err != nil:
			c.log.Debug("image probe failed", "reference", ref, "error", r.err)
			a.fail(probeError(r.err))
		default:
			a.Status = StatusReady
			a.Width, a.Height = r.width, r.height
			a.Error = ""
		}
		if ok {
			c.latency.Record(r.elapsed)
		}
		c.log.Debug("image resolved", "reference", ref, "status", a.Status, "error", a.Error)
	}
	return resolved
}

// Pending returns the number of probes not yet drained by Poll.
func (c *Cache) Pending() int {
	return len(c.pending)
}

// Get returns the asset cached for ref.
func (c *Cache) Get(ref string) (Asset, bool) {
	a, ok := c.entries[ref]
	if !ok {
		return Asset{}, false
	}
	return *a, true
}

// Assets lists every cached entry ordered by reference.
func (c *Cache) Assets() []Asset {
	out := make([]Asset, 0, len(c.entries))
	for _, a := range c.entries {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Reference < out[j].Reference })
	return out
}

// Stats returns request counters and the current entry breakdown.
func (c *Cache) Stats() Stats {
	s := Stats{
		Requests:     c.requests,
		Hits:         c.hits,
		Misses:       c.misses,
		TasksSpawned: c.spawned,
		Pending:      len(c.pending),
		Latency:      c.latency.Snapshot(),
	}
	for _, a := range c.entries {
		switch a.Status {
		case StatusReady:
			s.Ready++
		case StatusFailed:
			s.Failed++
		}
	}
	return s
}

// Close stops accepting work and waits for queued probes to finish. Results
// still buffered can be drained with Poll afterwards.
func (c *Cache) Close() {
	c.Shutdown()
	c.Wait()
}

// Shutdown marks the cache closed and stops the workers taking new probes.
// It does not wait, so callers may hold their own lock around it.
func (c *Cache) Shutdown() {
	if c.closed {
		return
	}
	c.closed = true
	c.pool.stop()
}

// Wait blocks until probes already queued have finished. Unlike the other
// methods it may be called from any goroutine.
func (c *Cache) Wait() {
	c.pool.wait()
}

func (c *Cache) withinRoot(path string) bool {
	if c.cfg.Root == "" {
		return true
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(c.cfg.Root, abs)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// probeError replaces filesystem and decoder errors with a category so
// asset errors never carry OS error text.
func probeError(err error) error {
	var pathErr *fs.PathError
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ErrNotFound
	case errors.Is(err, image.ErrFormat):
		return ErrUnsupported
	case errors.As(err, &pathErr):
		return ErrUnreadable
	}
	return err
}

func (a *Asset) fail(err error) {
	a.Status = StatusFailed
	a.Width, a.Height = 0, 0
	a.Error = err.Error()
}
