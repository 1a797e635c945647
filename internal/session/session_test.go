package session

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docview/internal/config"
	"github.com/dgallion1/docview/internal/doctree"
	"github.com/dgallion1/docview/internal/imagecache"
	"github.com/dgallion1/docview/internal/view"
)

func testManager(t *testing.T, cfg config.Config) *Manager {
	t.Helper()
	if cfg.ImageWorkers == 0 {
		cfg.ImageWorkers = 2
	}
	if cfg.DocumentRoot == "" {
		cfg.DocumentRoot = t.TempDir()
	}
	m := NewManager(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(m.Stop)
	return m
}

func writePNG(t *testing.T, dir, name string, w, h int) {
	t.Helper()
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("create fixture: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
}

func firstImage(doc *doctree.Document) *doctree.Image {
	var img *doctree.Image
	doctree.Walk(doc.Blocks, func(b doctree.Block) {
		if i, ok := b.(*doctree.Image); ok && img == nil {
			img = i
		}
	})
	return img
}

func TestSession_ImageResolvesAcrossRebuilds(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "chart.png", 40, 30)

	m := testManager(t, config.Config{})
	s, err := m.Open(Options{Name: "notes", BaseDir: dir, Source: "# Notes\n\n![chart](chart.png)\n"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	img := firstImage(s.Document())
	if img == nil {
		t.Fatal("expected an image block")
	}
	if img.Width != 320 || img.Height != 180 {
		t.Errorf("expected fallback size on first build, got %dx%d", img.Width, img.Height)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := AwaitImages(ctx, s); err != nil {
		t.Fatalf("await images: %v", err)
	}

	img = firstImage(s.Document())
	if img.Width != 40 || img.Height != 30 {
		t.Errorf("expected 40x30 after resolution, got %dx%d", img.Width, img.Height)
	}
	if img.Status != string(imagecache.StatusReady) {
		t.Errorf("expected ready status, got %q", img.Status)
	}

	assets := s.Assets()
	if len(assets) != 1 || assets[0].Reference != "chart.png" {
		t.Errorf("expected one asset for chart.png, got %+v", assets)
	}
}

func TestSession_SetSourceAndMode(t *testing.T) {
	m := testManager(t, config.Config{DefaultViewMode: view.ModeSource})
	s, err := m.Open(Options{Source: "a\n"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if s.Mode() != view.ModeSource {
		t.Errorf("expected default mode source, got %q", s.Mode())
	}

	snap := s.Snapshot()
	if snap.Document != nil || len(snap.Lines) != 1 {
		t.Errorf("expected source-only snapshot with 1 line, got %+v", snap)
	}

	s.SetSource("# One\n\n## Two\n")
	s.SetMode(view.ModeSplit)
	snap = s.Snapshot()
	if snap.Mode != view.ModeSplit || snap.Document == nil || len(snap.Lines) != 3 {
		t.Errorf("unexpected split snapshot: mode=%q lines=%d", snap.Mode, len(snap.Lines))
	}

	if got := s.SnapshotMode(view.ModeRendered); got.Lines != nil {
		t.Error("expected rendered snapshot without lines")
	}
	if s.Mode() != view.ModeSplit {
		t.Error("SnapshotMode must not change the session mode")
	}

	outline := s.Outline()
	if len(outline) != 2 || outline[1].Title != "Two" || outline[1].Level != 2 {
		t.Errorf("unexpected outline: %+v", outline)
	}

	info := s.Info()
	if info.SourceLines != 3 || info.SourceBytes != len("# One\n\n## Two\n") {
		t.Errorf("unexpected info: %+v", info)
	}
}

func TestSession_Export(t *testing.T) {
	m := testManager(t, config.Config{})
	s, err := m.Open(Options{Source: "# Title\n\nbody\n"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	var buf bytes.Buffer
	if err := s.Export(&buf, "txt"); err != nil {
		t.Fatalf("export: %v", err)
	}
	if buf.String() != "Title\nbody\n" {
		t.Errorf("unexpected text export %q", buf.String())
	}
	if err := s.Export(&buf, "rtf"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestManager_OpenGetClose(t *testing.T) {
	m := testManager(t, config.Config{MaxSessions: 2})

	a, err := m.Open(Options{Name: "a"})
	if err != nil {
		t.Fatalf("open a: %v", err)
	}
	if _, err := m.Open(Options{Name: "b"}); err != nil {
		t.Fatalf("open b: %v", err)
	}
	if _, err := m.Open(Options{Name: "c"}); !errors.Is(err, ErrTooManySessions) {
		t.Errorf("expected ErrTooManySessions, got %v", err)
	}

	got, err := m.Get(a.ID)
	if err != nil || got != a {
		t.Fatalf("expected to get session a, got %v, %v", got, err)
	}
	if a.BaseDir == "" {
		t.Error("expected base dir to default to document root")
	}

	if err := m.Close(a.ID); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := m.Get(a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := m.Close(a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second close, got %v", err)
	}
	if m.Count() != 1 {
		t.Errorf("expected 1 open session, got %d", m.Count())
	}
}

func TestManager_List(t *testing.T) {
	m := testManager(t, config.Config{})
	for _, name := range []string{"first", "second"} {
		if _, err := m.Open(Options{Name: name}); err != nil {
			t.Fatalf("open %s: %v", name, err)
		}
	}
	infos := m.List()
	if len(infos) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(infos))
	}
	names := []string{infos[0].Name, infos[1].Name}
	if strings.Join(names, ",") != "first,second" && strings.Join(names, ",") != "second,first" {
		t.Errorf("unexpected names %v", names)
	}
}

func TestManager_BackgroundPolling(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "a.png", 8, 6)

	m := testManager(t, config.Config{PollInterval: 5 * time.Millisecond})
	m.Start(context.Background())

	s, err := m.Open(Options{BaseDir: dir, Source: "![a](a.png)\n"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s.Document()

	require.Eventually(t, func() bool {
		a := s.Assets()
		return len(a) == 1 && a[0].Ready()
	}, 5*time.Second, 10*time.Millisecond)

	stats := m.ImageStats()
	if stats.Requests != 1 || stats.Ready != 1 || stats.TasksSpawned != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if stats.Latency.Count != 1 {
		t.Errorf("expected one latency sample, got %d", stats.Latency.Count)
	}
}

func TestStore_Cleanup(t *testing.T) {
	store := NewStore(time.Minute)
	fresh := newSession("fresh", Options{})
	stale := newSession("stale", Options{})
	t.Cleanup(fresh.Close)
	t.Cleanup(stale.Close)
	stale.updatedAt = time.Now().Add(-2 * time.Minute)

	store.Put(fresh)
	store.Put(stale)

	expired := store.Cleanup()
	if len(expired) != 1 || expired[0].ID != "stale" {
		t.Fatalf("expected stale session evicted, got %v", expired)
	}
	if store.Get("fresh") == nil {
		t.Error("expected fresh session kept")
	}
	if store.Len() != 1 {
		t.Errorf("expected 1 session, got %d", store.Len())
	}
}

func TestBackoff_Bounds(t *testing.T) {
	for attempt := range 40 {
		d := Backoff(attempt)
		if d < backoffBase || d > backoffMax*3/2 {
			t.Errorf("attempt %d: backoff %v out of range", attempt, d)
		}
	}
	if Backoff(0) >= 2*backoffBase {
		t.Errorf("expected first backoff below %v", 2*backoffBase)
	}
}

func TestAwaitImages_ContextCanceled(t *testing.T) {
	block := make(chan struct{})
	s := newSession("blocked", Options{Images: imagecache.Config{
		Probe: func(string) (int, int, error) {
			<-block
			return 1, 1, nil
		},
	}})
	defer func() {
		close(block)
		s.Close()
	}()
	s.SetSource("![x](x.png)\n")
	s.Document()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := AwaitImages(ctx, s); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestSession_CloseDoesNotHoldLockWhileProbesFinish(t *testing.T) {
	release := make(chan struct{})
	s := newSession("slow", Options{Images: imagecache.Config{
		Workers: 1,
		Probe: func(string) (int, int, error) {
			<-release
			return 1, 1, nil
		},
	}})
	s.SetSource("![x](x.png)\n")
	s.Document()

	closed := make(chan struct{})
	go func() {
		s.Close()
		close(closed)
	}()

	info := make(chan Info)
	go func() { info <- s.Info() }()
	select {
	case got := <-info:
		require.Equal(t, "slow", got.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("Info blocked behind Close")
	}

	select {
	case <-closed:
		t.Fatal("Close returned before the running probe finished")
	default:
	}
	close(release)
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return after the probe finished")
	}
}
