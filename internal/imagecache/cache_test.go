package imagecache

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func drain(t *testing.T, c *Cache) {
	t.Helper()
	require.Eventually(t, func() bool {
		c.Poll()
		return c.Pending() == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestRequestDeduplicatesPendingReference(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	c := New(Config{Probe: func(path string) (int, int, error) {
		calls.Add(1)
		<-release
		return 40, 30, nil
	}})
	defer c.Close()

	first := c.Request("pic.png", "a picture")
	second := c.Request("pic.png", "a picture")

	assert.Equal(t, StatusPlaceholder, first.Status)
	assert.Equal(t, StatusPlaceholder, second.Status)
	assert.Equal(t, 1, c.Stats().TasksSpawned)
	assert.Equal(t, 1, c.Pending())

	close(release)
	drain(t, c)

	a, ok := c.Get("pic.png")
	require.True(t, ok)
	assert.Equal(t, StatusReady, a.Status)
	assert.Equal(t, 40, a.Width)
	assert.Equal(t, 30, a.Height)
	assert.Equal(t, int32(1), calls.Load())

	st := c.Stats()
	assert.Equal(t, 2, st.Requests)
	assert.Equal(t, 1, st.Hits)
	assert.Equal(t, 1, st.Misses)
	assert.Equal(t, 1, st.Ready)
	assert.Equal(t, 1, st.Latency.Count)
}

func TestPollIsIdempotentAfterDrain(t *testing.T) {
	c := New(Config{Probe: func(string) (int, int, error) { return 1, 1, nil }})
	defer c.Close()

	c.Request("a.png", "")
	c.Request("b.png", "")

	total := 0
	require.Eventually(t, func() bool {
		total += c.Poll()
		return c.Pending() == 0
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, total)

	for range 3 {
		assert.Equal(t, 0, c.Poll())
	}
}

func TestRequestMissingFileFails(t *testing.T) {
	c := New(Config{BaseDir: t.TempDir()})
	defer c.Close()

	a := c.Request("missing.png", "gone")
	assert.Equal(t, StatusPlaceholder, a.Status)
	drain(t, c)

	a, ok := c.Get("missing.png")
	require.True(t, ok)
	assert.Equal(t, StatusFailed, a.Status)
	assert.Zero(t, a.Width)
	assert.Equal(t, ErrNotFound.Error(), a.Error)
}

func TestRequestRemoteFailsWithoutTask(t *testing.T) {
	c := New(Config{Probe: func(string) (int, int, error) {
		t.Fatal("probe must not run for remote references")
		return 0, 0, nil
	}})
	defer c.Close()

	for _, ref := range []string{"https://example.com/a.png", "HTTP://example.com/b.png", "ftp://host/c.gif"} {
		a := c.Request(ref, "")
		assert.Equal(t, StatusFailed, a.Status, ref)
		assert.Equal(t, ErrRemoteDeferred.Error(), a.Error, ref)
	}
	assert.Equal(t, 0, c.Stats().TasksSpawned)
	assert.Equal(t, 0, c.Pending())
}

func TestRequestDecodesRealImage(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "dot.png", 12, 7)

	c := New(Config{BaseDir: dir})
	defer c.Close()

	c.Request("dot.png", "")
	drain(t, c)

	a, _ := c.Get("dot.png")
	assert.Equal(t, StatusReady, a.Status)
	assert.Equal(t, 12, a.Width)
	assert.Equal(t, 7, a.Height)
	assert.Equal(t, filepath.Join(dir, "dot.png"), a.Path)
}

func TestRequestUndecodableFileFails(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.png"), []byte("not an image"), 0o644))

	c := New(Config{BaseDir: dir})
	defer c.Close()

	c.Request("bad.png", "")
	drain(t, c)

	a, _ := c.Get("bad.png")
	assert.Equal(t, StatusFailed, a.Status)
	assert.Equal(t, ErrUnsupported.Error(), a.Error)
	assert.NotContains(t, a.Error, dir)
}

func TestRequestOutsideRootFailsWithoutTask(t *testing.T) {
	root := t.TempDir()
	docs := filepath.Join(root, "docs")
	require.NoError(t, os.Mkdir(docs, 0o755))
	writePNG(t, root, "inside.png", 3, 2)

	var probed atomic.Int32
	c := New(Config{BaseDir: docs, Root: root, Probe: func(path string) (int, int, error) {
		probed.Add(1)
		return ProbeFile(path)
	}})
	defer c.Close()

	for _, ref := range []string{"../../../../../../etc/hostname", "/etc/nope.png", "../../outside.png"} {
		a := c.Request(ref, "")
		assert.Equal(t, StatusFailed, a.Status, ref)
		assert.Equal(t, ErrOutsideRoot.Error(), a.Error, ref)
		assert.Empty(t, a.Path, ref)
	}
	assert.Equal(t, 0, c.Stats().TasksSpawned)

	c.Request("../inside.png", "")
	drain(t, c)
	a, _ := c.Get("../inside.png")
	assert.Equal(t, StatusReady, a.Status)
	assert.Equal(t, 3, a.Width)
	assert.Equal(t, int32(1), probed.Load())
}

func TestRequestRecordsProbeLatency(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "dot.png", 4, 4)

	c := New(Config{BaseDir: dir})
	defer c.Close()

	c.Request("dot.png", "")
	drain(t, c)

	lat := c.Stats().Latency
	assert.Equal(t, 1, lat.Count)
	assert.Greater(t, lat.AvgMs, 0.0)
}

func TestPanickingProbeCountsAsDisconnected(t *testing.T) {
	c := New(Config{Probe: func(string) (int, int, error) {
		panic("decoder exploded")
	}})
	defer c.Close()

	c.Request("boom.png", "")
	drain(t, c)

	a, _ := c.Get("boom.png")
	assert.Equal(t, StatusFailed, a.Status)
	assert.Equal(t, ErrDisconnected.Error(), a.Error)
}

func TestRequestQueueFull(t *testing.T) {
	release := make(chan struct{})
	c := New(Config{Workers: 1, QueueSize: 1, Probe: func(string) (int, int, error) {
		<-release
		return 1, 1, nil
	}})

	var full int
	for _, ref := range []string{"1.png", "2.png", "3.png", "4.png"} {
		if a := c.Request(ref, ""); a.Status == StatusFailed {
			assert.Equal(t, ErrQueueFull.Error(), a.Error)
			full++
		}
	}
	assert.GreaterOrEqual(t, full, 2)
	assert.LessOrEqual(t, c.Stats().TasksSpawned, 2)

	close(release)
	c.Close()
	assert.Equal(t, c.Stats().TasksSpawned, c.Poll())
}

func TestCloseRejectsNewReferences(t *testing.T) {
	c := New(Config{Probe: func(string) (int, int, error) { return 1, 1, nil }})
	c.Close()
	c.Close()

	a := c.Request("late.png", "")
	assert.Equal(t, StatusFailed, a.Status)
	assert.Equal(t, ErrClosed.Error(), a.Error)
}

func TestAssetsSortedByReference(t *testing.T) {
	c := New(Config{Probe: func(string) (int, int, error) { return 1, 1, nil }})
	defer c.Close()

	for _, ref := range []string{"c.png", "a.png", "b.png"} {
		c.Request(ref, "")
	}
	assets := c.Assets()
	require.Len(t, assets, 3)
	assert.Equal(t, "a.png", assets[0].Reference)
	assert.Equal(t, "b.png", assets[1].Reference)
	assert.Equal(t, "c.png", assets[2].Reference)
}

func TestResolvePath(t *testing.T) {
	abs := filepath.Join(string(filepath.Separator), "srv", "img.png")
	tests := []struct {
		base, ref, want string
	}{
		{"docs", "img/a.png", filepath.Join("docs", "img", "a.png")},
		{"", "a.png", "a.png"},
		{"docs", abs, abs},
		{"docs", "file://" + filepath.ToSlash(abs), abs},
		{"docs", "../up.png", "up.png"},
	}
	for _, tt := range tests {
		if got := ResolvePath(tt.base, tt.ref); got != tt.want {
			t.Errorf("ResolvePath(%q, %q) = %q, want %q", tt.base, tt.ref, got, tt.want)
		}
	}
}

func TestIsRemote(t *testing.T) {
	tests := map[string]bool{
		"http://a/b.png":   true,
		"https://a/b.png":  true,
		"FTPS://a/b.png":   true,
		"file:///tmp/a":    false,
		"img/a.png":        false,
		"data:image/png,x": false,
	}
	for ref, want := range tests {
		if got := IsRemote(ref); got != want {
			t.Errorf("IsRemote(%q) = %v, want %v", ref, got, want)
		}
	}
}
