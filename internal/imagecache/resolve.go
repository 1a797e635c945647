package imagecache

import (
	"bufio"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"  // Register BMP decoder
	_ "golang.org/x/image/tiff" // Register TIFF decoder
	_ "golang.org/x/image/webp" // Register WebP decoder
)

// Size limits for probed images.
const (
	MaxImageWidth  = 16384
	MaxImageHeight = 16384
)

// ProbeFunc reports the pixel dimensions of the image stored at path.
type ProbeFunc func(path string) (width, height int, err error)

var remoteSchemes = map[string]bool{
	"http":  true,
	"https": true,
	"ftp":   true,
	"ftps":  true,
}

// IsRemote reports whether ref starts with a network URL scheme.
func IsRemote(ref string) bool {
	scheme, _, ok := strings.Cut(ref, "://")
	if !ok {
		return false
	}
	return remoteSchemes[strings.ToLower(scheme)]
}

// ResolvePath maps a local image reference to a filesystem path. Relative
// references are taken relative to baseDir; file:// URLs are unwrapped.
func ResolvePath(baseDir, ref string) string {
	p := ref
	if rest, ok := strings.CutPrefix(p, "file://"); ok {
		p = rest
	}
	p = filepath.FromSlash(p)
	if filepath.IsAbs(p) || baseDir == "" {
		return filepath.Clean(p)
	}
	return filepath.Join(baseDir, p)
}

// ProbeFile opens path and decodes only the image header to learn its
// dimensions. PNG, JPEG, GIF, BMP, TIFF and WebP are recognized.
func ProbeFile(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(bufio.NewReader(f))
	if err != nil {
		return 0, 0, fmt.Errorf("decode image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, 0, fmt.Errorf("%s image has empty bounds %dx%d", format, cfg.Width, cfg.Height)
	}
	if cfg.Width > MaxImageWidth || cfg.Height > MaxImageHeight {
		return 0, 0, fmt.Errorf("image too large: %dx%d (max %dx%d)",
			cfg.Width, cfg.Height, MaxImageWidth, MaxImageHeight)
	}
	return cfg.Width, cfg.Height, nil
}
