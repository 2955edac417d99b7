package render

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"log/slog"
	"net/http"
	"time"

	"remarknews/logger"

	_ "golang.org/x/image/webp"
)

// ImageSource downloads image bytes. *common.HTTPClient satisfies it.
type ImageSource interface {
	GetBytes(ctx context.Context, rawURL string, timeout time.Duration) ([]byte, http.Header, error)
}

// embeddedImage is an image normalized to a format both renderers accept.
type embeddedImage struct {
	name   string // stable file name derived from the URL
	format string // "png" or "jpg"
	data   []byte
	width  int
	height int
}

// imageCache downloads each URL at most once per render.
type imageCache struct {
	src     ImageSource
	timeout time.Duration
	seen    map[string]*embeddedImage
}

func newImageCache(src ImageSource, timeout time.Duration) *imageCache {
	return &imageCache{src: src, timeout: timeout, seen: make(map[string]*embeddedImage)}
}

// get returns nil when the image cannot be used. Failures are logged, never returned.
func (c *imageCache) get(ctx context.Context, url string) *embeddedImage {
	if c == nil || c.src == nil {
		return nil
	}
	if img, ok := c.seen[url]; ok {
		return img
	}
	img, err := c.fetch(ctx, url)
	if err != nil {
		slog.Warn("image download failed", "stage", logger.StageRender, "url", url, "error", err)
	}
	c.seen[url] = img
	return img
}

func (c *imageCache) fetch(ctx context.Context, url string) (*embeddedImage, error) {
	data, _, err := c.src.GetBytes(ctx, url, c.timeout)
	if err != nil {
		return nil, err
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	sum := sha256.Sum256([]byte(url))
	img := &embeddedImage{
		name:   "image_" + hex.EncodeToString(sum[:8]),
		format: format,
		data:   data,
		width:  cfg.Width,
		height: cfg.Height,
	}

	if format == "jpeg" {
		img.format = "jpg"
		return img, nil
	}

	// everything else becomes an 8-bit non-interlaced PNG, which both
	// fpdf and EPUB readers accept
	decoded, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", format, err)
	}
	rgba := image.NewNRGBA(decoded.Bounds())
	draw.Draw(rgba, rgba.Bounds(), decoded, decoded.Bounds().Min, draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, rgba); err != nil {
		return nil, fmt.Errorf("re-encoding %s: %w", format, err)
	}
	img.format = "png"
	img.data = buf.Bytes()
	return img, nil
}

func (i *embeddedImage) fileName() string {
	return i.name + "." + i.format
}

func (i *embeddedImage) pdfType() string {
	switch i.format {
	case "jpg":
		return "JPG"
	default:
		return "PNG"
	}
}
