package rssfeeds

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"

	"remarknews/common"
	"remarknews/config"
	"remarknews/logger"

	_ "golang.org/x/image/webp"
	"golang.org/x/net/html"
)

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

// IsQualifyingImageURL reports whether u is an absolute URL whose path ends
// in a supported raster image extension. It does no I/O.
func IsQualifyingImageURL(u string) bool {
	if u == "" {
		return false
	}
	parsed, err := url.Parse(u)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return false
	}
	ext := strings.ToLower(path.Ext(parsed.Path))
	for _, e := range imageExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// ImageQualifier checks the pixel dimensions of remote images.
type ImageQualifier struct {
	client    *common.HTTPClient
	minWidth  int
	minHeight int
	timeout   time.Duration
}

// NewImageQualifier returns a qualifier with the given minimum dimensions.
// Non-positive values fall back to the defaults.
func NewImageQualifier(client *common.HTTPClient, minWidth, minHeight int, timeout time.Duration) *ImageQualifier {
	if minWidth <= 0 {
		minWidth = config.DefaultMinImageWidth
	}
	if minHeight <= 0 {
		minHeight = config.DefaultMinImageHeight
	}
	if timeout <= 0 {
		timeout = config.DefaultImageTimeout
	}
	return &ImageQualifier{client: client, minWidth: minWidth, minHeight: minHeight, timeout: timeout}
}

// MeetsMinimumQuality downloads the image and decodes only its header. Any
// failure counts as "does not qualify".
func (q *ImageQualifier) MeetsMinimumQuality(ctx context.Context, imageURL string) bool {
	data, _, err := q.client.GetBytes(ctx, imageURL, q.timeout)
	if err != nil {
		slog.Debug("image fetch failed", "stage", logger.StageImage, "url", imageURL, "error", err)
		return false
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		slog.Debug("image decode failed", "stage", logger.StageImage, "url", imageURL, "error", err)
		return false
	}

	ok := cfg.Width >= q.minWidth && cfg.Height >= q.minHeight
	if !ok {
		slog.Debug("image too small", "url", imageURL, "format", format, "width", cfg.Width, "height", cfg.Height)
	}
	return ok
}

// ResolveImageURL returns the first image source on n, in the default
// attribute priority, that resolves against base to a qualifying URL.
func ResolveImageURL(n *html.Node, base *url.URL) (string, bool) {
	return resolveImageURL(n, base, config.DefaultImageAttributes)
}

func resolveImageURL(n *html.Node, base *url.URL, attrs []string) (string, bool) {
	for _, name := range attrs {
		raw, ok := attr(n, name)
		if !ok {
			continue
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		resolved := raw
		if base != nil {
			ref, err := base.Parse(raw)
			if err != nil {
				continue
			}
			resolved = ref.String()
		}
		if IsQualifyingImageURL(resolved) {
			return resolved, true
		}
	}
	return "", false
}

func attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, name) {
			return a.Val, true
		}
	}
	return "", false
}
