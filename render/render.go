package render

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"remarknews/config"
	"remarknews/types"
)

// Section is one feed's articles inside a document.
type Section struct {
	Source   string
	Articles []*types.Article
}

// Document is everything a renderer needs to produce one output file.
type Document struct {
	Title    string
	Date     time.Time
	Weather  *types.WeatherSnapshot
	Sections []Section
}

// Renderer writes a Document to outputBase plus its own extension and
// returns the final path.
type Renderer interface {
	Render(ctx context.Context, doc Document, outputBase string) (string, error)
	Format() string
}

// Options are shared by all renderers.
type Options struct {
	IncludeImages bool
	Images        ImageSource
	ImageTimeout  time.Duration
}

// New returns the renderer for format ("pdf" or "epub").
func New(format string, opts Options) (Renderer, error) {
	if opts.ImageTimeout <= 0 {
		opts.ImageTimeout = 10 * time.Second
	}
	switch format {
	case config.FormatPDF:
		return &PDF{opts: opts}, nil
	case config.FormatEPUB:
		return &EPUB{opts: opts}, nil
	default:
		return nil, fmt.Errorf("unknown render format %q", format)
	}
}

// BaseName is the extensionless file name for one source on one day,
// e.g. "La_Vanguardia-20240510".
func BaseName(source string, date time.Time) string {
	name := strings.Join(strings.Fields(source), "_")
	name = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ':' {
			return '_'
		}
		return r
	}, name)
	return fmt.Sprintf("%s-%s", name, date.Format("20060102"))
}

// OutputBase joins dir and BaseName.
func OutputBase(dir, source string, date time.Time) string {
	return filepath.Join(dir, BaseName(source, date))
}

// weatherLines is the text shown for a forecast, shared by both formats.
func weatherLines(w *types.WeatherSnapshot) []string {
	lines := make([]string, 0, 4)
	if w.Location != "" {
		lines = append(lines, "Location: "+w.Location)
	}
	return append(lines,
		fmt.Sprintf("Min/Max Temp: %d/%d°C", w.TempMin, w.TempMax),
		fmt.Sprintf("Rain Probability: %d%%", w.RainProb),
		"Forecast: "+w.Description,
	)
}

func publishedLine(a *types.Article) string {
	if a.RawPubDate != "" {
		return "Published: " + a.RawPubDate
	}
	if !a.PublishedAt.IsZero() {
		return "Published: " + a.PublishedAt.Format(time.RFC1123Z)
	}
	return ""
}

func imageLabel(img types.ImageBlock) string {
	if img.Caption != "" {
		return img.Caption
	}
	return strings.TrimSpace(img.AltText)
}
