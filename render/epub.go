package render

import (
	"context"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"

	"remarknews/config"
	"remarknews/types"

	epub "github.com/go-shiori/go-epub"
)

// EPUB renders one chapter per article, grouped into a section per source.
type EPUB struct {
	opts Options
}

func (e *EPUB) Format() string { return config.FormatEPUB }

func (e *EPUB) Render(ctx context.Context, doc Document, outputBase string) (string, error) {
	book, err := epub.NewEpub(doc.Title)
	if err != nil {
		return "", fmt.Errorf("creating epub: %w", err)
	}
	book.SetAuthor("ReMarkNews Generator")
	book.SetLang("en")
	book.SetIdentifier("ReMarkNews-" + doc.Date.Format("20060102"))

	// go-epub copies images from disk when the book is written, so the
	// temp dir must outlive Write.
	tmp, err := os.MkdirTemp("", "remarknews-epub-*")
	if err != nil {
		return "", fmt.Errorf("creating image dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	w := &epubWriter{book: book, tmp: tmp, added: make(map[string]string)}
	if e.opts.IncludeImages {
		w.images = newImageCache(e.opts.Images, e.opts.ImageTimeout)
	}

	if doc.Weather != nil {
		var sb strings.Builder
		sb.WriteString("<h1>Weather</h1>")
		for _, line := range weatherLines(doc.Weather) {
			fmt.Fprintf(&sb, "<p>%s</p>", html.EscapeString(line))
		}
		if _, err := book.AddSection(sb.String(), "Weather", "weather.xhtml", ""); err != nil {
			return "", fmt.Errorf("adding weather chapter: %w", err)
		}
	}

	for si, section := range doc.Sections {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		sectionFile := fmt.Sprintf("source_%d.xhtml", si)
		body := "<h1>" + html.EscapeString(section.Source) + "</h1>"
		parent, err := book.AddSection(body, section.Source, sectionFile, "")
		if err != nil {
			return "", fmt.Errorf("adding section %q: %w", section.Source, err)
		}

		for ai, article := range section.Articles {
			chapter, err := w.chapter(ctx, article)
			if err != nil {
				return "", err
			}
			file := fmt.Sprintf("%s_%d.xhtml", slug(section.Source, si), ai)
			if _, err := book.AddSubSection(parent, chapter, article.Title, file, ""); err != nil {
				return "", fmt.Errorf("adding chapter %q: %w", article.Title, err)
			}
		}
	}

	path := outputBase + ".epub"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	if err := book.Write(path); err != nil {
		return "", fmt.Errorf("writing epub: %w", err)
	}
	return path, nil
}

type epubWriter struct {
	book   *epub.Epub
	images *imageCache
	tmp    string
	added  map[string]string // image URL -> internal path
}

func (w *epubWriter) chapter(ctx context.Context, a *types.Article) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<h2>%s</h2>", html.EscapeString(a.Title))
	if line := publishedLine(a); line != "" {
		fmt.Fprintf(&sb, "<p><i>%s</i></p>", html.EscapeString(line))
	}

	for _, block := range a.Content {
		switch b := block.(type) {
		case types.TextBlock:
			tag := "p"
			if b.IsHeading() {
				tag = "h3"
			}
			for _, para := range b.Paragraphs() {
				text := strings.ReplaceAll(html.EscapeString(para), "\n", "<br/>")
				fmt.Fprintf(&sb, "<%s>%s</%s>", tag, text, tag)
			}
		case types.ImageBlock:
			w.image(ctx, &sb, b)
		default:
			return "", fmt.Errorf("unknown content block %T", block)
		}
	}
	return sb.String(), nil
}

func (w *epubWriter) image(ctx context.Context, sb *strings.Builder, b types.ImageBlock) {
	if w.images == nil {
		return
	}
	src, ok := w.added[b.URL]
	if !ok {
		src = w.addImage(ctx, b.URL)
		w.added[b.URL] = src
	}
	if src == "" {
		fmt.Fprintf(sb, "<p>[Image could not be downloaded: %s]</p>", html.EscapeString(imageLabel(b)))
		return
	}
	fmt.Fprintf(sb, `<p><img src="%s" alt="%s"/></p>`, src, html.EscapeString(b.AltText))
	if b.Caption != "" {
		fmt.Fprintf(sb, "<p><i>%s</i></p>", html.EscapeString(b.Caption))
	}
}

// addImage stores the image in the book and returns its internal path, or
// "" when it could not be used.
func (w *epubWriter) addImage(ctx context.Context, url string) string {
	img := w.images.get(ctx, url)
	if img == nil {
		return ""
	}
	local := filepath.Join(w.tmp, img.fileName())
	if err := os.WriteFile(local, img.data, 0o644); err != nil {
		return ""
	}
	internal, err := w.book.AddImage(local, img.fileName())
	if err != nil {
		return ""
	}
	return internal
}

func slug(s string, fallback int) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			sb.WriteByte('_')
		}
	}
	if sb.Len() == 0 {
		return fmt.Sprintf("source%d", fallback)
	}
	return sb.String()
}
