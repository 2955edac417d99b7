package render

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"remarknews/config"
	"remarknews/types"

	"github.com/go-pdf/fpdf"
)

const (
	pdfMargin      = 56.0
	pdfLineHeight  = 14.0
	pdfMinImageDim = 100.0
)

// PDF renders documents with fpdf using the core Helvetica fonts.
type PDF struct {
	opts Options
}

func (p *PDF) Format() string { return config.FormatPDF }

func (p *PDF) Render(ctx context.Context, doc Document, outputBase string) (string, error) {
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin)
	pdf.SetTitle(doc.Title, true)
	pdf.SetAuthor("ReMarkNews", true)
	pdf.SetCreationDate(doc.Date)

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-pdfMargin / 1.5)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("%d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	w := &pdfWriter{
		pdf:    pdf,
		tr:     tr,
		images: p.imageCache(),
	}

	links := w.titlePage(doc)
	for si, section := range doc.Sections {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		pdf.AddPage()
		pdf.Bookmark(tr(section.Source), 0, -1)
		pdf.SetFont("Helvetica", "B", 20)
		pdf.MultiCell(0, 26, tr(section.Source), "", "L", false)
		pdf.Ln(8)

		for ai, article := range section.Articles {
			if err := ctx.Err(); err != nil {
				return "", err
			}
			pdf.SetLink(links[si][ai], -1, -1)
			if err := w.article(ctx, article); err != nil {
				return "", err
			}
		}
	}

	path := outputBase + ".pdf"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	if err := pdf.OutputFileAndClose(path); err != nil {
		return "", fmt.Errorf("writing pdf: %w", err)
	}
	return path, nil
}

func (p *PDF) imageCache() *imageCache {
	if !p.opts.IncludeImages {
		return nil
	}
	return newImageCache(p.opts.Images, p.opts.ImageTimeout)
}

type pdfWriter struct {
	pdf    *fpdf.Fpdf
	tr     func(string) string
	images *imageCache
}

// titlePage writes the title, date, weather and a linked table of
// contents. It returns one link id per article, indexed [section][article].
func (w *pdfWriter) titlePage(doc Document) [][]int {
	pdf, tr := w.pdf, w.tr
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 28)
	pdf.CellFormat(0, 40, tr(doc.Title), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 12)
	pdf.CellFormat(0, 18, tr(doc.Date.Format("Monday, January 2, 2006")), "", 1, "C", false, 0, "")
	pdf.Ln(16)

	if doc.Weather != nil {
		pdf.SetFont("Helvetica", "B", 14)
		pdf.CellFormat(0, 20, "Weather", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		for _, line := range weatherLines(doc.Weather) {
			pdf.CellFormat(0, pdfLineHeight, tr(line), "", 1, "L", false, 0, "")
		}
		pdf.Ln(12)
	}

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 20, "Contents", "", 1, "L", false, 0, "")

	links := make([][]int, len(doc.Sections))
	for si, section := range doc.Sections {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(0, 16, tr(section.Source), "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		links[si] = make([]int, len(section.Articles))
		for ai, article := range section.Articles {
			link := pdf.AddLink()
			links[si][ai] = link
			pdf.SetX(pdfMargin + 12)
			pdf.WriteLinkID(pdfLineHeight, tr(article.Title), link)
			pdf.Ln(pdfLineHeight)
		}
		pdf.Ln(6)
	}
	return links
}

func (w *pdfWriter) article(ctx context.Context, a *types.Article) error {
	pdf, tr := w.pdf, w.tr

	pdf.Bookmark(tr(a.Title), 1, -1)
	pdf.SetFont("Helvetica", "B", 15)
	pdf.MultiCell(0, 19, tr(a.Title), "", "L", false)

	if line := publishedLine(a); line != "" {
		pdf.SetFont("Helvetica", "I", 9)
		pdf.MultiCell(0, 12, tr(line), "", "L", false)
	}
	pdf.Ln(6)

	for _, block := range a.Content {
		switch b := block.(type) {
		case types.TextBlock:
			w.text(b)
		case types.ImageBlock:
			w.image(ctx, b)
		default:
			return fmt.Errorf("unknown content block %T", block)
		}
	}
	pdf.Ln(18)
	return pdf.Error()
}

func (w *pdfWriter) text(b types.TextBlock) {
	pdf, tr := w.pdf, w.tr
	paras := b.Paragraphs()
	if b.IsHeading() {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "B", 12)
		for _, para := range paras {
			pdf.MultiCell(0, 16, tr(para), "", "L", false)
		}
		return
	}
	pdf.SetFont("Helvetica", "", 11)
	for _, para := range paras {
		pdf.MultiCell(0, pdfLineHeight, tr(para), "", "J", false)
		pdf.Ln(6)
	}
}

func (w *pdfWriter) image(ctx context.Context, b types.ImageBlock) {
	if w.images == nil {
		return
	}
	img := w.images.get(ctx, b.URL)
	if img == nil {
		return
	}

	pdf := w.pdf
	opts := fpdf.ImageOptions{ImageType: img.pdfType()}
	info := pdf.RegisterImageOptionsReader(img.fileName(), opts, bytes.NewReader(img.data))
	if info == nil || pdf.Err() {
		return
	}

	iw, ih := info.Width(), info.Height()
	if iw < pdfMinImageDim || ih < pdfMinImageDim {
		return
	}

	pageW, pageH := pdf.GetPageSize()
	maxW := pageW - 2*pdfMargin
	maxH := (pageH - 2*pdfMargin) * 0.6
	scale := 1.0
	if iw > maxW {
		scale = maxW / iw
	}
	if ih*scale > maxH {
		scale = maxH / ih
	}
	dw, dh := iw*scale, ih*scale

	if pdf.GetY()+dh > pageH-pdfMargin {
		pdf.AddPage()
	}
	x := pdfMargin + (maxW-dw)/2
	y := pdf.GetY()
	pdf.ImageOptions(img.fileName(), x, y, dw, dh, false, opts, 0, "")
	pdf.SetY(y + dh + 4)

	if label := imageLabel(b); label != "" {
		pdf.SetFont("Helvetica", "I", 9)
		pdf.MultiCell(0, 12, w.tr("Image: "+label), "", "C", false)
	}
	pdf.Ln(8)
}
