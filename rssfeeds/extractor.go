package rssfeeds

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"remarknews/common"
	"remarknews/config"
	"remarknews/logger"
	"remarknews/types"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
)

// ErrNotHTML is returned when a page responds with a binary media type.
var ErrNotHTML = errors.New("page is not html")

// ErrNodeBudget is logged when a page has more nodes than the walk allows.
var ErrNodeBudget = errors.New("node budget exhausted")

// ExtractorOptions tunes the content heuristics.
type ExtractorOptions struct {
	ContentClass    *regexp.Regexp
	ImageAttributes []string
	MaxNodes        int
	PageTimeout     time.Duration
	ImageWorkers    int
}

// Extractor turns an article page into ordered text and image blocks.
type Extractor struct {
	client    *common.HTTPClient
	qualifier *ImageQualifier
	opts      ExtractorOptions
}

// Extraction is the full result of scraping one page.
type Extraction struct {
	Blocks   []types.ContentBlock
	Byline   string
	Excerpt  string
	SiteName string
}

// NewExtractor returns an extractor that fetches pages with client. Zero
// options fall back to the configured defaults.
func NewExtractor(client *common.HTTPClient, qualifier *ImageQualifier, opts ExtractorOptions) *Extractor {
	if opts.ContentClass == nil {
		opts.ContentClass = regexp.MustCompile(config.DefaultContentClassPattern)
	}
	if len(opts.ImageAttributes) == 0 {
		opts.ImageAttributes = config.DefaultImageAttributes
	}
	if opts.MaxNodes <= 0 {
		opts.MaxNodes = config.DefaultMaxNodes
	}
	if opts.PageTimeout <= 0 {
		opts.PageTimeout = config.DefaultPageTimeout
	}
	if opts.ImageWorkers <= 0 {
		opts.ImageWorkers = config.DefaultImageWorkers
	}
	return &Extractor{client: client, qualifier: qualifier, opts: opts}
}

// Extract never fails: any error is logged and yields an empty, non-nil slice.
func (e *Extractor) Extract(ctx context.Context, pageURL string) []types.ContentBlock {
	res, _ := e.ExtractArticle(ctx, pageURL)
	return res.Blocks
}

// ExtractArticle fetches pageURL and extracts its content blocks and
// metadata. The returned Extraction is never nil and its Blocks never nil;
// the error is informational.
func (e *Extractor) ExtractArticle(ctx context.Context, pageURL string) (*Extraction, error) {
	empty := &Extraction{Blocks: []types.ContentBlock{}}

	base, err := url.Parse(pageURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		slog.Warn("invalid page url", "stage", logger.StagePageFetch, "url", pageURL)
		return empty, fmt.Errorf("invalid page url %q", pageURL)
	}

	body, header, err := e.client.GetBytes(ctx, pageURL, e.opts.PageTimeout)
	if err != nil {
		slog.Warn("page fetch failed", "stage", logger.StagePageFetch, "url", pageURL, "error", err)
		return empty, fmt.Errorf("fetching page: %w", err)
	}
	if mt := mediaType(header); mt != "" && !strings.Contains(mt, "html") {
		if binaryMedia(mt) {
			slog.Warn("page is not html", "stage", logger.StagePageFetch, "url", pageURL, "content_type", mt)
			return empty, ErrNotHTML
		}
		slog.Warn("unexpected content type, parsing as html", "stage", logger.StagePageFetch, "url", pageURL, "content_type", mt)
	}

	res, err := e.ExtractHTML(ctx, body, base)
	if err != nil {
		slog.Warn("page extraction failed", "stage", logger.StagePageParse, "url", pageURL, "error", err)
		return empty, err
	}
	return res, nil
}

// ExtractHTML runs the heuristics over already-fetched markup. Only image
// dimension checks touch the network.
func (e *Extractor) ExtractHTML(ctx context.Context, markup []byte, base *url.URL) (*Extraction, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return &Extraction{Blocks: []types.ContentBlock{}}, fmt.Errorf("parsing html: %w", err)
	}
	doc.Find("script, style").Remove()

	region := e.mainRegion(doc)
	captions := indexCaptions(doc.Nodes[0])

	pieces, err := e.walk(ctx, region, base, captions)
	if err != nil && !errors.Is(err, ErrNodeBudget) {
		return &Extraction{Blocks: []types.ContentBlock{}}, err
	}
	if errors.Is(err, ErrNodeBudget) {
		slog.Warn("node budget exhausted, keeping partial content", "stage", logger.StagePageParse, "url", base.String(), "max_nodes", e.opts.MaxNodes)
	}

	res := &Extraction{Blocks: e.qualifyImages(ctx, pieces)}
	e.fillMetadata(res, markup, base)
	return res, nil
}

// mainRegion picks the first article, then the first main, then the first
// element with a class token matching the content pattern, then the whole
// document.
func (e *Extractor) mainRegion(doc *goquery.Document) *html.Node {
	if s := doc.Find("article").First(); s.Length() > 0 {
		return s.Nodes[0]
	}
	if s := doc.Find("main").First(); s.Length() > 0 {
		return s.Nodes[0]
	}

	var match *html.Node
	doc.Find("[class]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		for _, token := range strings.Fields(class) {
			if e.opts.ContentClass.MatchString(token) {
				match = s.Nodes[0]
				return false
			}
		}
		return true
	})
	if match != nil {
		return match
	}
	return doc.Nodes[0]
}

// piece is one walk result: either finished text or an image candidate
// still waiting for its dimension check.
type piece struct {
	text  *types.TextBlock
	image *types.ImageBlock
}

func (e *Extractor) walk(ctx context.Context, root *html.Node, base *url.URL, captions *captionIndex) ([]piece, error) {
	var (
		pieces []piece
		paras  []string
	)
	flush := func() {
		if len(paras) == 0 {
			return
		}
		pieces = append(pieces, piece{text: &types.TextBlock{Text: strings.Join(paras, types.ParagraphSeparator)}})
		paras = nil
	}

	stack := pushChildren(nil, root)
	visited := 0
	var walkErr error

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		visited++
		if visited > e.opts.MaxNodes {
			walkErr = ErrNodeBudget
			break
		}
		if visited%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		if n.Type == html.ElementNode {
			switch n.Data {
			case "p":
				if text := nodeText(n); text != "" {
					paras = append(paras, text)
				}
			case "h1", "h2", "h3", "h4", "h5", "h6":
				flush()
				if text := nodeText(n); text != "" {
					h := types.NewHeadingBlock(text)
					pieces = append(pieces, piece{text: &h})
				}
			case "img":
				flush()
				if img, ok := e.imageCandidate(n, base, captions); ok {
					pieces = append(pieces, piece{image: &img})
				}
			}
		}

		stack = pushChildren(stack, n)
	}
	flush()
	return pieces, walkErr
}

// pushChildren pushes n's children in reverse so they pop in document order.
func pushChildren(stack []*html.Node, n *html.Node) []*html.Node {
	for c := n.LastChild; c != nil; c = c.PrevSibling {
		stack = append(stack, c)
	}
	return stack
}

func (e *Extractor) imageCandidate(n *html.Node, base *url.URL, captions *captionIndex) (types.ImageBlock, bool) {
	src, ok := resolveImageURL(n, base, e.opts.ImageAttributes)
	if !ok {
		return types.ImageBlock{}, false
	}
	alt, _ := attr(n, "alt")
	img := types.ImageBlock{
		URL:     src,
		AltText: alt,
		Caption: captions.after(n),
	}
	if img.AltText == "" && img.Caption == "" {
		return types.ImageBlock{}, false
	}
	return img, true
}

// qualifyImages checks image dimensions concurrently, drops the images that
// fail and coalesces any text runs that end up adjacent.
func (e *Extractor) qualifyImages(ctx context.Context, pieces []piece) []types.ContentBlock {
	keep := make([]bool, len(pieces))

	var g errgroup.Group
	g.SetLimit(e.opts.ImageWorkers)
	for i, p := range pieces {
		if p.image == nil {
			keep[i] = true
			continue
		}
		g.Go(func() error {
			keep[i] = e.qualifier.MeetsMinimumQuality(ctx, p.image.URL)
			return nil
		})
	}
	_ = g.Wait()

	blocks := make([]types.ContentBlock, 0, len(pieces))
	for i, p := range pieces {
		if !keep[i] {
			continue
		}
		if p.image != nil {
			blocks = append(blocks, *p.image)
			continue
		}
		if n := len(blocks); n > 0 {
			if prev, ok := blocks[n-1].(types.TextBlock); ok && !prev.IsHeading() && !p.text.IsHeading() {
				blocks[n-1] = types.TextBlock{Text: prev.Text + types.ParagraphSeparator + p.text.Text}
				continue
			}
		}
		blocks = append(blocks, *p.text)
	}
	return blocks
}

func mediaType(h http.Header) string {
	mt, _, _ := mime.ParseMediaType(h.Get("Content-Type"))
	return strings.ToLower(mt)
}

// binaryMedia reports media types that can never hold article markup.
// Servers often mislabel html as text/plain or application/octet-stream.
func binaryMedia(mt string) bool {
	for _, prefix := range []string{"image/", "audio/", "video/", "font/", "application/pdf", "application/zip"} {
		if strings.HasPrefix(mt, prefix) {
			return true
		}
	}
	return false
}

func (e *Extractor) fillMetadata(res *Extraction, markup []byte, base *url.URL) {
	article, err := readability.FromReader(bytes.NewReader(markup), base)
	if err != nil {
		slog.Debug("readability metadata unavailable", "url", base.String(), "error", err)
		return
	}
	res.Byline = strings.TrimSpace(article.Byline)
	res.Excerpt = strings.TrimSpace(article.Excerpt)
	res.SiteName = strings.TrimSpace(article.SiteName)
}

// nodeText returns the text under n with only the ends trimmed.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	stack := []*html.Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		switch {
		case cur.Type == html.TextNode:
			sb.WriteString(cur.Data)
			continue
		case cur.Type == html.ElementNode && cur.Data == "br":
			sb.WriteByte(' ')
		}
		stack = pushChildren(stack, cur)
	}
	return strings.TrimSpace(sb.String())
}

// captionIndex finds the first figcaption after a node in document order.
type captionIndex struct {
	order    map[*html.Node]int
	captions []int
	text     map[int]string
}

func indexCaptions(doc *html.Node) *captionIndex {
	idx := &captionIndex{order: make(map[*html.Node]int), text: make(map[int]string)}
	stack := []*html.Node{doc}
	pos := 0
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n.Type == html.ElementNode {
			switch n.Data {
			case "img":
				idx.order[n] = pos
			case "figcaption":
				idx.captions = append(idx.captions, pos)
				idx.text[pos] = nodeText(n)
			}
		}
		pos++
		stack = pushChildren(stack, n)
	}
	return idx
}

func (c *captionIndex) after(img *html.Node) string {
	pos, ok := c.order[img]
	if !ok {
		return ""
	}
	i := sort.SearchInts(c.captions, pos+1)
	if i == len(c.captions) {
		return ""
	}
	return c.text[c.captions[i]]
}
