package rssfeeds

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"remarknews/common"
	"remarknews/config"
	"remarknews/logger"
	"remarknews/types"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"
)

// FetcherOptions bounds feed requests and per-feed article fan-out.
type FetcherOptions struct {
	FeedTimeout    time.Duration
	ArticleWorkers int
	// Now overrides the clock used for the freshness cutoff (tests).
	Now func() time.Time
}

// Fetcher downloads a feed, keeps the fresh items and scrapes their pages.
type Fetcher struct {
	client    *common.HTTPClient
	extractor *Extractor
	opts      FetcherOptions
}

// NewFetcher returns a fetcher that scrapes fresh items with extractor.
func NewFetcher(client *common.HTTPClient, extractor *Extractor, opts FetcherOptions) *Fetcher {
	if opts.FeedTimeout <= 0 {
		opts.FeedTimeout = config.DefaultFeedTimeout
	}
	if opts.ArticleWorkers <= 0 {
		opts.ArticleWorkers = config.DefaultArticleWorkers
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Fetcher{client: client, extractor: extractor, opts: opts}
}

// ProcessFeed returns the items of feedURL published within the last
// windowHours, in feed order, each with its page content extracted. It
// never fails: a feed that cannot be fetched or parsed yields an empty slice.
func (f *Fetcher) ProcessFeed(ctx context.Context, feedURL string, windowHours int) []*types.Article {
	articles, err := f.FetchFresh(ctx, feedURL, windowHours)
	if err != nil {
		return []*types.Article{}
	}
	f.ExtractAll(ctx, articles)
	return articles
}

// FetchFresh fetches and filters the feed without scraping article pages.
func (f *Fetcher) FetchFresh(ctx context.Context, feedURL string, windowHours int) ([]*types.Article, error) {
	if windowHours <= 0 {
		windowHours = config.DefaultFreshnessHours
	}

	data, _, err := f.client.GetBytes(ctx, feedURL, f.opts.FeedTimeout)
	if err != nil {
		slog.Warn("feed fetch failed", "stage", logger.StageFeedFetch, "url", feedURL, "error", err)
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		slog.Warn("feed parse failed", "stage", logger.StageFeedParse, "url", feedURL, "error", err)
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	cutoff := f.opts.Now().UTC().Add(-time.Duration(windowHours) * time.Hour)
	articles := make([]*types.Article, 0, len(feed.Items))
	skipped := 0

	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		publishedAt, ok := parsePublished(item)
		if !ok || !publishedAt.After(cutoff) {
			skipped++
			continue
		}
		articles = append(articles, newArticle(item, publishedAt))
	}

	slog.Info("feed fetched", "url", feedURL, "items", len(feed.Items), "fresh", len(articles), "skipped", skipped)
	return articles, nil
}

// ExtractAll fills in Content for every article concurrently. Results are
// written by index so the slice order is untouched, and one article's
// failure never cancels the others.
func (f *Fetcher) ExtractAll(ctx context.Context, articles []*types.Article) {
	var g errgroup.Group
	g.SetLimit(f.opts.ArticleWorkers)
	for _, a := range articles {
		g.Go(func() error {
			if a.Link == "" {
				a.Content = []types.ContentBlock{}
				a.ExtractionError = "article link is empty"
				return nil
			}
			res, err := f.extractor.ExtractArticle(ctx, a.Link)
			a.Content = res.Blocks
			a.Byline = res.Byline
			a.Excerpt = res.Excerpt
			a.SiteName = res.SiteName
			if err != nil {
				a.ExtractionError = err.Error()
			} else {
				slog.Debug("extracted", "title", a.Title, "blocks", len(a.Content))
			}
			return nil
		})
	}
	_ = g.Wait()
}

func newArticle(item *gofeed.Item, publishedAt time.Time) *types.Article {
	a := &types.Article{
		Title:          item.Title,
		Link:           strings.TrimSpace(item.Link),
		PublishedAt:    publishedAt,
		RawPubDate:     item.Published,
		RawDescription: item.Description,
		PlainSummary:   StripHTML(item.Description),
		Content:        []types.ContentBlock{},
	}

	// Use GUID if available, otherwise generate from URL
	a.ID = item.GUID
	if a.ID == "" && a.Link != "" {
		a.ID = types.GenerateID(a.Link)
	}
	return a
}

// rfc822Zones are the zone names RFC 822 allows in place of a numeric
// offset. time.Parse gives an abbreviation it does not know a zero offset, so
// these are pinned explicitly.
var rfc822Zones = map[string]int{
	"UT": 0, "UTC": 0, "GMT": 0, "Z": 0,
	"EST": -5, "EDT": -4,
	"CST": -6, "CDT": -5,
	"MST": -7, "MDT": -6,
	"PST": -8, "PDT": -7,
}

func pinZone(t time.Time) time.Time {
	name, _ := t.Zone()
	hours, ok := rfc822Zones[strings.ToUpper(name)]
	if !ok {
		return t
	}
	y, mo, d := t.Date()
	h, mi, sec := t.Clock()
	return time.Date(y, mo, d, h, mi, sec, t.Nanosecond(), time.FixedZone(name, hours*3600))
}

// parsePublished returns the item's publish date with the feed's own zone
// offset. It tries RFC 5322 and RFC 3339 first, then gofeed's result, then a
// lenient parser.
func parsePublished(item *gofeed.Item) (time.Time, bool) {
	raw := strings.TrimSpace(item.Published)
	if raw != "" {
		if t, err := mail.ParseDate(raw); err == nil {
			return pinZone(t), true
		}
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t, true
		}
	}
	if item.PublishedParsed != nil {
		return *item.PublishedParsed, true
	}
	if raw == "" {
		return time.Time{}, false
	}
	t, err := dateparse.ParseAny(raw)
	if err != nil {
		slog.Debug("unparseable pubDate", "stage", logger.StageFeedParse, "value", raw, "error", err)
		return time.Time{}, false
	}
	return pinZone(t), true
}
