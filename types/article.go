package types

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// FeedSource pairs a display name with a feed URL.
type FeedSource struct {
	Name string `json:"name" yaml:"name"`
	URL  string `json:"url" yaml:"url"`
}

// Article represents one feed entry that passed the freshness filter,
// together with the content scraped from its page.
type Article struct {
	ID             string         `json:"id"`
	Source         string         `json:"source,omitempty"`
	Title          string         `json:"title"`
	Link           string         `json:"link"`
	PublishedAt    time.Time      `json:"published_at"`
	RawPubDate     string         `json:"pub_date"`
	RawDescription string         `json:"description"`
	PlainSummary   string         `json:"summary"`
	Byline         string         `json:"byline,omitempty"`
	Excerpt        string         `json:"excerpt,omitempty"`
	SiteName       string         `json:"site_name,omitempty"`
	Content        []ContentBlock `json:"content"`
	// ExtractionError is informational only; Content is empty (never nil)
	// whenever it is set.
	ExtractionError string `json:"extraction_error,omitempty"`
}

// TextContent joins the article's text blocks with a single space.
func (a *Article) TextContent() string {
	var out []byte
	for _, b := range a.Content {
		t, ok := b.(TextBlock)
		if !ok {
			continue
		}
		if len(out) > 0 {
			out = append(out, ' ')
		}
		out = append(out, t.Text...)
	}
	return string(out)
}

// Prepend inserts a block at the front of the content sequence.
func (a *Article) Prepend(b ContentBlock) {
	a.Content = append([]ContentBlock{b}, a.Content...)
}

// FeedResult is the top-level wrapper for JSON output of a processed feed.
type FeedResult struct {
	FeedURL      string     `json:"feed_url"`
	FetchedAt    time.Time  `json:"fetched_at"`
	WindowHours  int        `json:"window_hours"`
	ArticleCount int        `json:"article_count"`
	Articles     []*Article `json:"articles"`
}

// WeatherSnapshot is the day's forecast attached to every rendered document.
type WeatherSnapshot struct {
	Location    string `json:"location,omitempty"`
	TempMin     int    `json:"temp_min"`
	TempMax     int    `json:"temp_max"`
	RainProb    int    `json:"rain_prob"`
	Description string `json:"description"`
}

// GenerateID creates a short, stable ID from a URL.
func GenerateID(url string) string {
	hash := sha256.Sum256([]byte(url))
	return hex.EncodeToString(hash[:])[:16]
}
