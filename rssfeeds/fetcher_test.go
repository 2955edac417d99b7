package rssfeeds

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"remarknews/common"
	"remarknews/config"
	"remarknews/types"
)

var fixedNow = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

type feedItem struct {
	title   string
	path    string
	pubDate string
	desc    string
}

func rssDoc(host string, items []feedItem) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?><rss version="2.0"><channel><title>Test</title>`)
	for _, it := range items {
		sb.WriteString("<item>")
		fmt.Fprintf(&sb, "<title>%s</title>", it.title)
		if it.path != "" {
			fmt.Fprintf(&sb, "<link>http://%s%s</link>", host, it.path)
		}
		if it.desc != "" {
			fmt.Fprintf(&sb, "<description><![CDATA[%s]]></description>", it.desc)
		}
		if it.pubDate != "" {
			fmt.Fprintf(&sb, "<pubDate>%s</pubDate>", it.pubDate)
		}
		sb.WriteString("</item>")
	}
	sb.WriteString("</channel></rss>")
	return sb.String()
}

func rfc822(t time.Time) string { return t.Format(time.RFC1123Z) }

func newFeedServer(t *testing.T, items []feedItem, pages map[string]string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/feed.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(rssDoc(r.Host, items)))
	})
	for path, body := range pages {
		body := body
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte(body))
		})
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestFetcher() *Fetcher {
	client := common.NewHTTPClient(common.HTTPOptions{})
	e := NewExtractor(client, NewImageQualifier(client, 300, 200, time.Second), ExtractorOptions{})
	return NewFetcher(client, e, FetcherOptions{Now: func() time.Time { return fixedNow }})
}

func TestProcessFeedFreshnessWindow(t *testing.T) {
	items := []feedItem{
		{title: "Fresh one", path: "/a1", pubDate: rfc822(fixedNow.Add(-1 * time.Hour)), desc: "<p>Hello <b>world</b></p>"},
		{title: "Stale", path: "/a2", pubDate: rfc822(fixedNow.Add(-30 * time.Hour))},
		{title: "Fresh two", path: "/a3", pubDate: rfc822(fixedNow.Add(-5 * time.Hour))},
	}
	srv := newFeedServer(t, items, map[string]string{
		"/a1": `<article><p>Body one</p></article>`,
		"/a2": `<article><p>Body two</p></article>`,
		"/a3": `<article><p>Body three</p></article>`,
	})

	got := newTestFetcher().ProcessFeed(context.Background(), srv.URL+"/feed.xml", 24)
	if len(got) != 2 {
		t.Fatalf("got %d articles, want 2", len(got))
	}
	if got[0].Title != "Fresh one" || got[1].Title != "Fresh two" {
		t.Errorf("order = %q, %q", got[0].Title, got[1].Title)
	}
	if got[0].PlainSummary != "Hello world" {
		t.Errorf("PlainSummary = %q", got[0].PlainSummary)
	}
	if got[0].RawDescription != "<p>Hello <b>world</b></p>" {
		t.Errorf("RawDescription = %q", got[0].RawDescription)
	}
	if got[0].RawPubDate != items[0].pubDate {
		t.Errorf("RawPubDate = %q", got[0].RawPubDate)
	}
	assertBlocks(t, got[0].Content, []string{"Body one"})
	assertBlocks(t, got[1].Content, []string{"Body three"})
	if got[0].ID == "" {
		t.Error("expected an ID derived from the link")
	}
}

func TestProcessFeedDateEdgeCases(t *testing.T) {
	items := []feedItem{
		{title: "exactly at cutoff", path: "/x", pubDate: rfc822(fixedNow.Add(-24 * time.Hour))},
		{title: "just inside", path: "/x", pubDate: rfc822(fixedNow.Add(-24*time.Hour + time.Second))},
		{title: "no date", path: "/x"},
		{title: "garbage date", path: "/x", pubDate: "sometime last week"},
		{title: "offset", path: "/x", pubDate: "Fri, 10 May 2024 13:00:00 +0200"},
		// 15:00 and 13:00 UTC, both inside the window once the zone is applied.
		{title: "eastern", path: "/x", pubDate: "Thu, 09 May 2024 10:00:00 EST"},
		{title: "pacific", path: "/x", pubDate: "Thu, 09 May 2024 06:00:00 PDT"},
		// 11:00 UTC, outside.
		{title: "gmt", path: "/x", pubDate: "Thu, 09 May 2024 11:00:00 GMT"},
	}
	srv := newFeedServer(t, items, map[string]string{"/x": `<article><p>x</p></article>`})

	got := newTestFetcher().ProcessFeed(context.Background(), srv.URL+"/feed.xml", 24)
	var titles []string
	for _, a := range got {
		titles = append(titles, a.Title)
	}
	if strings.Join(titles, ",") != "just inside,offset,eastern,pacific" {
		t.Fatalf("titles = %v", titles)
	}

	for i, want := range map[int]int{1: 2, 2: -5, 3: -7} {
		if _, offset := got[i].PublishedAt.Zone(); offset != want*60*60 {
			t.Errorf("%s: zone offset = %d, want %dh", got[i].Title, offset, want)
		}
	}
	if want := time.Date(2024, 5, 9, 15, 0, 0, 0, time.UTC); !got[2].PublishedAt.Equal(want) {
		t.Errorf("eastern = %v, want %v", got[2].PublishedAt.UTC(), want)
	}
}

func TestProcessFeedMissingFieldsAndFailedPages(t *testing.T) {
	items := []feedItem{
		{title: "No link", pubDate: rfc822(fixedNow.Add(-time.Hour))},
		{title: "Broken page", path: "/gone", pubDate: rfc822(fixedNow.Add(-time.Hour))},
	}
	srv := newFeedServer(t, items, nil)

	got := newTestFetcher().ProcessFeed(context.Background(), srv.URL+"/feed.xml", 24)
	if len(got) != 2 {
		t.Fatalf("got %d articles, want 2", len(got))
	}
	for _, a := range got {
		if a.Content == nil || len(a.Content) != 0 {
			t.Errorf("%s: content = %#v, want empty non-nil", a.Title, a.Content)
		}
		if a.ExtractionError == "" {
			t.Errorf("%s: expected extraction error to be recorded", a.Title)
		}
	}
	if got[0].Link != "" || got[0].RawDescription != "" {
		t.Errorf("missing fields should be empty strings: %+v", got[0])
	}
}

func TestProcessFeedFailures(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/bad.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<rss><channel><item><title>unclosed"))
	})
	mux.HandleFunc("/html", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>not a feed</body></html>"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := newTestFetcher()
	for _, u := range []string{srv.URL + "/bad.xml", srv.URL + "/html", srv.URL + "/404.xml", "http://127.0.0.1:1/feed"} {
		got := f.ProcessFeed(context.Background(), u, 24)
		if got == nil || len(got) != 0 {
			t.Errorf("ProcessFeed(%s) = %v, want empty non-nil", u, got)
		}
	}
}

func TestStripHTML(t *testing.T) {
	tests := map[string]string{
		"plain   text":                       "plain text",
		"<p>Hello <a href='x'>there</a></p>": "Hello there",
		"Fish &amp; chips":                   "Fish & chips",
		"":                                   "",
	}
	for in, want := range tests {
		if got := StripHTML(in); got != want {
			t.Errorf("StripHTML(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExtractAllThrottledKeepsEveryImage(t *testing.T) {
	const articles, imagesPerArticle = 5, 6
	pages := make(map[string]string, articles)
	for i := 0; i < articles; i++ {
		var sb strings.Builder
		sb.WriteString("<article><p>Lead</p>")
		for j := 0; j < imagesPerArticle; j++ {
			fmt.Fprintf(&sb, `<img src="/big.png?a=%d&amp;i=%d" alt="photo %d">`, i, j, j)
		}
		sb.WriteString("</article>")
		pages[fmt.Sprintf("/story%d", i)] = sb.String()
	}
	srv := newSite(t, pages)

	// Default burst and worker counts with a faster rate and a per-request
	// timeout far shorter than the queue: 35 same-host requests at 20/s.
	client := common.NewHTTPClient(common.HTTPOptions{PerHostRPS: 20, PerHostBurst: config.DefaultPerHostBurst})
	q := NewImageQualifier(client, 300, 200, 200*time.Millisecond)
	e := NewExtractor(client, q, ExtractorOptions{PageTimeout: 200 * time.Millisecond, ImageWorkers: config.DefaultImageWorkers})
	f := NewFetcher(client, e, FetcherOptions{ArticleWorkers: config.DefaultArticleWorkers})

	list := make([]*types.Article, articles)
	for i := range list {
		list[i] = &types.Article{Title: fmt.Sprintf("story %d", i), Link: fmt.Sprintf("%s/story%d", srv.URL, i)}
	}
	f.ExtractAll(context.Background(), list)

	for _, a := range list {
		if a.ExtractionError != "" {
			t.Errorf("%s: extraction error %s", a.Title, a.ExtractionError)
		}
		images := 0
		for _, b := range a.Content {
			if _, ok := b.(types.ImageBlock); ok {
				images++
			}
		}
		if images != imagesPerArticle {
			t.Errorf("%s: kept %d/%d images", a.Title, images, imagesPerArticle)
		}
	}
}
