package rssfeeds

import (
	"context"
	"net/url"
	"testing"
	"time"

	"remarknews/common"
)

func TestIsQualifyingImageURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://example.com/a.jpg", true},
		{"https://example.com/a.JPEG", true},
		{"http://cdn.example.com/path/to/photo.png?w=800", true},
		{"https://example.com/anim.gif", true},
		{"https://example.com/pic.webp", true},
		{"", false},
		{"/relative/a.jpg", false},
		{"a.jpg", false},
		{"https://example.com/image", false},
		{"https://example.com/vector.svg", false},
		{"https://example.com/a.jpg.html", false},
		{"data:image/png;base64,AAAA", false},
	}
	for _, tt := range tests {
		if got := IsQualifyingImageURL(tt.url); got != tt.want {
			t.Errorf("IsQualifyingImageURL(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestResolveImageURL(t *testing.T) {
	base, _ := url.Parse("https://example.com/news/story.html")
	tests := []struct {
		name   string
		markup string
		want   string
		ok     bool
	}{
		{
			name:   "data-original beats src",
			markup: `<img data-original="full.jpg" src="placeholder.gif">`,
			want:   "https://example.com/news/full.jpg",
			ok:     true,
		},
		{
			name:   "data-src beats src",
			markup: `<img data-src="/img/lazy.png" src="https://example.com/tiny.gif">`,
			want:   "https://example.com/img/lazy.png",
			ok:     true,
		},
		{
			name:   "falls through non-qualifying attribute",
			markup: `<img data-original="https://example.com/resize?id=4" src="https://cdn.example.com/real.jpg">`,
			want:   "https://cdn.example.com/real.jpg",
			ok:     true,
		},
		{
			name:   "protocol relative",
			markup: `<img src="//cdn.example.com/p.webp">`,
			want:   "https://cdn.example.com/p.webp",
			ok:     true,
		},
		{
			name:   "blank attribute skipped",
			markup: `<img data-src="  " src="b.gif">`,
			want:   "https://example.com/news/b.gif",
			ok:     true,
		},
		{
			name:   "nothing qualifies",
			markup: `<img src="data:image/png;base64,AAAA">`,
			ok:     false,
		},
		{
			name:   "no attributes",
			markup: `<img alt="x">`,
			ok:     false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ResolveImageURL(findElement(t, tt.markup, "img"), base)
			if ok != tt.ok || got != tt.want {
				t.Errorf("ResolveImageURL() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestMeetsMinimumQuality(t *testing.T) {
	srv := newSite(t, nil)
	client := common.NewHTTPClient(common.HTTPOptions{})
	q := NewImageQualifier(client, 300, 200, 200*time.Millisecond)

	tests := []struct {
		path string
		want bool
	}{
		{"/big.png", true},
		{"/small.png", false},
		{"/broken.png", false},
		{"/slow.png", false},
		{"/missing.png", false},
	}
	for _, tt := range tests {
		if got := q.MeetsMinimumQuality(context.Background(), srv.URL+tt.path); got != tt.want {
			t.Errorf("MeetsMinimumQuality(%s) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestMeetsMinimumQualityThresholds(t *testing.T) {
	srv := newSite(t, nil)
	client := common.NewHTTPClient(common.HTTPOptions{})

	// 400x300 passes exactly at the limits and fails one pixel above
	if !NewImageQualifier(client, 400, 300, time.Second).MeetsMinimumQuality(context.Background(), srv.URL+"/big.png") {
		t.Error("image equal to the minimum should qualify")
	}
	if NewImageQualifier(client, 401, 300, time.Second).MeetsMinimumQuality(context.Background(), srv.URL+"/big.png") {
		t.Error("narrower image should not qualify")
	}
	if NewImageQualifier(client, 400, 301, time.Second).MeetsMinimumQuality(context.Background(), srv.URL+"/big.png") {
		t.Error("shorter image should not qualify")
	}
}
