package config

import "remarknews/types"

// FeedPresets maps friendly keys to feed sources
var FeedPresets = map[string]types.FeedSource{
	"lv": {
		Name: "La Vanguardia",
		URL:  "https://www.lavanguardia.com/rss/home.xml",
	},
	"elpais": {
		Name: "El Pais",
		URL:  "https://feeds.elpais.com/mrss-s/pages/ep/site/elpais.com/portada",
	},
	"bbc": {
		Name: "BBC News",
		URL:  "https://feeds.bbci.co.uk/news/rss.xml",
	},
	"hn": {
		Name: "Hacker News",
		URL:  "https://hnrss.org/frontpage",
	},
	"tr": {
		Name: "Technology Review",
		URL:  "https://www.technologyreview.com/feed/",
	},
}

// ResolveFeed resolves a feed identifier to a source.
// If the input is a preset name, returns the preset; otherwise the input
// is treated as a direct URL.
func ResolveFeed(feedInput string) types.FeedSource {
	if src, exists := FeedPresets[feedInput]; exists {
		return src
	}
	return types.FeedSource{Name: feedInput, URL: feedInput}
}
