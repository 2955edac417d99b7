package rssfeeds

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// StripHTML returns the visible text of an HTML fragment with whitespace
// collapsed. Plain text passes through unchanged apart from whitespace.
func StripHTML(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return strings.Join(strings.Fields(fragment), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}
	doc.Find("script, style").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}
