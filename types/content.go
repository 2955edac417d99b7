package types

import (
	"encoding/json"
	"strings"
)

// ParagraphSeparator separates paragraphs inside a TextBlock.
const ParagraphSeparator = "\n\n"

// ContentBlock is one unit of extracted article content. The set of
// implementations is closed: TextBlock and ImageBlock.
type ContentBlock interface {
	contentBlock()
}

// TextBlock holds one or more paragraphs joined by ParagraphSeparator.
// Headings are encoded as "\n\n<text>\n".
type TextBlock struct {
	Text string
}

// ImageBlock is a qualifying image. At least one of AltText and Caption
// is non-empty.
type ImageBlock struct {
	URL     string
	AltText string
	Caption string
}

func (TextBlock) contentBlock()  {}
func (ImageBlock) contentBlock() {}

// NewHeadingBlock wraps heading text in the padding renderers recognise.
func NewHeadingBlock(text string) TextBlock {
	return TextBlock{Text: ParagraphSeparator + text + "\n"}
}

// IsHeading reports whether the block was produced from a heading element.
func (t TextBlock) IsHeading() bool {
	return len(t.Text) > 3 &&
		strings.HasPrefix(t.Text, ParagraphSeparator) &&
		strings.HasSuffix(t.Text, "\n") &&
		!strings.HasSuffix(t.Text, ParagraphSeparator)
}

// Paragraphs splits the block on ParagraphSeparator, dropping blank parts.
func (t TextBlock) Paragraphs() []string {
	parts := strings.Split(t.Text, ParagraphSeparator)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (t TextBlock) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}{"text", t.Text})
}

func (i ImageBlock) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    string `json:"type"`
		URL     string `json:"url"`
		AltText string `json:"alt"`
		Caption string `json:"caption"`
	}{"image", i.URL, i.AltText, i.Caption})
}
