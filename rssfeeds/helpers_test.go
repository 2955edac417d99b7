package rssfeeds

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"remarknews/common"
	"remarknews/types"

	"golang.org/x/net/html"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// newSite serves HTML pages from pages plus a fixed set of images:
// /big.png (400x300), /small.png (100x100), /slow.png (never answers in
// time) and /broken.png (not an image).
func newSite(t *testing.T, pages map[string]string) *httptest.Server {
	t.Helper()
	big := pngBytes(t, 400, 300)
	small := pngBytes(t, 100, 100)

	mux := http.NewServeMux()
	mux.HandleFunc("/big.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(big)
	})
	mux.HandleFunc("/small.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(small)
	})
	mux.HandleFunc("/slow.png", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(3 * time.Second):
		}
	})
	mux.HandleFunc("/broken.png", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not really a png"))
	})
	for path, body := range pages {
		body := body
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			if strings.HasSuffix(r.URL.Path, ".xml") {
				w.Header().Set("Content-Type", "application/rss+xml")
			} else {
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
			}
			w.Write([]byte(body))
		})
	}

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestExtractor(imageTimeout time.Duration) *Extractor {
	client := common.NewHTTPClient(common.HTTPOptions{UserAgent: "remarknews-test"})
	q := NewImageQualifier(client, 300, 200, imageTimeout)
	return NewExtractor(client, q, ExtractorOptions{PageTimeout: 2 * time.Second})
}

func findElement(t *testing.T, markup, tag string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	stack := []*html.Node{doc}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n.Type == html.ElementNode && n.Data == tag {
			return n
		}
		for c := n.LastChild; c != nil; c = c.PrevSibling {
			stack = append(stack, c)
		}
	}
	t.Fatalf("no <%s> in %q", tag, markup)
	return nil
}

// describe flattens blocks into comparable strings: text as-is, images as
// "img:<path>|<alt>|<caption>".
func describe(blocks []types.ContentBlock) []string {
	out := make([]string, 0, len(blocks))
	for _, b := range blocks {
		switch v := b.(type) {
		case types.TextBlock:
			out = append(out, v.Text)
		case types.ImageBlock:
			path := v.URL
			if i := strings.Index(path, "://"); i >= 0 {
				if j := strings.Index(path[i+3:], "/"); j >= 0 {
					path = path[i+3+j:]
				}
			}
			out = append(out, "img:"+path+"|"+v.AltText+"|"+v.Caption)
		}
	}
	return out
}

func assertBlocks(t *testing.T, got []types.ContentBlock, want []string) {
	t.Helper()
	d := describe(got)
	if len(d) != len(want) {
		t.Fatalf("got %d blocks %q, want %d %q", len(d), d, len(want), want)
	}
	for i := range want {
		if d[i] != want[i] {
			t.Errorf("block %d = %q, want %q", i, d[i], want[i])
		}
	}
}
