package render

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"remarknews/types"
)

type fakeImages struct {
	data  map[string][]byte
	calls int
}

func (f *fakeImages) GetBytes(ctx context.Context, rawURL string, timeout time.Duration) ([]byte, http.Header, error) {
	f.calls++
	if b, ok := f.data[rawURL]; ok {
		return b, http.Header{}, nil
	}
	return nil, nil, errors.New("not found")
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func sampleDoc() Document {
	return Document{
		Title: "ReMarkNews",
		Date:  time.Date(2024, 5, 10, 7, 0, 0, 0, time.UTC),
		Weather: &types.WeatherSnapshot{
			Location: "Madrid", TempMin: 12, TempMax: 24, RainProb: 30, Description: "Clear sky",
		},
		Sections: []Section{{
			Source: "El País",
			Articles: []*types.Article{{
				Title:      "Cañas & tapas",
				RawPubDate: "Fri, 10 May 2024 06:00:00 +0200",
				Content: []types.ContentBlock{
					types.TextBlock{Text: "AI Summary:\n\n- one\n- two"},
					types.TextBlock{Text: "First paragraph.\n\nSecond <paragraph>."},
					types.NewHeadingBlock("A heading"),
					types.ImageBlock{URL: "https://img.example.com/big.png", Caption: "A caption"},
					types.ImageBlock{URL: "https://img.example.com/missing.png", AltText: "gone"},
					types.TextBlock{Text: "Closing."},
				},
			}},
		}},
	}
}

func TestBaseName(t *testing.T) {
	date := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	tests := map[string]string{
		"La Vanguardia": "La_Vanguardia-20240510",
		"BBC  News ":    "BBC_News-20240510",
		"a/b":           "a_b-20240510",
	}
	for in, want := range tests {
		if got := BaseName(in, date); got != want {
			t.Errorf("BaseName(%q) = %q, want %q", in, got, want)
		}
	}
	if got := OutputBase("out", "X Y", date); got != filepath.Join("out", "X_Y-20240510") {
		t.Errorf("OutputBase() = %q", got)
	}
}

func TestNewUnknownFormat(t *testing.T) {
	if _, err := New("docx", Options{}); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestRenderPDF(t *testing.T) {
	imgs := &fakeImages{data: map[string][]byte{"https://img.example.com/big.png": testPNG(t, 400, 300)}}
	r, err := New("pdf", Options{IncludeImages: true, Images: imgs})
	if err != nil {
		t.Fatal(err)
	}
	base := filepath.Join(t.TempDir(), "nested", "El_Pais-20240510")
	path, err := r.Render(context.Background(), sampleDoc(), base)
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if path != base+".pdf" {
		t.Errorf("path = %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Errorf("output is not a pdf: %q", data[:8])
	}
	if imgs.calls != 2 {
		t.Errorf("image downloads = %d, want 2", imgs.calls)
	}
}

func TestRenderPDFWithoutImages(t *testing.T) {
	imgs := &fakeImages{}
	r, _ := New("pdf", Options{IncludeImages: false, Images: imgs})
	if _, err := r.Render(context.Background(), sampleDoc(), filepath.Join(t.TempDir(), "doc")); err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if imgs.calls != 0 {
		t.Errorf("images fetched although disabled: %d", imgs.calls)
	}
}

func TestRenderRejectsNilBlock(t *testing.T) {
	doc := sampleDoc()
	doc.Sections[0].Articles[0].Content = []types.ContentBlock{nil}
	for _, format := range []string{"pdf", "epub"} {
		r, _ := New(format, Options{})
		if _, err := r.Render(context.Background(), doc, filepath.Join(t.TempDir(), "doc")); err == nil {
			t.Errorf("%s: expected error for an unknown block", format)
		}
	}
}

func readZipFiles(t *testing.T, path string) map[string]string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open epub: %v", err)
	}
	defer zr.Close()
	files := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		b, _ := io.ReadAll(rc)
		rc.Close()
		files[f.Name] = string(b)
	}
	return files
}

func TestRenderEPUB(t *testing.T) {
	imgs := &fakeImages{data: map[string][]byte{"https://img.example.com/big.png": testPNG(t, 400, 300)}}
	r, err := New("epub", Options{IncludeImages: true, Images: imgs})
	if err != nil {
		t.Fatal(err)
	}
	path, err := r.Render(context.Background(), sampleDoc(), filepath.Join(t.TempDir(), "El_Pais-20240510"))
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if !strings.HasSuffix(path, ".epub") {
		t.Errorf("path = %q", path)
	}

	files := readZipFiles(t, path)
	var all strings.Builder
	var hasImage bool
	for name, body := range files {
		all.WriteString(body)
		if strings.Contains(name, "image_") && strings.HasSuffix(name, ".png") {
			hasImage = true
		}
	}
	text := all.String()
	for _, want := range []string{
		"Min/Max Temp: 12/24°C",
		"Cañas &amp; tapas",
		"Published: Fri, 10 May 2024 06:00:00 +0200",
		"<p>Second &lt;paragraph&gt;.</p>",
		"<h3>A heading</h3>",
		"- one<br/>- two",
		"<p><i>A caption</i></p>",
		"[Image could not be downloaded: gone]",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("epub missing %q", want)
		}
	}
	if !hasImage {
		t.Error("expected the downloaded image inside the epub")
	}
}

func TestRenderCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r, _ := New("pdf", Options{})
	if _, err := r.Render(ctx, sampleDoc(), filepath.Join(t.TempDir(), "doc")); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
