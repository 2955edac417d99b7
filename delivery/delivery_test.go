package delivery

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"remarknews/config"

	"github.com/wneessen/go-mail"
	"google.golang.org/api/drive/v3"
)

var runDate = time.Date(2024, 5, 10, 6, 0, 0, 0, time.UTC)

func tempFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

type recordedCmd struct {
	name string
	args []string
}

type fakeRunner struct {
	mu       sync.Mutex
	calls    []recordedCmd
	mkdirOut string
	mkdirErr error
}

func (f *fakeRunner) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedCmd{name, args})
	if args[0] == "mkdir" {
		return []byte(f.mkdirOut), f.mkdirErr
	}
	return nil, nil
}

func TestRemarkableMkdirOnceThenPut(t *testing.T) {
	f := &fakeRunner{}
	r := NewRemarkable(config.RemarkableConfig{Binary: "rmapi", Folder: "/News"}, runDate, f.run)

	a := tempFile(t, "A-20240510.pdf", "a")
	b := tempFile(t, "B-20240510.pdf", "b")
	for _, file := range []string{a, b} {
		if err := r.Deliver(context.Background(), file); err != nil {
			t.Fatalf("Deliver(%s) error: %v", file, err)
		}
	}

	want := []string{
		"rmapi mkdir /News/20240510",
		"rmapi put " + a + " /News/20240510/",
		"rmapi put " + b + " /News/20240510/",
	}
	if len(f.calls) != len(want) {
		t.Fatalf("calls = %v", f.calls)
	}
	for i, c := range f.calls {
		if got := c.name + " " + strings.Join(c.args, " "); got != want[i] {
			t.Errorf("call %d = %q, want %q", i, got, want[i])
		}
	}
}

func TestRemarkableExistingFolder(t *testing.T) {
	f := &fakeRunner{mkdirOut: "Error: entry already exists", mkdirErr: errors.New("exit status 1")}
	r := NewRemarkable(config.RemarkableConfig{}, runDate, f.run)
	if err := r.Deliver(context.Background(), tempFile(t, "x.pdf", "x")); err != nil {
		t.Fatalf("existing folder should not block upload: %v", err)
	}
}

func TestRemarkableMkdirFailureSkipsUploads(t *testing.T) {
	f := &fakeRunner{mkdirOut: "auth failed", mkdirErr: errors.New("exit status 1")}
	r := NewRemarkable(config.RemarkableConfig{}, runDate, f.run)
	for i := 0; i < 2; i++ {
		if err := r.Deliver(context.Background(), tempFile(t, "x.pdf", "x")); err == nil {
			t.Fatal("expected error when folder cannot be created")
		}
	}
	if len(f.calls) != 1 {
		t.Errorf("expected a single mkdir attempt and no puts, got %v", f.calls)
	}
}

type fakeSender struct {
	sent []*mail.Msg
	err  error
}

func (f *fakeSender) DialAndSendWithContext(ctx context.Context, msgs ...*mail.Msg) error {
	f.sent = append(f.sent, msgs...)
	return f.err
}

func TestEmail(t *testing.T) {
	cfg := config.EmailConfig{Host: "smtp.example.com", Port: 587, Sender: "me@example.com", Receiver: "you@example.com"}
	s := &fakeSender{}
	e, err := NewEmail(cfg, runDate, s)
	if err != nil {
		t.Fatal(err)
	}
	file := tempFile(t, "News-20240510.epub", "epub bytes")
	if err := e.Deliver(context.Background(), file); err != nil {
		t.Fatalf("Deliver() error: %v", err)
	}
	if len(s.sent) != 1 {
		t.Fatalf("sent %d messages", len(s.sent))
	}
	m := s.sent[0]
	if subj := m.GetGenHeader(mail.HeaderSubject); len(subj) != 1 || subj[0] != "News 20240510" {
		t.Errorf("subject = %v", subj)
	}
	atts := m.GetAttachments()
	if len(atts) != 1 || atts[0].Name != "News-20240510.epub" {
		t.Errorf("attachments = %+v", atts)
	}

	s.err = errors.New("smtp down")
	if err := e.Deliver(context.Background(), file); err == nil {
		t.Error("expected send error to propagate")
	}
}

func TestEmailRequiresAddresses(t *testing.T) {
	if _, err := NewEmail(config.EmailConfig{Sender: "me@example.com"}, runDate, &fakeSender{}); err == nil {
		t.Error("expected error without receiver")
	}
}

type memStore struct {
	objects map[string]string
	puts    int
}

func (m *memStore) Put(ctx context.Context, bucket, key string, body io.Reader, contentType string) error {
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.objects[bucket+"/"+key] = string(b)
	m.puts++
	return nil
}

func (m *memStore) Exists(ctx context.Context, bucket, key string) (bool, error) {
	_, ok := m.objects[bucket+"/"+key]
	return ok, nil
}

func TestS3DeliverIsIdempotent(t *testing.T) {
	store := &memStore{objects: map[string]string{}}
	s := NewS3(store, config.S3Config{Bucket: "digests", Prefix: "/news/"}, runDate)
	file := tempFile(t, "BBC_News-20240510.pdf", "pdf")

	if got := s.Key(file); got != "news/20240510/BBC_News-20240510.pdf" {
		t.Errorf("Key() = %q", got)
	}
	for i := 0; i < 2; i++ {
		if err := s.Deliver(context.Background(), file); err != nil {
			t.Fatalf("Deliver() error: %v", err)
		}
	}
	if store.puts != 1 {
		t.Errorf("puts = %d, want 1", store.puts)
	}
	if store.objects["digests/news/20240510/BBC_News-20240510.pdf"] != "pdf" {
		t.Errorf("objects = %v", store.objects)
	}
}

func TestDriveDeliver(t *testing.T) {
	var gotMeta *drive.File
	var gotBody string
	d := NewDriveWithCreator("folder123", func(ctx context.Context, meta *drive.File, media io.Reader) (string, error) {
		gotMeta = meta
		b, _ := io.ReadAll(media)
		gotBody = string(b)
		return "file-id", nil
	})
	file := tempFile(t, "News-20240510.epub", "book")
	if err := d.Deliver(context.Background(), file); err != nil {
		t.Fatalf("Deliver() error: %v", err)
	}
	if gotMeta.Name != "News-20240510.epub" || gotMeta.MimeType != "application/epub+zip" {
		t.Errorf("meta = %+v", gotMeta)
	}
	if len(gotMeta.Parents) != 1 || gotMeta.Parents[0] != "folder123" {
		t.Errorf("parents = %v", gotMeta.Parents)
	}
	if gotBody != "book" {
		t.Errorf("body = %q", gotBody)
	}
}

func TestNewDeliverer(t *testing.T) {
	d, err := New(context.Background(), config.DeliveryConfig{Target: config.DeliveryNone}, runDate)
	if err != nil || d != nil {
		t.Errorf("none: (%v, %v)", d, err)
	}
	d, err = New(context.Background(), config.DeliveryConfig{Target: config.DeliveryRemarkable}, runDate)
	if err != nil || d.Name() != "rmapi" {
		t.Errorf("rmapi: (%v, %v)", d, err)
	}
	if _, err := New(context.Background(), config.DeliveryConfig{Target: config.DeliveryS3}, runDate); err == nil {
		t.Error("s3 without bucket should fail")
	}
	if _, err := New(context.Background(), config.DeliveryConfig{Target: config.DeliveryDrive}, runDate); err == nil {
		t.Error("drive without credentials should fail")
	}
	if _, err := New(context.Background(), config.DeliveryConfig{Target: "fax"}, runDate); err == nil {
		t.Error("unknown target should fail")
	}
}

func TestDeliverMissingFile(t *testing.T) {
	r := NewRemarkable(config.RemarkableConfig{}, runDate, (&fakeRunner{}).run)
	if err := r.Deliver(context.Background(), filepath.Join(t.TempDir(), "nope.pdf")); err == nil {
		t.Error("expected error for missing file")
	}
}
