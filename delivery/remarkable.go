package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path"
	"strings"
	"sync"
	"time"

	"remarknews/config"
	"remarknews/logger"

	"github.com/dustin/go-humanize"
)

// CommandRunner executes an external command and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Remarkable uploads files to the tablet cloud with the rmapi CLI. The day
// folder is created once, before the first upload.
type Remarkable struct {
	binary string
	folder string
	run    CommandRunner

	once     sync.Once
	mkdirErr error
}

// NewRemarkable returns an rmapi deliverer. A nil runner uses os/exec.
func NewRemarkable(cfg config.RemarkableConfig, date time.Time, run CommandRunner) *Remarkable {
	if run == nil {
		run = execRunner
	}
	binary := cfg.Binary
	if binary == "" {
		binary = "rmapi"
	}
	root := cfg.Folder
	if root == "" {
		root = config.DefaultRemarkableDir
	}
	return &Remarkable{
		binary: binary,
		folder: path.Join(root, date.Format("20060102")),
		run:    run,
	}
}

func (r *Remarkable) Name() string { return config.DeliveryRemarkable }

// Folder is the tablet folder files are uploaded into.
func (r *Remarkable) Folder() string { return r.folder }

func (r *Remarkable) Deliver(ctx context.Context, file string) error {
	size, err := fileSize(file)
	if err != nil {
		return err
	}

	r.once.Do(func() { r.mkdirErr = r.mkdir(ctx) })
	if r.mkdirErr != nil {
		return fmt.Errorf("not uploaded, folder unavailable: %w", r.mkdirErr)
	}

	out, err := r.run(ctx, r.binary, "put", file, r.folder+"/")
	if err != nil {
		return fmt.Errorf("rmapi put %s: %w: %s", file, err, strings.TrimSpace(string(out)))
	}
	slog.Info("uploaded to reMarkable", "file", file, "folder", r.folder, "size", humanize.Bytes(size))
	return nil
}

func (r *Remarkable) mkdir(ctx context.Context) error {
	out, err := r.run(ctx, r.binary, "mkdir", r.folder)
	if err == nil {
		slog.Info("created reMarkable folder", "folder", r.folder)
		return nil
	}
	// reruns on the same day find the folder already there
	if strings.Contains(strings.ToLower(string(out)), "already exists") {
		return nil
	}
	slog.Error("reMarkable folder creation failed", "stage", logger.StageDeliver, "folder", r.folder, "error", err)
	return fmt.Errorf("rmapi mkdir %s: %w: %s", r.folder, err, strings.TrimSpace(string(out)))
}
