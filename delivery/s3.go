package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"time"

	"remarknews/common"
	"remarknews/config"

	"github.com/dustin/go-humanize"
)

// S3 publishes digests under <prefix>/<YYYYMMDD>/<file>. Objects already
// present are left alone so a rerun does not upload twice.
type S3 struct {
	store  common.ObjectStore
	bucket string
	prefix string
}

func NewS3(store common.ObjectStore, cfg config.S3Config, date time.Time) *S3 {
	return &S3{
		store:  store,
		bucket: cfg.Bucket,
		prefix: path.Join(strings.Trim(cfg.Prefix, "/"), date.Format("20060102")),
	}
}

func (s *S3) Name() string { return config.DeliveryS3 }

// Key returns the object key for file.
func (s *S3) Key(file string) string {
	return path.Join(s.prefix, filepath.Base(file))
}

func (s *S3) Deliver(ctx context.Context, file string) error {
	key := s.Key(file)
	exists, err := s.store.Exists(ctx, s.bucket, key)
	if err != nil {
		return fmt.Errorf("checking s3://%s/%s: %w", s.bucket, key, err)
	}
	if exists {
		slog.Info("already uploaded, skipping", "bucket", s.bucket, "key", key)
		return nil
	}

	n, err := common.PutFile(ctx, s.store, s.bucket, key, file, contentType(file))
	if err != nil {
		return err
	}
	slog.Info("uploaded to s3", "bucket", s.bucket, "key", key, "size", humanize.Bytes(uint64(n)))
	return nil
}
