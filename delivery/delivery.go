package delivery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"remarknews/common"
	"remarknews/config"
)

// Deliverer sends one rendered file to its destination.
type Deliverer interface {
	Name() string
	Deliver(ctx context.Context, path string) error
}

// New builds the deliverer for cfg.Target. It returns nil for "none".
// date names the per-run folder or key prefix.
func New(ctx context.Context, cfg config.DeliveryConfig, date time.Time) (Deliverer, error) {
	switch cfg.Target {
	case "", config.DeliveryNone:
		return nil, nil
	case config.DeliveryRemarkable:
		return NewRemarkable(cfg.Remarkable, date, nil), nil
	case config.DeliveryEmail:
		e, err := NewEmail(cfg.Email, date, nil)
		if err != nil {
			return nil, err
		}
		return e, nil
	case config.DeliveryS3:
		if cfg.S3.Bucket == "" {
			return nil, fmt.Errorf("s3 delivery requires S3_BUCKET")
		}
		store, err := common.NewS3(ctx, common.S3Config{
			Region:       cfg.S3.Region,
			Profile:      cfg.S3.Profile,
			UsePathStyle: cfg.S3.UsePathStyle,
		})
		if err != nil {
			return nil, err
		}
		return NewS3(store, cfg.S3, date), nil
	case config.DeliveryDrive:
		d, err := NewDrive(ctx, cfg.Drive)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unknown delivery target %q", cfg.Target)
	}
}

func contentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "application/pdf"
	case ".epub":
		return "application/epub+zip"
	default:
		return "application/octet-stream"
	}
}

func fileSize(path string) (uint64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%s is a directory", path)
	}
	return uint64(info.Size()), nil
}
