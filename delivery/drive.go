package delivery

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"remarknews/config"

	"github.com/dustin/go-humanize"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// FileCreator uploads one file and returns its Drive id.
type FileCreator func(ctx context.Context, meta *drive.File, media io.Reader) (string, error)

// Drive uploads digests into a shared Google Drive folder using a service
// account.
type Drive struct {
	folderID string
	create   FileCreator
}

func NewDrive(ctx context.Context, cfg config.DriveConfig) (*Drive, error) {
	if cfg.ServiceAccountFile == "" {
		return nil, fmt.Errorf("drive delivery requires GOOGLE_SERVICE_ACCOUNT_FILE")
	}
	data, err := os.ReadFile(cfg.ServiceAccountFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read service account file: %w", err)
	}

	jwt, err := google.JWTConfigFromJSON(data, drive.DriveFileScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse service account: %w", err)
	}

	service, err := drive.NewService(ctx, option.WithHTTPClient(jwt.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Drive service: %w", err)
	}

	create := func(ctx context.Context, meta *drive.File, media io.Reader) (string, error) {
		f, err := service.Files.Create(meta).Media(media).Context(ctx).Do()
		if err != nil {
			return "", err
		}
		return f.Id, nil
	}
	return NewDriveWithCreator(cfg.FolderID, create), nil
}

// NewDriveWithCreator wires a custom upload function (tests, other clients).
func NewDriveWithCreator(folderID string, create FileCreator) *Drive {
	return &Drive{folderID: folderID, create: create}
}

func (d *Drive) Name() string { return config.DeliveryDrive }

func (d *Drive) Deliver(ctx context.Context, file string) error {
	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", file, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", file, err)
	}

	meta := &drive.File{
		Name:     filepath.Base(file),
		MimeType: contentType(file),
	}
	if d.folderID != "" {
		meta.Parents = []string{d.folderID}
	}

	id, err := d.create(ctx, meta, f)
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", file, err)
	}
	slog.Info("uploaded to drive", "file", meta.Name, "id", id, "size", humanize.Bytes(uint64(info.Size())))
	return nil
}
