package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vladimiradmaev/dish-journal/internal/config"
)

// ImageStore keeps uploaded dish images and resolves them back by the URL
// stored on the record.
type ImageStore interface {
	Save(ctx context.Context, name string, data []byte, contentType string) (string, error)
	Load(ctx context.Context, url string) ([]byte, error)
	Delete(ctx context.Context, url string) error
}

// ImageName builds an object name such as 240305_143000_dish2_1a2b3c4d.jpg.
func ImageName(now time.Time, position int) string {
	return fmt.Sprintf("%s_dish%d_%s.jpg", now.UTC().Format("060102_150405"), position, uuid.NewString()[:8])
}

// New selects the image store configured for the deployment.
func New(ctx context.Context, cfg config.StorageConfig) (ImageStore, error) {
	switch cfg.Backend {
	case "local":
		return NewLocalStore(cfg.ImageDir, cfg.PublicPrefix)
	case "s3":
		return NewS3Store(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}
