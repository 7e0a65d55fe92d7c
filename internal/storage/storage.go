package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/mckhtech/wedding-plannera-ai/internal/config"
)

// Storage persists uploaded photos and generated artifacts. Refs are opaque
// relative keys; only URLFor turns them into something a client can load.
type Storage interface {
	Save(ctx context.Context, category string, data []byte, contentType string) (string, error)
	Fetch(ctx context.Context, ref string) ([]byte, error)
	Delete(ctx context.Context, ref string) error
	URLFor(ref string) string
}

// New picks the backend from config.
func New(cfg config.Config) (Storage, error) {
	switch cfg.StorageBackend {
	case "s3":
		return NewS3(cfg)
	case "local":
		return NewLocal(cfg.UploadDir, cfg.PublicBaseURL)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func extensionFromContentType(contentType string) string {
	switch strings.ToLower(contentType) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}

// ContentTypeForRef is the inverse mapping used when serving a stored ref.
func ContentTypeForRef(ref string) string {
	switch {
	case strings.HasSuffix(ref, ".png"):
		return "image/png"
	case strings.HasSuffix(ref, ".jpg"), strings.HasSuffix(ref, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(ref, ".webp"):
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
