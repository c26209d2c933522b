package blobstore

import (
	"context"
	"fmt"
	"mime"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wenyongqd/anniversary/internal/config"
	"github.com/wenyongqd/anniversary/internal/services"
)

// Object kinds used as the first name segment.
const (
	KindImage    = "images"
	KindTimeline = "timelines"
)

// Object is one blob to store.
type Object struct {
	Name        string
	ContentType string
	Data        []byte
}

// Store persists objects and returns their public URL.
type Store interface {
	Put(ctx context.Context, obj Object) (string, error)
}

var knownExtensions = map[string]string{
	"image/jpeg":       ".jpg",
	"image/png":        ".png",
	"image/gif":        ".gif",
	"image/webp":       ".webp",
	"image/bmp":        ".bmp",
	"image/heic":       ".heic",
	"application/json": ".json",
}

// ExtensionFor maps a MIME type to a file extension, falling back to ".bin".
func ExtensionFor(contentType string) string {
	base, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		base = strings.ToLower(strings.TrimSpace(contentType))
	}
	if ext, ok := knownExtensions[base]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(base); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}

// NewName returns <kind>/<YYYY>/<MM>/<DD>/<unixmilli>-<uuid><ext>.
func NewName(kind, contentType string, now time.Time) string {
	now = now.UTC()
	return fmt.Sprintf("%s/%04d/%02d/%02d/%d-%s%s",
		kind, now.Year(), int(now.Month()), now.Day(), now.UnixMilli(), uuid.NewString(), ExtensionFor(contentType))
}

// New builds the store selected by storage.backend.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "blobstore", "new", "config is required", nil)
	}
	switch cfg.Storage.Backend {
	case config.BackendFS:
		return NewFSStore(cfg.Paths.BlobDir, cfg.Server.PublicBaseURL)
	case config.BackendS3:
		return NewS3Store(ctx, cfg.Storage)
	default:
		return nil, services.Wrap(services.ErrConfiguration, "blobstore", "new", fmt.Sprintf("unknown backend %q", cfg.Storage.Backend), nil)
	}
}
