// Package storage persists uploaded files.
//
// Two backends exist: a local directory and an S3-compatible bucket. The
// backend is chosen by storage.driver in config.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/deppfellow/posts-api/internal/config"
)

var (
	ErrInvalidName  = errors.New("storage: invalid object name")
	ErrUploadFailed = errors.New("storage: upload failed")
	ErrDeleteFailed = errors.New("storage: delete failed")
)

// Object describes where a stored file ended up.
type Object struct {
	// Destination is the directory or bucket URL the file was written to.
	Destination string
	// Path is the full location of the file inside Destination.
	Path string
	Size int64
}

// Storage writes and removes named objects.
type Storage interface {
	Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) (*Object, error)
	Delete(ctx context.Context, name string) error
}

// New builds the backend selected by cfg.Driver.
func New(cfg config.StorageConfig) (Storage, error) {
	switch cfg.Driver {
	case config.StorageDriverLocal:
		return NewLocal(cfg.Dir)
	case config.StorageDriverS3:
		return NewS3(cfg.S3)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
