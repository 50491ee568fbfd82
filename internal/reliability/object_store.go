// Package reliability creates off-site backups of the application databases.
package reliability

import (
	"context"
	"io"
	"time"
)

// Object describes a stored backup archive
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ObjectStore is the remote storage backups are uploaded to
type ObjectStore interface {
	Upload(ctx context.Context, key string, body io.Reader) error
	List(ctx context.Context, prefix string) ([]Object, error)
	Delete(ctx context.Context, key string) error
}
