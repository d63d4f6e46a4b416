package core

import (
	"context"

	"github.com/markdave123-py/docingest/internal/models"
)

// DbClient persists the tracking rows for binary uploads.
type DbClient interface {
	CreateUploadedFile(ctx context.Context, rec *models.UploadedFileRecord) error
	// GetUploadedFile returns nil, nil when no row matches.
	GetUploadedFile(ctx context.Context, id string) (*models.UploadedFileRecord, error)
	MarkRAGProcessed(ctx context.Context, id string) error
	Close() error
}

// ObjectClient defines interactions with S3 or any S3-compatible store.
// Uploads overwrite an existing key.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string) (url string, err error)
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)
}

// VectorStore is the write side of the search index.
type VectorStore interface {
	SchemaExists(ctx context.Context, className string) (bool, error)
	// CreateSchema returns an error wrapping ErrAlreadyExists when the class
	// was created concurrently.
	CreateSchema(ctx context.Context, schema models.IndexSchema) error
	// BatchInsert returns how many objects the store rejected individually.
	BatchInsert(ctx context.Context, objects []models.IndexObject) (rejected int, err error)
	Insert(ctx context.Context, object models.IndexObject) error
}

// Locker serialises schema bootstrap across processes.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}
