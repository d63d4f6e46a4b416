package ingestion_engine

import (
	"context"

	"github.com/markdave123-py/docingest/internal/models"
)

// Ingestor is the entry point for uploads.
type Ingestor interface {
	IngestFiles(ctx context.Context, owner models.Owner, files []models.IngestFile) (*models.IngestResult, error)
}

// BinaryPostProcessor turns stored binaries into indexed text.
type BinaryPostProcessor interface {
	ProcessBinaryFiles(ctx context.Context, requester models.Owner, ids []string) (*models.ProcessResult, error)
}

// SchemaEnsurer creates the index class on first use.
type SchemaEnsurer interface {
	Ensure(ctx context.Context) error
}

// BinaryStore persists a binary upload and its tracking record.
type BinaryStore interface {
	StoreBinary(ctx context.Context, owner models.Owner, file models.IngestFile) (*models.UploadedFileRecord, error)
}

// BinaryFiles is what post-processing needs from stored binaries.
type BinaryFiles interface {
	Get(ctx context.Context, id string) (*models.UploadedFileRecord, error)
	Download(ctx context.Context, rec *models.UploadedFileRecord) ([]byte, error)
	SaveSidecar(ctx context.Context, rec *models.UploadedFileRecord, requester models.Owner, text string) (string, error)
	MarkProcessed(ctx context.Context, id string) error
}
