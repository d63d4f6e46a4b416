package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/markdave123-py/docingest/internal/core"
	"github.com/markdave123-py/docingest/internal/models"
)

// Property names written on every indexed object.
const (
	PropText          = "text"
	PropSource        = "source"
	PropBlobType      = "blobType"
	PropLocLinesFrom  = "loc_lines_from"
	PropLocLinesTo    = "loc_lines_to"
	PropDocumentName  = "document_name"
	PropChunkIndex    = "chunk_index"
	schemaDescription = "Chunks of documents for RAG"
)

// DefaultSchema is the class every ingestion path writes to. The property
// list must stay in step with NewChunkObject.
func DefaultSchema(className string, vectorizer models.VectorizerConfig) models.IndexSchema {
	if vectorizer.Type == "" {
		vectorizer.Type = "text"
	}
	return models.IndexSchema{
		ClassName:   className,
		Description: schemaDescription,
		Vectorizer:  vectorizer,
		Properties: []models.IndexProperty{
			{Name: PropText, DataType: []string{"text"}, Description: "Chunk text content"},
			{Name: PropSource, DataType: []string{"text"}, Description: "Source of the text"},
			{Name: PropBlobType, DataType: []string{"text"}, Description: "Type of blob/content"},
			{Name: PropLocLinesFrom, DataType: []string{"number"}, Description: "Starting line number"},
			{Name: PropLocLinesTo, DataType: []string{"number"}, Description: "Ending line number"},
			{Name: PropDocumentName, DataType: []string{"text"}, Description: "Source filename"},
			{Name: PropChunkIndex, DataType: []string{"int"}, Description: "Chunk index"},
		},
	}
}

// NewChunkObject builds the object for the chunk at position index of a
// document.
func NewChunkObject(className, text, source, blobType, documentName string, index int) models.IndexObject {
	return models.IndexObject{
		Class: className,
		Properties: map[string]any{
			PropText:         text,
			PropSource:       source,
			PropBlobType:     blobType,
			PropLocLinesFrom: index,
			PropLocLinesTo:   index + 1,
			PropDocumentName: documentName,
			PropChunkIndex:   index,
		},
	}
}

// SchemaBootstrapper creates the index class on first use. A successful run
// is remembered for the life of the process; a failed one is retried by the
// next caller.
type SchemaBootstrapper struct {
	store  core.VectorStore
	schema models.IndexSchema
	locker core.Locker

	mu   sync.Mutex
	done bool
}

// NewSchemaBootstrapper takes an optional locker to serialise bootstrap
// across replicas.
func NewSchemaBootstrapper(store core.VectorStore, schema models.IndexSchema, locker core.Locker) *SchemaBootstrapper {
	return &SchemaBootstrapper{store: store, schema: schema, locker: locker}
}

func (b *SchemaBootstrapper) Schema() models.IndexSchema { return b.schema }

// Ensure probes for the class and creates it when absent. An existing class
// is accepted as is; its properties are not compared.
func (b *SchemaBootstrapper) Ensure(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.done {
		return nil
	}
	if err := b.ensure(ctx); err != nil {
		return err
	}
	b.done = true
	return nil
}

func (b *SchemaBootstrapper) ensure(ctx context.Context) error {
	class := b.schema.ClassName

	if b.locker != nil {
		release, err := b.locker.Acquire(ctx, "docingest:schema:"+class)
		if err != nil {
			return fmt.Errorf("%w: lock %s: %w", core.ErrSchema, class, err)
		}
		defer release()
	}

	exists, err := b.store.SchemaExists(ctx, class)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrSchema, err)
	}
	if exists {
		log.Debug("class already present", "class", class)
		return nil
	}

	log.Info("creating class", "class", class, "properties", len(b.schema.Properties))
	err = b.store.CreateSchema(ctx, b.schema)
	switch {
	case errors.Is(err, core.ErrAlreadyExists):
		log.Info("class created concurrently", "class", class)
		return nil
	case err != nil:
		return fmt.Errorf("%w: %w", core.ErrSchema, err)
	}
	return nil
}
