package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/docingest/internal/core"
	"github.com/markdave123-py/docingest/internal/core/vectorstore"
	"github.com/markdave123-py/docingest/internal/metrics"
	"github.com/markdave123-py/docingest/internal/models"
)

const sourceUpload = "upload"

var ErrNoFiles = errors.New("no files provided")

var _ Ingestor = (*Orchestrator)(nil)

// Orchestrator runs an ingestion request:
//
// text files:   parsed and chunked concurrently, then uploaded one file at a
//               time in input order, batch by batch.
// binary files: stored with a pending record for later post-processing.
type Orchestrator struct {
	cfg      *IngestConfig
	chunker  *Chunker
	enricher *MetadataEnricher
	store    core.VectorStore
	schema   SchemaEnsurer
	binaries BinaryStore
	now      func() time.Time
}

func NewOrchestrator(cfg *IngestConfig, enricher *MetadataEnricher, store core.VectorStore, schema SchemaEnsurer, binaries BinaryStore) (*Orchestrator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: ingest config is nil", core.ErrConfiguration)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	chunker, err := NewChunker(cfg.ChunkWindow, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	if enricher == nil {
		enricher = NewMetadataEnricher(nil)
	}
	return &Orchestrator{
		cfg:      cfg,
		chunker:  chunker,
		enricher: enricher,
		store:    store,
		schema:   schema,
		binaries: binaries,
		now:      time.Now,
	}, nil
}

// preparedFile is a text file ready for upload.
type preparedFile struct {
	name     string
	blobType string
	chunks   []models.Chunk
}

// IngestFiles indexes text files and stores binaries. A parse, schema or
// batch failure aborts the call; batches already sent stay indexed. Binary
// storage failures are reported per file in FailedFiles.
func (o *Orchestrator) IngestFiles(ctx context.Context, owner models.Owner, files []models.IngestFile) (*models.IngestResult, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	var texts, bins []models.IngestFile
	for _, f := range files {
		if strings.TrimSpace(f.Name) == "" || len(f.RawContent) == 0 {
			log.Warn("skipping file without name or content", "file", f.Name)
			metrics.RecordFile("upload", "skipped")
			continue
		}
		if f.IsTextFile {
			texts = append(texts, f)
		} else {
			bins = append(bins, f)
		}
	}

	result := &models.IngestResult{
		TextFiles:   []models.TextFileResult{},
		BinaryFiles: []models.BinaryFileResult{},
	}

	if len(texts) > 0 {
		if err := o.schema.Ensure(ctx); err != nil {
			return nil, err
		}

		prepared, err := o.prepareAll(ctx, owner, texts)
		if err != nil {
			return nil, err
		}

		for _, p := range prepared {
			if err := o.upload(ctx, p); err != nil {
				metrics.RecordFile("text", "failed")
				return nil, err
			}
			metrics.RecordFile("text", "indexed")
			log.Info("text file indexed", "file", p.name, "chunks", len(p.chunks))
			result.TextFiles = append(result.TextFiles, models.TextFileResult{Name: p.name, ChunkCount: len(p.chunks)})
		}
	}

	for _, f := range bins {
		rec, err := o.binaries.StoreBinary(ctx, owner, f)
		if err != nil {
			log.Error("binary store failed", "file", f.Name, "error", err)
			metrics.RecordFile("binary", "failed")
			result.FailedFiles = append(result.FailedFiles, models.FailedFile{Name: f.Name, Error: err.Error()})
			continue
		}
		metrics.RecordFile("binary", "stored")
		result.BinaryFiles = append(result.BinaryFiles, models.BinaryFileResult{
			ID:          rec.ID,
			Name:        rec.FileName,
			StoragePath: rec.StoragePath,
		})
	}

	return result, nil
}

// prepareAll parses and chunks text files concurrently, keeping input order.
func (o *Orchestrator) prepareAll(ctx context.Context, owner models.Owner, files []models.IngestFile) ([]preparedFile, error) {
	prepared := make([]preparedFile, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Workers)
	for i, f := range files {
		g.Go(func() error {
			p, err := o.prepare(gctx, owner, f)
			if err != nil {
				return err
			}
			prepared[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return prepared, nil
}

func (o *Orchestrator) prepare(ctx context.Context, owner models.Owner, f models.IngestFile) (preparedFile, error) {
	content := string(f.RawContent)
	blobType := blobTypeFor(f.Name)
	today := o.now().UTC().Format(dateLayout)

	var (
		blocks []block
		err    error
	)
	switch blobType {
	case BlobJSON:
		blocks, err = jsonBlocks(f.Name, content, today)
	case BlobCSV:
		blocks, err = csvBlocks(f.Name, content)
	default:
		res := o.enricher.Enrich(ctx, f.Name, content)
		blocks = []block{textBlock(owner.DisplayName(), content, res.Metadata)}
	}
	if err != nil {
		metrics.RecordFile("text", "parse_failed")
		return preparedFile{}, err
	}

	return preparedFile{
		name:     f.Name,
		blobType: blobType,
		chunks:   o.chunkBlocks(f.Name, blocks),
	}, nil
}

// chunkBlocks numbers chunks across the whole file.
func (o *Orchestrator) chunkBlocks(fileName string, blocks []block) []models.Chunk {
	var chunks []models.Chunk
	for _, b := range blocks {
		for j, text := range o.chunker.Chunk(b.text) {
			title := b.title
			if b.numbered && j > 0 {
				title = fmt.Sprintf("%s (Part %d)", b.title, j+1)
			}
			chunks = append(chunks, models.Chunk{
				Content:        text,
				Title:          title,
				SourceDocument: fileName,
				SequenceIndex:  len(chunks),
			})
		}
	}
	return chunks
}

// upload sends the chunks of one file in batches, strictly in order.
func (o *Orchestrator) upload(ctx context.Context, p preparedFile) error {
	size := o.cfg.BatchSize
	total := (len(p.chunks) + size - 1) / size

	for b := 0; b < total; b++ {
		start := b * size
		end := min(start+size, len(p.chunks))

		objs := make([]models.IndexObject, 0, end-start)
		for _, ch := range p.chunks[start:end] {
			objs = append(objs, vectorstore.NewChunkObject(o.cfg.ClassName, ch.Content, sourceUpload, p.blobType, p.name, ch.SequenceIndex))
		}

		log.Debug("uploading batch", "file", p.name, "batch", b+1, "total", total, "objects", len(objs))
		rejected, err := o.store.BatchInsert(ctx, objs)
		if err != nil {
			metrics.IncrementBatchFailures()
			return &core.BatchUploadError{Document: p.name, Batch: b + 1, Total: total, Err: err}
		}
		if rejected > 0 {
			log.Warn("vector store rejected objects", "file", p.name, "batch", b+1, "rejected", rejected)
		}
		metrics.AddChunksUploaded(len(objs) - rejected)
	}
	return nil
}
