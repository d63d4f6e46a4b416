package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/panjf2000/ants/v2"

	"github.com/markdave123-py/docingest/internal/core"
	"github.com/markdave123-py/docingest/internal/core/vectorstore"
	"github.com/markdave123-py/docingest/internal/metrics"
	"github.com/markdave123-py/docingest/internal/models"
	"github.com/markdave123-py/docingest/internal/services"
)

const sourceBinary = "binary"

var ErrNoFileIDs = errors.New("no file ids provided")

var _ BinaryPostProcessor = (*BinaryProcessor)(nil)

// BinaryProcessor extracts, indexes and flags stored binaries. Files are
// independent: one failing file is logged and left out of the result.
type BinaryProcessor struct {
	files     BinaryFiles
	extractor core.DocumentExtractor
	store     core.VectorStore
	schema    SchemaEnsurer
	className string
	pool      *ants.Pool
	locks     keyedMutex

	// ids indexed in this process whose processed flag could not be written.
	unflaggedMu sync.Mutex
	unflagged   map[string]struct{}
}

func NewBinaryProcessor(cfg *IngestConfig, files BinaryFiles, extractor core.DocumentExtractor, store core.VectorStore, schema SchemaEnsurer) (*BinaryProcessor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: ingest config is nil", core.ErrConfiguration)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	pool, err := ants.NewPool(cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("worker pool: %w", err)
	}
	return &BinaryProcessor{
		files:     files,
		extractor: extractor,
		store:     store,
		schema:    schema,
		className: cfg.ClassName,
		pool:      pool,
		locks:     keyedMutex{locks: map[string]*refMutex{}},
		unflagged: map[string]struct{}{},
	}, nil
}

// Release stops the worker pool.
func (p *BinaryProcessor) Release() {
	p.pool.Release()
}

// ProcessBinaryFiles handles each distinct id once. The result keeps request
// order and omits ids that could not be processed.
func (p *BinaryProcessor) ProcessBinaryFiles(ctx context.Context, requester models.Owner, ids []string) (*models.ProcessResult, error) {
	ids = dedupeIDs(ids)
	if len(ids) == 0 {
		return nil, ErrNoFileIDs
	}
	if err := p.schema.Ensure(ctx); err != nil {
		return nil, err
	}

	results := make([]*models.ProcessedFile, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			results[i] = p.processOne(ctx, requester, id)
		})
		if err != nil {
			wg.Done()
			log.Error("could not schedule file", "id", id, "error", err)
			metrics.RecordBinaryProcessed("scheduling_failed")
		}
	}
	wg.Wait()

	out := &models.ProcessResult{Files: []models.ProcessedFile{}}
	for _, r := range results {
		if r != nil {
			out.Files = append(out.Files, *r)
		}
	}
	log.Info("binary processing finished", "requested", len(ids), "processed", len(out.Files))
	return out, nil
}

func (p *BinaryProcessor) processOne(ctx context.Context, requester models.Owner, id string) *models.ProcessedFile {
	unlock := p.locks.Lock(id)
	defer unlock()

	l := log.With("id", id)
	skip := func(outcome, msg string, args ...any) *models.ProcessedFile {
		l.Warn(msg, args...)
		metrics.RecordBinaryProcessed(outcome)
		return nil
	}

	rec, err := p.files.Get(ctx, id)
	if err != nil {
		return skip("lookup_failed", "file record lookup failed", "error", err)
	}
	if rec == nil {
		return skip("missing", "file record not found")
	}
	if rec.RAGProcessed {
		return skip("already_processed", "file already processed", "file", rec.FileName)
	}
	if p.isUnflagged(id) {
		if err := p.files.MarkProcessed(ctx, id); err != nil {
			return skip("mark_failed", "processed flag still not written", "file", rec.FileName, "error", err)
		}
		p.setUnflagged(id, false)
		return skip("already_processed", "file already indexed, processed flag written", "file", rec.FileName)
	}

	data, err := p.files.Download(ctx, rec)
	if err != nil {
		return skip("download_failed", "download failed", "file", rec.FileName, "error", err)
	}

	out, err := p.extractor.ExtractText(ctx, data, rec.MimeType, rec.FileName)
	switch {
	case errors.Is(err, core.ErrUnsupportedType):
		return skip("unsupported", "unsupported file type", "file", rec.FileName, "mime", rec.MimeType)
	case err != nil:
		return skip("extraction_failed", "extraction failed", "file", rec.FileName, "error", err)
	case strings.TrimSpace(out.Text) == "":
		return skip("empty", "extraction produced no text", "file", rec.FileName)
	}
	if out.Degraded {
		l.Warn("indexing degraded extraction", "file", rec.FileName)
	}

	sidecar := services.SidecarName(rec.FileName)
	if _, err := p.files.SaveSidecar(ctx, rec, requester, out.Text); err != nil {
		l.Warn("sidecar not saved", "file", rec.FileName, "error", err)
	}

	obj := vectorstore.NewChunkObject(p.className, out.Text, sourceBinary, out.Kind, rec.FileName, 0)
	if err := p.store.Insert(ctx, obj); err != nil {
		return skip("index_failed", "index insert failed", "file", rec.FileName, "error", err)
	}

	if err := p.files.MarkProcessed(ctx, id); err != nil {
		p.setUnflagged(id, true)
		l.Error("indexed but not flagged processed", "file", rec.FileName, "error", err)
		metrics.RecordBinaryProcessed("mark_failed")
	} else {
		metrics.RecordBinaryProcessed("indexed")
		l.Info("binary file indexed", "file", rec.FileName, "kind", out.Kind)
	}
	return &models.ProcessedFile{
		ID:              rec.ID,
		Name:            rec.FileName,
		SidecarName:     sidecar,
		ExtractedLength: utf8.RuneCountInString(out.Text),
	}
}

func (p *BinaryProcessor) isUnflagged(id string) bool {
	p.unflaggedMu.Lock()
	defer p.unflaggedMu.Unlock()
	_, ok := p.unflagged[id]
	return ok
}

func (p *BinaryProcessor) setUnflagged(id string, pending bool) {
	p.unflaggedMu.Lock()
	defer p.unflaggedMu.Unlock()
	if pending {
		p.unflagged[id] = struct{}{}
	} else {
		delete(p.unflagged, id)
	}
}

func dedupeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// keyedMutex serialises work on the same file id across concurrent calls.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
