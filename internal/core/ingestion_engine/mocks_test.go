package ingestion_engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/docingest/internal/core"
	"github.com/markdave123-py/docingest/internal/models"
)

var fixedNow = func() time.Time { return time.Date(2024, 3, 9, 23, 30, 0, 0, time.UTC) }

type fakeLLM struct {
	OnGenerate      func(ctx context.Context, system, user string) (string, error)
	OnDescribeImage func(ctx context.Context, image []byte, mimeType, instruction string) (string, error)
}

func (f *fakeLLM) Generate(ctx context.Context, system, user string) (string, error) {
	if f.OnGenerate == nil {
		return "", errors.New("generate not stubbed")
	}
	return f.OnGenerate(ctx, system, user)
}

func (f *fakeLLM) DescribeImage(ctx context.Context, image []byte, mimeType, instruction string) (string, error) {
	if f.OnDescribeImage == nil {
		return "", errors.New("describe not stubbed")
	}
	return f.OnDescribeImage(ctx, image, mimeType, instruction)
}

// fakeStore records accepted batches and single inserts.
type fakeStore struct {
	OnBatchInsert func(call int, objs []models.IndexObject) (int, error)
	OnInsert      func(obj models.IndexObject) error

	mu       sync.Mutex
	calls    int
	batches  [][]models.IndexObject
	inserted []models.IndexObject
}

func (f *fakeStore) SchemaExists(context.Context, string) (bool, error) { return true, nil }

func (f *fakeStore) CreateSchema(context.Context, models.IndexSchema) error { return nil }

func (f *fakeStore) BatchInsert(_ context.Context, objs []models.IndexObject) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.OnBatchInsert != nil {
		rejected, err := f.OnBatchInsert(f.calls, objs)
		if err != nil {
			return 0, err
		}
		f.batches = append(f.batches, objs)
		return rejected, nil
	}
	f.batches = append(f.batches, objs)
	return 0, nil
}

func (f *fakeStore) Insert(_ context.Context, obj models.IndexObject) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.OnInsert != nil {
		if err := f.OnInsert(obj); err != nil {
			return err
		}
	}
	f.inserted = append(f.inserted, obj)
	return nil
}

func (f *fakeStore) objects() []models.IndexObject {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.IndexObject
	for _, b := range f.batches {
		out = append(out, b...)
	}
	return out
}

type fakeSchema struct {
	err   error
	calls atomic.Int32
}

func (f *fakeSchema) Ensure(context.Context) error {
	f.calls.Add(1)
	return f.err
}

type fakeBinaries struct {
	OnStore func(owner models.Owner, file models.IngestFile) (*models.UploadedFileRecord, error)
}

func (f *fakeBinaries) StoreBinary(_ context.Context, owner models.Owner, file models.IngestFile) (*models.UploadedFileRecord, error) {
	return f.OnStore(owner, file)
}

// fakeFiles keeps records by id and blobs by storage path.
type fakeFiles struct {
	mu          sync.Mutex
	records     map[string]*models.UploadedFileRecord
	blobs       map[string][]byte
	sidecarErr  error
	sidecars    map[string]string
	marked      []string
	markErr     error
	lookups     map[string]int
	downloadErr map[string]error
}

func newFakeFiles(recs ...*models.UploadedFileRecord) *fakeFiles {
	f := &fakeFiles{
		records:     map[string]*models.UploadedFileRecord{},
		blobs:       map[string][]byte{},
		sidecars:    map[string]string{},
		lookups:     map[string]int{},
		downloadErr: map[string]error{},
	}
	for _, r := range recs {
		f.records[r.ID] = r
	}
	return f
}

func (f *fakeFiles) Get(_ context.Context, id string) (*models.UploadedFileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups[id]++
	r, ok := f.records[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (f *fakeFiles) Download(_ context.Context, rec *models.UploadedFileRecord) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.downloadErr[rec.StoragePath]; err != nil {
		return nil, err
	}
	b, ok := f.blobs[rec.StoragePath]
	if !ok {
		return nil, errors.New("no such key")
	}
	return b, nil
}

func (f *fakeFiles) SaveSidecar(_ context.Context, rec *models.UploadedFileRecord, _ models.Owner, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sidecarErr != nil {
		return "", f.sidecarErr
	}
	f.sidecars[rec.ID] = text
	return rec.OwnerID + "/" + rec.FileName + ".txt", nil
}

func (f *fakeFiles) MarkProcessed(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return f.markErr
	}
	f.marked = append(f.marked, id)
	if r, ok := f.records[id]; ok {
		r.RAGProcessed = true
	}
	return nil
}

func testConfig() *IngestConfig {
	return &IngestConfig{ChunkWindow: 220, ChunkOverlap: 40, BatchSize: 100, Workers: 3, ClassName: "Text"}
}

func newTestOrchestrator(t *testing.T, store *fakeStore, schema *fakeSchema, bins *fakeBinaries, llm *fakeLLM) *Orchestrator {
	t.Helper()
	if bins == nil {
		bins = &fakeBinaries{OnStore: func(models.Owner, models.IngestFile) (*models.UploadedFileRecord, error) {
			return nil, errors.New("unexpected binary")
		}}
	}
	var provider core.LLMProvider
	if llm != nil {
		provider = llm
	}
	enricher := NewMetadataEnricher(provider)
	enricher.now = fixedNow

	o, err := NewOrchestrator(testConfig(), enricher, store, schema, bins)
	require.NoError(t, err)
	o.now = fixedNow
	return o
}
