package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/docingest/internal/core"
	"github.com/markdave123-py/docingest/internal/models"
)

type mockStore struct {
	OnSchemaExists func(ctx context.Context, className string) (bool, error)
	OnCreateSchema func(ctx context.Context, schema models.IndexSchema) error
}

func (m *mockStore) SchemaExists(ctx context.Context, className string) (bool, error) {
	return m.OnSchemaExists(ctx, className)
}

func (m *mockStore) CreateSchema(ctx context.Context, schema models.IndexSchema) error {
	return m.OnCreateSchema(ctx, schema)
}

func (m *mockStore) BatchInsert(context.Context, []models.IndexObject) (int, error) { return 0, nil }

func (m *mockStore) Insert(context.Context, models.IndexObject) error { return nil }

var testSchema = DefaultSchema("Text", models.VectorizerConfig{Module: "text2vec-openai", Model: "text-embedding-3-large"})

// schemaServer answers the probe with probeStatus and counts create calls.
func schemaServer(t *testing.T, probeStatus int) (*WeaviateClient, *atomic.Int32, *atomic.Int32, *[]string) {
	t.Helper()
	var probes, creates atomic.Int32
	var createdProps []string
	var mu sync.Mutex

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/v1/schema/Text":
			probes.Add(1)
			w.WriteHeader(probeStatus)
		case r.Method == http.MethodPost && r.URL.Path == "/v1/schema":
			creates.Add(1)
			var body struct {
				Properties []models.IndexProperty `json:"properties"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			mu.Lock()
			for _, p := range body.Properties {
				createdProps = append(createdProps, p.Name)
			}
			mu.Unlock()
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusTeapot)
		}
	}))
	t.Cleanup(srv.Close)

	c, err := NewWeaviateClient(srv.URL, "wk", "ok", srv.Client())
	require.NoError(t, err)
	return c, &probes, &creates, &createdProps
}

func TestEnsureCreatesMissingClassOnce(t *testing.T) {
	c, probes, creates, props := schemaServer(t, http.StatusNotFound)
	b := NewSchemaBootstrapper(c, testSchema, nil)

	require.NoError(t, b.Ensure(context.Background()))
	require.NoError(t, b.Ensure(context.Background()))

	assert.Equal(t, int32(1), probes.Load())
	assert.Equal(t, int32(1), creates.Load())
	assert.Equal(t, []string{"text", "source", "blobType", "loc_lines_from", "loc_lines_to", "document_name", "chunk_index"}, *props)
}

func TestEnsureSkipsCreateWhenClassExists(t *testing.T) {
	c, probes, creates, _ := schemaServer(t, http.StatusOK)
	b := NewSchemaBootstrapper(c, testSchema, nil)

	require.NoError(t, b.Ensure(context.Background()))

	assert.Equal(t, int32(1), probes.Load())
	assert.Zero(t, creates.Load())
}

func TestEnsureFailsOnProbeError(t *testing.T) {
	c, _, creates, _ := schemaServer(t, http.StatusForbidden)
	b := NewSchemaBootstrapper(c, testSchema, nil)

	err := b.Ensure(context.Background())

	assert.ErrorIs(t, err, core.ErrSchema)
	assert.Zero(t, creates.Load())
}

func TestEnsureConcurrentCallersProbeOnce(t *testing.T) {
	c, probes, creates, _ := schemaServer(t, http.StatusNotFound)
	b := NewSchemaBootstrapper(c, testSchema, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, b.Ensure(context.Background()))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), probes.Load())
	assert.Equal(t, int32(1), creates.Load())
}

func TestEnsureAcceptsConcurrentCreation(t *testing.T) {
	store := &mockStore{
		OnSchemaExists: func(context.Context, string) (bool, error) { return false, nil },
		OnCreateSchema: func(context.Context, models.IndexSchema) error {
			return errors.Join(errors.New("409"), core.ErrAlreadyExists)
		},
	}
	b := NewSchemaBootstrapper(store, testSchema, nil)

	assert.NoError(t, b.Ensure(context.Background()))
}

func TestEnsureRetriesAfterFailure(t *testing.T) {
	var calls int
	store := &mockStore{
		OnSchemaExists: func(context.Context, string) (bool, error) { return false, nil },
		OnCreateSchema: func(context.Context, models.IndexSchema) error {
			calls++
			if calls == 1 {
				return errors.New("500 internal")
			}
			return nil
		},
	}
	b := NewSchemaBootstrapper(store, testSchema, nil)

	err := b.Ensure(context.Background())
	require.ErrorIs(t, err, core.ErrSchema)
	require.NoError(t, b.Ensure(context.Background()))
	require.NoError(t, b.Ensure(context.Background()))
	assert.Equal(t, 2, calls)
}
