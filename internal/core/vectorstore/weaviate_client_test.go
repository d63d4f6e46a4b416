package vectorstore

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/docingest/internal/core"
	"github.com/markdave123-py/docingest/internal/models"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *WeaviateClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewWeaviateClient(srv.URL, "wk", "ok", srv.Client())
	require.NoError(t, err)
	return c
}

func TestNormalizeURL(t *testing.T) {
	assert.Equal(t, "https://cluster.weaviate.network", NormalizeURL("cluster.weaviate.network/"))
	assert.Equal(t, "http://localhost:8080", NormalizeURL(" http://localhost:8080 "))
	assert.Equal(t, "https://x.io", NormalizeURL("https://x.io"))
}

func TestNewWeaviateClientRequiresCredentials(t *testing.T) {
	_, err := NewWeaviateClient("", "k", "", nil)
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

func TestSchemaExists(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    bool
		wantErr string
	}{
		{name: "missing", status: http.StatusNotFound, want: false},
		{name: "present", status: http.StatusOK, body: `{"class":"Text"}`, want: true},
		{name: "server error", status: http.StatusInternalServerError, body: `{"error":[{"message":"boom"}]}`, wantErr: "boom"},
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"message":"bad key"}`, wantErr: "bad key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "/v1/schema/Text", r.URL.Path)
				assert.Equal(t, "Bearer wk", r.Header.Get("Authorization"))
				assert.Empty(t, r.Header.Get("X-OpenAI-Api-Key"))
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			got, err := c.SchemaExists(context.Background(), "Text")
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCreateSchemaSendsClassDefinition(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/schema", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	})

	schema := DefaultSchema("Text", models.VectorizerConfig{
		Module: "text2vec-openai", Model: "text-embedding-3-large", ModelVersion: "ada-003",
	})
	require.NoError(t, c.CreateSchema(context.Background(), schema))

	assert.Equal(t, "Text", got["class"])
	assert.Equal(t, "Chunks of documents for RAG", got["description"])
	assert.Equal(t, "text2vec-openai", got["vectorizer"])
	assert.Equal(t, map[string]any{
		"text2vec-openai": map[string]any{
			"model": "text-embedding-3-large", "modelVersion": "ada-003", "type": "text",
		},
	}, got["moduleConfig"])

	props := got["properties"].([]any)
	require.Len(t, props, 7)
	var names []string
	for _, p := range props {
		names = append(names, p.(map[string]any)["name"].(string))
	}
	assert.Equal(t, []string{"text", "source", "blobType", "loc_lines_from", "loc_lines_to", "document_name", "chunk_index"}, names)
	assert.Equal(t, []any{"int"}, props[6].(map[string]any)["dataType"])
}

func TestCreateSchemaTreatsConflictAsAlreadyExists(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"conflict", http.StatusConflict, ``},
		{"unprocessable", http.StatusUnprocessableEntity, `{"error":[{"message":"class name \"Text\" already exists"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			err := c.CreateSchema(context.Background(), DefaultSchema("Text", models.VectorizerConfig{Module: "none"}))
			assert.ErrorIs(t, err, core.ErrAlreadyExists)
		})
	}
}

func TestCreateSchemaOtherFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":[{"message":"invalid dataType"}]}`)
	})
	err := c.CreateSchema(context.Background(), DefaultSchema("Text", models.VectorizerConfig{}))
	require.Error(t, err)
	assert.NotErrorIs(t, err, core.ErrAlreadyExists)
	assert.Contains(t, err.Error(), "invalid dataType")
}

func TestBatchInsert(t *testing.T) {
	var received struct {
		Objects []models.IndexObject `json:"objects"`
	}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/batch/objects", r.URL.Path)
		assert.Equal(t, "ok", r.Header.Get("X-OpenAI-Api-Key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_, _ = io.WriteString(w, `[
			{"result":{}},
			{"result":{"errors":{"error":[{"message":"vectorizer quota"}]}}}
		]`)
	})

	objs := []models.IndexObject{
		NewChunkObject("Text", "a", "upload", "text", "doc.txt", 0),
		NewChunkObject("Text", "b", "upload", "text", "doc.txt", 1),
	}
	rejected, err := c.BatchInsert(context.Background(), objs)

	require.NoError(t, err)
	assert.Equal(t, 1, rejected)
	require.Len(t, received.Objects, 2)
	assert.Equal(t, "Text", received.Objects[1].Class)
	assert.Equal(t, "b", received.Objects[1].Properties["text"])
	assert.EqualValues(t, 1, received.Objects[1].Properties["loc_lines_from"])
	assert.EqualValues(t, 2, received.Objects[1].Properties["loc_lines_to"])
	assert.EqualValues(t, 1, received.Objects[1].Properties["chunk_index"])
}

func TestBatchInsertRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, "overloaded")
	})
	_, err := c.BatchInsert(context.Background(), []models.IndexObject{NewChunkObject("Text", "a", "upload", "text", "d", 0)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "overloaded")
}

func TestBatchInsertEmptyIsNoop(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})
	rejected, err := c.BatchInsert(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, rejected)
}

func TestInsert(t *testing.T) {
	var got models.IndexObject
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/objects", r.URL.Path)
		assert.Equal(t, "ok", r.Header.Get("X-OpenAI-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"id":"abc"}`)
	})

	err := c.Insert(context.Background(), NewChunkObject("Text", "full text", "binary", "pdf", "a.pdf", 0))
	require.NoError(t, err)
	assert.Equal(t, "full text", got.Properties["text"])
	assert.Equal(t, "binary", got.Properties["source"])
}
