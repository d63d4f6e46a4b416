package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/markdave123-py/docingest/internal/core"
	"github.com/markdave123-py/docingest/internal/core/payload"
	"github.com/markdave123-py/docingest/internal/metrics"
	"github.com/markdave123-py/docingest/internal/models"
	"github.com/markdave123-py/docingest/pkg/logger"
)

var log = logger.NewLogger("vectorstore")

const maxErrorBody = 4 << 10

var pooledTransport = &http.Transport{
	Proxy:               http.ProxyFromEnvironment,
	MaxIdleConns:        50,
	MaxIdleConnsPerHost: 10,
	IdleConnTimeout:     90 * time.Second,
}

// WeaviateClient talks to the Weaviate REST API.
type WeaviateClient struct {
	baseURL      string
	apiKey       string
	vectorizeKey string
	http         *http.Client
}

// NewWeaviateClient accepts a bare host ("cluster.weaviate.network") and
// assumes https in that case. vectorizeKey is forwarded as X-OpenAI-Api-Key so
// the store-side vectorizer can embed written objects.
func NewWeaviateClient(rawURL, apiKey, vectorizeKey string, httpClient *http.Client) (*WeaviateClient, error) {
	if rawURL == "" || apiKey == "" {
		return nil, fmt.Errorf("%w: weaviate url and api key are required", core.ErrConfiguration)
	}
	if httpClient == nil {
		httpClient = &http.Client{Transport: pooledTransport, Timeout: 2 * time.Minute}
	}
	return &WeaviateClient{
		baseURL:      NormalizeURL(rawURL),
		apiKey:       apiKey,
		vectorizeKey: vectorizeKey,
		http:         httpClient,
	}, nil
}

func NormalizeURL(raw string) string {
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	return raw
}

func (c *WeaviateClient) SchemaExists(ctx context.Context, className string) (bool, error) {
	resp, err := c.do(ctx, "schema_probe", http.MethodGet, "/v1/schema/"+url.PathEscape(className), nil, false)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case isSuccess(resp.StatusCode):
		return true, nil
	default:
		return false, fmt.Errorf("schema probe %s: %s", className, statusError(resp))
	}
}

type schemaBody struct {
	Class        string                    `json:"class"`
	Description  string                    `json:"description,omitempty"`
	Vectorizer   string                    `json:"vectorizer"`
	ModuleConfig map[string]map[string]any `json:"moduleConfig,omitempty"`
	Properties   []models.IndexProperty    `json:"properties"`
}

func newSchemaBody(s models.IndexSchema) schemaBody {
	body := schemaBody{
		Class:       s.ClassName,
		Description: s.Description,
		Vectorizer:  s.Vectorizer.Module,
		Properties:  s.Properties,
	}
	if s.Vectorizer.Module != "" && s.Vectorizer.Module != "none" {
		moduleCfg := map[string]any{}
		if s.Vectorizer.Model != "" {
			moduleCfg["model"] = s.Vectorizer.Model
		}
		if s.Vectorizer.ModelVersion != "" {
			moduleCfg["modelVersion"] = s.Vectorizer.ModelVersion
		}
		if s.Vectorizer.Type != "" {
			moduleCfg["type"] = s.Vectorizer.Type
		}
		body.ModuleConfig = map[string]map[string]any{s.Vectorizer.Module: moduleCfg}
	}
	return body
}

func (c *WeaviateClient) CreateSchema(ctx context.Context, schema models.IndexSchema) error {
	resp, err := c.do(ctx, "schema_create", http.MethodPost, "/v1/schema", newSchemaBody(schema), false)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if isSuccess(resp.StatusCode) {
		return nil
	}
	msg := readMessage(resp)
	if resp.StatusCode == http.StatusConflict || strings.Contains(strings.ToLower(msg), "already exists") {
		return fmt.Errorf("class %s: %w", schema.ClassName, core.ErrAlreadyExists)
	}
	return fmt.Errorf("create class %s: %d %s", schema.ClassName, resp.StatusCode, msg)
}

type batchResult struct {
	Result struct {
		Errors *struct {
			Error []struct {
				Message json.RawMessage `json:"message"`
			} `json:"error"`
		} `json:"errors"`
	} `json:"result"`
}

func (c *WeaviateClient) BatchInsert(ctx context.Context, objects []models.IndexObject) (int, error) {
	if len(objects) == 0 {
		return 0, nil
	}
	body := struct {
		Objects []models.IndexObject `json:"objects"`
	}{Objects: objects}

	resp, err := c.do(ctx, "batch_insert", http.MethodPost, "/v1/batch/objects", body, true)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return 0, fmt.Errorf("batch insert: %s", statusError(resp))
	}

	var results []batchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		// The batch was accepted; an unreadable body only costs us the
		// per-object report.
		log.Warn("unreadable batch response", "err", err)
		return 0, nil
	}

	rejected := 0
	for i, r := range results {
		if r.Result.Errors == nil || len(r.Result.Errors.Error) == 0 {
			continue
		}
		rejected++
		log.Warn("object rejected", "index", i, "reason", payload.Decode(r.Result.Errors.Error[0].Message).Text)
	}
	return rejected, nil
}

func (c *WeaviateClient) Insert(ctx context.Context, object models.IndexObject) error {
	resp, err := c.do(ctx, "object_insert", http.MethodPost, "/v1/objects", object, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return fmt.Errorf("insert object: %s", statusError(resp))
	}
	return nil
}

func (c *WeaviateClient) do(ctx context.Context, op, method, path string, body any, vectorize bool) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", op, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if vectorize && c.vectorizeKey != "" {
		req.Header.Set("X-OpenAI-Api-Key", c.vectorizeKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.CaptureExecutionMetrics("weaviate_"+op, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return resp, nil
}

func isSuccess(code int) bool { return code >= 200 && code < 300 }

func readMessage(resp *http.Response) string {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return payload.Message(raw)
}

func statusError(resp *http.Response) string {
	return fmt.Sprintf("%d %s", resp.StatusCode, readMessage(resp))
}

var _ core.VectorStore = (*WeaviateClient)(nil)
