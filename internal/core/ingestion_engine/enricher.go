package ingestion_engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/markdave123-py/docingest/internal/core"
	"github.com/markdave123-py/docingest/internal/core/payload"
	"github.com/markdave123-py/docingest/internal/metrics"
	"github.com/markdave123-py/docingest/internal/models"
)

const (
	previewRunes      = 500
	defaultCategory   = "General"
	defaultDepartment = "Support"
	dateLayout        = "2006-01-02"
)

const metadataPrompt = `Analyze this document and provide:
1. A brief title (max 10 words) that captures the essence
2. A category (1-2 words like "Technical", "Report", "Documentation", etc.)
3. A department (1-2 words like "Engineering", "Sales", "Support", etc.)

Document name: %s
Content preview: %s...

Respond ONLY with a JSON object in this format:
{"title": "...", "category": "...", "department": "..."}`

// EnrichResult is always usable. Degraded reports that at least one field
// came from the defaults, with Reason saying why.
type EnrichResult struct {
	Metadata models.DocumentMetadata
	Degraded bool
	Reason   string
}

// MetadataEnricher asks the LLM for a title, category and department.
type MetadataEnricher struct {
	llm core.LLMProvider
	now func() time.Time
}

func NewMetadataEnricher(llm core.LLMProvider) *MetadataEnricher {
	return &MetadataEnricher{llm: llm, now: time.Now}
}

// Enrich never fails. content is cut to the preview length here.
func (e *MetadataEnricher) Enrich(ctx context.Context, documentName, content string) EnrichResult {
	res := EnrichResult{Metadata: models.DocumentMetadata{
		Title:         documentName,
		Category:      defaultCategory,
		Department:    defaultDepartment,
		EffectiveDate: e.now().UTC().Format(dateLayout),
	}}

	if e.llm == nil {
		return e.degrade(documentName, res, "no llm provider")
	}

	raw, err := e.llm.Generate(ctx, "", fmt.Sprintf(metadataPrompt, documentName, preview(content, previewRunes)))
	if err != nil {
		return e.degrade(documentName, res, fmt.Sprintf("llm call failed: %v", err))
	}

	fields, err := parseMetadata(raw)
	if err != nil {
		return e.degrade(documentName, res, fmt.Sprintf("unparsable response: %v", err))
	}

	var missing []string
	take := func(key string, dst *string) {
		if v := strings.TrimSpace(fields[key]); v != "" {
			*dst = v
			return
		}
		missing = append(missing, key)
	}
	take("title", &res.Metadata.Title)
	take("category", &res.Metadata.Category)
	take("department", &res.Metadata.Department)

	if len(missing) > 0 {
		return e.degrade(documentName, res, "missing keys: "+strings.Join(missing, ", "))
	}
	return res
}

func (e *MetadataEnricher) degrade(documentName string, res EnrichResult, reason string) EnrichResult {
	res.Degraded = true
	res.Reason = reason
	metrics.IncrementEnrichmentDegraded()
	log.Warn("metadata enrichment fell back to defaults", "document", documentName, "reason", reason)
	return res
}

// parseMetadata accepts the object directly, fenced in markdown, or wrapped
// as a JSON string or {"content": ...}. Non-string values are ignored.
func parseMetadata(raw string) (map[string]string, error) {
	text := stripFences(raw)
	if p := payload.Decode([]byte(text)); p.Kind != payload.Unknown {
		text = stripFences(p.Text)
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(obj))
	for k, v := range obj {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
