package ingestion_engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/markdave123-py/docingest/internal/models"
)

func newTestEnricher(reply string, err error, prompt *string) *MetadataEnricher {
	e := NewMetadataEnricher(&fakeLLM{OnGenerate: func(_ context.Context, _, user string) (string, error) {
		if prompt != nil {
			*prompt = user
		}
		return reply, err
	}})
	e.now = fixedNow
	return e
}

func TestEnrichParsesResponse(t *testing.T) {
	for name, reply := range map[string]string{
		"plain":   `{"title": "Onboarding Guide", "category": "Documentation", "department": "HR"}`,
		"fenced":  "```json\n{\"title\": \"Onboarding Guide\", \"category\": \"Documentation\", \"department\": \"HR\"}\n```",
		"string":  `"{\"title\": \"Onboarding Guide\", \"category\": \"Documentation\", \"department\": \"HR\"}"`,
		"wrapped": `{"content": "{\"title\": \"Onboarding Guide\", \"category\": \"Documentation\", \"department\": \"HR\"}"}`,
	} {
		t.Run(name, func(t *testing.T) {
			res := newTestEnricher(reply, nil, nil).Enrich(context.Background(), "guide.md", "welcome")

			assert.False(t, res.Degraded, res.Reason)
			assert.Equal(t, models.DocumentMetadata{
				Title:         "Onboarding Guide",
				Category:      "Documentation",
				Department:    "HR",
				EffectiveDate: "2024-03-09",
			}, res.Metadata)
		})
	}
}

func TestEnrichFallsBackPerKey(t *testing.T) {
	res := newTestEnricher(`{"title": "  Runbook  ", "category": 7}`, nil, nil).Enrich(context.Background(), "ops.md", "x")

	assert.True(t, res.Degraded)
	assert.Contains(t, res.Reason, "category")
	assert.Contains(t, res.Reason, "department")
	assert.Equal(t, "Runbook", res.Metadata.Title)
	assert.Equal(t, "General", res.Metadata.Category)
	assert.Equal(t, "Support", res.Metadata.Department)
}

func TestEnrichDegradesToDefaults(t *testing.T) {
	cases := map[string]*MetadataEnricher{
		"llm error":   newTestEnricher("", errors.New("429"), nil),
		"not json":    newTestEnricher("Sure! Here is the metadata you asked for.", nil, nil),
		"no provider": func() *MetadataEnricher { e := NewMetadataEnricher(nil); e.now = fixedNow; return e }(),
	}
	for name, e := range cases {
		t.Run(name, func(t *testing.T) {
			res := e.Enrich(context.Background(), "notes.txt", "body")

			assert.True(t, res.Degraded)
			assert.NotEmpty(t, res.Reason)
			assert.Equal(t, models.DocumentMetadata{
				Title:         "notes.txt",
				Category:      "General",
				Department:    "Support",
				EffectiveDate: "2024-03-09",
			}, res.Metadata)
		})
	}
}

func TestEnrichPromptUsesPreview(t *testing.T) {
	var prompt string
	e := newTestEnricher(`{"title":"a","category":"b","department":"c"}`, nil, &prompt)

	e.Enrich(context.Background(), "long.txt", strings.Repeat("é", 600))

	assert.Contains(t, prompt, "Document name: long.txt")
	assert.Contains(t, prompt, "Content preview: "+strings.Repeat("é", 500)+"...")
	assert.NotContains(t, prompt, strings.Repeat("é", 501))
	assert.Contains(t, prompt, `{"title": "...", "category": "...", "department": "..."}`)
}
