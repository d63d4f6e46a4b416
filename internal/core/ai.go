package core

import "context"

// LLMProvider is the completion service used for metadata enrichment and
// image OCR.
type LLMProvider interface {
	Generate(ctx context.Context, systemPrompt string, userPrompt string) (string, error)
	DescribeImage(ctx context.Context, image []byte, mimeType string, instruction string) (string, error)
}
