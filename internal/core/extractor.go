package core

import "context"

// ExtractedText is the result of turning a stored binary into plain text.
//
// Kind is the coarse family that produced it ("pdf", "image", "document").
// Degraded marks best-effort output such as the office placeholder.
type ExtractedText struct {
	Text     string
	Kind     string
	Degraded bool
}

// DocumentExtractor converts raw file bytes into text. fileName is only used
// for messages and placeholders.
type DocumentExtractor interface {
	ExtractText(ctx context.Context, data []byte, mimeType string, fileName string) (ExtractedText, error)
}
