package ingestion_engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/markdave123-py/docingest/internal/core"
)

const OCRInstruction = "Extract all text from this image using OCR. If there is no text, describe what you see in the image. Return only the extracted text or description."

var _ core.DocumentExtractor = (*ImageExtractor)(nil)

// ImageExtractor asks a vision model to transcribe or describe an image.
type ImageExtractor struct {
	llm core.LLMProvider
}

func NewImageExtractor(llm core.LLMProvider) *ImageExtractor {
	return &ImageExtractor{llm: llm}
}

// ExtractText returns the model output verbatim.
func (e *ImageExtractor) ExtractText(ctx context.Context, data []byte, mimeType, fileName string) (core.ExtractedText, error) {
	if e.llm == nil {
		return core.ExtractedText{}, fmt.Errorf("%w: no vision provider for %s", core.ErrExtraction, fileName)
	}

	out, err := e.llm.DescribeImage(ctx, data, mimeType, OCRInstruction)
	if err != nil {
		return core.ExtractedText{}, fmt.Errorf("%w: image %s: %w", core.ErrExtraction, fileName, err)
	}
	if strings.TrimSpace(out) == "" {
		return core.ExtractedText{}, fmt.Errorf("%w: image %s: malformed response: empty message", core.ErrExtraction, fileName)
	}
	return core.ExtractedText{Text: out, Kind: KindImage}, nil
}
