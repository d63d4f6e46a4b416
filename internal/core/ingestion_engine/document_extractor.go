package ingestion_engine

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"code.sajari.com/docconv"

	"github.com/markdave123-py/docingest/internal/core"
)

// Extractor kinds, also written as the blobType of post-processed objects.
const (
	KindPDF      = "pdf"
	KindImage    = "image"
	KindDocument = "document"
)

// minOfficeText is the length a decoded office file must exceed to be used
// as is instead of the placeholder.
const minOfficeText = 100

var (
	_ core.DocumentExtractor = (*ExtractorSet)(nil)
	_ core.DocumentExtractor = (*OfficeExtractor)(nil)
)

// Classify maps a MIME type to an extractor kind by substring match.
func Classify(mimeType string) (string, bool) {
	m := strings.ToLower(mimeType)
	switch {
	case strings.Contains(m, "pdf"):
		return KindPDF, true
	case strings.Contains(m, "image"):
		return KindImage, true
	case strings.Contains(m, "word"),
		strings.Contains(m, "document"),
		strings.Contains(m, "presentation"),
		strings.Contains(m, "spreadsheet"):
		return KindDocument, true
	}
	return "", false
}

// ExtractorSet dispatches to the extractor matching the MIME type.
type ExtractorSet struct {
	PDF    core.DocumentExtractor
	Image  core.DocumentExtractor
	Office core.DocumentExtractor
}

func NewExtractorSet(llm core.LLMProvider, pdfStructured, officeConvert bool) *ExtractorSet {
	return &ExtractorSet{
		PDF:    &PDFExtractor{Structured: pdfStructured},
		Image:  NewImageExtractor(llm),
		Office: &OfficeExtractor{Convert: officeConvert},
	}
}

func (s *ExtractorSet) ExtractText(ctx context.Context, data []byte, mimeType, fileName string) (core.ExtractedText, error) {
	kind, ok := Classify(mimeType)
	if !ok {
		return core.ExtractedText{}, fmt.Errorf("%w: %q for %s", core.ErrUnsupportedType, mimeType, fileName)
	}

	var ex core.DocumentExtractor
	switch kind {
	case KindPDF:
		ex = s.PDF
	case KindImage:
		ex = s.Image
	default:
		ex = s.Office
	}
	if ex == nil {
		return core.ExtractedText{}, fmt.Errorf("%w: no %s extractor configured", core.ErrUnsupportedType, kind)
	}

	out, err := ex.ExtractText(ctx, data, mimeType, fileName)
	if err != nil {
		return core.ExtractedText{}, err
	}
	out.Kind = kind
	return out, nil
}

// OfficeExtractor reads Word, presentation and spreadsheet files. It never
// fails: when nothing usable comes out it returns a placeholder marked
// Degraded.
type OfficeExtractor struct {
	// Convert runs docconv before the printable-text fallback.
	Convert bool
}

func (e *OfficeExtractor) ExtractText(_ context.Context, data []byte, mimeType, fileName string) (core.ExtractedText, error) {
	if e.Convert {
		text, err := convertDocument(data, mimeType)
		switch {
		case err != nil:
			log.Debug("docconv failed, using printable fallback", "file", fileName, "mime", mimeType, "error", err)
		case len(text) > minOfficeText:
			return core.ExtractedText{Text: text, Kind: KindDocument}, nil
		}
	}

	if text := printableText(data); len(text) > minOfficeText {
		return core.ExtractedText{Text: text, Kind: KindDocument}, nil
	}

	log.Warn("office extraction degraded to placeholder", "file", fileName)
	return core.ExtractedText{
		Text:     fmt.Sprintf("Document: %s (Basic text extraction - may not capture all content)", fileName),
		Kind:     KindDocument,
		Degraded: true,
	}, nil
}

// convertDocument runs docconv, turning its panics on malformed archives into
// errors.
func convertDocument(data []byte, mimeType string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("docconv panic: %v", r)
		}
	}()

	res, err := docconv.Convert(bytes.NewReader(data), mimeType, false)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Body), nil
}

// printableText decodes data as UTF-8, tolerating invalid sequences, and
// replaces everything outside printable ASCII and newline with a space.
func printableText(data []byte) string {
	var b strings.Builder
	b.Grow(len(data))
	for _, r := range string(data) {
		if r == '\n' || (r >= 0x20 && r <= 0x7e) {
			b.WriteRune(r)
			continue
		}
		b.WriteByte(' ')
	}
	return strings.TrimSpace(b.String())
}
