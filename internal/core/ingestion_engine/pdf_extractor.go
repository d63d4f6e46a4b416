package ingestion_engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dslipak/pdf"

	"github.com/markdave123-py/docingest/internal/core"
)

// readableRun matches the stretches of a raw PDF stream that look like prose.
var readableRun = regexp.MustCompile(`[a-zA-Z0-9\s.,!?;:'"()\-]{10,}`)

const pageTimeout = 10 * time.Second

var _ core.DocumentExtractor = (*PDFExtractor)(nil)

// PDFExtractor pulls readable text out of PDF bytes. The byte heuristic is
// best-effort: it finds literal text runs and does not decode compressed
// content streams.
type PDFExtractor struct {
	// Structured tries a real PDF parse first and falls back to the
	// heuristic when it yields nothing.
	Structured bool
}

func (e *PDFExtractor) ExtractText(ctx context.Context, data []byte, _ string, fileName string) (core.ExtractedText, error) {
	if e.Structured {
		text, err := structuredPDFText(ctx, data)
		switch {
		case err != nil:
			log.Debug("structured pdf parse failed, using heuristic", "file", fileName, "error", err)
		case text != "":
			return core.ExtractedText{Text: text, Kind: KindPDF}, nil
		}
	}

	text := heuristicPDFText(data)
	if text == "" {
		return core.ExtractedText{}, fmt.Errorf("%w: no readable text in %s", core.ErrExtraction, fileName)
	}
	return core.ExtractedText{Text: text, Kind: KindPDF}, nil
}

// heuristicPDFText keeps printable ASCII plus line breaks and joins every
// readable run of at least ten characters.
func heuristicPDFText(data []byte) string {
	filtered := make([]byte, len(data))
	for i, c := range data {
		if (c >= 32 && c <= 126) || c == '\n' || c == '\r' {
			filtered[i] = c
		} else {
			filtered[i] = ' '
		}
	}

	var runs []string
	for _, line := range strings.Split(string(filtered), "\n") {
		runs = append(runs, readableRun.FindAllString(line, -1)...)
	}
	return strings.TrimSpace(strings.Join(runs, " "))
}

// structuredPDFText reads every page with dslipak/pdf. Pages that fail or
// hang are skipped.
func structuredPDFText(ctx context.Context, data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := protectExtract(ctx, page)
		if err != nil {
			log.Debug("skipping pdf page", "page", i, "error", err)
			continue
		}
		b.WriteString(content)
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String()), nil
}

// protectExtract bounds a single page read; the parser can spin on broken
// content streams.
func protectExtract(ctx context.Context, page pdf.Page) (string, error) {
	type result struct {
		content string
		err     error
	}
	resChan := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				resChan <- result{err: fmt.Errorf("page panic: %v", r)}
			}
		}()
		content, err := page.GetPlainText(nil)
		resChan <- result{content, err}
	}()

	select {
	case r := <-resChan:
		return r.content, r.err
	case <-time.After(pageTimeout):
		return "", errors.New("page extraction timeout")
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
