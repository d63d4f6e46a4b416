package ingestion_engine

import (
	"fmt"
	"strings"

	"github.com/markdave123-py/docingest/internal/core"
)

// Chunker splits text into overlapping word windows.
//
// window:  words per chunk (e.g., 220).
// overlap: words shared by consecutive chunks (e.g., 40).
type Chunker struct {
	window  int
	overlap int
}

func NewChunker(window, overlap int) (*Chunker, error) {
	if window <= 0 {
		return nil, fmt.Errorf("%w: chunk window must be positive, got %d", core.ErrConfiguration, window)
	}
	if overlap < 0 || overlap >= window {
		return nil, fmt.Errorf("%w: chunk overlap %d must be in [0, %d)", core.ErrConfiguration, overlap, window)
	}
	return &Chunker{window: window, overlap: overlap}, nil
}

// Stride is the distance in words between the starts of two chunks.
func (c *Chunker) Stride() int { return c.window - c.overlap }

// Chunk returns the windows in order. Chunk i starts at word i*Stride().
// The last window ends at the last word; no window is emitted that lies
// entirely inside its predecessor.
func (c *Chunker) Chunk(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	stride := c.Stride()
	chunks := make([]string, 0, (len(words)+stride-1)/stride)
	for start := 0; start < len(words); start += stride {
		end := min(start+c.window, len(words))
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks
}
