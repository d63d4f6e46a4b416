package ingestion_engine

import (
	"fmt"

	"github.com/markdave123-py/docingest/internal/config"
	"github.com/markdave123-py/docingest/internal/core"
	"github.com/markdave123-py/docingest/pkg/logger"
)

var log = logger.NewLogger("ingestion")

// IngestConfig tunes the pipeline.
//
// ChunkWindow:   words per chunk (e.g., 220).
// ChunkOverlap:  words shared by consecutive chunks (e.g., 40).
// BatchSize:     objects per vector-store batch request (e.g., 100).
// Workers:       files prepared or post-processed concurrently.
// ClassName:     vector-store class every object is written to.
type IngestConfig struct {
	ChunkWindow  int
	ChunkOverlap int
	BatchSize    int
	Workers      int
	ClassName    string
}

// NewIngestConfig copies the pipeline knobs out of the service config.
func NewIngestConfig(cfg *config.Config) *IngestConfig {
	return &IngestConfig{
		ChunkWindow:  cfg.ChunkWindow,
		ChunkOverlap: cfg.ChunkOverlap,
		BatchSize:    cfg.BatchSize,
		Workers:      cfg.ExtractWorkers,
		ClassName:    cfg.IndexClassName,
	}
}

func (c *IngestConfig) validate() error {
	invalid := &core.ConfigurationError{}
	if c.BatchSize <= 0 {
		invalid.Invalid = append(invalid.Invalid, fmt.Sprintf("BATCH_SIZE=%d", c.BatchSize))
	}
	if c.Workers <= 0 {
		invalid.Invalid = append(invalid.Invalid, fmt.Sprintf("EXTRACT_WORKERS=%d", c.Workers))
	}
	if c.ClassName == "" {
		invalid.Missing = append(invalid.Missing, "INDEX_CLASS_NAME")
	}
	if !invalid.Empty() {
		return invalid
	}
	return nil
}

// block is one independently chunked unit of a text file: a JSON item, a CSV
// row or a whole document.
//
// title:    title of the first chunk.
// text:     formatted text to chunk.
// numbered: later chunks get a "(Part N)" suffix.
type block struct {
	title    string
	text     string
	numbered bool
}
