package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConfiguration   = errors.New("configuration error")
	ErrParse           = errors.New("parse error")
	ErrExtraction      = errors.New("extraction error")
	ErrSchema          = errors.New("schema error")
	ErrBatchUpload     = errors.New("batch upload error")
	ErrStorage         = errors.New("storage error")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrAlreadyExists   = errors.New("already exists")
)

// ConfigurationError lists every missing or invalid setting found in one pass.
type ConfigurationError struct {
	Missing []string
	Invalid []string
}

func (e *ConfigurationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid "+strings.Join(e.Invalid, ", "))
	}
	return fmt.Sprintf("configuration error: %s", strings.Join(parts, "; "))
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// Empty reports whether no problem was recorded.
func (e *ConfigurationError) Empty() bool {
	return len(e.Missing) == 0 && len(e.Invalid) == 0
}

// BatchUploadError names the batch the vector store rejected. Batches before
// it stay committed.
type BatchUploadError struct {
	Document string
	Batch    int
	Total    int
	Err      error
}

func (e *BatchUploadError) Error() string {
	return fmt.Sprintf("batch upload error: %s batch %d/%d: %v", e.Document, e.Batch, e.Total, e.Err)
}

func (e *BatchUploadError) Is(target error) bool { return target == ErrBatchUpload }

func (e *BatchUploadError) Unwrap() error { return e.Err }
