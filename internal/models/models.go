package models

import (
	"path"
	"strings"
	"time"
)

// textExtensions is the allow-list that decides, once, whether an upload is
// ingested directly as text or stored as a binary for later extraction.
var textExtensions = map[string]struct{}{
	".txt": {}, ".md": {}, ".json": {}, ".jsonl": {}, ".csv": {}, ".xml": {},
	".yaml": {}, ".yml": {}, ".log": {}, ".js": {}, ".ts": {}, ".tsx": {},
	".html": {}, ".css": {},
}

// IsTextExtension reports whether name carries an allow-listed text extension.
func IsTextExtension(name string) bool {
	_, ok := textExtensions[strings.ToLower(path.Ext(name))]
	return ok
}

// Owner identifies who submitted a request. The zero value is anonymous.
type Owner struct {
	ID    string
	Email string
}

func (o Owner) Anonymous() bool { return o.ID == "" }

// DisplayName is the email local part, or "User".
func (o Owner) DisplayName() string {
	if local, _, ok := strings.Cut(o.Email, "@"); ok && local != "" {
		return local
	}
	return "User"
}

// IngestFile is one file of an ingestion request. Text files carry their raw
// text in RawContent; binary files carry the decoded bytes.
type IngestFile struct {
	Name       string
	RawContent []byte
	IsTextFile bool
	MimeType   string
	ByteSize   int64
}

// NewIngestFile classifies the file by extension. Callers must not flip
// IsTextFile afterwards.
func NewIngestFile(name string, content []byte, mimeType string, size int64) IngestFile {
	if size <= 0 {
		size = int64(len(content))
	}
	return IngestFile{
		Name:       name,
		RawContent: content,
		IsTextFile: IsTextExtension(name),
		MimeType:   mimeType,
		ByteSize:   size,
	}
}

// UploadedFileRecord tracks a binary upload until it is indexed.
type UploadedFileRecord struct {
	ID           string    `db:"id" json:"id"`
	OwnerID      string    `db:"user_id" json:"owner_id,omitempty"`
	FileName     string    `db:"file_name" json:"file_name"`
	MimeType     string    `db:"file_type" json:"file_type"`
	ByteSize     int64     `db:"file_size" json:"file_size"`
	StoragePath  string    `db:"storage_path" json:"storage_path"`
	IsTextFile   bool      `db:"is_text_file" json:"is_text_file"`
	RAGProcessed bool      `db:"rag_processed" json:"rag_processed"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Chunk is one window of a source document on its way to the index.
type Chunk struct {
	Content        string
	Title          string
	SourceDocument string
	SequenceIndex  int
}

// DocumentMetadata is attached to every chunk derived from one document.
type DocumentMetadata struct {
	Title         string `json:"title"`
	Category      string `json:"category"`
	Department    string `json:"department"`
	EffectiveDate string `json:"effective_date,omitempty"`
}

// IndexProperty is one column of the vector-store class.
type IndexProperty struct {
	Name        string   `json:"name"`
	DataType    []string `json:"dataType"`
	Description string   `json:"description,omitempty"`
}

// VectorizerConfig selects the store-side embedding module.
type VectorizerConfig struct {
	Module       string
	Model        string
	ModelVersion string
	Type         string
}

// IndexSchema is the class definition written on first use.
type IndexSchema struct {
	ClassName   string
	Description string
	Vectorizer  VectorizerConfig
	Properties  []IndexProperty
}

// IndexObject is one object sent to the vector store.
type IndexObject struct {
	Class      string         `json:"class"`
	Properties map[string]any `json:"properties"`
}

type TextFileResult struct {
	Name       string `json:"name"`
	ChunkCount int    `json:"chunkCount"`
}

type BinaryFileResult struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	StoragePath string `json:"storagePath"`
}

type FailedFile struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

type IngestResult struct {
	TextFiles   []TextFileResult   `json:"textFiles"`
	BinaryFiles []BinaryFileResult `json:"binaryFiles"`
	FailedFiles []FailedFile       `json:"failedFiles,omitempty"`
}

type ProcessedFile struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	SidecarName     string `json:"sidecarName"`
	ExtractedLength int    `json:"extractedLength"`
}

type ProcessResult struct {
	Files []ProcessedFile `json:"files"`
}
