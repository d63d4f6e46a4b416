package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	chimw "github.com/go-chi/chi/v5/middleware"

	middleware "github.com/markdave123-py/docingest/internal/api/middlewares"
	"github.com/markdave123-py/docingest/internal/core/ingestion_engine"
	"github.com/markdave123-py/docingest/internal/models"
	"github.com/markdave123-py/docingest/pkg/logger"
)

var log = logger.NewLogger("handlers")

// maxRequestBody bounds one JSON ingestion request, base64 included.
const maxRequestBody = 64 << 20

type DocumentHandler struct {
	ingestor  ingestion_engine.Ingestor
	processor ingestion_engine.BinaryPostProcessor
}

func NewDocumentHandler(ing ingestion_engine.Ingestor, proc ingestion_engine.BinaryPostProcessor) *DocumentHandler {
	return &DocumentHandler{ingestor: ing, processor: proc}
}

type ingestFileRequest struct {
	Name       string `json:"name"`
	Content    string `json:"content"`
	IsTextFile *bool  `json:"isTextFile,omitempty"`
	FileType   string `json:"fileType"`
	FileSize   int64  `json:"fileSize"`
}

type ingestRequest struct {
	Files []ingestFileRequest `json:"files"`
}

type ingestResponse struct {
	Message string `json:"message"`
	models.IngestResult
}

type processRequest struct {
	FileIDs []string `json:"fileIds"`
}

type processResponse struct {
	Message string                 `json:"message"`
	Files   []models.ProcessedFile `json:"files"`
}

// Ingest indexes text files and stores binaries for later processing.
func (h *DocumentHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Files) == 0 {
		writeError(w, http.StatusBadRequest, "No files provided")
		return
	}

	files := make([]models.IngestFile, 0, len(req.Files))
	var rejected []models.FailedFile
	for _, f := range req.Files {
		file, err := toIngestFile(f)
		if err != nil {
			log.Warn("rejecting file", "file", f.Name, "error", err)
			rejected = append(rejected, models.FailedFile{Name: f.Name, Error: err.Error()})
			continue
		}
		files = append(files, file)
	}

	owner := middleware.OwnerFromContext(r.Context())
	l := log.With("request_id", chimw.GetReqID(r.Context()))
	res := &models.IngestResult{TextFiles: []models.TextFileResult{}, BinaryFiles: []models.BinaryFileResult{}}
	if len(files) > 0 {
		out, err := h.ingestor.IngestFiles(r.Context(), owner, files)
		if err != nil {
			l.Error("ingestion failed", "owner", owner.ID, "error", err)
			writeError(w, errorStatus(err), err.Error())
			return
		}
		res = out
	}
	res.FailedFiles = append(rejected, res.FailedFiles...)

	l.Info("ingestion finished", "owner", owner.ID, "text", len(res.TextFiles), "binary", len(res.BinaryFiles), "failed", len(res.FailedFiles))
	writeJSON(w, http.StatusOK, ingestResponse{Message: "Files processed successfully", IngestResult: *res})
}

// ProcessBinary extracts and indexes previously stored binaries.
func (h *DocumentHandler) ProcessBinary(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.processor.ProcessBinaryFiles(r.Context(), middleware.OwnerFromContext(r.Context()), req.FileIDs)
	if err != nil {
		log.Error("binary processing failed", "request_id", chimw.GetReqID(r.Context()), "error", err)
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, processResponse{Message: "Binary files processed successfully", Files: res.Files})
}

// toIngestFile decodes one request entry. Text-ness is decided by the file
// extension; the client's flag is advisory.
func toIngestFile(f ingestFileRequest) (models.IngestFile, error) {
	isText := models.IsTextExtension(f.Name)
	if f.IsTextFile != nil && *f.IsTextFile != isText {
		log.Debug("client text flag overridden by extension", "file", f.Name, "client", *f.IsTextFile, "server", isText)
	}

	if isText {
		mime := f.FileType
		if mime == "" {
			mime = "text/plain"
		}
		return models.NewIngestFile(f.Name, []byte(f.Content), mime, f.FileSize), nil
	}

	data, err := decodeBase64(f.Content)
	if err != nil {
		return models.IngestFile{}, fmt.Errorf("invalid base64 content: %w", err)
	}
	mime := f.FileType
	if mime == "" || mime == "application/octet-stream" {
		mime = mimetype.Detect(data).String()
	}
	return models.NewIngestFile(f.Name, data, mime, f.FileSize), nil
}

// decodeBase64 accepts plain base64 or a data URL.
func decodeBase64(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		if _, payload, ok := strings.Cut(s, "base64,"); ok {
			s = payload
		}
	}
	s = strings.TrimSpace(s)
	if data, err := base64.StdEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// errorStatus maps empty requests to 400; every pipeline failure is a 500.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, ingestion_engine.ErrNoFiles),
		errors.Is(err, ingestion_engine.ErrNoFileIDs):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
