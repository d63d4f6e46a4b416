package services

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/markdave123-py/docingest/internal/core"
	"github.com/markdave123-py/docingest/internal/models"
)

const anonymousPrefix = "anonymous"

// FileService owns the blob + record pair of every binary upload.
type FileService struct {
	db      core.DbClient
	storage core.ObjectClient
	bucket  string
	now     func() time.Time
}

func NewFileService(db core.DbClient, storage core.ObjectClient, bucket string) *FileService {
	return &FileService{db: db, storage: storage, bucket: bucket, now: time.Now}
}

// StoreBinary uploads the file and records it as pending extraction.
func (s *FileService) StoreBinary(ctx context.Context, owner models.Owner, file models.IngestFile) (*models.UploadedFileRecord, error) {
	key := s.objectKey(owner, file.Name)

	contentType := file.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if _, err := s.storage.UploadFile(ctx, s.bucket, key, file.RawContent, contentType); err != nil {
		return nil, storageErr(fmt.Sprintf("upload %s", file.Name), err)
	}

	rec := &models.UploadedFileRecord{
		ID:           uuid.NewString(),
		OwnerID:      owner.ID,
		FileName:     file.Name,
		MimeType:     contentType,
		ByteSize:     file.ByteSize,
		StoragePath:  key,
		IsTextFile:   false,
		RAGProcessed: false,
	}
	if err := s.db.CreateUploadedFile(ctx, rec); err != nil {
		return nil, storageErr(fmt.Sprintf("record %s", file.Name), err)
	}
	return rec, nil
}

func (s *FileService) Get(ctx context.Context, id string) (*models.UploadedFileRecord, error) {
	return s.db.GetUploadedFile(ctx, id)
}

func (s *FileService) Download(ctx context.Context, rec *models.UploadedFileRecord) ([]byte, error) {
	data, err := s.storage.GetFile(ctx, s.bucket, rec.StoragePath)
	if err != nil {
		return nil, storageErr(fmt.Sprintf("download %s", rec.StoragePath), err)
	}
	return data, nil
}

// SaveSidecar stores the extracted text next to the upload under the
// record owner's prefix and returns the storage path.
func (s *FileService) SaveSidecar(ctx context.Context, rec *models.UploadedFileRecord, requester models.Owner, text string) (string, error) {
	prefix := rec.OwnerID
	if prefix == "" {
		prefix = requester.ID
	}
	if prefix == "" {
		prefix = anonymousPrefix
	}
	key := path.Join(prefix, SidecarName(rec.FileName))

	if _, err := s.storage.UploadFile(ctx, s.bucket, key, []byte(text), "text/plain"); err != nil {
		return "", storageErr(fmt.Sprintf("sidecar %s", key), err)
	}
	return key, nil
}

func (s *FileService) MarkProcessed(ctx context.Context, id string) error {
	return s.db.MarkRAGProcessed(ctx, id)
}

// SidecarName swaps the last extension for ".txt".
func SidecarName(fileName string) string {
	base := cleanName(fileName)
	if ext := path.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	return base + ".txt"
}

// objectKey places owned files under the owner id and anonymous ones under a
// millisecond timestamp so they cannot collide.
func (s *FileService) objectKey(owner models.Owner, fileName string) string {
	name := cleanName(fileName)
	if owner.Anonymous() {
		return path.Join(anonymousPrefix, fmt.Sprintf("%d_%s", s.now().UnixMilli(), name))
	}
	return path.Join(owner.ID, name)
}

func cleanName(fileName string) string {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(fileName), "\\", "/"))
	if name == "." || name == "/" {
		return "file"
	}
	return name
}

func storageErr(op string, err error) error {
	if errors.Is(err, core.ErrStorage) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", core.ErrStorage, op, err)
}
