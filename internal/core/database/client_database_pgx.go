package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/markdave123-py/docingest/internal/config"
	"github.com/markdave123-py/docingest/internal/core"
	"github.com/markdave123-py/docingest/internal/metrics"
	"github.com/markdave123-py/docingest/internal/models"
	"github.com/markdave123-py/docingest/pkg/logger"
)

var log = logger.NewLogger("database")

type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (*DatabaseClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("%w: DATABASE_URL is empty", core.ErrConfiguration)
	}

	dsn, err := withSSL(cfg.DatabaseURL, cfg.SslCertPath)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

// withSSL pins the server certificate when a CA path is configured.
func withSSL(databaseURL, certPath string) (string, error) {
	if certPath == "" {
		return databaseURL, nil
	}
	if _, err := os.Stat(certPath); err != nil {
		return "", fmt.Errorf("%w: ssl cert not accessible at %q: %w", core.ErrConfiguration, certPath, err)
	}
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", fmt.Errorf("%w: invalid DATABASE_URL: %w", core.ErrConfiguration, err)
	}
	q := u.Query()
	q.Set("sslmode", "verify-ca")
	q.Set("sslrootcert", certPath)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *DatabaseClient) CreateUploadedFile(ctx context.Context, rec *models.UploadedFileRecord) error {
	if rec == nil {
		return errors.New("nil uploaded file record")
	}
	const q = `
		INSERT INTO uploaded_files
			(id, user_id, file_name, file_type, file_size, storage_path, is_text_file, rag_processed, created_at, updated_at)
		VALUES
			($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, now(), now())
		RETURNING created_at, updated_at
	`
	start := time.Now()
	err := c.db.QueryRowContext(ctx, q,
		rec.ID, rec.OwnerID, rec.FileName, rec.MimeType, rec.ByteSize, rec.StoragePath, rec.IsTextFile, rec.RAGProcessed,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
	metrics.CaptureExecutionMetrics("postgres_insert", time.Since(start))
	return err
}

func (c *DatabaseClient) GetUploadedFile(ctx context.Context, id string) (*models.UploadedFileRecord, error) {
	const q = `
		SELECT id, COALESCE(user_id, ''), file_name, file_type, file_size, storage_path, is_text_file, rag_processed, created_at, updated_at
		FROM uploaded_files
		WHERE id = $1
	`
	var r models.UploadedFileRecord
	start := time.Now()
	err := c.db.QueryRowContext(ctx, q, id).Scan(
		&r.ID, &r.OwnerID, &r.FileName, &r.MimeType, &r.ByteSize, &r.StoragePath, &r.IsTextFile, &r.RAGProcessed, &r.CreatedAt, &r.UpdatedAt,
	)
	metrics.CaptureExecutionMetrics("postgres_select", time.Since(start))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// MarkRAGProcessed flips the flag once. Marking an already processed row is a
// no-op; an unknown id is an error.
func (c *DatabaseClient) MarkRAGProcessed(ctx context.Context, id string) error {
	const q = `
		UPDATE uploaded_files
		SET rag_processed = true, updated_at = now()
		WHERE id = $1 AND rag_processed = false
	`
	res, err := c.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		var exists bool
		if err := c.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM uploaded_files WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("uploaded file not found: %s", id)
		}
	}
	return nil
}

var _ core.DbClient = (*DatabaseClient)(nil)
