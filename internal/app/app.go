package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/markdave123-py/docingest/internal/api/handlers"
	"github.com/markdave123-py/docingest/internal/config"
	"github.com/markdave123-py/docingest/internal/core"
	db "github.com/markdave123-py/docingest/internal/core/database"
	"github.com/markdave123-py/docingest/internal/core/ingestion_engine"
	"github.com/markdave123-py/docingest/internal/core/llm"
	objectclient "github.com/markdave123-py/docingest/internal/core/object-client"
	"github.com/markdave123-py/docingest/internal/core/vectorstore"
	"github.com/markdave123-py/docingest/internal/models"
	"github.com/markdave123-py/docingest/internal/services"
	"github.com/markdave123-py/docingest/pkg/logger"
)

var log = logger.NewLogger("app")

type App struct {
	Config    *config.Config
	Schema    *vectorstore.SchemaBootstrapper
	Ingestor  *ingestion_engine.Orchestrator
	Processor *ingestion_engine.BinaryProcessor
	Server    *Server

	closers []io.Closer
}

// NewApp validates the configuration and connects every dependency. Nothing
// is dialled when the configuration is incomplete.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	appCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	a := &App{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	dbClient, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, dbClient)
	log.Info("database initialized and ready")

	objClient, err := objectclient.NewS3Client(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	log.Info("object client initialized", "bucket", cfg.BucketName)

	provider, err := llm.NewProvider(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	if c, isCloser := provider.(io.Closer); isCloser {
		a.closers = append(a.closers, c)
	}
	log.Info("llm provider initialized", "provider", cfg.LLMProvider, "model", cfg.GenModel)

	store, err := vectorstore.NewWeaviateClient(cfg.WeaviateURL, cfg.WeaviateAPIKey, cfg.OpenAIAPIKey, nil)
	if err != nil {
		return nil, err
	}

	var locker core.Locker
	if cfg.RedisAddr != "" {
		rdb, err := vectorstore.NewRedisClient(appCtx, cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rdb)
		locker = vectorstore.NewRedisLocker(rdb, cfg.SchemaLockTTL)
		log.Info("schema bootstrap lock enabled", "redis", cfg.RedisAddr)
	}

	schema := vectorstore.DefaultSchema(cfg.IndexClassName, models.VectorizerConfig{
		Module:       cfg.Vectorizer,
		Model:        cfg.VectorizerModel,
		ModelVersion: cfg.VectorizerModelVersion,
	})
	a.Schema = vectorstore.NewSchemaBootstrapper(store, schema, locker)

	files := services.NewFileService(dbClient, objClient, cfg.BucketName)
	ingCfg := ingestion_engine.NewIngestConfig(cfg)

	a.Ingestor, err = ingestion_engine.NewOrchestrator(ingCfg, ingestion_engine.NewMetadataEnricher(provider), store, a.Schema, files)
	if err != nil {
		return nil, err
	}

	extractor := ingestion_engine.NewExtractorSet(provider, cfg.PDFStructured, cfg.OfficeConvert)
	a.Processor, err = ingestion_engine.NewBinaryProcessor(ingCfg, files, extractor, store, a.Schema)
	if err != nil {
		return nil, err
	}

	a.Server = NewServer(cfg, handlers.NewDocumentHandler(a.Ingestor, a.Processor))

	ok = true
	return a, nil
}

// Close releases the worker pool and every connection, newest first.
func (a *App) Close() error {
	if a.Processor != nil {
		a.Processor.Release()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, fmt.Errorf("close: %w", err))
		}
	}
	return errors.Join(errs...)
}
