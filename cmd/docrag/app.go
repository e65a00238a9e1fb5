package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docrag/internal/config"
	dbRedis "github.com/kailas-cloud/docrag/internal/db/redis"
	"github.com/kailas-cloud/docrag/internal/domain"
	"github.com/kailas-cloud/docrag/internal/domain/document"
	"github.com/kailas-cloud/docrag/internal/domain/search/filter"
	"github.com/kailas-cloud/docrag/internal/domain/vector"
	"github.com/kailas-cloud/docrag/internal/extract"
	"github.com/kailas-cloud/docrag/internal/metrics"
	"github.com/kailas-cloud/docrag/internal/repository/embcache"
	"github.com/kailas-cloud/docrag/internal/repository/record"
	mongorecord "github.com/kailas-cloud/docrag/internal/repository/record/mongo"
	redisrecord "github.com/kailas-cloud/docrag/internal/repository/record/redis"
	"github.com/kailas-cloud/docrag/internal/repository/record/sqlstore"
	qdrantvector "github.com/kailas-cloud/docrag/internal/repository/vector/qdrant"
	redisvector "github.com/kailas-cloud/docrag/internal/repository/vector/redis"
	miniostore "github.com/kailas-cloud/docrag/internal/transport/minio"
	ollamaclient "github.com/kailas-cloud/docrag/internal/transport/ollama"
	openaiclient "github.com/kailas-cloud/docrag/internal/transport/openai"
	answeruc "github.com/kailas-cloud/docrag/internal/usecase/answer"
	cataloguc "github.com/kailas-cloud/docrag/internal/usecase/catalog"
	deletionuc "github.com/kailas-cloud/docrag/internal/usecase/deletion"
	embeddinguc "github.com/kailas-cloud/docrag/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/docrag/internal/usecase/health"
	indexinguc "github.com/kailas-cloud/docrag/internal/usecase/indexing"
	reconcileuc "github.com/kailas-cloud/docrag/internal/usecase/reconcile"
)

// recordStore is the union of what the use cases need from a metadata driver.
type recordStore interface {
	Create(ctx context.Context, doc *document.Document) error
	Save(ctx context.Context, doc *document.Document) error
	Get(ctx context.Context, id string) (document.Document, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, q record.ListQuery) (record.Page, error)
}

// vectorIndex is the union of what the use cases need from a vector driver.
type vectorIndex interface {
	UpsertBatch(ctx context.Context, recs []vector.Record) (int, error)
	Upsert(ctx context.Context, rec vector.Record) error
	DeleteByFilter(ctx context.Context, expr filter.Expression) (int, error)
	Search(ctx context.Context, vec []float32, topK int, expr filter.Expression) ([]vector.Hit, error)
	DocumentIDs(ctx context.Context) ([]string, error)
}

// app is the composition root: every store, provider and use case, built once.
type app struct {
	cfg    config.Config
	logger *zap.Logger

	redis   *dbRedis.Store
	records recordStore
	vectors vectorIndex
	objects *miniostore.Store

	docEmbedder   domain.Embedder
	queryEmbedder domain.Embedder
	generator     domain.Generator

	health  *healthuc.Service
	closers []func()
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, health: healthuc.New()}

	metrics.RegisterModelMetrics()
	metrics.RegisterIndexingMetrics()

	steps := []func(context.Context) error{
		a.connectRedis,
		a.connectRecords,
		a.connectVectors,
		a.connectObjects,
		a.buildModels,
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			a.close()
			return nil, err
		}
	}
	logger.Info("Dependencies ready", zap.Strings("components", a.health.Names()))
	return a, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *app) connectRedis(ctx context.Context) error {
	rc := a.cfg.Redis
	if len(rc.Addrs) == 0 {
		return nil
	}
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    rc.Addrs,
		Username: rc.Username,
		Password: rc.Password,
		DB:       rc.DB,
	})
	if err != nil {
		return fmt.Errorf("create redis store: %w", err)
	}
	a.closers = append(a.closers, store.Close)

	if err := store.WaitForReady(ctx, time.Duration(rc.ReadinessTimeout)*time.Second); err != nil {
		return fmt.Errorf("redis not ready: %w", err)
	}
	a.redis = store
	a.health.Require("redis", store)
	a.logger.Info("Connected to redis", zap.Strings("addrs", rc.Addrs))
	return nil
}

func (a *app) connectRecords(ctx context.Context) error {
	rc := a.cfg.Records
	switch rc.Driver {
	case "redis":
		repo := redisrecord.New(a.redis, a.cfg.Redis.KeyPrefix)
		if err := repo.EnsureIndex(ctx); err != nil {
			return fmt.Errorf("ensure record index: %w", err)
		}
		a.records = repo
	case "postgres", "sqlite":
		store, err := sqlstore.Open(ctx, sqlstore.Dialect(rc.Driver), rc.DSN)
		if err != nil {
			return fmt.Errorf("open record store: %w", err)
		}
		a.closers = append(a.closers, func() { _ = store.Close() })
		a.health.Require("records", store)
		a.records = store
	case "mongo":
		repo, err := mongorecord.Connect(ctx, rc.DSN, rc.Database)
		if err != nil {
			return fmt.Errorf("connect record store: %w", err)
		}
		a.closers = append(a.closers, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = repo.Close(closeCtx)
		})
		if err := repo.EnsureIndex(ctx); err != nil {
			return fmt.Errorf("ensure record index: %w", err)
		}
		a.health.Require("records", repo)
		a.records = repo
	default:
		return fmt.Errorf("unknown records driver %q", rc.Driver)
	}
	a.logger.Info("Record store ready", zap.String("driver", rc.Driver))
	return nil
}

func (a *app) connectVectors(ctx context.Context) error {
	vc := a.cfg.VectorIndex
	switch vc.Driver {
	case "redis":
		repo := redisvector.New(a.redis, a.cfg.Redis.KeyPrefix, vc.Dimensions, redisvector.HNSWConfig{
			M:              vc.HNSWM,
			EFConstruction: vc.HNSWEFConstruct,
		})
		if err := repo.EnsureIndex(ctx); err != nil {
			return fmt.Errorf("ensure vector index: %w", err)
		}
		a.vectors = repo
	case "qdrant":
		repo, err := qdrantvector.Dial(vc.QdrantAddr, vc.Collection, vc.Dimensions)
		if err != nil {
			return fmt.Errorf("dial qdrant: %w", err)
		}
		a.closers = append(a.closers, func() { _ = repo.Close() })
		if err := repo.EnsureIndex(ctx); err != nil {
			return fmt.Errorf("ensure vector index: %w", err)
		}
		a.health.Require("vector_index", repo)
		a.vectors = repo
	default:
		return fmt.Errorf("unknown vector driver %q", vc.Driver)
	}
	a.logger.Info("Vector index ready", zap.String("driver", vc.Driver), zap.Int("dimensions", vc.Dimensions))
	return nil
}

func (a *app) connectObjects(ctx context.Context) error {
	oc := a.cfg.ObjectStore
	store, err := miniostore.New(&miniostore.Config{
		Endpoint:      oc.Endpoint,
		AccessKey:     oc.AccessKey,
		SecretKey:     oc.SecretKey,
		Bucket:        oc.Bucket,
		Region:        oc.Region,
		Secure:        oc.Secure,
		PublicBaseURL: oc.PublicBaseURL,
		PresignTTL:    time.Duration(oc.PresignTTLSec) * time.Second,
		Logger:        a.logger,
	})
	if err != nil {
		return fmt.Errorf("create object store: %w", err)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}
	a.objects = store
	a.health.Require("object_store", store)
	return nil
}

// buildModels assembles the embedding chains and the generator.
// Indexing: provider -> dimension guard -> cache -> retry -> instrumented.
// Queries use the same chain with a single attempt.
func (a *app) buildModels(context.Context) error {
	ec := a.cfg.Embedding
	base, err := a.baseEmbedder()
	if err != nil {
		return err
	}
	var inner domain.Embedder = domain.NewDimensionGuard(base, a.cfg.VectorIndex.Dimensions)
	if ec.CacheTTLSec > 0 && a.redis != nil {
		inner = embcache.New(inner, a.redis, embcache.Config{
			Prefix: a.cfg.Redis.KeyPrefix,
			Model:  ec.Model,
			TTL:    time.Duration(ec.CacheTTLSec) * time.Second,
		}, metrics.EmbeddingCacheTotal, a.logger)
	}

	retry := embeddinguc.RetryConfig{
		AttemptTimeout: time.Duration(ec.TimeoutSec) * time.Second,
		MaxAttempts:    ec.MaxAttempts,
		Backoff:        time.Duration(ec.BackoffMs) * time.Millisecond,
		RateLimit:      ec.RateLimitRPS,
		Burst:          ec.RateBurst,
	}
	a.docEmbedder = embeddinguc.NewInstrumentedEmbedder(
		embeddinguc.NewResilientEmbedder(inner, retry, a.logger), ec.Provider, ec.Model, a.logger)

	retry.MaxAttempts = 1
	a.queryEmbedder = embeddinguc.NewInstrumentedEmbedder(
		embeddinguc.NewResilientEmbedder(inner, retry, a.logger), ec.Provider, ec.Model, a.logger)

	if hc, ok := base.(domain.HealthChecker); ok {
		a.health.Optional("embedding", healthuc.PingFunc(hc.HealthCheck))
	}

	gen, err := a.buildGenerator()
	if err != nil {
		return err
	}
	a.generator = gen

	a.logger.Info("Models ready",
		zap.String("embedding_provider", ec.Provider),
		zap.String("embedding_model", ec.Model),
		zap.String("generation_provider", a.cfg.Generation.Provider),
		zap.String("generation_model", a.cfg.Generation.Model),
	)
	return nil
}

func (a *app) baseEmbedder() (domain.Embedder, error) {
	ec := a.cfg.Embedding
	timeout := time.Duration(ec.TimeoutSec) * time.Second
	switch ec.Provider {
	case "ollama":
		c, err := ollamaclient.New(&ollamaclient.Config{
			BaseURL: ec.BaseURL, Model: ec.Model, Timeout: timeout, Logger: a.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create ollama embedder: %w", err)
		}
		return c, nil
	default:
		return openaiclient.NewEmbedder(&openaiclient.Config{
			APIKey:     ec.APIKey,
			BaseURL:    ec.BaseURL,
			Model:      ec.Model,
			Dimensions: ec.Dimensions,
			Timeout:    timeout,
			Provider:   ec.Provider,
			Logger:     a.logger,
		}), nil
	}
}

func (a *app) buildGenerator() (domain.Generator, error) {
	gc := a.cfg.Generation
	timeout := time.Duration(gc.TimeoutSec) * time.Second
	switch gc.Provider {
	case "ollama":
		c, err := ollamaclient.New(&ollamaclient.Config{
			BaseURL: gc.BaseURL, Model: gc.Model, Timeout: timeout, Logger: a.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create ollama generator: %w", err)
		}
		return c, nil
	default:
		return openaiclient.NewGenerator(&openaiclient.Config{
			APIKey:   gc.APIKey,
			BaseURL:  gc.BaseURL,
			Model:    gc.Model,
			Timeout:  timeout,
			Provider: gc.Provider,
			Logger:   a.logger,
		}), nil
	}
}

func (a *app) deletion() *deletionuc.Service {
	return deletionuc.New(a.records, a.vectors, a.objects)
}

func (a *app) indexing() *indexinguc.Service {
	return indexinguc.New(a.records, a.objects, a.vectors, extract.Default(), a.docEmbedder, indexinguc.Config{
		Concurrency:    a.cfg.Indexing.Concurrency,
		UpsertTimeout:  a.cfg.UpsertTimeout(),
		MaxUploadBytes: a.cfg.HTTP.MaxUploadBytes,
	}).WithRemover(a.deletion())
}

func (a *app) answer() *answeruc.Service {
	return answeruc.New(a.records, a.vectors, a.queryEmbedder, a.generator).
		WithTopK(a.cfg.Indexing.TopK).
		WithGenerateOptions(domain.GenerateOptions{
			MaxTokens:   a.cfg.Generation.MaxTokens,
			Temperature: a.cfg.Generation.Temperature,
		})
}

func (a *app) catalog() *cataloguc.Service {
	return cataloguc.New(a.records, a.objects)
}

func (a *app) reconciler() *reconcileuc.Service {
	return reconcileuc.New(a.records, a.vectors)
}
