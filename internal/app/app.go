package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"hireflow/internal/config"
	"hireflow/internal/util"
	"hireflow/pkg/ai"
	"hireflow/pkg/queue"
	"hireflow/pkg/storage"
	"hireflow/pkg/store"
)

// App wires the recruitment pipeline: resume intake, index building,
// matching and journey tracking.
type App struct {
	store     store.Store
	objects   storage.ObjectStore
	queue     *queue.RedisJobQueue
	embedder  ai.Embedder
	extractor *ai.ProfileExtractor
	parser    *Parser

	chunkSize        int
	chunkOverlap     int
	topK             int
	embedBatchSize   int
	embedConcurrency int
	maxUploadBytes   int64
}

// Options allows tests to inject fakes in place of external services.
type Options struct {
	Store     store.Store
	Objects   storage.ObjectStore
	Queue     *queue.RedisJobQueue
	Embedder  ai.Embedder
	Generator ai.TextGenerator
}

// New constructs the application from config, creating any dependency not
// supplied through opts. Queue workers start immediately when a queue is
// available.
func New(cfg config.FileConfig, opts Options) (*App, error) {
	dataStore := opts.Store
	if dataStore == nil {
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL, store.WithEmbeddingDim(cfg.EmbeddingDim))
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}

	objects := opts.Objects
	if objects == nil {
		var err error
		objects, err = storage.NewMinioStore(
			cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			return nil, fmt.Errorf("init object store: %w", err)
		}
	}

	embedder := opts.Embedder
	if embedder == nil {
		ollama := ai.NewOllamaClient(cfg.EmbeddingBaseURL)
		embedder = ai.NewOllamaEmbedder(ollama, cfg.EmbeddingModel, cfg.EmbeddingDim)
	}

	generator := opts.Generator
	if generator == nil {
		provider := strings.ToLower(strings.TrimSpace(cfg.GenerationProvider))
		switch provider {
		case "", "ollama":
			ollama := ai.NewOllamaClient(cfg.GenerationBaseURL)
			generator = ai.NewOllamaGenerator(ollama, cfg.GenerationModel)
		case "openai":
			generator = ai.NewOpenAICompatGenerator(
				cfg.GenerationBaseURL, cfg.GenerationAPIKey, cfg.GenerationModel,
				cfg.GenerationTemperature, cfg.GenerationMaxTokens,
				time.Duration(cfg.GenerationTimeoutSeconds)*time.Second)
		default:
			return nil, fmt.Errorf("unknown generation provider: %s", provider)
		}
	}
	extractor := ai.NewProfileExtractor(generator, time.Duration(cfg.GenerationTimeoutSeconds)*time.Second)

	var ocr *OCREngine
	if cfg.OCREnabled {
		engine, err := NewOCREngine(cfg.OCRLanguage, time.Duration(cfg.OCRTimeoutSeconds)*time.Second)
		if err != nil {
			return nil, fmt.Errorf("init ocr: %w", err)
		}
		ocr = engine
	}

	app := &App{
		store:            dataStore,
		objects:          objects,
		queue:            opts.Queue,
		embedder:         embedder,
		extractor:        extractor,
		parser:           NewParser(ocr),
		chunkSize:        cfg.ChunkSize,
		chunkOverlap:     cfg.ChunkOverlap,
		topK:             cfg.TopK,
		embedBatchSize:   cfg.EmbeddingBatchSize,
		embedConcurrency: cfg.EmbeddingConcurrency,
		maxUploadBytes:   cfg.MaxUploadBytes,
	}

	if app.queue == nil {
		q, err := queue.NewRedisJobQueue(queue.RedisQueueConfig{
			Addr:       cfg.RedisAddr,
			Password:   cfg.RedisPassword,
			Stream:     cfg.QueueStream,
			Group:      cfg.QueueGroup,
			Consumer:   util.NewID(),
			MaxRetries: cfg.QueueMaxRetries,
			RetryDelay: time.Duration(cfg.QueueRetryDelayMS) * time.Millisecond,
		})
		if err != nil {
			return nil, err
		}
		app.queue = q
	}
	app.startWorkers(cfg.QueueConcurrency)
	return app, nil
}

// MaxUploadBytes is the request body limit for uploads.
func (a *App) MaxUploadBytes() int64 {
	return a.maxUploadBytes
}

func (a *App) startWorkers(concurrency int) {
	a.queue.Start(context.Background(), concurrency, func(ctx context.Context, job queue.JobStatus) error {
		return a.BuildIndex(ctx, job.ResumeID)
	})
}

// IndexJob returns the status of one index-build job.
func (a *App) IndexJob(jobID string) (queue.JobStatus, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	status, ok, err := a.queue.GetJob(ctx, jobID)
	if err != nil || !ok {
		return queue.JobStatus{}, false
	}
	return status, true
}
