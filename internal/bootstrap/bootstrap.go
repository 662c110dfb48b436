package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/medical-rag-assistant/internal/config"
	"github.com/kirillkom/medical-rag-assistant/internal/core/domain"
	"github.com/kirillkom/medical-rag-assistant/internal/core/ports"
	"github.com/kirillkom/medical-rag-assistant/internal/core/usecase"
	"github.com/kirillkom/medical-rag-assistant/internal/infrastructure/chunking"
	"github.com/kirillkom/medical-rag-assistant/internal/infrastructure/embedding/hashing"
	"github.com/kirillkom/medical-rag-assistant/internal/infrastructure/extractor"
	"github.com/kirillkom/medical-rag-assistant/internal/infrastructure/fallback"
	"github.com/kirillkom/medical-rag-assistant/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/medical-rag-assistant/internal/infrastructure/llm/openai"
	"github.com/kirillkom/medical-rag-assistant/internal/infrastructure/llm/tokens"
	"github.com/kirillkom/medical-rag-assistant/internal/infrastructure/queue/nats"
	"github.com/kirillkom/medical-rag-assistant/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/medical-rag-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/medical-rag-assistant/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/medical-rag-assistant/internal/infrastructure/vector/memory"
	"github.com/kirillkom/medical-rag-assistant/internal/infrastructure/vector/pgvector"
	"github.com/kirillkom/medical-rag-assistant/internal/infrastructure/vector/qdrant"
)

const documentProcessTimeout = 5 * time.Minute

type Role int

const (
	// RoleAPI serves questions and, when enabled, accepts uploads.
	RoleAPI Role = iota
	// RoleWorker indexes uploaded documents.
	RoleWorker
	// RoleIndexer rebuilds the namespace from a directory.
	RoleIndexer
)

type Options struct {
	Role Role
	// OnBreakerChange is called for every circuit breaker transition in
	// addition to the warning log.
	OnBreakerChange func(operation, state string)
}

type App struct {
	Config config.Config

	Embedder ports.Embedder
	Store    ports.VectorStore
	Indexer  *usecase.IndexUseCase

	Chat   ports.ChatService
	Status ports.StatusReporter

	// Upload pipeline; nil unless uploads are enabled (API) or Role is RoleWorker.
	Queue     *nats.Queue
	Repo      ports.DocumentRepository
	IngestUC  ports.DocumentIngestor
	ProcessUC ports.DocumentProcessor

	closers []func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (app *App, err error) {
	validate := cfg.Validate
	if opts.Role != RoleAPI {
		validate = cfg.ValidateIndexing
	}
	if err := validate(); err != nil {
		return nil, err
	}

	app = &App{Config: cfg}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	listener := breakerListener(opts.OnBreakerChange)
	embedExec := newExecutor(resilience.DefaultConfig(), listener)
	vectorExec := newExecutor(resilience.DefaultConfig(), listener)

	var ollamaClient *ollama.Client
	if cfg.EmbedderBackend == config.EmbedderOllama || cfg.GeneratorBackend == config.GeneratorOllama {
		timeout := cfg.EmbedTimeout
		if cfg.GeneratorBackend == config.GeneratorOllama && cfg.GenerationTimeout > timeout {
			timeout = cfg.GenerationTimeout
		}
		ollamaClient = ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, timeout)
	}

	switch cfg.EmbedderBackend {
	case config.EmbedderHash:
		app.Embedder = hashing.New(cfg.HashEmbedDim)
	default:
		app.Embedder = ollama.NewEmbedder(ollamaClient)
	}

	if app.Store, err = app.openVectorStore(ctx, vectorExec); err != nil {
		return nil, err
	}

	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	app.Indexer = usecase.NewIndexUseCase(chunker, app.Embedder, app.Store, cfg.VectorNamespace, cfg.IndexBatchSize)

	if opts.Role == RoleAPI {
		genExec := newExecutor(resilience.DefaultConfig().WithoutRetry(), listener)
		if ollamaClient != nil {
			ollamaClient.WithResilience(embedExec, genExec)
		}
		if err := app.wireChat(ollamaClient, genExec); err != nil {
			return nil, err
		}
	} else if ollamaClient != nil {
		ollamaClient.WithResilience(embedExec, nil)
	}

	if opts.Role == RoleWorker || (opts.Role == RoleAPI && cfg.UploadsEnabled) {
		if err := app.wireUploads(ctx, listener); err != nil {
			return nil, err
		}
	}

	slog.Info("bootstrap_ready",
		"role", opts.Role.String(),
		"embedder", cfg.EmbedderBackend,
		"embed_model", app.Embedder.Model(),
		"vector_backend", cfg.VectorBackend,
		"namespace", cfg.VectorNamespace,
		"uploads", app.IngestUC != nil || app.ProcessUC != nil,
	)
	return app, nil
}

func (a *App) openVectorStore(ctx context.Context, exec *resilience.Executor) (ports.VectorStore, error) {
	cfg := a.Config
	switch cfg.VectorBackend {
	case config.VectorMemory:
		return memory.New(), nil
	case config.VectorPGVector:
		db, err := postgres.OpenDB(cfg.PGVectorDSN)
		if err != nil {
			return nil, fmt.Errorf("open pgvector: %w", err)
		}
		a.addCloser(func() { _ = db.Close() })
		store := pgvector.New(db, cfg.VectorNamespace).WithTimeout(cfg.VectorTimeout).WithResilience(exec)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure pgvector schema: %w", err)
		}
		return store, nil
	default:
		return qdrant.New(cfg.QdrantURL, cfg.VectorNamespace, cfg.VectorTimeout).WithResilience(exec), nil
	}
}

func (a *App) wireChat(ollamaClient *ollama.Client, genExec *resilience.Executor) error {
	cfg := a.Config

	var generator ports.Generator
	switch cfg.GeneratorBackend {
	case config.GeneratorOllama:
		generator = ollama.NewGenerator(ollamaClient, cfg.GeneratorTemperature, cfg.GeneratorMaxTokens)
	default:
		gen, err := openai.NewGenerator(openai.Config{
			BaseURL:     cfg.GeneratorBaseURL,
			APIKey:      cfg.GeneratorAPIKey,
			Model:       cfg.GeneratorModel,
			Temperature: cfg.GeneratorTemperature,
			MaxTokens:   cfg.GeneratorMaxTokens,
			Timeout:     cfg.GenerationTimeout,
		}, genExec)
		if err != nil {
			return err
		}
		generator = gen
	}

	responder, err := fallback.Load(cfg.FallbackKBPath)
	if err != nil {
		return fmt.Errorf("load fallback knowledge base: %w", err)
	}

	retriever := usecase.NewRetrieveUseCase(a.Embedder, a.Store)
	composer := usecase.NewComposeUseCase(generator, responder, tokens.NewCounter(cfg.TokenEncoding), usecase.ComposeOptions{
		GenerationTimeout: cfg.GenerationTimeout,
		MaxContextTokens:  cfg.MaxContextTokens,
	})
	a.Chat = usecase.NewChatUseCase(retriever, composer, cfg.RAGTopK)
	a.Status = usecase.NewStatusUseCase(map[string]usecase.Pinger{
		domain.ComponentEmbeddingService: a.Embedder,
		domain.ComponentVectorStore:      a.Store,
		domain.ComponentGenerationModel:  generator,
	}, cfg.HealthProbeTimeout)
	return nil
}

func (a *App) wireUploads(ctx context.Context, listener resilience.StateListener) error {
	cfg := a.Config

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	a.addCloser(func() { _ = db.Close() })
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return fmt.Errorf("init object storage: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		HandlerTimeout:     documentProcessTimeout,
		ResilienceExecutor: newExecutor(resilience.DefaultConfig(), listener),
	})
	if err != nil {
		return fmt.Errorf("init message queue: %w", err)
	}
	a.addCloser(queue.Close)

	a.Queue = queue
	a.Repo = repo
	a.IngestUC = usecase.NewIngestDocumentUseCase(repo, storage, queue, extractor.SupportedType)
	a.ProcessUC = usecase.NewProcessDocumentUseCase(repo, extractor.New(storage), a.Indexer)
	return nil
}

func (a *App) addCloser(fn func()) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (r Role) String() string {
	switch r {
	case RoleAPI:
		return "api"
	case RoleWorker:
		return "worker"
	case RoleIndexer:
		return "indexer"
	default:
		return "unknown"
	}
}

func newExecutor(cfg resilience.Config, listener resilience.StateListener) *resilience.Executor {
	exec := resilience.NewExecutor(cfg)
	exec.OnStateChange(listener)
	return exec
}

// breakerListener forwards transitions to observe. The executor already logs
// every transition.
func breakerListener(observe func(operation, state string)) resilience.StateListener {
	if observe == nil {
		return nil
	}
	return func(operation string, _, to gobreaker.State) {
		observe(operation, to.String())
	}
}
