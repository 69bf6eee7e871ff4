// Package ragsvc provides the RAG Service server implementation.
package ragsvc

import (
	"context"
	"fmt"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/ragpipe/internal/rag/biz"
	"github.com/kart-io/ragpipe/internal/rag/handler"
	"github.com/kart-io/ragpipe/internal/rag/metadata"
	"github.com/kart-io/ragpipe/internal/rag/metrics"
	"github.com/kart-io/ragpipe/internal/rag/prompt"
	"github.com/kart-io/ragpipe/internal/rag/router"
	"github.com/kart-io/ragpipe/internal/rag/store"
	"github.com/kart-io/ragpipe/internal/rag/upload"
	"github.com/kart-io/ragpipe/pkg/component/milvus"
	"github.com/kart-io/ragpipe/pkg/component/mongodb"
	"github.com/kart-io/ragpipe/pkg/component/redis"
	"github.com/kart-io/ragpipe/pkg/infra/app"
	"github.com/kart-io/ragpipe/pkg/infra/pool"
	"github.com/kart-io/ragpipe/pkg/infra/server"
	"github.com/kart-io/ragpipe/pkg/llm"
	// 导入 LLM 供应商以自动注册
	_ "github.com/kart-io/ragpipe/pkg/llm/ollama"
	_ "github.com/kart-io/ragpipe/pkg/llm/openai"
	"github.com/kart-io/ragpipe/pkg/llm/resilience"
	llmopts "github.com/kart-io/ragpipe/pkg/options/llm"
	logopts "github.com/kart-io/ragpipe/pkg/options/logger"
	metadataopts "github.com/kart-io/ragpipe/pkg/options/metadata"
	middlewareopts "github.com/kart-io/ragpipe/pkg/options/middleware"
	milvusopts "github.com/kart-io/ragpipe/pkg/options/milvus"
	mongoopts "github.com/kart-io/ragpipe/pkg/options/mongodb"
	poolopts "github.com/kart-io/ragpipe/pkg/options/pool"
	qdrantopts "github.com/kart-io/ragpipe/pkg/options/qdrant"
	ragopts "github.com/kart-io/ragpipe/pkg/options/rag"
	redisopts "github.com/kart-io/ragpipe/pkg/options/redis"
	serveropts "github.com/kart-io/ragpipe/pkg/options/server"
	httpopts "github.com/kart-io/ragpipe/pkg/options/server/http"
	storageopts "github.com/kart-io/ragpipe/pkg/options/storage"
)

// Name is the name of the application.
const Name = "ragpipe"

// Config contains application-related configurations.
type Config struct {
	HTTPOptions       *httpopts.Options
	MiddlewareOptions *middlewareopts.Options
	LogOptions        *logopts.Options
	MilvusOptions     *milvusopts.Options
	QdrantOptions     *qdrantopts.Options
	RedisOptions      *redisopts.Options
	MongoOptions      *mongoopts.Options
	MetadataOptions   *metadataopts.Options
	StorageOptions    *storageopts.Options
	PoolOptions       *poolopts.Options
	EmbeddingOptions  *llmopts.ProviderOptions
	ChatOptions       *llmopts.ProviderOptions
	RAGOptions        *ragopts.Options
	QueryTimeout      time.Duration
	ParseTimeout      time.Duration
	ShutdownTimeout   time.Duration
}

// Server represents the RAG server.
type Server struct {
	srv *server.Manager
}

type closer struct {
	name string
	fn   server.CloseFunc
}

// NewServer initializes and returns a new Server instance.
func (cfg *Config) NewServer(ctx context.Context) (_ *Server, err error) {
	printBanner(cfg)

	// 1. 初始化日志
	cfg.LogOptions.AddInitialField("service.name", Name)
	cfg.LogOptions.AddInitialField("service.version", app.GetVersion())
	if err := cfg.LogOptions.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Starting RAG service...")

	// 初始化失败时按相反顺序释放已创建的资源
	var closers []closer
	defer func() {
		if err == nil {
			return
		}
		for i := len(closers) - 1; i >= 0; i-- {
			if cerr := closers[i].fn(context.Background()); cerr != nil {
				logger.Warnw("Failed to release resource", "name", closers[i].name, "error", cerr.Error())
			}
		}
	}()
	track := func(name string, fn server.CloseFunc) {
		closers = append(closers, closer{name: name, fn: fn})
	}

	// 2. 初始化元数据存储
	meta, err := cfg.newMetadataStore(ctx, track)
	if err != nil {
		return nil, err
	}

	// 3. 初始化上传文件存储
	files, err := upload.NewLocalStorage(cfg.StorageOptions.Dir, cfg.StorageOptions.MaxFileSize)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize upload storage: %w", err)
	}
	track("upload", func(context.Context) error { return files.Close() })
	logger.Infow("Upload storage initialized", "dir", files.Root())

	// 4. 初始化向量存储
	vectorStore, err := cfg.newVectorStore(ctx)
	if err != nil {
		return nil, err
	}
	track("vector-store", vectorStore.Close)
	logger.Infow("Vector store initialized", "backend", vectorStore.Name())

	// 5. 初始化 LLM 供应商
	embedProvider, err := llm.NewEmbeddingProvider(cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	embedProvider = resilience.WrapEmbedding(embedProvider, resilience.Config{
		Threshold: cfg.EmbeddingOptions.BreakerThreshold,
		Cooldown:  cfg.EmbeddingOptions.BreakerCooldown,
	})
	logger.Infow("Embedding provider initialized",
		"provider", cfg.EmbeddingOptions.Provider,
		"model", cfg.EmbeddingOptions.Model,
		"breaker_threshold", cfg.EmbeddingOptions.BreakerThreshold,
	)

	chatProvider, err := llm.NewChatProvider(cfg.ChatOptions.Provider, cfg.ChatOptions.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat provider: %w", err)
	}
	chatProvider = resilience.WrapChat(chatProvider, resilience.Config{
		Threshold: cfg.ChatOptions.BreakerThreshold,
		Cooldown:  cfg.ChatOptions.BreakerCooldown,
	})
	logger.Infow("Chat provider initialized",
		"provider", cfg.ChatOptions.Provider,
		"model", cfg.ChatOptions.Model,
		"breaker_threshold", cfg.ChatOptions.BreakerThreshold,
	)

	// 6. 初始化嵌入工作池
	embedPool, err := pool.NewPool("embedding", cfg.PoolOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize worker pool: %w", err)
	}
	track("pool", func(context.Context) error {
		embedPool.Release()
		return nil
	})

	// 7. 加载提示词
	prompts, err := prompt.New(cfg.RAGOptions.PromptFile, prompt.Prompts{
		SystemPrompt: cfg.RAGOptions.SystemPrompt,
		UserPrompt:   cfg.RAGOptions.UserPrompt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load prompts: %w", err)
	}
	if cfg.RAGOptions.PromptFile != "" {
		if err := prompts.Watch(); err != nil {
			return nil, fmt.Errorf("failed to watch prompt file: %w", err)
		}
		track("prompts", func(context.Context) error { return prompts.Close() })
	}

	// 8. 初始化 Biz 层
	ragMetrics := metrics.Default()
	generator := biz.NewGenerator(chatProvider, prompts, ragMetrics)
	retriever := biz.NewRetriever(vectorStore, embedProvider, generator, ragMetrics, &biz.RetrieverConfig{
		Collection: cfg.RAGOptions.Collection,
		TopK:       cfg.RAGOptions.TopK,
		FetchLimit: cfg.RAGOptions.FetchLimit,
	})
	indexer := biz.NewIndexer(biz.IndexerDeps{
		Store:    vectorStore,
		Embedder: embedProvider,
		Files:    files,
		Metadata: meta,
		Pool:     embedPool,
		Metrics:  ragMetrics,
	}, &biz.IndexerConfig{
		ChunkSize:    cfg.RAGOptions.ChunkSize,
		Collection:   cfg.RAGOptions.Collection,
		EmbeddingDim: cfg.RAGOptions.EmbeddingDim,
	})
	ragService := biz.NewRAGService(indexer, retriever)
	logger.Infow("RAG service initialized",
		"collection", cfg.RAGOptions.Collection,
		"chunk_size", cfg.RAGOptions.ChunkSize,
		"top_k", cfg.RAGOptions.TopK,
	)

	// 9. 初始化 Handler 层
	ragHandler := handler.NewRAGHandler(ragService,
		handler.WithTimeouts(cfg.QueryTimeout, cfg.ParseTimeout),
		handler.WithMetrics(ragMetrics),
	)

	// 10. 初始化服务器
	serverManager := server.NewManager(
		serveropts.WithHTTPOptions(cfg.HTTPOptions),
		serveropts.WithMiddleware(cfg.MiddlewareOptions),
		serveropts.WithShutdownTimeout(cfg.ShutdownTimeout),
	)

	// 11. 注册路由
	if err := router.Register(serverManager, ragHandler); err != nil {
		return nil, fmt.Errorf("failed to register routes: %w", err)
	}

	for _, c := range closers {
		serverManager.OnStop(c.name, c.fn)
	}

	logger.Info("RAG service is ready")
	return &Server{srv: serverManager}, nil
}

func (cfg *Config) newMetadataStore(ctx context.Context, track func(string, server.CloseFunc)) (metadata.Store, error) {
	switch cfg.MetadataOptions.Backend {
	case metadataopts.BackendRedis:
		client, err := redis.New(ctx, cfg.RedisOptions)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis: %w", err)
		}
		track("redis", func(context.Context) error { return client.Close() })
		logger.Infow("Metadata store initialized", "backend", "redis", "addr", cfg.RedisOptions.Addr())
		return metadata.NewRedisStore(client.Client(), cfg.MetadataOptions.KeyPrefix), nil
	case metadataopts.BackendMongo:
		client, err := mongodb.New(ctx, cfg.MongoOptions)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize mongodb: %w", err)
		}
		track("mongodb", func(context.Context) error { return client.Close() })
		s, err := metadata.NewMongoStore(ctx, client.Database(), cfg.MetadataOptions.Collection)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize metadata store: %w", err)
		}
		logger.Infow("Metadata store initialized", "backend", "mongo", "mongodb", cfg.MongoOptions.String())
		return s, nil
	default:
		s, err := metadata.OpenGorm(ctx, cfg.MetadataOptions.Driver, cfg.MetadataOptions.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize metadata store: %w", err)
		}
		track("metadata", func(context.Context) error { return s.Close() })
		logger.Infow("Metadata store initialized", "backend", "gorm", "driver", cfg.MetadataOptions.Driver)
		return s, nil
	}
}

func (cfg *Config) newVectorStore(ctx context.Context) (store.VectorStore, error) {
	switch cfg.RAGOptions.Store {
	case ragopts.StoreQdrant:
		s, err := store.NewQdrantStore(store.QdrantConfig{
			URL:     cfg.QdrantOptions.URL,
			APIKey:  cfg.QdrantOptions.APIKey,
			Timeout: cfg.QdrantOptions.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize qdrant: %w", err)
		}
		return s, nil
	case ragopts.StoreMemory:
		logger.Warn("Using the in-memory vector store, indexed chunks are lost on restart")
		return store.NewMemoryStore(), nil
	default:
		client, err := milvus.New(ctx, cfg.MilvusOptions)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize milvus: %w", err)
		}
		return store.NewMilvusStore(client), nil
	}
}

// Run starts the server and blocks until a termination signal arrives.
func (s *Server) Run(_ context.Context) error {
	return s.srv.Run()
}

func printBanner(cfg *Config) {
	fmt.Printf("Starting %s %s...\n", Name, app.GetVersion())
	fmt.Printf("  Vector store: %s (collection %s)\n", cfg.RAGOptions.Store, cfg.RAGOptions.Collection)
	fmt.Printf("  Embedding: %s (%s)\n", cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.Model)
	fmt.Printf("  Chat: %s (%s)\n", cfg.ChatOptions.Provider, cfg.ChatOptions.Model)
	fmt.Printf("  Metadata: %s\n", cfg.MetadataOptions.Backend)
}
