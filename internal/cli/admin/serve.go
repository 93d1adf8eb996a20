package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/TheScouser/chatbox-sub000/internal/api/handlers"
	"github.com/TheScouser/chatbox-sub000/internal/config"
	"github.com/TheScouser/chatbox-sub000/internal/database"
	"github.com/TheScouser/chatbox-sub000/internal/domain"
	"github.com/TheScouser/chatbox-sub000/internal/jobs"
	"github.com/TheScouser/chatbox-sub000/internal/openai"
	"github.com/TheScouser/chatbox-sub000/internal/repository"
	"github.com/TheScouser/chatbox-sub000/internal/server"
	"github.com/TheScouser/chatbox-sub000/internal/service"
	"github.com/TheScouser/chatbox-sub000/internal/storage"
	"github.com/TheScouser/chatbox-sub000/internal/telemetry"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the chatbox API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize Sentry with tracing if SENTRY_DSN is set
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              dsn,
			Environment:      environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := database.NewPool(ctx, cfg.DatabaseURL, database.PoolConfig{})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	// Run migrations unless --no-migrate flag is set
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	chunkRepo := repository.NewKnowledgeChunkRepository(pool)
	convRepo := repository.NewConversationRepository(pool)
	usageRepo := repository.NewUsageRepository(pool)

	var documents service.DocumentFetcher = &noDocumentStorage{}
	if cfg.HasS3() {
		s3Config := storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		}
		s3Client, err := storage.NewS3Client(ctx, s3Config)
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		documents = s3Client
	}

	knowledgeSvc := service.NewKnowledgeService(chunkRepo, documents)
	knowledgeHandler := handlers.NewKnowledgeHandler(knowledgeSvc, chunkRepo)

	var chatHandler *handlers.ChatHandler
	var embeddingWorker *jobs.Worker
	if cfg.HasOpenAI() {
		aiClient := openai.NewClient(cfg.OpenAIAPIKey)

		batcher := service.NewEmbeddingBatcher(aiClient, chunkRepo)
		embeddingWorker = jobs.NewWorker(jobs.NewEmbeddingWorker(batcher), cfg.EmbedInterval)
		go embeddingWorker.Start(ctx)
		log.Println("embedding worker started")

		retriever := service.NewRetriever(aiClient, chunkRepo)

		opts := service.DefaultCompletionOptions()
		if cfg.ChatModel != "" {
			opts.Model = cfg.ChatModel
		}
		chatSvc := service.NewChatService(convRepo, retriever, aiClient, service.NewCreditQuota(usageRepo)).
			WithCompletionOptions(opts)

		chatHandler = handlers.NewChatHandler(chatSvc, retriever)
	} else {
		log.Println("OPENAI_API_KEY not set: chat and search endpoints disabled")
		chatHandler = handlers.NewChatHandler(&noChatService{}, &noSearchService{})
	}

	router := server.NewRouter(server.RouterConfig{
		KnowledgeHandler: knowledgeHandler,
		ChatHandler:      chatHandler,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	if embeddingWorker != nil {
		embeddingWorker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// noDocumentStorage rejects document ingestion when S3 is not configured.
type noDocumentStorage struct{}

func (s *noDocumentStorage) GetObjectText(ctx context.Context, key string) (string, error) {
	return "", fmt.Errorf("document storage not configured: S3_ENDPOINT required")
}

// noChatService rejects conversational turns when no completion provider is
// configured.
type noChatService struct{}

func (s *noChatService) GenerateResponse(ctx context.Context, input service.GenerateInput) (*service.GenerateResult, error) {
	return nil, fmt.Errorf("chat service not configured: OPENAI_API_KEY required")
}

type noSearchService struct{}

func (s *noSearchService) Retrieve(ctx context.Context, agentID, query string, limit int) ([]domain.RetrievalResult, error) {
	return nil, fmt.Errorf("search service not configured: OPENAI_API_KEY required")
}

func runMigrations(databaseURL string) error {
	// golang-migrate needs a database/sql connection
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
