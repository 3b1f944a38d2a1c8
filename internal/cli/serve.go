package cli

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

	"github.com/chirp-labs/chirp/internal/api/handlers"
	"github.com/chirp-labs/chirp/internal/config"
	"github.com/chirp-labs/chirp/internal/database"
	"github.com/chirp-labs/chirp/internal/jobs"
	chirpopenai "github.com/chirp-labs/chirp/internal/openai"
	"github.com/chirp-labs/chirp/internal/repository"
	"github.com/chirp-labs/chirp/internal/scrape"
	"github.com/chirp-labs/chirp/internal/server"
	"github.com/chirp-labs/chirp/internal/service"
	"github.com/chirp-labs/chirp/internal/telemetry"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	openai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"
)

const sweepInterval = 10 * time.Minute

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the chirp API server on the specified port",
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

	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              dsn,
			Environment:      environment,
			TracesSampleRate: sampleRate,
			Debug:            cfg.Debug,
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

	if !cfg.HasOpenAI() {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if cfg.AdminPassword == "" {
		return fmt.Errorf("ADMIN_PASSWORD is required")
	}

	pool, err := database.NewPoolFromURL(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	botRepo := repository.NewBotRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)
	conversationRepo := repository.NewConversationRepository(pool)
	sessionRepo := repository.NewAdminSessionRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	aiClient := chirpopenai.NewClientWithConfig(chirpopenai.Config{
		APIKey:         cfg.OpenAIAPIKey,
		EmbeddingModel: openai.EmbeddingModel(cfg.EmbeddingModel),
		ChatModel:      cfg.ChatModel,
	})

	scraper := scrape.New(scrape.Config{MaxWords: cfg.MaxScrapeWords})

	authSvc, err := service.NewAuthService(sessionRepo, botRepo, cfg.AdminUsername, cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("failed to create auth service: %w", err)
	}

	botSvc := service.NewBotService(botRepo, &service.DefaultUUIDGenerator{}, cfg.MessageLimitDefault)
	ingestionSvc := service.NewIngestionService(botRepo, scraper, aiClient, txRunner, chunkRepo)
	retriever := service.NewRetriever(aiClient, chunkRepo)
	limiter := service.NewRateLimiter(time.Minute, 10)
	chatSvc := service.NewChatService(
		authSvc,
		botRepo,
		conversationRepo,
		limiter,
		retriever,
		service.NewPromptBuilder(),
		&generatorAdapter{client: aiClient},
	)

	sweeper := jobs.NewSweeper(chunkRepo, sessionRepo, limiter)
	sweepWorker := jobs.NewWorker(sweeper, sweepInterval)
	go sweepWorker.Start(ctx)
	log.Println("sweep worker started")

	routerCfg := server.RouterConfig{
		SessionValidator: authSvc,
		CORSOrigins:      cfg.CORSOriginsList(),
		AuthHandler:      handlers.NewAuthHandler(authSvc),
		BotHandler:       handlers.NewBotHandler(botSvc, ingestionSvc),
		ChatHandler:      handlers.NewChatHandler(chatSvc),
		PublicHandler:    handlers.NewPublicHandler(botSvc),
	}

	router := server.NewRouter(routerCfg)

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

	sweepWorker.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// generatorAdapter bridges the chat service's message type to the OpenAI
// client so the service package stays free of SDK types.
type generatorAdapter struct {
	client *chirpopenai.Client
}

func (g *generatorAdapter) Stream(ctx context.Context, messages []service.ChatMessage, onDelta func(string) error) error {
	converted := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		converted[i] = openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		}
	}
	return g.client.StreamChat(ctx, converted, onDelta)
}

func runMigrations(databaseURL string) error {
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
