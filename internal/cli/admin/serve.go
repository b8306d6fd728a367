package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloo-solutions/ticketassist/internal/api/handlers"
	"github.com/cloo-solutions/ticketassist/internal/config"
	"github.com/cloo-solutions/ticketassist/internal/database"
	"github.com/cloo-solutions/ticketassist/internal/events"
	"github.com/cloo-solutions/ticketassist/internal/hashembed"
	"github.com/cloo-solutions/ticketassist/internal/jobs"
	"github.com/cloo-solutions/ticketassist/internal/logging"
	"github.com/cloo-solutions/ticketassist/internal/memstore"
	"github.com/cloo-solutions/ticketassist/internal/migrations"
	"github.com/cloo-solutions/ticketassist/internal/openai"
	"github.com/cloo-solutions/ticketassist/internal/repository"
	"github.com/cloo-solutions/ticketassist/internal/server"
	"github.com/cloo-solutions/ticketassist/internal/service"
	"github.com/cloo-solutions/ticketassist/internal/storage"
	"github.com/cloo-solutions/ticketassist/internal/telemetry"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the ticketassist API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (overrides TICKETASSIST_PORT)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}

	logger := logging.New(cfg.LogLevel, cfg.Debug)

	if cfg.SentryDSN != "" {
		// 10% sampling in production, everything elsewhere
		sampleRate := 1.0
		if cfg.Environment == "production" {
			sampleRate = 0.1
		}
		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			TracesSampleRate: sampleRate,
			Debug:            cfg.Debug,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("telemetry init failed (continuing without tracing)")
		} else {
			defer shutdownTelemetry()
		}
	}

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	srvApp, err := buildApp(ctx, cfg, logger, !noMigrate)
	if err != nil {
		return err
	}
	defer srvApp.Close()

	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()
	go srvApp.gapWorker.Start(workerCtx)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srvApp.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("port", cfg.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}
	logger.Info().Msg("shutting down...")

	srvApp.gapWorker.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info().Msg("server exited")
	return nil
}

// app is the fully wired server: HTTP handler, background gap monitor and
// the resources to release on exit.
type app struct {
	handler   http.Handler
	gapWorker *jobs.Worker
	closers   []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

type backends struct {
	knowledge service.KnowledgeStore
	tickets   service.TicketStore
	feedback  service.FeedbackStore
}

// buildApp selects a backend for every concern from cfg and wires the
// services, handlers and router on top of them.
func buildApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger, migrate bool) (*app, error) {
	a := &app{}
	fail := func(err error) (*app, error) {
		a.Close()
		return nil, err
	}

	stores, err := openStores(ctx, cfg, logger, migrate, a)
	if err != nil {
		return fail(err)
	}

	broker, err := openBroker(ctx, cfg, logger)
	if err != nil {
		return fail(err)
	}
	a.closers = append(a.closers, func() { _ = broker.Close() })

	var archive service.DocumentArchive
	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:          cfg.S3Endpoint,
			Region:            cfg.S3Region,
			AccessKeyID:       cfg.S3AccessKey,
			SecretAccessKey:   cfg.S3SecretKey,
			Bucket:            cfg.S3Bucket,
			UsePathStyle:      true,
			DownloadURLExpiry: cfg.S3DownloadURLExpiry,
		})
		if err != nil {
			return fail(fmt.Errorf("failed to create S3 client: %w", err))
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fail(fmt.Errorf("failed to ensure S3 bucket: %w", err))
		}
		logger.Info().Str("bucket", cfg.S3Bucket).Msg("document archive ready")
		archive = s3Client
	}

	var embedder service.EmbeddingClient
	var llm service.CompletionClient
	if cfg.HasOpenAI() {
		client := openai.NewClientWithConfig(openai.Config{
			APIKey:         cfg.OpenAIAPIKey,
			BaseURL:        cfg.OpenAIBaseURL,
			EmbeddingModel: cfg.OpenAIEmbeddingModel,
			ChatModel:      cfg.OpenAIChatModel,
			Timeout:        cfg.GenerationTimeout,
		})
		embedder = client
		llm = client
		logger.Info().Str("embedding_model", client.Model()).Str("chat_model", cfg.OpenAIChatModel).Msg("using OpenAI")
	} else {
		embedder = hashembed.New(hashembed.DefaultDimensions)
		logger.Info().Str("embedding_model", hashembed.Model).Msg("no OpenAI key, using offline embeddings and extractive drafts")
	}

	knowledgeSvc := service.NewKnowledgeService(service.KnowledgeServiceConfig{
		Store:    stores.knowledge,
		Embedder: embedder,
		Archive:  archive,
		Chunking: service.NewChunkConfig(cfg.ChunkWindow, cfg.ChunkOverlap, cfg.MaxChunksPerDocument),
		Logger:   logger,
	})
	ticketSvc := service.NewTicketService(stores.tickets, broker, logger)
	suggestionSvc := service.NewSuggestionService(service.SuggestionServiceConfig{
		Tickets:   stores.tickets,
		Retriever: service.NewRetriever(stores.knowledge, embedder),
		LLM:       llm,
		TopK:      cfg.RetrievalTopK,
		MinScore:  cfg.SuggestMinScore,
		Logger:    logger,
	})
	feedbackSvc := service.NewFeedbackService(stores.feedback, stores.knowledge, logger)
	assistSvc := service.NewAssistService(stores.tickets, llm, logger)

	a.handler = server.NewRouter(server.RouterConfig{
		Logger:             logger,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		MaxUploadBytes:     cfg.MaxUploadBytes(),
		TicketHandler:      handlers.NewTicketHandler(ticketSvc),
		AssistHandler:      handlers.NewAssistHandler(suggestionSvc, assistSvc),
		KnowledgeHandler:   handlers.NewKnowledgeHandler(knowledgeSvc),
		FeedbackHandler:    handlers.NewFeedbackHandler(feedbackSvc),
		EventsHandler:      handlers.NewEventsHandler(ticketSvc, broker, logger),
	})

	monitor := jobs.NewGapMonitor(feedbackSvc, jobs.SentryAlerter{}, jobs.GapMonitorConfig{
		AlertRate: cfg.GapAlertRate,
		MinEvents: cfg.GapAlertMinEvents,
	}, logger)
	a.gapWorker = jobs.NewWorker(monitor, cfg.GapMonitorInterval, logger)

	return a, nil
}

func openStores(ctx context.Context, cfg *config.Config, logger zerolog.Logger, migrate bool, a *app) (*backends, error) {
	if !cfg.HasDatabase() {
		logger.Warn().Msg("no database configured, state is kept in memory and lost on restart")
		return &backends{
			knowledge: memstore.NewKnowledgeStore(),
			tickets:   memstore.NewTicketStore(),
			feedback:  memstore.NewFeedbackStore(),
		}, nil
	}

	if migrate {
		if err := migrations.Up(cfg.DatabaseURL, logger); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	pool, err := database.NewPool(ctx, database.Config{
		URL:             cfg.DatabaseURL,
		MaxConns:        cfg.DBMaxConns,
		ConnectAttempts: 5,
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, pool.Close)
	logger.Info().Msg("connected to database")

	return &backends{
		knowledge: repository.NewChunkRepository(pool),
		tickets:   repository.NewTicketRepository(pool),
		feedback:  repository.NewFeedbackRepository(pool),
	}, nil
}

type broker interface {
	service.EventPublisher
	handlers.EventSubscriber
	Close() error
}

func openBroker(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (broker, error) {
	if !cfg.HasRedis() {
		return events.NewMemoryBroker(logger), nil
	}
	b, err := events.NewRedisBroker(ctx, cfg.RedisURL, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	logger.Info().Msg("ticket events published through redis")
	return b, nil
}
