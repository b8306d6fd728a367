//go:build e2e

package e2e

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/cloo-solutions/ticketassist/internal/api/handlers"
	"github.com/cloo-solutions/ticketassist/internal/cli/client"
	"github.com/cloo-solutions/ticketassist/internal/events"
	"github.com/cloo-solutions/ticketassist/internal/hashembed"
	"github.com/cloo-solutions/ticketassist/internal/repository"
	"github.com/cloo-solutions/ticketassist/internal/server"
	"github.com/cloo-solutions/ticketassist/internal/service"
	"github.com/cloo-solutions/ticketassist/internal/storage"
	"github.com/cloo-solutions/ticketassist/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	RedisC       *testutil.RedisContainer
	RustFSC      *testutil.RustFSContainer
	Pool         *pgxpool.Pool
	Broker       *events.RedisBroker
	S3Client     *storage.S3Client
	ServerURL    string
	ServerCloser func()
	API          *client.APIClient
	BinaryDir    string
}

// SetupE2EEnv starts PostgreSQL, Redis and RustFS containers and serves the
// full API on a free local port.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()
	logger := zerolog.Nop()

	pgC := testutil.NewPostgresContainer(ctx, t)
	redisC := testutil.NewRedisContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)

	pool := testutil.NewTestPool(ctx, t, pgC)

	broker, err := events.NewRedisBroker(ctx, redisC.URL(), logger)
	if err != nil {
		t.Fatalf("failed to connect to redis: %v", err)
	}

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     testutil.S3AccessKey,
		SecretAccessKey: testutil.S3SecretKey,
		Bucket:          "test-documents",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	serverURL, serverCloser := startServer(t, pool, broker, s3Client, port)

	return &E2ETestEnv{
		T:            t,
		Ctx:          ctx,
		PostgresC:    pgC,
		RedisC:       redisC,
		RustFSC:      s3C,
		Pool:         pool,
		Broker:       broker,
		S3Client:     s3Client,
		ServerURL:    serverURL,
		ServerCloser: serverCloser,
		API:          client.NewAPIClientWithConfig(serverURL),
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Broker != nil {
		_ = e.Broker.Close()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.RustFSC != nil {
		_ = e.RustFSC.Terminate(e.Ctx)
	}
	if e.RedisC != nil {
		_ = e.RedisC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		_ = e.PostgresC.Terminate(e.Ctx)
	}
	if e.BinaryDir != "" {
		_ = os.RemoveAll(e.BinaryDir)
	}
}

// BuildCLI builds the ticketassist binary
func (e *E2ETestEnv) BuildCLI() {
	tmpDir, err := os.MkdirTemp("", "ticketassist-e2e-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir

	cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, "ticketassist"), "./cmd/ticketassist")
	cmd.Dir = "../.."
	if out, err := cmd.CombinedOutput(); err != nil {
		e.T.Fatalf("failed to build ticketassist: %v\n%s", err, out)
	}
}

// RunCLI runs the ticketassist CLI against the test server
func (e *E2ETestEnv) RunCLI(args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "ticketassist"), args...)
	cmd.Dir = e.BinaryDir
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("TICKETASSIST_API_URL=%s", e.ServerURL),
		fmt.Sprintf("XDG_CONFIG_HOME=%s", e.BinaryDir),
	)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

func startServer(t *testing.T, pool *pgxpool.Pool, broker *events.RedisBroker, s3Client *storage.S3Client, port int) (string, func()) {
	logger := zerolog.Nop()

	chunkRepo := repository.NewChunkRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	feedbackRepo := repository.NewFeedbackRepository(pool)
	embedder := hashembed.New(hashembed.DefaultDimensions)

	ticketSvc := service.NewTicketService(ticketRepo, broker, logger)
	knowledgeSvc := service.NewKnowledgeService(service.KnowledgeServiceConfig{
		Store:    chunkRepo,
		Embedder: embedder,
		Archive:  s3Client,
		Chunking: service.NewChunkConfig(400, 80, 0),
		Logger:   logger,
	})
	suggestionSvc := service.NewSuggestionService(service.SuggestionServiceConfig{
		Tickets:   ticketRepo,
		Retriever: service.NewRetriever(chunkRepo, embedder),
		Logger:    logger,
	})
	feedbackSvc := service.NewFeedbackService(feedbackRepo, chunkRepo, logger)
	assistSvc := service.NewAssistService(ticketRepo, nil, logger)

	router := server.NewRouter(server.RouterConfig{
		Logger:           logger,
		MaxUploadBytes:   1 << 20,
		TicketHandler:    handlers.NewTicketHandler(ticketSvc),
		AssistHandler:    handlers.NewAssistHandler(suggestionSvc, assistSvc),
		KnowledgeHandler: handlers.NewKnowledgeHandler(knowledgeSvc),
		FeedbackHandler:  handlers.NewFeedbackHandler(feedbackSvc),
		EventsHandler:    handlers.NewEventsHandler(ticketSvc, broker, logger),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return serverURL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
