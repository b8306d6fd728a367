// Package testutil starts the backing services integration tests run
// against. Every helper fails the test on error.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/cloo-solutions/ticketassist/internal/database"
	"github.com/cloo-solutions/ticketassist/internal/migrations"
	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	pgUser = "ticketassist"
	pgPass = "ticketassist"
	pgDB   = "ticketassist"

	// S3AccessKey and S3SecretKey are the credentials of the RustFS container.
	S3AccessKey = "rustfsadmin"
	S3SecretKey = "rustfsadmin"
)

// Service is a running container and the host:port its main port maps to.
type Service struct {
	Container testcontainers.Container
	Host      string
	Port      string
}

// Terminate stops and removes the container.
func (s *Service) Terminate(ctx context.Context) error {
	return testcontainers.TerminateContainer(s.Container)
}

func start(ctx context.Context, t *testing.T, port string, req testcontainers.ContainerRequest) Service {
	t.Helper()
	req.ExposedPorts = []string{port + "/tcp"}

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start %s: %v", req.Image, err)
	}
	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("%s host: %v", req.Image, err)
	}
	mapped, err := c.MappedPort(ctx, nat.Port(port+"/tcp"))
	if err != nil {
		t.Fatalf("%s port %s: %v", req.Image, port, err)
	}
	return Service{Container: c, Host: host, Port: mapped.Port()}
}

// PostgresContainer runs PostgreSQL with the pgvector extension available.
type PostgresContainer struct{ Service }

func NewPostgresContainer(ctx context.Context, t *testing.T) *PostgresContainer {
	svc := start(ctx, t, "5432", testcontainers.ContainerRequest{
		Image: "pgvector/pgvector:0.8.1-pg18",
		Env: map[string]string{
			"POSTGRES_USER":     pgUser,
			"POSTGRES_PASSWORD": pgPass,
			"POSTGRES_DB":       pgDB,
		},
		// The entrypoint restarts the server once after init.
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		).WithStartupTimeout(60 * time.Second),
	})
	return &PostgresContainer{svc}
}

func (pc *PostgresContainer) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", pgUser, pgPass, pc.Host, pc.Port, pgDB)
}

// RedisContainer runs a single Redis node.
type RedisContainer struct{ Service }

func NewRedisContainer(ctx context.Context, t *testing.T) *RedisContainer {
	svc := start(ctx, t, "6379", testcontainers.ContainerRequest{
		Image:      "redis:7-alpine",
		WaitingFor: wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	})
	return &RedisContainer{svc}
}

func (rc *RedisContainer) URL() string {
	return fmt.Sprintf("redis://%s:%s/0", rc.Host, rc.Port)
}

// RustFSContainer runs an S3-compatible object store.
type RustFSContainer struct{ Service }

func NewRustFSContainer(ctx context.Context, t *testing.T) *RustFSContainer {
	svc := start(ctx, t, "9000", testcontainers.ContainerRequest{
		Image: "rustfs/rustfs:latest",
		Env: map[string]string{
			"RUSTFS_ACCESS_KEY": S3AccessKey,
			"RUSTFS_SECRET_KEY": S3SecretKey,
		},
		WaitingFor: wait.ForListeningPort("9000/tcp").WithStartupTimeout(30 * time.Second),
	})
	return &RustFSContainer{svc}
}

func (rc *RustFSContainer) Endpoint() string {
	return "http://" + rc.Host + ":" + rc.Port
}

// NewTestPool migrates the container's database to the latest schema and
// returns a pool on it. The pool is closed when the test ends.
func NewTestPool(ctx context.Context, t *testing.T, pc *PostgresContainer) *pgxpool.Pool {
	t.Helper()
	if err := migrations.Up(pc.ConnectionString(), zerolog.Nop()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	pool, err := database.NewPool(ctx, database.Config{
		URL:             pc.ConnectionString(),
		ConnectAttempts: 5,
	})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

// TruncateAll empties every application table.
func TruncateAll(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, "TRUNCATE TABLE feedback_events, ticket_messages, tickets, knowledge_chunks CASCADE")
	if err != nil {
		return fmt.Errorf("truncate: %w", err)
	}
	return nil
}
