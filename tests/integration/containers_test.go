//go:build integration

// Package integration runs the jobs against real backing services started
// with testcontainers: Redis for the response cache, PostgreSQL for the
// export and MinIO for the s3 storage driver.
package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	minioUser     = "devdata"
	minioPassword = "devdata-secret"
)

func startContainer(t *testing.T, req testcontainers.ContainerRequest) testcontainers.Container {
	t.Helper()

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start %s container: %v", req.Image, err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})
	return container
}

// endpoint returns host:port of the container's single exposed port.
func endpoint(t *testing.T, c testcontainers.Container) string {
	t.Helper()

	ep, err := c.Endpoint(context.Background(), "")
	if err != nil {
		t.Fatalf("Failed to get container endpoint: %v", err)
	}
	return ep
}

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) *redis.Client {
	t.Helper()

	c := startContainer(t, testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	})

	redisClient := redis.NewClient(&redis.Options{Addr: endpoint(t, c)})
	t.Cleanup(func() { _ = redisClient.Close() })
	return redisClient
}

// setupPostgres returns a DSN for a fresh PostgreSQL database.
func setupPostgres(t *testing.T) string {
	t.Helper()

	c := startContainer(t, testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "devdata",
			"POSTGRES_PASSWORD": "devdata",
			"POSTGRES_DB":       "devdata",
		},
		// The server restarts once after initdb.
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	})

	return fmt.Sprintf("postgres://devdata:devdata@%s/devdata?sslmode=disable", endpoint(t, c))
}

// setupMinIO returns the endpoint URL of a MinIO server.
func setupMinIO(t *testing.T) string {
	t.Helper()

	c := startContainer(t, testcontainers.ContainerRequest{
		Image:        "minio/minio:latest",
		ExposedPorts: []string{"9000/tcp"},
		Env: map[string]string{
			"MINIO_ROOT_USER":     minioUser,
			"MINIO_ROOT_PASSWORD": minioPassword,
		},
		Cmd:        []string{"server", "/data"},
		WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp"),
	})

	return "http://" + endpoint(t, c)
}
