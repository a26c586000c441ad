// Package common provides shared test infrastructure.
package common

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	surrealImage = "surrealdb/surrealdb:v3.0.0"
	surrealPort  = "8000/tcp"
)

var (
	surrealOnce sync.Once
	surrealInst *SurrealDB
	surrealErr  error
)

// SurrealDB is a containerized SurrealDB instance shared by all storage
// tests in a process.
type SurrealDB struct {
	container testcontainers.Container
	address   string
}

// StartSurrealDB returns the shared SurrealDB container, starting it on
// first use. TILLER_TEST_SURREALDB overrides the container with an
// externally managed instance (a ws:// RPC address).
func StartSurrealDB(t *testing.T) *SurrealDB {
	t.Helper()

	if addr := os.Getenv("TILLER_TEST_SURREALDB"); addr != "" {
		return &SurrealDB{address: addr}
	}

	surrealOnce.Do(func() {
		surrealInst, surrealErr = startContainer(context.Background())
	})
	if surrealErr != nil {
		t.Fatalf("SurrealDB container failed: %v", surrealErr)
	}
	return surrealInst
}

func startContainer(ctx context.Context) (*SurrealDB, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        surrealImage,
			ExposedPorts: []string{surrealPort},
			Cmd:          []string{"start", "--user", "root", "--pass", "root"},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort(surrealPort),
				wait.ForLog("Started web server"),
			).WithDeadline(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("start SurrealDB container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("resolve SurrealDB host: %w", err)
	}
	port, err := container.MappedPort(ctx, surrealPort)
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("resolve SurrealDB port: %w", err)
	}

	return &SurrealDB{
		container: container,
		address:   fmt.Sprintf("ws://%s:%s/rpc", host, port.Port()),
	}, nil
}

// Address returns the WebSocket RPC address.
func (s *SurrealDB) Address() string {
	return s.address
}

// Cleanup terminates the container, if one was started.
func (s *SurrealDB) Cleanup() {
	if s != nil && s.container != nil {
		s.container.Terminate(context.Background())
	}
}
