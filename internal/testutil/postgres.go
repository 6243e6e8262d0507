// Package testutil provides test helpers for the storage backends.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/cory-johannsen/encounter/internal/config"
	"github.com/cory-johannsen/encounter/internal/storage/postgres"
	"github.com/cory-johannsen/encounter/migrations"
)

const (
	postgresImage = "postgres:16-alpine"
	testUser      = "encounter"
	testPassword  = "encounter"
	testDatabase  = "encounter_test"
)

// PostgresContainer is a throwaway PostgreSQL server with a connected Pool.
type PostgresContainer struct {
	container testcontainers.Container
	Pool      *postgres.Pool
	Config    config.DatabaseConfig
}

// NewPostgresContainer starts PostgreSQL in Docker and connects a Pool to
// it. The test is skipped under -short.
//
// Precondition: Docker must be available.
// Postcondition: the container and pool are torn down by t.Cleanup.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres container skipped in -short mode")
	}
	ctx := context.Background()
	start := time.Now()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        postgresImage,
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     testUser,
				"POSTGRES_PASSWORD": testPassword,
				"POSTGRES_DB":       testDatabase,
			},
			// The server logs readiness twice: once for the init run, once for real.
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(45 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting %s: %v", postgresImage, err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	cfg, err := containerConfig(ctx, container)
	if err != nil {
		t.Fatalf("resolving container address: %v", err)
	}
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		t.Fatalf("connecting to %s: %v", cfg.Host, err)
	}
	t.Cleanup(pool.Close)

	t.Logf("postgres ready on %s:%d [%s]", cfg.Host, cfg.Port, time.Since(start))
	return &PostgresContainer{container: container, Pool: pool, Config: cfg}
}

// NewMigratedPostgres is NewPostgresContainer followed by ApplyMigrations.
func NewMigratedPostgres(t *testing.T) *PostgresContainer {
	t.Helper()
	pc := NewPostgresContainer(t)
	pc.ApplyMigrations(t)
	return pc
}

func containerConfig(ctx context.Context, c testcontainers.Container) (config.DatabaseConfig, error) {
	host, err := c.Host(ctx)
	if err != nil {
		return config.DatabaseConfig{}, err
	}
	port, err := c.MappedPort(ctx, "5432")
	if err != nil {
		return config.DatabaseConfig{}, err
	}
	return config.DatabaseConfig{
		Host:            host,
		Port:            port.Int(),
		User:            testUser,
		Password:        testPassword,
		Name:            testDatabase,
		SSLMode:         "disable",
		MaxConns:        4,
		MinConns:        1,
		MaxConnLifetime: 5 * time.Minute,
	}, nil
}

// ApplyMigrations brings the schema up to the latest embedded migration.
func (pc *PostgresContainer) ApplyMigrations(t *testing.T) {
	t.Helper()
	res, err := migrations.Run(pc.DSN(), migrations.Up, 0)
	if err != nil {
		t.Fatalf("applying migrations: %v", err)
	}
	t.Logf("schema at version %d", res.Version)
}

// DSN returns the connection string for the test database.
func (pc *PostgresContainer) DSN() string {
	return pc.Config.DSN()
}
