// Package testing provides test utilities: an in-memory store, fixtures and a disposable Postgres
package testing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/amirphl/Geovid/migrations"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrIntegrationDisabled is returned by SetupTestDB when TEST_INTEGRATION is not set
var ErrIntegrationDisabled = errors.New("integration tests disabled: TEST_INTEGRATION is not set")

// TestDB is a migrated Postgres running in a throwaway container
type TestDB struct {
	DB        *gorm.DB
	URL       string
	container *postgres.PostgresContainer
}

// IntegrationEnabled reports whether container-backed tests should run
func IntegrationEnabled() bool {
	return os.Getenv("TEST_INTEGRATION") != ""
}

// SetupTestDB starts Postgres, applies the embedded migrations and opens gorm on it
func SetupTestDB(ctx context.Context) (*TestDB, error) {
	if !IntegrationEnabled() {
		return nil, ErrIntegrationDisabled
	}

	container, err := postgres.Run(ctx,
		getEnv("TEST_POSTGRES_IMAGE", "docker.io/postgres:16-alpine"),
		postgres.WithDatabase("geovid_test"),
		postgres.WithUsername("geovid"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to read connection string: %w", err)
	}

	if err := migrations.Apply(url, nil); err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to run migrations on test database: %w", err)
	}

	db, err := gorm.Open(gormpostgres.Open(url), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to connect to test database: %w", err)
	}

	return &TestDB{DB: db, URL: url, container: container}, nil
}

// TeardownTestDB closes connections and removes the container
func (tdb *TestDB) TeardownTestDB() error {
	if tdb.DB != nil {
		if sqlDB, err := tdb.DB.DB(); err == nil {
			sqlDB.Close()
		}
	}
	if tdb.container == nil {
		return nil
	}
	return tdb.container.Terminate(context.Background())
}

// ClearAllTables removes all data from tables while preserving structure
func (tdb *TestDB) ClearAllTables() error {
	// children first because of the RESTRICT foreign keys
	tables := []string{"video_views", "comments", "likes", "video_tags", "tags", "videos", "users"}
	for _, table := range tables {
		if err := tdb.DB.Exec(fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)).Error; err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// TestWithDB sets up a test database, runs testFunc, and cleans up.
// It returns ErrIntegrationDisabled without running testFunc when containers are off.
func TestWithDB(testFunc func(*TestDB) error) error {
	testDB, err := SetupTestDB(context.Background())
	if err != nil {
		return err
	}
	defer func() {
		if cleanupErr := testDB.TeardownTestDB(); cleanupErr != nil {
			log.Printf("Warning: failed to cleanup test database: %v", cleanupErr)
		}
	}()
	return testFunc(testDB)
}
