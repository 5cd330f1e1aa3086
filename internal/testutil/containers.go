// Package testutil starts throwaway Postgres and Redis containers for
// integration tests. Containers are shared per test binary; call Terminate
// from TestMain once m.Run returns.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/emilythestrangee/campus-events/backend/internal/database"
)

var (
	pgOnce      sync.Once
	pgContainer *postgres.PostgresContainer
	pgDB        *gorm.DB
	pgDSN       string
	pgErr       error

	redisOnce      sync.Once
	redisContainer *redis.RedisContainer
	redisURL       string
	redisErr       error
)

// Postgres returns a migrated database with every table emptied. It skips the
// test in -short mode.
func Postgres(t *testing.T) *gorm.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pgOnce.Do(func() {
		pgErr = startPostgres(context.Background())
	})
	require.NoError(t, pgErr)

	err := pgDB.Exec(`TRUNCATE users, groups, group_members, posts, attendances,
		comments, comment_votes, follows, notifications RESTART IDENTITY CASCADE`).Error
	require.NoError(t, err)

	return pgDB
}

// PostgresDSN returns the connection string of the shared container. Postgres
// must have been called first.
func PostgresDSN() string {
	return pgDSN
}

func startPostgres(ctx context.Context) error {
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("campus_events_test"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		return fmt.Errorf("start postgres container: %w", err)
	}
	pgContainer = container

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return fmt.Errorf("get connection string: %w", err)
	}
	pgDSN = dsn

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return fmt.Errorf("connect to test database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return err
	}

	pgDB = db
	return nil
}

// Redis returns a client connected to an empty Redis. It skips the test in
// -short mode.
func Redis(t *testing.T) *goredis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	redisOnce.Do(func() {
		redisErr = startRedis(context.Background())
	})
	require.NoError(t, redisErr)

	opts, err := goredis.ParseURL(redisURL)
	require.NoError(t, err)

	client := goredis.NewClient(opts)
	require.NoError(t, client.FlushAll(context.Background()).Err())
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func startRedis(ctx context.Context) error {
	container, err := redis.Run(ctx, "redis:7-alpine")
	if err != nil {
		return fmt.Errorf("start redis container: %w", err)
	}
	redisContainer = container

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		return fmt.Errorf("get redis endpoint: %w", err)
	}
	redisURL = "redis://" + endpoint
	return nil
}

// Terminate stops whichever containers were started.
func Terminate() {
	ctx := context.Background()
	if pgDB != nil {
		if sqlDB, err := pgDB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if pgContainer != nil {
		_ = pgContainer.Terminate(ctx)
	}
	if redisContainer != nil {
		_ = redisContainer.Terminate(ctx)
	}
}
