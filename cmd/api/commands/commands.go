package commands

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/ophion/companion/internal/adapters/ai"
	"github.com/ophion/companion/internal/adapters/repository"
	"github.com/ophion/companion/internal/infrastructure/cache"
	"github.com/ophion/companion/internal/infrastructure/config"
	"github.com/ophion/companion/internal/infrastructure/database"
	"github.com/ophion/companion/internal/infrastructure/logger"
	"github.com/ophion/companion/internal/infrastructure/metrics"
	"github.com/ophion/companion/internal/infrastructure/server"
	"github.com/ophion/companion/internal/ports"
)

// Version is set at build time
var Version = "dev"

const shutdownTimeout = 15 * time.Second

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the Companion API server",
		Long:  "Start the Companion API server with the configured store, cache and generative model",
		Run: func(cmd *cobra.Command, args []string) {
			runServer()
		},
	}
}

// NewMigrateCommand creates the migrate command with subcommands
func NewMigrateCommand() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
		Long:  "Manage the Postgres store schema (up, down, version)",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Run up migrations",
		Run: func(cmd *cobra.Command, args []string) {
			steps, _ := cmd.Flags().GetInt("steps")
			runMigration("up", steps)
		},
	}
	upCmd.Flags().Int("steps", 0, "Number of migrations to apply (0 applies all)")
	migrateCmd.AddCommand(upCmd)

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Run down migrations",
		Run: func(cmd *cobra.Command, args []string) {
			steps, _ := cmd.Flags().GetInt("steps")
			runMigration("down", steps)
		},
	}
	downCmd.Flags().Int("steps", 0, "Number of migrations to revert (0 reverts all)")
	migrateCmd.AddCommand(downCmd)

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print current migration version",
		Run: func(cmd *cobra.Command, args []string) {
			showMigrationVersion()
		},
	})

	return migrateCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print Companion version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Ophion Companion %s\n", Version)
		},
	}
}

func runServer() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Close()

	m := metrics.New()
	store := newStore(cfg, m, appLogger)
	defer store.Close()

	connectCtx, cancel := context.WithTimeout(context.Background(), cfg.Store.ConnectTimeout)
	if err := store.Connect(connectCtx); err != nil {
		appLogger.Warnw("Remote store unreachable, workspaces will run locally", "driver", cfg.Store.Driver, "error", err.Error())
	}
	cancel()

	var cacheRepo ports.CacheRepository
	if cfg.Redis.Enabled {
		client, err := cache.Connect(context.Background(), cfg.Redis, appLogger)
		if err != nil {
			appLogger.Warnw("Continuing without response cache", "error", err.Error())
		} else {
			defer closeRedis(client, appLogger)
			cacheRepo = repository.NewCacheRepository(client)
		}
	}

	gateway := ai.NewGateway(cfg.AI, m.AIRequests, appLogger)
	if !gateway.Configured() {
		appLogger.Warnw("No model API key configured, assistant features use fallbacks")
	}

	srv, err := server.New(cfg, server.Dependencies{
		Store:    store,
		Projects: repository.NewProjectCatalog(),
		Cache:    cacheRepo,
		AI:       gateway,
		Metrics:  m,
	}, appLogger)
	if err != nil {
		appLogger.Fatalw("Failed to initialize server", "error", err.Error())
	}

	address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Infow("Starting Companion API server",
		"address", address,
		"environment", cfg.App.Environment,
		"store", cfg.Store.Driver,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(address)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatalw("Server failed", "error", err.Error())
		}
	case sig := <-quit:
		appLogger.Infow("Shutdown signal received", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Errorw("Graceful shutdown failed", "error", err.Error())
	}
}

func newStore(cfg *config.Config, m *metrics.Metrics, appLogger *logger.Logger) ports.RemoteStore {
	switch cfg.Store.Driver {
	case config.StoreDriverMongo:
		return repository.NewMongoStore(cfg.Mongo, m.StoreWrites, appLogger)
	case config.StoreDriverMemory:
		return repository.NewMemoryStore(repository.WithWriteCounter(m.StoreWrites))
	default:
		return repository.NewPostgresStore(cfg.Database, m.StoreWrites, appLogger)
	}
}

func closeRedis(client *redis.Client, appLogger *logger.Logger) {
	if err := client.Close(); err != nil {
		appLogger.Warnw("Failed to close redis client", "error", err.Error())
	}
}

func newMigrator() (*migrate.Migrate, *database.DB) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Store.ConnectTimeout)
	defer cancel()
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	driver, err := postgres.WithInstance(db.DB.DB, &postgres.Config{})
	if err != nil {
		db.Close()
		log.Fatalf("Failed to create migration driver: %v", err)
	}

	m, err := migrate.NewWithDatabaseInstance(cfg.Database.MigrationsPath, "postgres", driver)
	if err != nil {
		db.Close()
		log.Fatalf("Failed to create migration instance: %v", err)
	}
	return m, db
}

func runMigration(direction string, steps int) {
	m, db := newMigrator()
	defer db.Close()

	var err error
	switch direction {
	case "up":
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
	case "down":
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
	}

	if errors.Is(err, migrate.ErrNoChange) {
		fmt.Println("No migrations to run")
		return
	}
	if err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	fmt.Printf("Migration %s completed successfully\n", direction)
}

func showMigrationVersion() {
	m, db := newMigrator()
	defer db.Close()

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		fmt.Println("No migrations applied")
		return
	}
	if err != nil {
		log.Fatalf("Failed to get migration version: %v", err)
	}

	fmt.Printf("Current migration version: %d\n", version)
	fmt.Printf("Dirty: %t\n", dirty)
}
