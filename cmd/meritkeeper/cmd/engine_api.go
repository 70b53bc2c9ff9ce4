package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/meritkeeper/meritkeeper/internal/core/api"
	"github.com/meritkeeper/meritkeeper/internal/core/config"
	"github.com/meritkeeper/meritkeeper/internal/core/db"
	"github.com/meritkeeper/meritkeeper/internal/core/server"
	"github.com/meritkeeper/meritkeeper/internal/engine"
	"github.com/meritkeeper/meritkeeper/internal/pipeline"
	"github.com/meritkeeper/meritkeeper/internal/scheduler"
	"github.com/spf13/cobra"
)

const Version = "0.1.0"

var engineAPICmd = &cobra.Command{
	Use:   "engine-api",
	Short: "Start HTTP engine API service",
	RunE:  runEngineAPI,
}

func init() {
	rootCmd.AddCommand(engineAPICmd)
	engineAPICmd.Flags().String("host", "0.0.0.0", "HTTP server host")
	engineAPICmd.Flags().Int("port", 8080, "HTTP server port")
}

// backends groups the repository implementations behind the engine, the
// pipeline and the API. One set per database mode.
type backends struct {
	contexts  engine.ContextLookup
	registrar engine.ContextRegistrar
	schemas   engine.SchemaProvider
	instances engine.InstanceRepository
	events    engine.EventRecorder

	schemaWriter api.SchemaWriter
	badgeWriter  api.BadgeWriter
	awardReader  api.AwardReader

	awards  pipeline.AwardRepository
	badges  pipeline.BadgeCatalog
	expirer scheduler.Expirer

	close func() error
}

func runEngineAPI(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	logger := newLogger()

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cmd.Flags().Changed("host") {
		host, _ := cmd.Flags().GetString("host")
		cfg.Host = host
	}
	if cmd.Flags().Changed("port") {
		port, _ := cmd.Flags().GetInt("port")
		cfg.Port = port
	}
	if dbURL != "" {
		cfg.DatabaseURL = dbURL
	}
	cfg.LogLevel = logLevel
	cfg.LogFormat = logFormat

	b, err := openBackends(cfg)
	if err != nil {
		return err
	}
	defer b.close()

	registry := pipeline.NewDefaultRegistry(b.awards, b.badges, cfg.RedemptionExpiryDays)
	executor := engine.NewExecutor(registry)
	instances := engine.NewInstanceManager(b.instances)
	dispatcher := engine.NewDispatcher(b.contexts, b.schemas, instances, executor, b.events, logger)

	service, err := api.NewEngineAPIService(dispatcher, b.contexts, b.registrar, b.instances, b.schemaWriter, b.badgeWriter, b.awardReader, logger)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	httpServer, err := server.NewHTTPServer(cfg, service)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	sweeper, err := scheduler.New(cfg.ExpirySweepSchedule, b.expirer, logger)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	logger.Info("starting MeritKeeper engine API",
		"version", Version, "host", cfg.Host, "port", cfg.Port, "db", cfg.DatabaseURL)
	errChan := make(chan error, 1)
	go func() {
		errChan <- httpServer.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-sigChan:
		logger.Info("shutting down gracefully")
		return httpServer.Shutdown(ctx)
	}
}

// openBackends selects the storage mode from the database URL: memory:// for
// an ephemeral in-process store, sqlite:// or postgres:// for SQL.
func openBackends(cfg *config.EngineAPIConfig) (*backends, error) {
	if cfg.DatabaseURL == "memory://" {
		store := engine.NewMemoryStore()
		awards := pipeline.NewMemoryAwards()
		return &backends{
			contexts:     store,
			registrar:    store,
			schemas:      store,
			instances:    store,
			events:       store,
			schemaWriter: store,
			badgeWriter:  awards,
			awardReader:  awards,
			awards:       awards,
			badges:       awards,
			expirer:      awards,
			close:        func() error { return nil },
		}, nil
	}

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Refuse to start against an unmigrated database.
	var migrationID string
	checkQuery := `SELECT migration_id FROM migrations WHERE migration_id = '001_initial_schema.sql'`
	if err := database.Get(&migrationID, database.Rebind(checkQuery)); err != nil {
		database.Close()
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("migration 001_initial_schema not applied - run 'meritkeeper migrate' first")
		}
		return nil, fmt.Errorf("failed to check migrations: %w", err)
	}

	store, err := db.NewStore(database)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to load queries: %w", err)
	}
	awards := db.NewAwardStore(store)

	return &backends{
		contexts:     store,
		registrar:    store,
		schemas:      store,
		instances:    store,
		events:       store,
		schemaWriter: store,
		badgeWriter:  awards,
		awardReader:  awards,
		awards:       awards,
		badges:       awards,
		expirer:      awards,
		close:        database.Close,
	}, nil
}
