package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/marmos91/streamfs/internal/logger"
	"github.com/marmos91/streamfs/pkg/api"
	"github.com/marmos91/streamfs/pkg/config"
	"github.com/marmos91/streamfs/pkg/metrics"
	"github.com/marmos91/streamfs/pkg/source"
	badgerstore "github.com/marmos91/streamfs/pkg/source/badger"
	fsstore "github.com/marmos91/streamfs/pkg/source/fs"
	memorystore "github.com/marmos91/streamfs/pkg/source/memory"
	s3store "github.com/marmos91/streamfs/pkg/source/s3"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the StreamFS server",
	Long: `Start the StreamFS server with the specified configuration.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/streamfs/config.yaml.

Examples:
  # Start with default config location
  streamfs start

  # Start with custom config file
  streamfs start --config /etc/streamfs/config.yaml

  # Start with environment variable overrides
  STREAMFS_LOGGING_LEVEL=DEBUG streamfs start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	// Initialize the structured logger
	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("configuration loaded",
		"source", getConfigSource(GetConfigFile()),
		"log_level", cfg.Logging.Level,
	)

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize metrics FIRST (before anything that records into them)
	var streamMetrics *metrics.StreamMetrics
	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		streamMetrics = metrics.NewStreamMetrics()
		metricsServer = metrics.NewServer(cfg.Metrics.Port)
		logger.Info("metrics enabled", "port", cfg.Metrics.Port)
	} else {
		logger.Info("metrics collection disabled")
	}

	store, err := buildStore(ctx, &cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("storage close error", "error", err)
		}
	}()

	logger.Info("storage backend ready", logger.KeyBackend, store.Backend())

	server := api.NewServer(api.Config{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ChunkSize:         cfg.Stream.ChunkSize,
		IdleWriteTimeout:  cfg.Stream.IdleWriteTimeout,
		MaxBytesPerSec:    cfg.Stream.MaxBytesPerSec,
		MaxUploadSize:     cfg.Stream.MaxUploadSize,
	}, store, streamMetrics)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Start(gctx)
	})
	if metricsServer != nil {
		g.Go(func() error {
			return metricsServer.Start()
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer shutdownCancel()
			return metricsServer.Stop(shutdownCtx)
		})
	}

	// Wait for interrupt signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- g.Wait()
	}()

	logger.Info("server is running, press Ctrl+C to stop")

	select {
	case <-sigChan:
		logger.Info("shutdown signal received, initiating graceful shutdown")
		cancel()

		if err := <-serverDone; err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		logger.Info("server stopped gracefully")

	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("server stopped")
	}

	return nil
}

// buildStore constructs the storage backend selected by the configuration.
func buildStore(ctx context.Context, cfg *config.StorageConfig) (source.Store, error) {
	switch cfg.Backend {
	case "fs":
		return fsstore.New(fsstore.Config{
			BasePath:  cfg.FS.Path,
			CreateDir: true,
		})
	case "memory":
		return memorystore.New(), nil
	case "s3":
		return s3store.NewFromConfig(ctx, s3store.Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			KeyPrefix:       cfg.S3.KeyPrefix,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			ForcePathStyle:  cfg.S3.ForcePathStyle,
			PartSize:        cfg.S3.PartSize.Int64(),
		})
	case "badger":
		return badgerstore.New(badgerstore.Config{
			Path: cfg.Badger.Path,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend: %q", cfg.Backend)
	}
}

// getConfigSource returns a description of where the config was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}
