// cmd/covid-pipeline/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pranithapadala/covid-data-pipeline/pkg/config"
	"github.com/pranithapadala/covid-data-pipeline/pkg/connector"
	"github.com/pranithapadala/covid-data-pipeline/pkg/objectstore"
	"github.com/pranithapadala/covid-data-pipeline/pkg/pipeline"
)

func main() {
	once := flag.Bool("once", false, "run the pipeline a single time and exit")
	flag.Parse()

	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-signalCh
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	warehouse, err := connector.NewPostgresConnector(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal("Failed to connect to warehouse", zap.Error(err))
	}
	defer warehouse.Close()

	if err := warehouse.Validate(); err != nil {
		logger.Fatal("Warehouse validation failed", zap.Error(err))
	}

	store, err := objectstore.NewS3Store(ctx, cfg.S3)
	if err != nil {
		logger.Fatal("Failed to initialize object store", zap.Error(err))
	}

	p := pipeline.New(pipeline.OptionsFromConfig(cfg, store, warehouse), logger)

	if *once {
		if _, err := p.Execute(ctx); err != nil {
			logger.Error("Pipeline run failed", zap.Error(err))
			os.Exit(1)
		}
		return
	}

	runScheduled(ctx, p, cfg, logger)
}

// runScheduled executes the pipeline on a fixed interval until the context
// is canceled. The scheduler supplies "now" for bookkeeping only; every run
// extracts the full source history.
func runScheduled(ctx context.Context, p *pipeline.Pipeline, cfg *config.Config, logger *zap.Logger) {
	scheduler := gocron.NewScheduler(time.UTC)

	logger.Info("Starting pipeline scheduler", zap.Duration("interval", cfg.RunInterval))

	_, err := scheduler.Every(cfg.RunInterval).Do(func() {
		if _, err := p.Execute(ctx); err != nil {
			logger.Error("Scheduled pipeline run failed", zap.Error(err))
		}
	})
	if err != nil {
		logger.Fatal("Failed to schedule pipeline", zap.Error(err))
	}

	scheduler.StartAsync()

	<-ctx.Done()
	scheduler.Stop()
	logger.Info("Pipeline scheduler stopped")
}

// buildLogger constructs the zap logger per the configured level and format
func buildLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}

	var zapCfg zap.Config
	if cfg.LogFormat == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
