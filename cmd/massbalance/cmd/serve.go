package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ojparkinson/massbalance/internal/api"
	"github.com/ojparkinson/massbalance/internal/inference"
	"github.com/ojparkinson/massbalance/internal/messaging"
	"github.com/ojparkinson/massbalance/internal/metrics"
	"github.com/ojparkinson/massbalance/internal/persistance"
	"github.com/ojparkinson/massbalance/internal/processing"
	"github.com/ojparkinson/massbalance/internal/queue"
	"github.com/ojparkinson/massbalance/internal/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, metrics endpoint and optional job consumer",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewStore(cfg.UploadDir, cfg.ResultsDir, logger)
	if err != nil {
		return err
	}
	if removed, err := store.CleanupOlderThan(cfg.MaxFileAge); err != nil {
		logger.Warn("Startup cleanup failed", zap.Error(err))
	} else if removed > 0 {
		logger.Info("Removed stale files", zap.Int("files", removed), zap.Duration("max_age", cfg.MaxFileAge))
	}

	hub := api.NewHub(cfg.CORSOrigins, logger)
	sinks := []processing.Sink{store.Results(), hub}
	closers := optionalSinks(ctx, &sinks)
	defer func() {
		for _, c := range closers {
			c()
		}
	}()

	calculator := processing.NewCalculator(store, processing.NewOrchestrator(cfg, logger), sinks, logger)
	server := api.NewServer(cfg, store, calculator, inference.NewAnalyzer(cfg.MergeTolerance, logger), hub, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		return metrics.Serve(gctx, cfg.MetricsAddr, logger)
	})
	if !cfg.DisableRabbitMQ {
		subscriber := queue.NewSubscriber(calculator, cfg, logger)
		g.Go(func() error {
			return subscriber.Subscribe(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	logger.Info("massbalance service started",
		zap.String("api_addr", cfg.APIAddr),
		zap.String("metrics_addr", cfg.MetricsAddr),
		zap.Bool("job_queue", !cfg.DisableRabbitMQ),
		zap.Int("sinks", len(sinks)))

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	logger.Info("massbalance service stopped")
	return nil
}

// optionalSinks appends the external sinks enabled by configuration. A sink
// whose backend is unreachable at startup is left out and logged.
func optionalSinks(ctx context.Context, sinks *[]processing.Sink) []func() {
	var closers []func()

	if !cfg.DisableQuestDB {
		schema := persistance.NewSchema(cfg.QuestDBHost, cfg.QuestDBPort, logger)
		if err := schema.CreateTableHTTP(ctx); err != nil {
			logger.Error("QuestDB sink disabled",
				zap.Error(err),
				zap.String("action", "Check QUESTDB_HOST/QUESTDB_PORT or set DISABLE_QUESTDB=true"))
		} else if pool, err := persistance.NewSenderPool(ctx, cfg.SenderPoolSize, cfg.QuestDBHost, cfg.QuestDBPort); err != nil {
			logger.Error("QuestDB sink disabled", zap.Error(err))
		} else {
			*sinks = append(*sinks, persistance.NewQuestDBSink(pool))
			closers = append(closers, pool.Close)
		}
	}

	if cfg.InfluxDBURL != "" {
		influx := persistance.NewInfluxSink(cfg.InfluxDBURL, cfg.InfluxDBToken, cfg.InfluxDBOrg, cfg.InfluxDBBucket)
		*sinks = append(*sinks, influx)
		closers = append(closers, influx.Close)
	}

	if !cfg.DisableRabbitMQ {
		pool, err := messaging.NewConnectionPool(cfg.RabbitMQURL, 2, cfg.RabbitMQExchange)
		if err != nil {
			logger.Error("RabbitMQ publisher disabled",
				zap.Error(err),
				zap.String("action", "Check RABBITMQ_URL or set DISABLE_RABBITMQ=true"))
		} else {
			*sinks = append(*sinks, messaging.NewPublisher(pool, cfg, logger))
			closers = append(closers, pool.Close)
		}
	}

	return closers
}
