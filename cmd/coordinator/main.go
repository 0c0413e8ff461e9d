package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"os"

	"github.com/absmach/fedledger/coordinator"
	"github.com/absmach/fedledger/coordinator/api"
	"github.com/absmach/fedledger/coordinator/middleware"
	"github.com/absmach/fedledger/pkg/blob"
	"github.com/absmach/fedledger/pkg/cron"
	"github.com/absmach/fedledger/pkg/fl"
	"github.com/absmach/fedledger/pkg/ledger"
	"github.com/absmach/fedledger/pkg/mqtt"
	"github.com/absmach/fedledger/pkg/storage"
	"github.com/absmach/fedledger/pkg/zk"
	"github.com/absmach/supermq/pkg/jaeger"
	"github.com/absmach/supermq/pkg/prometheus"
	"github.com/absmach/supermq/pkg/server"
	httpserver "github.com/absmach/supermq/pkg/server/http"
	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"
)

const (
	svcName       = "coordinator"
	defHTTPPort   = "7070"
	envPrefixHTTP = "FEDLEDGER_HTTP_"
	pathEnv       = ".env"
)

type envConfig struct {
	LogLevel    string  `env:"FEDLEDGER_LOG_LEVEL"   envDefault:"info"`
	InstanceID  string  `env:"FEDLEDGER_INSTANCE_ID"`
	OTELURL     url.URL `env:"FEDLEDGER_OTEL_URL"`
	TraceRatio  float64 `env:"FEDLEDGER_TRACE_RATIO" envDefault:"0"`
	Coordinator coordinator.Config
	Storage     storage.Config
	Blob        blob.Config
	Ledger      ledger.Config
	Verifier    zk.Config
	MQTT        mqtt.Config
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)

	if _, err := os.Stat(pathEnv); err == nil {
		_ = godotenv.Load(pathEnv)
	}

	cfg := envConfig{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to load configuration : %s", err.Error())
	}

	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		log.Fatalf("failed to parse log level: %s", err.Error())
	}
	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	var tp trace.TracerProvider
	switch {
	case cfg.OTELURL == (url.URL{}):
		tp = noop.NewTracerProvider()
	default:
		sdktp, err := jaeger.NewProvider(ctx, svcName, cfg.OTELURL, cfg.InstanceID, cfg.TraceRatio)
		if err != nil {
			logger.Error("failed to initialize opentelemetry", slog.String("error", err.Error()))

			return
		}
		defer func() {
			if err := sdktp.Shutdown(ctx); err != nil {
				logger.Error("error shutting down tracer provider", slog.Any("error", err))
			}
		}()
		tp = sdktp
	}
	tracer := tp.Tracer(svcName)

	repos, err := storage.NewRepositories(cfg.Storage)
	if err != nil {
		logger.Error("failed to initialize storage", slog.String("type", cfg.Storage.Type), slog.String("error", err.Error()))

		return
	}
	if repos.Closer != nil {
		defer repos.Closer.Close()
	}
	logger.Info("storage initialized", slog.String("type", cfg.Storage.Type))

	verifier, err := zk.New(cfg.Verifier)
	if err != nil {
		logger.Error("failed to initialize proof verifier", slog.String("kind", cfg.Verifier.Kind), slog.String("error", err.Error()))

		return
	}

	aggregator, err := fl.NewAggregator(cfg.Coordinator.Aggregation, logger)
	if err != nil {
		logger.Error("failed to initialize aggregator", slog.String("error", err.Error()))

		return
	}

	blobs, err := blob.New(ctx, cfg.Blob)
	if err != nil {
		logger.Error("failed to initialize blob store", slog.String("kind", cfg.Blob.Kind), slog.String("error", err.Error()))

		return
	}

	ldg, err := ledger.New(ctx, cfg.Ledger)
	if err != nil {
		logger.Error("failed to initialize ledger", slog.String("kind", cfg.Ledger.Kind), slog.String("error", err.Error()))

		return
	}

	var pubsub mqtt.PubSub
	if cfg.MQTT.URL != "" {
		pubsub, err = mqtt.NewPubSub(cfg.MQTT, logger)
		if err != nil {
			logger.Error("failed to initialize mqtt pubsub", slog.String("error", err.Error()))

			return
		}
		defer pubsub.Disconnect(context.Background())
	}

	schedule, err := parseSchedule(cfg.Coordinator.RoundSchedule, cfg.Coordinator.RoundTimezone)
	if err != nil {
		logger.Error("failed to parse round schedule", slog.String("error", err.Error()))

		return
	}

	domainMetrics := coordinator.NewMetrics(promclient.DefaultRegisterer)
	notifier := coordinator.NewNotifier(cfg.Coordinator.EventQueueSize, pubsub, ldg, cfg.MQTT.BaseTopic, domainMetrics, logger)

	opts := []coordinator.Option{
		coordinator.WithEvents(notifier),
		coordinator.WithMetrics(domainMetrics),
	}
	if blobs != nil {
		opts = append(opts, coordinator.WithBlobStore(blobs))
	}

	svc := coordinator.NewService(*repos, verifier, aggregator, cfg.Coordinator, logger, opts...)
	svc = middleware.Logging(logger, svc)
	svc = middleware.Tracing(tracer, svc)
	counter, latency := prometheus.MakeMetrics(svcName, "api")
	svc = middleware.Metrics(counter, latency, svc)

	sched := coordinator.NewScheduler(svc, schedule, cfg.Coordinator.SweepInterval, logger)

	httpServerConfig := server.Config{Port: defHTTPPort}
	if err := env.ParseWithOptions(&httpServerConfig, env.Options{Prefix: envPrefixHTTP}); err != nil {
		logger.Error(fmt.Sprintf("failed to load %s HTTP server configuration : %s", svcName, err.Error()))

		return
	}

	hs := httpserver.NewServer(ctx, cancel, svcName, httpServerConfig, api.MakeHandler(svc, logger, cfg.InstanceID), logger)

	g.Go(func() error {
		return hs.Start()
	})

	g.Go(func() error {
		return ignoreCanceled(notifier.Run(ctx))
	})

	g.Go(func() error {
		return ignoreCanceled(sched.Start(ctx))
	})

	g.Go(func() error {
		return server.StopSignalHandler(ctx, cancel, logger, svcName, hs)
	})

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("%s service exited with error: %s", svcName, err))
	}
}

func parseSchedule(expr, timezone string) (*cron.Schedule, error) {
	if expr == "" {
		return nil, nil
	}

	return cron.Parse(expr, timezone)
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}
