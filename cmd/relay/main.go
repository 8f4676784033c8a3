package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/couchbase/gocb/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"relay/internal/couchbase"
	"relay/internal/relay"
	"relay/internal/relay/bus"
	"relay/internal/relay/catalog"
	"relay/internal/relay/forwarder"
	"relay/internal/relay/gateway"
	"relay/internal/relay/metrics"
	"relay/internal/relay/sink"
	"relay/internal/relay/tracing"
	"relay/internal/relay/ws"
)

const version = "1.0.0"

type Config struct {
	Port     int    `env:"PORT" envDefault:"3000"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	SinkBackend string        `env:"SINK_BACKEND" envDefault:"sheet"`
	SheetAPIURL string        `env:"SHEET_API_URL"`
	SinkTimeout time.Duration `env:"SINK_TIMEOUT" envDefault:"10s"`

	CouchbaseConnectionString string `env:"COUCHBASE_CONNECTION_STRING" envDefault:"couchbase://localhost"`
	CouchbaseUsername         string `env:"COUCHBASE_USERNAME" envDefault:"Administrator"`
	CouchbasePassword         string `env:"COUCHBASE_PASSWORD" envDefault:"password"`
	CouchbaseBucketName       string `env:"COUCHBASE_BUCKET_NAME" envDefault:"servolog"`
	CouchbaseScopeName        string `env:"COUCHBASE_SCOPE_NAME" envDefault:"default"`
	CouchbaseCollectionName   string `env:"COUCHBASE_COLLECTION_NAME" envDefault:"records"`

	Gateway gateway.Config
	WS      ws.Config
	Forward forwarder.Config
	Catalog catalog.Config
	Metrics metrics.ServerConfig
	Tracing tracing.Config
}

func main() {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to parse environment variables: %v", err)
	}

	config := zap.NewProductionConfig()

	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		log.Printf("invalid log level %q, defaulting to info: %v", cfg.LogLevel, err)
		zapLevel = zapcore.InfoLevel
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	logger, err := config.Build(zap.AddCaller())
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	registry := metrics.NewRegistry()
	registry.SetSystemInfo(version, time.Now().Format(time.RFC3339))

	metricsServer := metrics.NewServer(cfg.Metrics, registry, logger)

	tracer, tracingCleanup, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Fatalf("failed to initialize tracing: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracingCleanup(shutdownCtx); err != nil {
			logger.Error("failed to cleanup tracing", zap.Error(err))
		}
	}()

	logSink, err := newSink(cfg)
	if err != nil {
		log.Fatalf("failed to create sink: %v", err)
	}
	tracedSink := sink.NewTracedSink(logSink, tracer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fwd, err := forwarder.New(tracedSink, logger, registry, cfg.Forward)
	if err != nil {
		log.Fatalf("failed to create forwarder: %v", err)
	}

	// The workers get their own context so a shutdown signal does not
	// abort in-flight appends; Close drains the queue, then the context
	// is cancelled.
	fwdCtx, fwdCancel := context.WithCancel(context.Background())
	defer fwdCancel()
	fwd.Start(fwdCtx)

	hub, err := bus.NewHub(logger, registry)
	if err != nil {
		log.Fatalf("failed to create bus: %v", err)
	}

	baseCatalog, err := catalog.NewCloudinary(cfg.Catalog, logger)
	if err != nil {
		log.Fatalf("failed to create catalog: %v", err)
	}
	metricsCatalog := catalog.NewMetricsCatalog(baseCatalog, registry)
	cat := catalog.NewTracedCatalog(metricsCatalog, tracer)

	handler, err := gateway.New(hub, fwd, cat, logger, registry, cfg.Gateway, cfg.WS)
	if err != nil {
		log.Fatalf("failed to create gateway: %v", err)
	}

	// No WriteTimeout: subscriber connections are long-lived and the
	// WebSocket layer enforces its own write deadlines.
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sig:
			cancel()
		case <-ctx.Done():
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("relay listening",
			zap.String("addr", server.Addr),
			zap.String("sink", logSink.Name()),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return metricsServer.Start(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("error in goroutine", zap.Error(err))
	}

	fwd.Close()
	fwdCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Stop(shutdownCtx); err != nil {
		logger.Error("failed to stop metrics server", zap.Error(err))
	}

	logger.Info("relay stopped")
}

// newSink builds the durable-log backend selected by SINK_BACKEND.
func newSink(cfg Config) (relay.Sink, error) {
	switch cfg.SinkBackend {
	case "sheet":
		return sink.NewSheet(cfg.SheetAPIURL, cfg.SinkTimeout)
	case "couchbase":
		store, err := newCouchbase(cfg)
		if err != nil {
			return nil, err
		}
		return sink.NewCouchbase(store)
	default:
		return nil, fmt.Errorf("unknown sink backend %q", cfg.SinkBackend)
	}
}

func newCouchbase(cfg Config) (*couchbase.Couchbase[relay.ServoRecord], error) {
	cluster, err := gocb.Connect(cfg.CouchbaseConnectionString, gocb.ClusterOptions{
		Authenticator: gocb.PasswordAuthenticator{
			Username: cfg.CouchbaseUsername,
			Password: cfg.CouchbasePassword,
		},
		TimeoutsConfig: gocb.TimeoutsConfig{
			ConnectTimeout: 10 * time.Second,
			KVTimeout:      5 * time.Second,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to cluster: %w", err)
	}

	bucket := cluster.Bucket(cfg.CouchbaseBucketName)
	if err := bucket.WaitUntilReady(5*time.Second, nil); err != nil {
		return nil, fmt.Errorf("bucket not ready: %w", err)
	}

	collection := bucket.Scope(cfg.CouchbaseScopeName).Collection(cfg.CouchbaseCollectionName)

	return couchbase.New[relay.ServoRecord](cluster, collection)
}
