// Command gameday-api runs the cross-reference index service: the HTTP
// ingress, the Kafka change-event consumer and the Mongo-backed write and
// read paths.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golobby/container/v3"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	crossref_in "github.com/replay-api/gameday-index/pkg/domain/crossref/ports/in"
	crossref_out "github.com/replay-api/gameday-index/pkg/domain/crossref/ports/out"
	crossref_services "github.com/replay-api/gameday-index/pkg/domain/crossref/services"
	"github.com/replay-api/gameday-index/pkg/infra/config"
	"github.com/replay-api/gameday-index/pkg/infra/httpapi"
	kafka_ingress "github.com/replay-api/gameday-index/pkg/infra/kafka"
	"github.com/replay-api/gameday-index/pkg/infra/mongodb"
	"github.com/replay-api/gameday-index/pkg/metrics"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Fatal("gameday-api exited", zap.Error(err))
	}
}

func run(log *zap.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, disconnect, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = disconnect(shutdownCtx)
	}()

	if err := store.EnsureAggregationIndexes(ctx, cfg.AggregationCollection); err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	c := container.New()
	if err := buildContainer(c, cfg, store, log, m); err != nil {
		return err
	}

	var rebuilder crossref_in.Rebuilder
	var cascader crossref_in.CascadeRebuilder
	var fetcher crossref_in.Fetcher
	if err := c.Resolve(&rebuilder); err != nil {
		return err
	}
	if err := c.Resolve(&cascader); err != nil {
		return err
	}
	if err := c.Resolve(&fetcher); err != nil {
		return err
	}

	router := httpapi.NewRouter(rebuilder, cascader, fetcher, cfg.RequestTimeout, log, registry)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info("http ingress listening", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if len(cfg.KafkaBrokers) > 0 {
		consumer := kafka_ingress.NewConsumer(
			cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID,
			rebuilder, cascader, log,
		)
		defer consumer.Close()
		go func() {
			log.Info("change-event consumer running",
				zap.Strings("brokers", cfg.KafkaBrokers),
				zap.String("topic", cfg.KafkaTopic))
			if err := consumer.Run(ctx); err != nil {
				errCh <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		log.Error("component failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildContainer registers the domain services. Singletons: every request
// shares the same stateless service instances over the shared store.
func buildContainer(c container.Container, cfg *config.Config, store crossref_out.DocumentStore, log *zap.Logger, m *metrics.Metrics) error {
	if err := c.Singleton(func() crossref_in.Rebuilder {
		return crossref_services.NewRebuildService(store, cfg.AggregationCollection, log, m)
	}); err != nil {
		return err
	}
	if err := c.Singleton(func(rebuilder crossref_in.Rebuilder) crossref_in.CascadeRebuilder {
		return crossref_services.NewCascadeService(rebuilder, log, m)
	}); err != nil {
		return err
	}
	return c.Singleton(func() crossref_in.Fetcher {
		return crossref_services.NewFetchService(store, cfg.AggregationCollection, cfg.MaxRouteDepth, log, m)
	})
}
