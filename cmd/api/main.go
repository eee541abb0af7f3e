package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"

	"example.com/sitetracker/internal/api"
	"example.com/sitetracker/internal/assistant"
	"example.com/sitetracker/internal/config"
	"example.com/sitetracker/internal/consumer"
	"example.com/sitetracker/internal/domain"
	"example.com/sitetracker/internal/feed"
	"example.com/sitetracker/internal/logging"
	"example.com/sitetracker/internal/outbox"
	persistence "example.com/sitetracker/internal/persistence/postgres"
	"example.com/sitetracker/internal/seed"
	"example.com/sitetracker/internal/tracker"
	httptransport "example.com/sitetracker/internal/transport/http"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error().Err(err).Msg("site tracker stopped")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	initial, err := seed.Load(cfg.SeedFile)
	if err != nil {
		return err
	}
	set := domain.NewWorkingSet(initial, cfg.ViewCacheSize)

	opts := []tracker.Option{tracker.WithLogger(logger.With().Str("component", "tracker").Logger())}

	if cfg.PostgresURL != "" {
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return err
		}
		defer pool.Close()

		audit := persistence.NewAuditStore(pool)
		if err := audit.EnsureSchema(ctx); err != nil {
			return err
		}
		opts = append(opts, tracker.WithAuditor(audit))
	}

	if len(cfg.KafkaBrokers) > 0 {
		producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
		defer producer.Close()

		var publisher *outbox.Publisher
		if cfg.SchemaRegistryURL != "" {
			publisher = outbox.NewPublisher(producer, outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL, 5*time.Second), cfg.EventsTopic)
		} else {
			publisher = outbox.NewPublisher(producer, nil, cfg.EventsTopic)
		}
		opts = append(opts, tracker.WithPublisher(publisher))
	}

	service := tracker.NewService(set, opts...)

	source, err := feedSource(ctx, cfg)
	if err != nil {
		return err
	}

	handlerOpts := []api.Option{
		api.WithLogger(logger.With().Str("component", "api").Logger()),
		api.WithMaxImportBytes(int64(cfg.MaxImportBytes)),
	}
	if source != nil {
		handlerOpts = append(handlerOpts, api.WithFeed(source))
	} else {
		logger.Info().Msg("feed disabled; working set starts from the seed only")
	}
	if cfg.AssistantWebhookURL != "" {
		handlerOpts = append(handlerOpts, api.WithAssistant(assistant.NewClient(cfg.AssistantWebhookURL, cfg.AssistantTimeout)))
	}

	mux := http.NewServeMux()
	api.NewHandler(service, handlerOpts...).RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:           cfg.HTTPAddress,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      cfg.AssistantTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}, httptransport.LogRequests(logger, httptransport.CORS(cfg.CORSOrigin, mux)))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("address", cfg.HTTPAddress).Msg("site tracker listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("graceful shutdown failed")
		}
		return nil
	})

	if source != nil {
		poller := feed.NewPoller(service, source, cfg.FeedRefreshInterval,
			feed.WithLogger(logger.With().Str("component", "feed").Logger()))
		g.Go(func() error {
			return ignoreCanceled(poller.Run(gctx))
		})
	}

	if len(cfg.KafkaBrokers) > 0 {
		handler := consumer.NewIngestHandler(service)
		for _, topic := range cfg.RowsTopics {
			topic := topic
			reader := kafka.NewReader(kafka.ReaderConfig{
				Brokers:         cfg.KafkaBrokers,
				GroupID:         cfg.ConsumerGroupID,
				Topic:           topic,
				MinBytes:        1,
				MaxBytes:        10e6,
				CommitInterval:  time.Second,
				RetentionTime:   24 * time.Hour,
				ReadLagInterval: -1,
			})
			proc := consumer.NewProcessor(reader, handler,
				consumer.WithLogger(logger.With().Str("component", "consumer").Str("topic", topic).Logger()))

			g.Go(func() error {
				defer reader.Close()
				logger.Info().Str("topic", topic).Str("group", cfg.ConsumerGroupID).Msg("row stream consumer started")
				return ignoreCanceled(proc.Run(gctx))
			})
		}
	}

	return g.Wait()
}

// feedSource picks S3 over HTTP. It returns nil when neither is configured.
func feedSource(ctx context.Context, cfg config.Config) (tracker.Source, error) {
	if cfg.FeedS3Bucket != "" {
		return feed.NewS3Source(ctx, feed.S3Config{
			Bucket:    cfg.FeedS3Bucket,
			Key:       cfg.FeedS3Key,
			Region:    cfg.FeedS3Region,
			Endpoint:  cfg.FeedS3Endpoint,
			PathStyle: cfg.FeedS3PathStyle,
		})
	}
	if cfg.FeedURL == "" {
		return nil, nil
	}
	return feed.NewHTTPSource(cfg.FeedURL, cfg.FeedTimeout), nil
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
