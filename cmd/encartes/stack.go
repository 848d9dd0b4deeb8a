package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/maltedev/encarte-scraper/internal/api"
	"github.com/maltedev/encarte-scraper/internal/config"
	"github.com/maltedev/encarte-scraper/internal/database"
	"github.com/maltedev/encarte-scraper/internal/events"
	"github.com/maltedev/encarte-scraper/internal/runner"
	"github.com/maltedev/encarte-scraper/internal/storage"
)

// stack is the runner plus the optional catalog, relay and S3 mirror.
type stack struct {
	runner  *runner.Runner
	api     []api.Option
	closers []func()
}

// buildStack wires the optional outputs that are configured. The relay is
// only started when relay is true and REDIS_ADDR is set.
func buildStack(ctx context.Context, cfg *config.Config, logger *slog.Logger, relay bool) (*stack, error) {
	st := &stack{}
	var opts []runner.Option

	if cfg.S3.Bucket != "" {
		mirror, err := storage.NewS3MirrorFromEnv(ctx, cfg.S3.Bucket, cfg.S3.Prefix, cfg.S3.Region, logger)
		if err != nil {
			return nil, err
		}
		opts = append(opts, runner.WithSink(mirror))
		logger.Info("mirroring artifacts to s3", "bucket", cfg.S3.Bucket, "prefix", cfg.S3.Prefix)
	}

	if cfg.Database.Enabled {
		db, err := database.New(ctx, database.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.DBName,
			MaxConns: cfg.Database.MaxConns,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		st.closers = append(st.closers, db.Close)

		if err := db.Migrate(ctx); err != nil {
			st.Close()
			return nil, err
		}

		catalog := database.NewCatalog(db, cfg.Redis.Stream)
		publisher := events.NewPublisher(catalog, logger)
		opts = append(opts, runner.WithSink(publisher), runner.WithHooks(publisher))
		st.api = append(st.api, api.WithArtifacts(catalog.Repository()))

		if relay && cfg.Redis.Addr != "" {
			if err := st.startRelay(ctx, cfg, logger, catalog.Outbox()); err != nil {
				st.Close()
				return nil, err
			}
		}
	}

	st.runner = runner.New(cfg, logger, opts...)
	return st, nil
}

func (st *stack) startRelay(ctx context.Context, cfg *config.Config, logger *slog.Logger, outbox *database.OutboxRepository) error {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	r := database.NewRelay(outbox, client, logger, database.RelayConfig{
		PollInterval: 5 * time.Second,
		BatchSize:    100,
		StreamMaxLen: cfg.Redis.StreamMax,
	})

	relayCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := r.Start(relayCtx); err != nil && err != context.Canceled {
			logger.Error("relay stopped with error", "error", err)
		}
	}()

	st.api = append(st.api, api.WithBacklog(r.Backlog))
	st.closers = append(st.closers, func() {
		cancel()
		<-done
		client.Close()
	})
	return nil
}

// Close releases resources in reverse order of acquisition.
func (st *stack) Close() {
	for i := len(st.closers) - 1; i >= 0; i-- {
		st.closers[i]()
	}
}
