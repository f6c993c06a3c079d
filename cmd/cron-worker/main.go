package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/garagebid/garagebid-backend/internal/cron"
	"github.com/garagebid/garagebid-backend/internal/disputes"
	"github.com/garagebid/garagebid-backend/internal/fees"
	"github.com/garagebid/garagebid-backend/internal/fulfillment"
	"github.com/garagebid/garagebid-backend/internal/notifications"
	"github.com/garagebid/garagebid-backend/internal/payouts"
	"github.com/garagebid/garagebid-backend/pkg/config"
	"github.com/garagebid/garagebid-backend/pkg/db"
	"github.com/garagebid/garagebid-backend/pkg/logger"
	"github.com/garagebid/garagebid-backend/pkg/metrics"
	"github.com/garagebid/garagebid-backend/pkg/migrate"
	"github.com/garagebid/garagebid-backend/pkg/pubsub"
	"github.com/garagebid/garagebid-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	notifier := notifications.NewNoopNotifier()
	if cfg.GCP.ProjectID != "" {
		pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()
		notifier, err = notifications.NewPubSubNotifier(pubsubClient, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create notifier", err)
			os.Exit(1)
		}
	}

	mkt := metrics.NewMarketplaceMetrics(prometheus.DefaultRegisterer)
	calc := fees.NewCalculator(cfg.Marketplace)

	payoutRepo := payouts.NewRepository(dbClient.DB())
	payoutSvc, err := payouts.NewService(payoutRepo, dbClient, notifier, logg, mkt)
	if err != nil {
		logg.Error(context.Background(), "failed to create payout service", err)
		os.Exit(1)
	}

	disputeSvc, err := disputes.NewService(
		disputes.NewRepository(dbClient.DB()),
		fulfillment.NewRepository(dbClient.DB()),
		payoutRepo,
		dbClient,
		calc,
		notifier,
		logg,
		mkt,
		cfg.Marketplace,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create dispute service", err)
		os.Exit(1)
	}

	payoutJob, err := cron.NewPayoutReleaseJob(cron.PayoutReleaseJobParams{Logger: logg, Payouts: payoutSvc})
	if err != nil {
		logg.Error(context.Background(), "failed to create payout release job", err)
		os.Exit(1)
	}
	disputeJob, err := cron.NewDisputeAutoResolveJob(cron.DisputeAutoResolveJobParams{Logger: logg, Disputes: disputeSvc})
	if err != nil {
		logg.Error(context.Background(), "failed to create dispute auto-resolve job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, cfg.Cron.LockKey, cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(payoutJob, disputeJob),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}
