package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/garagebid/garagebid-backend/api/routes"
	"github.com/garagebid/garagebid-backend/internal/bids"
	"github.com/garagebid/garagebid-backend/internal/disputes"
	"github.com/garagebid/garagebid-backend/internal/fees"
	"github.com/garagebid/garagebid-backend/internal/fulfillment"
	"github.com/garagebid/garagebid-backend/internal/negotiation"
	"github.com/garagebid/garagebid-backend/internal/notifications"
	"github.com/garagebid/garagebid-backend/internal/payouts"
	"github.com/garagebid/garagebid-backend/internal/requests"
	"github.com/garagebid/garagebid-backend/internal/subscriptions"
	"github.com/garagebid/garagebid-backend/internal/wallets"
	"github.com/garagebid/garagebid-backend/internal/zones"
	"github.com/garagebid/garagebid-backend/pkg/config"
	"github.com/garagebid/garagebid-backend/pkg/db"
	"github.com/garagebid/garagebid-backend/pkg/logger"
	"github.com/garagebid/garagebid-backend/pkg/metrics"
	"github.com/garagebid/garagebid-backend/pkg/migrate"
	"github.com/garagebid/garagebid-backend/pkg/pubsub"
	"github.com/garagebid/garagebid-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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
	} else {
		logg.Warn(context.Background(), "GCP project not configured, notifications disabled")
	}

	mkt := metrics.NewMarketplaceMetrics(prometheus.DefaultRegisterer)
	calc := fees.NewCalculator(cfg.Marketplace)

	requestRepo := requests.NewRepository(dbClient.DB())
	bidRepo := bids.NewRepository(dbClient.DB())
	negotiationRepo := negotiation.NewRepository(dbClient.DB())
	fulfillmentRepo := fulfillment.NewRepository(dbClient.DB())
	payoutRepo := payouts.NewRepository(dbClient.DB())
	disputeRepo := disputes.NewRepository(dbClient.DB())
	walletRepo := wallets.NewRepository(dbClient.DB())

	commission, err := subscriptions.NewCommissionResolver(subscriptions.NewRepository(dbClient.DB()), cfg.Marketplace)
	requireService(logg, "commission resolver", err)

	deliveryFee, err := zones.NewFeeResolver(zones.NewRepository(dbClient.DB()), cfg.Marketplace)
	requireService(logg, "delivery fee resolver", err)

	requestSvc, err := requests.NewService(requestRepo, dbClient, notifier, logg)
	requireService(logg, "request service", err)

	bidSvc, err := bids.NewService(bidRepo, requestRepo, dbClient, commission, deliveryFee, calc, notifier, logg, mkt)
	requireService(logg, "bid service", err)

	negotiationSvc, err := negotiation.NewService(negotiationRepo, dbClient, notifier, logg, cfg.Marketplace)
	requireService(logg, "negotiation service", err)

	walletSvc, err := wallets.NewService(walletRepo, dbClient, calc)
	requireService(logg, "wallet service", err)

	fulfillmentSvc, err := fulfillment.NewService(fulfillmentRepo, payoutRepo, dbClient, walletSvc, calc, notifier, logg, mkt, cfg.Marketplace)
	requireService(logg, "fulfillment service", err)

	payoutSvc, err := payouts.NewService(payoutRepo, dbClient, notifier, logg, mkt)
	requireService(logg, "payout service", err)

	disputeSvc, err := disputes.NewService(disputeRepo, fulfillmentRepo, payoutRepo, dbClient, calc, notifier, logg, mkt, cfg.Marketplace)
	requireService(logg, "dispute service", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, routes.Services{
			Requests:    requestSvc,
			Bids:        bidSvc,
			Negotiation: negotiationSvc,
			Fulfillment: fulfillmentSvc,
			Disputes:    disputeSvc,
			Payouts:     payoutSvc,
			Wallets:     walletSvc,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func requireService(logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), "failed to create "+name, err)
	os.Exit(1)
}
