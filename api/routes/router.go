package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/garagebid/garagebid-backend/api/controllers"
	bidcontrollers "github.com/garagebid/garagebid-backend/api/controllers/bids"
	disputecontrollers "github.com/garagebid/garagebid-backend/api/controllers/disputes"
	ordercontrollers "github.com/garagebid/garagebid-backend/api/controllers/orders"
	requestcontrollers "github.com/garagebid/garagebid-backend/api/controllers/requests"
	walletcontrollers "github.com/garagebid/garagebid-backend/api/controllers/wallets"
	"github.com/garagebid/garagebid-backend/api/middleware"
	"github.com/garagebid/garagebid-backend/internal/bids"
	"github.com/garagebid/garagebid-backend/internal/disputes"
	"github.com/garagebid/garagebid-backend/internal/fulfillment"
	"github.com/garagebid/garagebid-backend/internal/negotiation"
	"github.com/garagebid/garagebid-backend/internal/payouts"
	"github.com/garagebid/garagebid-backend/internal/requests"
	"github.com/garagebid/garagebid-backend/internal/wallets"
	"github.com/garagebid/garagebid-backend/pkg/config"
	"github.com/garagebid/garagebid-backend/pkg/db"
	"github.com/garagebid/garagebid-backend/pkg/enums"
	"github.com/garagebid/garagebid-backend/pkg/logger"
	"github.com/garagebid/garagebid-backend/pkg/redis"
)

// Services bundles everything the router exposes over HTTP.
type Services struct {
	Requests    requests.Service
	Bids        bids.Service
	Negotiation negotiation.Service
	Fulfillment fulfillment.Service
	Disputes    disputes.Service
	Payouts     payouts.Service
	Wallets     wallets.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	// keep typed-nil redis out of the interface params
	var cacheP interface{ Ping(ctx context.Context) error }
	if redisClient != nil {
		cacheP = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, cacheP))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Identity(logg))
		if redisClient != nil {
			r.Use(middleware.WriteRateLimit(redisClient, logg))
		}

		r.Route("/requests", func(r chi.Router) {
			r.Get("/{requestId}", requestcontrollers.Detail(svcs.Requests, logg))
			r.Get("/{requestId}/bids", bidcontrollers.ListForRequest(svcs.Bids, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.ActorTypeCustomer))
				r.Post("/", requestcontrollers.Create(svcs.Requests, logg))
				r.Get("/", requestcontrollers.List(svcs.Requests, logg))
				r.Post("/{requestId}/cancel", requestcontrollers.Cancel(svcs.Requests, logg))
			})
		})

		r.Route("/bids", func(r chi.Router) {
			r.With(middleware.RequireRole(logg, enums.ActorTypeGarage)).
				Post("/", bidcontrollers.Submit(svcs.Bids, logg))

			r.Get("/{bidId}/negotiation", bidcontrollers.NegotiationHistory(svcs.Negotiation, logg))
			r.With(middleware.RequireRole(logg, enums.ActorTypeCustomer, enums.ActorTypeGarage)).
				Post("/{bidId}/counter-offers", bidcontrollers.CounterOffer(svcs.Negotiation, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.ActorTypeCustomer))
				r.Post("/{bidId}/accept", bidcontrollers.Accept(svcs.Bids, logg))
				r.Post("/{bidId}/accept-last-offer", bidcontrollers.AcceptLastGarageOffer(svcs.Negotiation, logg))
			})
		})

		r.With(middleware.RequireRole(logg, enums.ActorTypeCustomer, enums.ActorTypeGarage)).
			Post("/counter-offers/{offerId}/respond", bidcontrollers.RespondToCounterOffer(svcs.Negotiation, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/{orderId}", ordercontrollers.Detail(svcs.Fulfillment, logg))
			r.Get("/{orderId}/history", ordercontrollers.History(svcs.Fulfillment, logg))
			r.Get("/{orderId}/dispute", disputecontrollers.ForOrder(svcs.Disputes, logg))

			r.With(middleware.RequireRole(logg, enums.ActorTypeGarage)).
				Post("/{orderId}/status", ordercontrollers.GarageUpdateStatus(svcs.Fulfillment, logg))
			r.With(middleware.RequireRole(logg, enums.ActorTypeCustomer)).
				Post("/{orderId}/confirm-delivery", ordercontrollers.ConfirmDelivery(svcs.Fulfillment, logg))
			r.With(middleware.RequireRole(logg, enums.ActorTypeCustomer)).
				Post("/{orderId}/disputes", disputecontrollers.Create(svcs.Disputes, logg))
			r.With(middleware.RequireRole(logg, enums.ActorTypeGarage, enums.ActorTypeOperations)).
				Get("/{orderId}/payout", ordercontrollers.PayoutForOrder(svcs.Payouts, logg))
		})

		r.With(middleware.RequireRole(logg, enums.ActorTypeDriver, enums.ActorTypeOperations)).
			Post("/assignments/{assignmentId}", ordercontrollers.UpdateAssignment(svcs.Fulfillment, logg))

		r.Route("/disputes", func(r chi.Router) {
			r.With(middleware.RequireRole(logg, enums.ActorTypeOperations)).
				Post("/{disputeId}/resolve", disputecontrollers.Resolve(svcs.Disputes, logg))
			r.With(middleware.RequireRole(logg, enums.ActorTypeGarage)).
				Post("/{disputeId}/contest", disputecontrollers.Contest(svcs.Disputes, logg))
		})

		r.With(middleware.RequireRole(logg, enums.ActorTypeOperations)).
			Post("/payouts/{payoutId}/release", ordercontrollers.ReleasePayout(svcs.Payouts, logg))

		r.With(middleware.RequireRole(logg, enums.ActorTypeDriver)).
			Get("/wallet", walletcontrollers.Statement(svcs.Wallets, logg))
	})

	return r
}
