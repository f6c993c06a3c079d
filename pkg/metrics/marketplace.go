package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MarketplaceMetrics tracks the transaction core's hot paths.
type MarketplaceMetrics struct {
	bidAcceptances   *prometheus.CounterVec
	orderTransitions *prometheus.CounterVec
	disputesOpened   *prometheus.CounterVec
	payoutsReleased  prometheus.Counter
}

// NewMarketplaceMetrics registers the marketplace metrics on the provided registerer.
func NewMarketplaceMetrics(reg prometheus.Registerer) *MarketplaceMetrics {
	if reg == nil {
		return &MarketplaceMetrics{}
	}
	bidAcceptances := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bid_acceptances_total",
		Help: "Bid acceptance attempts by result.",
	}, []string{"result"})
	orderTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_status_transitions_total",
		Help: "Order status transitions by from/to pair.",
	}, []string{"from", "to"})
	disputesOpened := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "disputes_opened_total",
		Help: "Disputes opened by reason.",
	}, []string{"reason"})
	payoutsReleased := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payouts_released_total",
		Help: "Garage payouts released to processing.",
	})
	reg.MustRegister(bidAcceptances, orderTransitions, disputesOpened, payoutsReleased)
	return &MarketplaceMetrics{
		bidAcceptances:   bidAcceptances,
		orderTransitions: orderTransitions,
		disputesOpened:   disputesOpened,
		payoutsReleased:  payoutsReleased,
	}
}

// IncBidAcceptance counts one acceptance attempt with its result label
// (accepted, conflict, error).
func (m *MarketplaceMetrics) IncBidAcceptance(result string) {
	if m == nil || m.bidAcceptances == nil {
		return
	}
	m.bidAcceptances.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncOrderTransition counts one order status transition.
func (m *MarketplaceMetrics) IncOrderTransition(from, to string) {
	if m == nil || m.orderTransitions == nil {
		return
	}
	m.orderTransitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

// IncDisputeOpened counts one opened dispute by reason.
func (m *MarketplaceMetrics) IncDisputeOpened(reason string) {
	if m == nil || m.disputesOpened == nil {
		return
	}
	m.disputesOpened.WithLabelValues(normalizeLabel(reason)).Inc()
}

// IncPayoutReleased counts one payout moved to processing.
func (m *MarketplaceMetrics) IncPayoutReleased() {
	if m == nil || m.payoutsReleased == nil {
		return
	}
	m.payoutsReleased.Inc()
}
