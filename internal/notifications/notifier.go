package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/garagebid/garagebid-backend/pkg/enums"
	"github.com/garagebid/garagebid-backend/pkg/logger"
	"github.com/garagebid/garagebid-backend/pkg/pubsub"
)

// Event types emitted by the transaction core. Consumers fan these out to
// push, SMS, or email.
const (
	EventBidSubmitted        = "bid.submitted"
	EventBidAccepted         = "bid.accepted"
	EventBidRejected         = "bid.rejected"
	EventCounterOfferMade    = "negotiation.counter_offer_made"
	EventCounterOfferDecided = "negotiation.counter_offer_decided"
	EventOrderStatusChanged  = "order.status_changed"
	EventAssignmentUpdated   = "order.assignment_updated"
	EventDisputeOpened       = "dispute.opened"
	EventDisputeResolved     = "dispute.resolved"
	EventPayoutReleased      = "payout.released"
)

// Event is one notification to one recipient. Payload carries event-specific
// fields the consumer templates from.
type Event struct {
	Recipient     uuid.UUID       `json:"recipient"`
	RecipientRole enums.ActorType `json:"recipient_role"`
	Type          string          `json:"type"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       map[string]any  `json:"payload,omitempty"`
}

// Notifier delivers events to recipients. Delivery is best effort: callers
// fire it after their transaction commits, Notify returns once the event is
// handed to the transport, and broker failures are logged rather than
// surfaced.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

type publisher interface {
	Publish(ctx context.Context, msg *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(ctx context.Context) (string, error)
}

type pubSubNotifier struct {
	publisher publisher
	logg      *logger.Logger
}

// NewPubSubNotifier returns a Notifier that publishes events to the
// notification topic.
func NewPubSubNotifier(client *pubsub.Client, logg *logger.Logger) (Notifier, error) {
	if client == nil {
		return nil, fmt.Errorf("pubsub client required")
	}
	pub := client.NotificationPublisher()
	if pub == nil {
		return nil, fmt.Errorf("notification publisher not configured")
	}
	return &pubSubNotifier{
		publisher: &gcpPublisher{Publisher: pub},
		logg:      logg,
	}, nil
}

func (n *pubSubNotifier) Notify(ctx context.Context, event Event) error {
	if event.Recipient == uuid.Nil {
		return fmt.Errorf("notification recipient required")
	}
	if event.Type == "" {
		return fmt.Errorf("notification type required")
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	msg := &gcppubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event_type":     event.Type,
			"recipient":      event.Recipient.String(),
			"recipient_role": event.RecipientRole.String(),
		},
	}

	// Publish only enqueues; the ack wait must not hold up the request path
	result := n.publisher.Publish(ctx, msg)
	go n.confirm(context.WithoutCancel(ctx), event.Type, result)
	return nil
}

// publishConfirmTimeout bounds how long the background ack wait may hang on
// a slow broker.
const publishConfirmTimeout = 15 * time.Second

func (n *pubSubNotifier) confirm(ctx context.Context, eventType string, result publishResult) {
	ctx, cancel := context.WithTimeout(ctx, publishConfirmTimeout)
	defer cancel()

	id, err := result.Get(ctx)
	if err != nil {
		if n.logg != nil {
			n.logg.Warn(ctx, fmt.Sprintf("notification %s publish failed: %v", eventType, err))
		}
		return
	}
	if n.logg != nil {
		n.logg.Debug(ctx, fmt.Sprintf("notification %s published as %s", eventType, id))
	}
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return p.Publisher.Publish(ctx, msg)
}

type noopNotifier struct{}

// NewNoopNotifier returns a Notifier that drops every event. Used in tests
// and in deployments without a notification topic.
func NewNoopNotifier() Notifier {
	return noopNotifier{}
}

func (noopNotifier) Notify(ctx context.Context, event Event) error {
	return nil
}
