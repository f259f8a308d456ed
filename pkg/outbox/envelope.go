package outbox

import (
	"encoding/json"
	"time"

	"github.com/angelmondragon/storefront-orders/pkg/enums"
)

// ActorRef identifies who caused the event: a customer, an admin, or a
// system source such as the razorpay webhook.
type ActorRef struct {
	CustomerID uint64 `json:"customer_id,omitempty"`
	Role       string `json:"role,omitempty"`
	Source     string `json:"source,omitempty"`
}

// PayloadEnvelope is what lands in outbox_events.payload and, unchanged, in
// the Pub/Sub message body. Consumers dedupe on EventID.
type PayloadEnvelope struct {
	Version       int                       `json:"version"`
	EventID       string                    `json:"event_id"`
	EventType     enums.OutboxEventType     `json:"event_type"`
	AggregateType enums.OutboxAggregateType `json:"aggregate_type"`
	AggregateID   string                    `json:"aggregate_id"`
	OccurredAt    time.Time                 `json:"occurred_at"`
	Actor         *ActorRef                 `json:"actor,omitempty"`
	Data          json.RawMessage           `json:"data"`
}

// OrderingKey groups the events of one aggregate so subscribers see them in
// emission order.
func (e PayloadEnvelope) OrderingKey() string {
	if e.AggregateID == "" {
		return ""
	}
	return string(e.AggregateType) + ":" + e.AggregateID
}
