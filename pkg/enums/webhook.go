package enums

// WebhookStatus is the processing state of a logged webhook delivery.
type WebhookStatus string

const (
	WebhookStatusReceived   WebhookStatus = "received"
	WebhookStatusRejected   WebhookStatus = "rejected"
	WebhookStatusProcessed  WebhookStatus = "processed"
	WebhookStatusDuplicate  WebhookStatus = "duplicate"
	WebhookStatusIgnored    WebhookStatus = "ignored"
	WebhookStatusFailed     WebhookStatus = "failed"
	WebhookStatusDeadLetter WebhookStatus = "dead_letter"
)

// String implements fmt.Stringer.
func (s WebhookStatus) String() string {
	return string(s)
}

// GatewayEvent is the event name carried by a gateway webhook envelope.
type GatewayEvent string

const (
	GatewayEventPaymentCaptured GatewayEvent = "payment.captured"
	GatewayEventPaymentFailed   GatewayEvent = "payment.failed"
	GatewayEventPaymentRefunded GatewayEvent = "payment.refunded"
	GatewayEventRefundProcessed GatewayEvent = "refund.processed"
	GatewayEventOrderPaid       GatewayEvent = "order.paid"
)

var handledGatewayEvents = []GatewayEvent{
	GatewayEventPaymentCaptured,
	GatewayEventPaymentFailed,
	GatewayEventPaymentRefunded,
	GatewayEventRefundProcessed,
	GatewayEventOrderPaid,
}

// String implements fmt.Stringer.
func (e GatewayEvent) String() string {
	return string(e)
}

// IsHandled reports whether the ingestor dispatches the event.
func (e GatewayEvent) IsHandled() bool {
	for _, candidate := range handledGatewayEvents {
		if candidate == e {
			return true
		}
	}
	return false
}
