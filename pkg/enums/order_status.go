package enums

import (
	"fmt"
	"strconv"
)

// OrderStatus mirrors oc_order.order_status_id. The numeric values are shared
// with the storefront admin and vendor panels and must never be renumbered.
type OrderStatus int

const (
	OrderStatusPending    OrderStatus = 0
	OrderStatusProcessing OrderStatus = 2
	OrderStatusShipped    OrderStatus = 3
	OrderStatusDelivered  OrderStatus = 4
	OrderStatusCancelled  OrderStatus = 7
	OrderStatusRefunded   OrderStatus = 11
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
	OrderStatusRefunded,
}

var orderStatusNames = map[OrderStatus]string{
	OrderStatusPending:    "Pending",
	OrderStatusProcessing: "Processing",
	OrderStatusShipped:    "Shipped",
	OrderStatusDelivered:  "Delivered",
	OrderStatusCancelled:  "Cancelled",
	OrderStatusRefunded:   "Refunded",
}

// allowedTransitions lists the statuses reachable from each status.
var allowedTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusRefunded},
	OrderStatusDelivered:  {OrderStatusRefunded},
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	if name, ok := orderStatusNames[s]; ok {
		return name
	}
	return "Unknown(" + strconv.Itoa(int(s)) + ")"
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	_, ok := orderStatusNames[s]
	return ok
}

// IsTerminal reports whether no further transition can leave the status.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCancelled || s == OrderStatusRefunded
}

// CanTransition reports whether moving from one status to another is a legal edge.
// Re-applying the current status is always allowed and treated as a no-op by callers.
func CanTransition(from, to OrderStatus) bool {
	if !from.IsValid() || !to.IsValid() {
		return false
	}
	if from == to {
		return true
	}
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// ParseOrderStatus converts a raw status id into an OrderStatus.
func ParseOrderStatus(value int) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if int(candidate) == value {
			return candidate, nil
		}
	}
	return 0, fmt.Errorf("invalid order status %d", value)
}

// DescribeStatus renders the customer-facing label. Online payments distinguish
// an order waiting on the gateway from one whose payment has cleared.
func DescribeStatus(status OrderStatus, method PaymentCode) string {
	if method.RequiresGateway() {
		switch status {
		case OrderStatusPending:
			return "Awaiting Payment"
		case OrderStatusProcessing:
			return "Payment Confirmed"
		}
	}
	return status.String()
}
