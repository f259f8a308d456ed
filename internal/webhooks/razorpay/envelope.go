package razorpaywebhook

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/angelmondragon/storefront-orders/pkg/razorpay"
)

// envelope is the outer shape of a gateway webhook body.
type envelope struct {
	ID       string                  `json:"id"`
	Event    string                  `json:"event"`
	Contains []string                `json:"contains"`
	Payload  map[string]entityHolder `json:"payload"`
}

type entityHolder struct {
	Entity map[string]interface{} `json:"entity"`
}

func decodeEnvelope(body []byte) (*envelope, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return &envelope{}, err
	}
	env.Event = strings.TrimSpace(env.Event)
	return &env, nil
}

func (e *envelope) entity(name string) map[string]interface{} {
	if e == nil || e.Payload == nil {
		return nil
	}
	holder, ok := e.Payload[name]
	if !ok {
		return nil
	}
	return holder.Entity
}

func (e *envelope) payment() *razorpay.Payment {
	if m := e.entity("payment"); m != nil {
		return razorpay.PaymentFromMap(m)
	}
	return nil
}

func (e *envelope) refund() *razorpay.Refund {
	if m := e.entity("refund"); m != nil {
		return razorpay.RefundFromMap(m)
	}
	return nil
}

func (e *envelope) orderID() string {
	if m := e.entity("order"); m != nil {
		if id, ok := m["id"].(string); ok && id != "" {
			return id
		}
	}
	if p := e.payment(); p != nil {
		return p.OrderID
	}
	return ""
}

// describe picks the entity the log row is indexed by.
func (e *envelope) describe() (entityType, entityID string) {
	for _, name := range []string{"refund", "payment", "order"} {
		if m := e.entity(name); m != nil {
			id, _ := m["id"].(string)
			return name, id
		}
	}
	return "", ""
}

// eventID prefers the delivery header, then the payload id, then a digest of
// the raw body so redeliveries of identical bodies collapse.
func eventID(header string, env *envelope, body []byte) string {
	if id := strings.TrimSpace(header); id != "" {
		return id
	}
	if env != nil && strings.TrimSpace(env.ID) != "" {
		return strings.TrimSpace(env.ID)
	}
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
