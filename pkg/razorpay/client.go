// Package razorpay adapts the Razorpay Go SDK to context-aware typed calls.
package razorpay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	rzp "github.com/razorpay/razorpay-go"

	"github.com/angelmondragon/storefront-orders/pkg/config"
)

var ErrNotConfigured = errors.New("razorpay credentials are not configured")

type orderAPI interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type paymentAPI interface {
	Fetch(paymentID string, queryParams map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
	Refund(paymentID string, amount int, data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// Client talks to the Razorpay REST API. The SDK calls are blocking, so every
// call runs against the caller's deadline and is abandoned once it expires.
type Client struct {
	keyID         string
	keySecret     string
	webhookSecret string
	timeout       time.Duration
	orders        orderAPI
	payments      paymentAPI
}

func New(cfg config.RazorpayConfig) (*Client, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}
	sdk := rzp.NewClient(cfg.KeyID, cfg.KeySecret)
	return &Client{
		keyID:         cfg.KeyID,
		keySecret:     cfg.KeySecret,
		webhookSecret: cfg.WebhookSecret,
		timeout:       cfg.Timeout,
		orders:        sdk.Order,
		payments:      sdk.Payment,
	}, nil
}

// KeyID is the publishable key handed to the checkout SDK.
func (c *Client) KeyID() string { return c.keyID }

// KeySecret signs checkout payment signatures.
func (c *Client) KeySecret() string { return c.keySecret }

// WebhookSecret signs webhook bodies.
func (c *Client) WebhookSecret() string { return c.webhookSecret }

type CreateOrderRequest struct {
	Amount   int64
	Currency string
	Receipt  string
	Notes    map[string]string
}

type Order struct {
	ID       string
	Amount   int64
	Currency string
	Receipt  string
	Status   string
}

type Payment struct {
	ID       string
	OrderID  string
	Amount   int64
	Currency string
	Status   string
	Method   string
	Email    string
	Contact  string
}

// Captured reports whether the payment has settled on the gateway.
func (p Payment) Captured() bool {
	return p.Status == "captured"
}

type RefundRequest struct {
	PaymentID string
	Amount    int64
	Receipt   string
	Notes     map[string]string
}

type Refund struct {
	ID        string
	PaymentID string
	Amount    int64
	Currency  string
	Status    string
}

func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	data := map[string]interface{}{
		"amount":   req.Amount,
		"currency": req.Currency,
		"receipt":  req.Receipt,
	}
	if len(req.Notes) > 0 {
		data["notes"] = req.Notes
	}
	body, err := c.call(ctx, func() (map[string]interface{}, error) {
		return c.orders.Create(data, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("razorpay create order: %w", err)
	}
	order := &Order{
		ID:       str(body, "id"),
		Amount:   num(body, "amount"),
		Currency: str(body, "currency"),
		Receipt:  str(body, "receipt"),
		Status:   str(body, "status"),
	}
	if order.ID == "" {
		return nil, errors.New("razorpay create order: response missing id")
	}
	return order, nil
}

func (c *Client) FetchPayment(ctx context.Context, paymentID string) (*Payment, error) {
	body, err := c.call(ctx, func() (map[string]interface{}, error) {
		return c.payments.Fetch(paymentID, nil, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("razorpay fetch payment %s: %w", paymentID, err)
	}
	return PaymentFromMap(body), nil
}

func (c *Client) Refund(ctx context.Context, req RefundRequest) (*Refund, error) {
	data := map[string]interface{}{}
	if req.Receipt != "" {
		data["receipt"] = req.Receipt
	}
	if len(req.Notes) > 0 {
		data["notes"] = req.Notes
	}
	body, err := c.call(ctx, func() (map[string]interface{}, error) {
		return c.payments.Refund(req.PaymentID, int(req.Amount), data, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("razorpay refund %s: %w", req.PaymentID, err)
	}
	refund := RefundFromMap(body)
	if refund.ID == "" {
		return nil, errors.New("razorpay refund: response missing id")
	}
	return refund, nil
}

type callResult struct {
	body map[string]interface{}
	err  error
}

func (c *Client) call(ctx context.Context, fn func() (map[string]interface{}, error)) (map[string]interface{}, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	done := make(chan callResult, 1)
	go func() {
		body, err := fn()
		done <- callResult{body: body, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		if res.err != nil {
			return nil, res.err
		}
		if errMap, ok := res.body["error"].(map[string]interface{}); ok {
			return nil, fmt.Errorf("%s: %s", str(errMap, "code"), str(errMap, "description"))
		}
		return res.body, nil
	}
}

// PaymentFromMap decodes a payment entity as returned by the API or embedded in a webhook.
func PaymentFromMap(m map[string]interface{}) *Payment {
	return &Payment{
		ID:       str(m, "id"),
		OrderID:  str(m, "order_id"),
		Amount:   num(m, "amount"),
		Currency: str(m, "currency"),
		Status:   str(m, "status"),
		Method:   str(m, "method"),
		Email:    str(m, "email"),
		Contact:  str(m, "contact"),
	}
}

// RefundFromMap decodes a refund entity.
func RefundFromMap(m map[string]interface{}) *Refund {
	return &Refund{
		ID:        str(m, "id"),
		PaymentID: str(m, "payment_id"),
		Amount:    num(m, "amount"),
		Currency:  str(m, "currency"),
		Status:    str(m, "status"),
	}
}

func str(m map[string]interface{}, key string) string {
	if m == nil {
		return ""
	}
	switch v := m[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func num(m map[string]interface{}, key string) int64 {
	if m == nil {
		return 0
	}
	switch v := m[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	default:
		return 0
	}
}
