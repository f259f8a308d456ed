package routes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	checkoutsvc "github.com/angelmondragon/storefront-orders/internal/checkout"
	"github.com/angelmondragon/storefront-orders/internal/orders"
	"github.com/angelmondragon/storefront-orders/internal/payments"
	razorpaywebhook "github.com/angelmondragon/storefront-orders/internal/webhooks/razorpay"
	"github.com/angelmondragon/storefront-orders/pkg/auth"
	"github.com/angelmondragon/storefront-orders/pkg/config"
	"github.com/angelmondragon/storefront-orders/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-orders/pkg/errors"
	"github.com/angelmondragon/storefront-orders/pkg/logger"
	"github.com/angelmondragon/storefront-orders/pkg/metrics"
)

var testCfg = &config.Config{
	App:      config.AppConfig{Env: "test", CORSOrigins: []string{"http://localhost:3000"}},
	JWT:      config.JWTConfig{Secret: "secret", Issuer: "storefront", ExpirationMinutes: 60},
	Eventing: config.EventingConfig{IdempotencyTTL: time.Hour},
}

type harness struct {
	handler  http.Handler
	checkout *fakeCheckout
	orders   *fakeOrders
	refunds  *fakeRefunds
	webhooks *fakeIngestor
	store    *memoryStore
}

func newHarness(t *testing.T, dbErr error) *harness {
	t.Helper()
	reg := prometheus.NewRegistry()
	h := &harness{
		checkout: &fakeCheckout{},
		orders:   &fakeOrders{},
		refunds:  &fakeRefunds{},
		webhooks: &fakeIngestor{},
		store:    &memoryStore{data: map[string]string{}},
	}
	h.handler = NewRouter(Deps{
		Config:      testCfg,
		Logger:      logger.Nop(),
		DB:          pingFunc(func(context.Context) error { return dbErr }),
		Redis:       pingFunc(func(context.Context) error { return nil }),
		Idempotency: h.store,
		Gatherer:    reg,
		HTTPMetrics: metrics.NewHTTPMetrics(reg),
		Checkout:    h.checkout,
		Orders:      h.orders,
		Payments:    fakePayments{},
		Refunds:     h.refunds,
		Webhooks:    h.webhooks,
	})
	return h
}

func (h *harness) do(t *testing.T, method, path, token, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func token(t *testing.T, payload auth.AccessTokenPayload) string {
	t.Helper()
	tok, err := auth.MintAccessToken(testCfg.JWT, time.Now(), payload)
	require.NoError(t, err)
	return tok
}

func customerToken(t *testing.T, id uint64) string {
	return token(t, auth.AccessTokenPayload{CustomerID: id, Role: enums.RoleCustomer})
}

func adminToken(t *testing.T) string {
	return token(t, auth.AccessTokenPayload{Role: enums.RoleAdmin})
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body struct {
		Success bool           `json:"success"`
		Data    map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body.Success)
	return body.Data
}

func TestHealthEndpoints(t *testing.T) {
	h := newHarness(t, nil)

	live := h.do(t, http.MethodGet, "/health/live", "", "", nil)
	assert.Equal(t, http.StatusOK, live.Code)
	assert.Equal(t, "test", live.Header().Get("X-Storefront-Env"))
	assert.NotEmpty(t, live.Header().Get("X-Request-Id"))

	ready := h.do(t, http.MethodGet, "/health/ready", "", "", nil)
	assert.Equal(t, http.StatusOK, ready.Code)
	assert.Equal(t, "ready", decodeData(t, ready)["status"])

	down := newHarness(t, errors.New("connection refused"))
	notReady := down.do(t, http.MethodGet, "/health/ready", "", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, notReady.Code)
}

func TestMetricsEndpointExposesHTTPCounters(t *testing.T) {
	h := newHarness(t, nil)
	h.do(t, http.MethodGet, "/health/live", "", "", nil)

	rec := h.do(t, http.MethodGet, "/metrics", "", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `storefront_http_requests_total{code="200",method="GET",route="/health/live"} 1`)
}

func TestWebhookNeedsNoToken(t *testing.T) {
	h := newHarness(t, nil)
	h.webhooks.outcome = razorpaywebhook.OutcomeRejected

	rec := h.do(t, http.MethodPost, "/api/v1/razorpay/webhook", "", `{"event":"payment.captured"}`, map[string]string{
		"X-Razorpay-Signature": "sig",
		"X-Razorpay-Event-Id":  "evt_1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "rejected", decodeData(t, rec)["status"])
	assert.Equal(t, "sig", h.webhooks.sig)
	assert.Equal(t, "evt_1", h.webhooks.eventID)
}

func TestWebhookLoggingFailureAnswers500(t *testing.T) {
	h := newHarness(t, nil)
	h.webhooks.err = pkgerrors.New(pkgerrors.CodeInternal, "log webhook event")

	rec := h.do(t, http.MethodPost, "/api/v1/razorpay/webhook", "", `{}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCheckoutRequiresCustomerToken(t *testing.T) {
	h := newHarness(t, nil)
	body := `{"payment_method":"cod","agree_terms":true,"address_id":1}`

	assert.Equal(t, http.StatusUnauthorized, h.do(t, http.MethodPost, "/api/v1/checkout/confirm", "", body, nil).Code)
	assert.Equal(t, http.StatusForbidden, h.do(t, http.MethodPost, "/api/v1/checkout/confirm", adminToken(t), body, nil).Code)

	rec := h.do(t, http.MethodPost, "/api/v1/checkout/confirm", customerToken(t, 7), body, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, uint64(7), h.checkout.input.CustomerID)
	assert.Equal(t, uint64(1), h.checkout.input.ShippingAddressID)
	assert.Equal(t, float64(501), decodeData(t, rec)["order_id"])
}

func TestCheckoutReplaysWithIdempotencyKey(t *testing.T) {
	h := newHarness(t, nil)
	body := `{"payment_method":"cod","agree_terms":true,"shipping_address_id":2}`
	headers := map[string]string{"Idempotency-Key": "checkout-1"}

	first := h.do(t, http.MethodPost, "/api/v1/checkout/confirm", customerToken(t, 7), body, headers)
	second := h.do(t, http.MethodPost, "/api/v1/checkout/confirm", customerToken(t, 7), body, headers)

	require.Equal(t, http.StatusCreated, first.Code)
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, 1, h.checkout.calls)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
}

func TestCheckoutValidationError(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(t, http.MethodPost, "/api/v1/checkout/confirm", customerToken(t, 7), `{"agree_terms":true}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, h.checkout.calls)
}

func TestRefundRequiresAdminAndKey(t *testing.T) {
	h := newHarness(t, nil)
	body := `{"payment_id":"pay_1","amount":"50.00"}`

	assert.Equal(t, http.StatusForbidden, h.do(t, http.MethodPost, "/api/v1/razorpay/refund", customerToken(t, 7), body, nil).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodPost, "/api/v1/razorpay/refund", adminToken(t), body, nil).Code)
	assert.Equal(t, 0, h.refunds.calls)

	rec := h.do(t, http.MethodPost, "/api/v1/razorpay/refund", adminToken(t), body, map[string]string{"Idempotency-Key": "refund-1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "pay_1", h.refunds.input.PaymentID)
	require.NotNil(t, h.refunds.input.Amount)
	assert.Equal(t, "50", h.refunds.input.Amount.String())
	assert.Equal(t, "partial", decodeData(t, rec)["refund_type"])
}

func TestOrderRoutesEnforceRoles(t *testing.T) {
	h := newHarness(t, nil)

	status := h.do(t, http.MethodPost, "/api/v1/orders/12/status", customerToken(t, 7), `{"order_status_id":3}`, nil)
	assert.Equal(t, http.StatusForbidden, status.Code)

	status = h.do(t, http.MethodPost, "/api/v1/orders/12/status", adminToken(t), `{"order_status_id":3,"comment":"dispatched"}`, nil)
	require.Equal(t, http.StatusOK, status.Code)
	assert.Equal(t, 3, h.orders.status)
	assert.Equal(t, "Shipped", decodeData(t, status)["status"])

	cancel := h.do(t, http.MethodPost, "/api/v1/orders/12/cancel", customerToken(t, 7), "", nil)
	require.Equal(t, http.StatusOK, cancel.Code)
	assert.Equal(t, uint64(7), h.orders.customerID)

	history := h.do(t, http.MethodGet, "/api/v1/orders/12/history", adminToken(t), "", nil)
	require.Equal(t, http.StatusOK, history.Code)
	assert.True(t, h.orders.admin)

	bad := h.do(t, http.MethodGet, "/api/v1/orders/abc/history", customerToken(t, 7), "", nil)
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type memoryStore struct {
	data map[string]string
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", goredis.Nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = fmt.Sprint(value)
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string { return scope + ":" + id }

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

type fakeCheckout struct {
	calls int
	input checkoutsvc.ConfirmInput
}

func (f *fakeCheckout) Confirm(_ context.Context, input checkoutsvc.ConfirmInput) (*checkoutsvc.Result, error) {
	f.calls++
	f.input = input
	return &checkoutsvc.Result{OrderID: 501, OrderIDs: []uint64{501}, PaymentMethod: input.PaymentMethod}, nil
}

type fakeOrders struct {
	status     int
	customerID uint64
	admin      bool
}

func (f *fakeOrders) History(_ context.Context, orderID, customerID uint64, admin bool) (*orders.OrderHistoryView, error) {
	f.customerID = customerID
	f.admin = admin
	return &orders.OrderHistoryView{OrderID: orderID, StatusID: 2, Status: "Processing"}, nil
}

func (f *fakeOrders) Cancel(_ context.Context, orderID, customerID uint64, _ string) (*orders.TransitionResult, error) {
	f.customerID = customerID
	return &orders.TransitionResult{OrderID: orderID, From: enums.OrderStatusPending, To: enums.OrderStatusCancelled, Changed: true}, nil
}

func (f *fakeOrders) UpdateStatus(_ context.Context, orderID uint64, status int, _ string) (*orders.TransitionResult, error) {
	f.status = status
	return &orders.TransitionResult{OrderID: orderID, From: enums.OrderStatusProcessing, To: enums.OrderStatus(status), Changed: true}, nil
}

type fakePayments struct{}

func (fakePayments) CreateOrder(context.Context, payments.CreateOrderInput) (*payments.CreateOrderResult, error) {
	return &payments.CreateOrderResult{OrderID: "order_1"}, nil
}

func (fakePayments) VerifyPayment(context.Context, payments.VerifyInput) (*payments.VerifyResult, error) {
	return &payments.VerifyResult{Status: "paid"}, nil
}

func (fakePayments) ExpireStale(context.Context, time.Duration, int) (int, error) { return 0, nil }

type fakeRefunds struct {
	calls int
	input payments.RefundInput
}

func (f *fakeRefunds) CreateRefund(_ context.Context, input payments.RefundInput) (*payments.RefundResult, error) {
	f.calls++
	f.input = input
	return &payments.RefundResult{RefundID: "rfnd_1", Amount: 5000, Status: "processed", RefundType: enums.RefundTypePartial}, nil
}

type fakeIngestor struct {
	outcome razorpaywebhook.Outcome
	err     error
	sig     string
	eventID string
}

func (f *fakeIngestor) Ingest(_ context.Context, _ []byte, sig, eventID string) (razorpaywebhook.Outcome, error) {
	f.sig = sig
	f.eventID = eventID
	if f.err != nil {
		return "", f.err
	}
	return f.outcome, nil
}
