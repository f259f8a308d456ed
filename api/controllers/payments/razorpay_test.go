package payments

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-orders/api/middleware"
	paymentsvc "github.com/angelmondragon/storefront-orders/internal/payments"
	"github.com/angelmondragon/storefront-orders/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-orders/pkg/errors"
)

type recordingService struct {
	create *paymentsvc.CreateOrderInput
	verify *paymentsvc.VerifyInput
	err    error
}

func (s *recordingService) CreateOrder(_ context.Context, input paymentsvc.CreateOrderInput) (*paymentsvc.CreateOrderResult, error) {
	s.create = &input
	if s.err != nil {
		return nil, s.err
	}
	return &paymentsvc.CreateOrderResult{OrderID: "order_1", Amount: 21500, Currency: "INR"}, nil
}

func (s *recordingService) VerifyPayment(_ context.Context, input paymentsvc.VerifyInput) (*paymentsvc.VerifyResult, error) {
	s.verify = &input
	if s.err != nil {
		return nil, s.err
	}
	return &paymentsvc.VerifyResult{Status: "paid", OcOrderID: 9, Amount: 21500}, nil
}

func (s *recordingService) ExpireStale(context.Context, time.Duration, int) (int, error) {
	return 0, nil
}

func asCustomer(req *http.Request, id uint64) *http.Request {
	ctx := middleware.WithRole(req.Context(), enums.RoleCustomer)
	return req.WithContext(middleware.WithCustomerID(ctx, id))
}

func TestCreateOrderUsesSessionCustomer(t *testing.T) {
	svc := &recordingService{}
	req := asCustomer(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":215,"oc_order_id":9}`)), 7)
	rec := httptest.NewRecorder()

	CreateOrder(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.create)
	assert.Equal(t, uint64(7), svc.create.CustomerID)
	assert.Equal(t, "215", svc.create.Amount.String())
	require.NotNil(t, svc.create.OrderID)
	assert.Equal(t, uint64(9), *svc.create.OrderID)
	assert.Contains(t, rec.Body.String(), `"amount":21500`)
}

func TestCreateOrderRejectsForeignCustomer(t *testing.T) {
	svc := &recordingService{}
	req := asCustomer(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":10,"customer_id":8}`)), 7)
	rec := httptest.NewRecorder()

	CreateOrder(svc, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Nil(t, svc.create)
}

func TestCreateOrderRejectsNonPositiveAmount(t *testing.T) {
	svc := &recordingService{}
	req := asCustomer(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":0}`)), 7)
	rec := httptest.NewRecorder()

	CreateOrder(svc, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, svc.create)
}

func TestCreateOrderAdminNamesCustomer(t *testing.T) {
	svc := &recordingService{}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":10,"customer_id":8,"parent_order_id":" P-1 "}`))
	req = req.WithContext(middleware.WithRole(req.Context(), enums.RoleAdmin))
	rec := httptest.NewRecorder()

	CreateOrder(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(8), svc.create.CustomerID)
	require.NotNil(t, svc.create.ParentOrderID)
	assert.Equal(t, "P-1", *svc.create.ParentOrderID)
}

func TestVerifyPaymentSignatureMismatchIs400(t *testing.T) {
	svc := &recordingService{err: pkgerrors.New(pkgerrors.CodeSignature, "payment signature mismatch")}
	body := `{"razorpay_order_id":"order_1","razorpay_payment_id":"pay_1","razorpay_signature":"bad"}`
	req := asCustomer(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), 7)
	rec := httptest.NewRecorder()

	VerifyPayment(svc, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, svc.verify)
	assert.Equal(t, "pay_1", svc.verify.GatewayPaymentID)
}

func TestVerifyPaymentRequiresAllFields(t *testing.T) {
	svc := &recordingService{}
	req := asCustomer(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"razorpay_order_id":"order_1"}`)), 7)
	rec := httptest.NewRecorder()

	VerifyPayment(svc, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, svc.verify)
}

func TestVerifyPaymentPinsSessionCustomer(t *testing.T) {
	svc := &recordingService{}
	body := `{"razorpay_order_id":"order_1","razorpay_payment_id":"pay_1","razorpay_signature":"sig"}`
	req := asCustomer(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), 7)
	rec := httptest.NewRecorder()

	VerifyPayment(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.verify)
	assert.Equal(t, uint64(7), svc.verify.CustomerID)
}

func TestVerifyPaymentAdminIsUnscoped(t *testing.T) {
	svc := &recordingService{}
	body := `{"razorpay_order_id":"order_1","razorpay_payment_id":"pay_1","razorpay_signature":"sig"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req = req.WithContext(middleware.WithRole(req.Context(), enums.RoleAdmin))
	rec := httptest.NewRecorder()

	VerifyPayment(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, svc.verify.CustomerID)
}

func TestVerifyPaymentRequiresSession(t *testing.T) {
	svc := &recordingService{}
	body := `{"razorpay_order_id":"order_1","razorpay_payment_id":"pay_1","razorpay_signature":"sig"}`
	rec := httptest.NewRecorder()

	VerifyPayment(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Nil(t, svc.verify)
}
