package enums

import (
	"fmt"
	"strings"
)

// PaymentCode is the checkout payment method code stored on oc_order.payment_code.
type PaymentCode string

const (
	PaymentCodeCOD      PaymentCode = "cod"
	PaymentCodeRazorpay PaymentCode = "razorpay"
)

var validPaymentCodes = []PaymentCode{
	PaymentCodeCOD,
	PaymentCodeRazorpay,
}

// String implements fmt.Stringer.
func (p PaymentCode) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentCode.
func (p PaymentCode) IsValid() bool {
	for _, candidate := range validPaymentCodes {
		if candidate == p {
			return true
		}
	}
	return false
}

// RequiresGateway reports whether the method settles through the payment gateway.
func (p PaymentCode) RequiresGateway() bool {
	return p == PaymentCodeRazorpay
}

// ParsePaymentCode converts raw input into a PaymentCode.
func ParsePaymentCode(value string) (PaymentCode, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validPaymentCodes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}

// PaymentRecordStatus tracks a gateway order through oc_payment_order.status.
type PaymentRecordStatus string

const (
	PaymentRecordCreated  PaymentRecordStatus = "created"
	PaymentRecordPaid     PaymentRecordStatus = "paid"
	PaymentRecordFailed   PaymentRecordStatus = "failed"
	PaymentRecordRefunded PaymentRecordStatus = "refunded"
)

var validPaymentRecordStatuses = []PaymentRecordStatus{
	PaymentRecordCreated,
	PaymentRecordPaid,
	PaymentRecordFailed,
	PaymentRecordRefunded,
}

// String implements fmt.Stringer.
func (s PaymentRecordStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known PaymentRecordStatus.
func (s PaymentRecordStatus) IsValid() bool {
	for _, candidate := range validPaymentRecordStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParsePaymentRecordStatus converts raw input into a PaymentRecordStatus.
func ParsePaymentRecordStatus(value string) (PaymentRecordStatus, error) {
	for _, candidate := range validPaymentRecordStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment status %q", value)
}

// RefundType classifies a refund against the original captured amount.
type RefundType string

const (
	RefundTypeFull    RefundType = "full"
	RefundTypePartial RefundType = "partial"
)

// String implements fmt.Stringer.
func (r RefundType) String() string {
	return string(r)
}

// RefundStatus mirrors the gateway refund lifecycle.
type RefundStatus string

const (
	RefundStatusPending   RefundStatus = "pending"
	RefundStatusProcessed RefundStatus = "processed"
	RefundStatusFailed    RefundStatus = "failed"
)

// ParseRefundStatus maps gateway refund states, defaulting unknown values to pending.
func ParseRefundStatus(value string) RefundStatus {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(RefundStatusProcessed):
		return RefundStatusProcessed
	case string(RefundStatusFailed):
		return RefundStatusFailed
	default:
		return RefundStatusPending
	}
}
