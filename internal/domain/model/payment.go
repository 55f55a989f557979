package model

import "time"

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"   // order created at gateway; awaiting capture or webhook
	PaymentStatusSucceeded PaymentStatus = "succeeded" // capture confirmed by gateway
	PaymentStatusFailed    PaymentStatus = "failed"    // capture denied or gateway unreachable at capture time
)

// Terminal reports whether no further status transition is permitted.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusSucceeded || s == PaymentStatusFailed
}

// Payment records one gateway order and its local settlement state.
// ExternalOrderID is the gateway-issued order id and the join key between
// gateway events and this row; it is never reused across unrelated payments.
type Payment struct {
	ID              string  // UUID
	TenantID        string  // owning tenant
	InvoiceID       *string // optional invoice settled by this payment
	Amount          int64   // minor currency units (cents); all internal arithmetic stays integer
	Currency        string  // lowercase ISO code, e.g. "usd"
	Method          string  // payment method tag, e.g. "paypal"
	ExternalOrderID string  // gateway order id, unique per gateway
	Status          PaymentStatus
	Description     string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	PaidAt          *time.Time // set when succeeded
	FailedAt        *time.Time // set when failed
}
