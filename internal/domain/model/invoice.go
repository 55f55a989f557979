package model

import "time"

type InvoiceStatus string

const (
	InvoiceStatusOpen InvoiceStatus = "open"
	InvoiceStatusPaid InvoiceStatus = "paid"
)

// Invoice is owned by the billing CRUD layer outside this core; the
// orchestrator only flips it to paid as a side effect of a Payment
// transitioning to succeeded.
type Invoice struct {
	ID         string // UUID
	TenantID   string
	Status     InvoiceStatus
	AmountDue  int64 // minor currency units
	AmountPaid int64 // minor currency units
	Currency   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
