package model

import "time"

type SubscriptionStatus string

const (
	SubscriptionStatusPending  SubscriptionStatus = "pending"  // created at gateway; awaiting approval/activation
	SubscriptionStatusActive   SubscriptionStatus = "active"   // gateway reports the subscription billing normally
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due" // a recurring payment failed
	SubscriptionStatusCanceled SubscriptionStatus = "canceled" // terminal
)

// Terminal reports whether no further status transition is permitted.
func (s SubscriptionStatus) Terminal() bool { return s == SubscriptionStatusCanceled }

// DefaultPeriodDays is the provisional billing-period length assumed until a
// webhook supplies authoritative period bounds from the gateway.
const DefaultPeriodDays = 30

// TenantSubscription is a tenant's single subscription row. TenantID is
// unique: creating a subscription for a tenant that already has one updates
// the existing row in place.
type TenantSubscription struct {
	ID                     string // UUID
	TenantID               string // unique
	ExternalSubscriptionID string // gateway subscription id
	PlanID                 string // gateway plan id
	Tier                   string // internal tier derived from PlanID
	Status                 SubscriptionStatus
	CurrentPeriodStart     time.Time
	CurrentPeriodEnd       time.Time
	CanceledAt             *time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
}
