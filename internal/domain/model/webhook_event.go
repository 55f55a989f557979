package model

import (
	"encoding/json"
	"time"
)

// EventKind is the closed set of gateway webhook event types this core
// reconciles. Anything else parses to EventUnknown and is ignored by the
// reconciler, which keeps us forward-compatible with new gateway events.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventPaymentCaptureCompleted
	EventPaymentCaptureDenied
	EventSubscriptionActivated
	EventSubscriptionCancelled
	EventSubscriptionPaymentFailed
)

// PayPal wire names for the recognized event types.
const (
	eventTypeCaptureCompleted = "PAYMENT.CAPTURE.COMPLETED"
	eventTypeCaptureDenied    = "PAYMENT.CAPTURE.DENIED"
	eventTypeSubActivated     = "BILLING.SUBSCRIPTION.ACTIVATED"
	eventTypeSubCancelled     = "BILLING.SUBSCRIPTION.CANCELLED"
	eventTypeSubPaymentFailed = "BILLING.SUBSCRIPTION.PAYMENT.FAILED"
)

// ParseEventKind maps a gateway event-type string to its EventKind.
func ParseEventKind(s string) EventKind {
	switch s {
	case eventTypeCaptureCompleted:
		return EventPaymentCaptureCompleted
	case eventTypeCaptureDenied:
		return EventPaymentCaptureDenied
	case eventTypeSubActivated:
		return EventSubscriptionActivated
	case eventTypeSubCancelled:
		return EventSubscriptionCancelled
	case eventTypeSubPaymentFailed:
		return EventSubscriptionPaymentFailed
	default:
		return EventUnknown
	}
}

func (k EventKind) String() string {
	switch k {
	case EventPaymentCaptureCompleted:
		return eventTypeCaptureCompleted
	case EventPaymentCaptureDenied:
		return eventTypeCaptureDenied
	case EventSubscriptionActivated:
		return eventTypeSubActivated
	case EventSubscriptionCancelled:
		return eventTypeSubCancelled
	case EventSubscriptionPaymentFailed:
		return eventTypeSubPaymentFailed
	default:
		return "UNKNOWN"
	}
}

// WebhookEvent is the parsed envelope of one gateway notification.
type WebhookEvent struct {
	ID         string          `json:"id"`
	Type       string          `json:"event_type"`
	Resource   json.RawMessage `json:"resource"`
	CreateTime time.Time       `json:"create_time"`
}

// Kind returns the EventKind for the envelope's event type.
func (e *WebhookEvent) Kind() EventKind { return ParseEventKind(e.Type) }

// CaptureResource is the resource payload of PAYMENT.CAPTURE.* events.
// The order id lives under supplementary_data on capture events.
type CaptureResource struct {
	ID                string `json:"id"` // capture id
	Status            string `json:"status"`
	SupplementaryData struct {
		RelatedIDs struct {
			OrderID string `json:"order_id"`
		} `json:"related_ids"`
	} `json:"supplementary_data"`
}

// OrderID returns the gateway order id the capture belongs to, falling back
// to the resource id for older event shapes that embed it directly.
func (r *CaptureResource) OrderID() string {
	if id := r.SupplementaryData.RelatedIDs.OrderID; id != "" {
		return id
	}
	return r.ID
}

// SubscriptionResource is the resource payload of BILLING.SUBSCRIPTION.* events.
type SubscriptionResource struct {
	ID          string     `json:"id"` // gateway subscription id
	Status      string     `json:"status"`
	StartTime   *time.Time `json:"start_time"`
	BillingInfo struct {
		LastPayment struct {
			Time *time.Time `json:"time"`
		} `json:"last_payment"`
		NextBillingTime *time.Time `json:"next_billing_time"`
	} `json:"billing_info"`
}

// PeriodBounds returns the billing-period bounds reported by the gateway.
// Absent bounds default to now → now + DefaultPeriodDays.
func (r *SubscriptionResource) PeriodBounds(now time.Time) (start, end time.Time) {
	start = now
	if t := r.BillingInfo.LastPayment.Time; t != nil {
		start = *t
	} else if r.StartTime != nil {
		start = *r.StartTime
	}
	end = start.Add(DefaultPeriodDays * 24 * time.Hour)
	if t := r.BillingInfo.NextBillingTime; t != nil {
		end = *t
	}
	return start, end
}
