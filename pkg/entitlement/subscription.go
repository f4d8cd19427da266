package entitlement

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus represents the current state of a subscription.
type SubscriptionStatus string

const (
	StatusActive    SubscriptionStatus = "active"
	StatusTrial     SubscriptionStatus = "trial"
	StatusExpired   SubscriptionStatus = "expired"
	StatusCancelled SubscriptionStatus = "cancelled"
	StatusSuspended SubscriptionStatus = "suspended"
	StatusPending   SubscriptionStatus = "pending"
)

// Subscription is the entitlement contract for one tenant (a school group).
// Exactly one subscription is authoritative per tenant at any instant;
// updates are ordered by UpdatedAt.
type Subscription struct {
	ID        string             `json:"id"`
	TenantID  uuid.UUID          `json:"tenantId"`
	PlanID    string             `json:"planId"`
	Status    SubscriptionStatus `json:"status"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// IsEntitled reports whether the subscription currently grants plan access.
// Trial counts as entitled until it expires server-side.
func (s *Subscription) IsEntitled() bool {
	return s.Status == StatusActive || s.Status == StatusTrial
}

// IsCancelled reports whether the subscription has been cancelled.
func (s *Subscription) IsCancelled() bool {
	return s.Status == StatusCancelled
}

// NewerThan reports whether this subscription is strictly newer than other.
// A nil other always compares older.
func (s *Subscription) NewerThan(other *Subscription) bool {
	if other == nil {
		return true
	}
	return s.UpdatedAt.After(other.UpdatedAt)
}

// clone returns a copy so callers can never mutate the Store's state.
func (s *Subscription) clone() *Subscription {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
