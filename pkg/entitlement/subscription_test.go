package entitlement_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/scolago/entitlements/pkg/entitlement"
)

func TestSubscriptionIsEntitled(t *testing.T) {
	t.Parallel()

	entitled := map[entitlement.SubscriptionStatus]bool{
		entitlement.StatusActive:    true,
		entitlement.StatusTrial:     true,
		entitlement.StatusExpired:   false,
		entitlement.StatusCancelled: false,
		entitlement.StatusSuspended: false,
		entitlement.StatusPending:   false,
	}

	for status, want := range entitled {
		sub := &entitlement.Subscription{
			ID:       "sub-1",
			TenantID: uuid.New(),
			PlanID:   "plan-premium",
			Status:   status,
		}
		assert.Equal(t, want, sub.IsEntitled(), "status %s", status)
	}
}

func TestSubscriptionNewerThan(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	older := &entitlement.Subscription{UpdatedAt: base}
	newer := &entitlement.Subscription{UpdatedAt: base.Add(time.Minute)}
	same := &entitlement.Subscription{UpdatedAt: base}

	assert.True(t, newer.NewerThan(older))
	assert.False(t, older.NewerThan(newer))
	assert.False(t, older.NewerThan(same), "equal timestamps are not strictly newer")
	assert.True(t, older.NewerThan(nil))
}
