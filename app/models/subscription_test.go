package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestIsEntitling(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{SubscriptionStatusActive, true},
		{SubscriptionStatusTrialing, true},
		{SubscriptionStatusPastDue, false},
		{SubscriptionStatusCanceled, false},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			s := &Subscription{Status: tt.status}
			assert.Equal(t, tt.want, s.IsEntitling())
		})
	}
}

func TestLeadsRemaining(t *testing.T) {
	plan := &Plan{LeadsPerMonth: 250}

	s := &Subscription{LeadsUsedThisMonth: 40}
	assert.Equal(t, 210, s.LeadsRemaining(plan))

	// Over quota clamps to zero instead of going negative.
	s.LeadsUsedThisMonth = 300
	assert.Equal(t, 0, s.LeadsRemaining(plan))

	assert.Equal(t, 0, s.LeadsRemaining(nil))
}

func TestPlanIsFree(t *testing.T) {
	assert.True(t, (&Plan{}).IsFree())
	assert.False(t, (&Plan{Price: decimal.NewFromInt(39)}).IsFree())
}
