package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSubscription(now time.Time) *Subscription {
	return &Subscription{
		UserID:                "u1",
		PlanID:                "free",
		IsActive:              true,
		MonthlyCharacterLimit: 10000,
		DailyCharacterLimit:   500,
		MaxVoiceClones:        3,
		UpdatedAt:             now,
	}
}

func TestHasQuotaDailyLimit(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	sub := newTestSubscription(now)
	sub.DailyCharacterUsage = 480

	assert.False(t, sub.HasQuota(now, 30), "480+30 exceeds the 500 daily limit")
	assert.True(t, sub.HasQuota(now, 20), "480+20 is exactly the daily limit")
}

func TestHasQuotaMonthlyLimit(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	sub := newTestSubscription(now)
	sub.MonthlyCharacterUsage = 9990

	// Daily would allow it, monthly must still veto it.
	assert.False(t, sub.HasQuota(now, 11))
	assert.True(t, sub.HasQuota(now, 10))
}

func TestHasQuotaLazyDailyReset(t *testing.T) {
	updated := time.Date(2025, 3, 10, 23, 0, 0, 0, time.UTC)
	sub := newTestSubscription(updated)
	sub.DailyCharacterUsage = 500
	sub.MonthlyCharacterUsage = 500

	// Same calendar date: no reset, daily limit exhausted.
	assert.False(t, sub.HasQuota(updated, 1))
	assert.Equal(t, 500, sub.DailyCharacterUsage)

	// First check on the next date resets the daily counter as a side effect.
	nextDay := time.Date(2025, 3, 11, 0, 30, 0, 0, time.UTC)
	assert.True(t, sub.HasQuota(nextDay, 1))
	assert.Equal(t, 0, sub.DailyCharacterUsage)
	// Monthly usage is untouched by the daily reset.
	assert.Equal(t, 500, sub.MonthlyCharacterUsage)
}

func TestRecordUsageAddsToBothCounters(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	sub := newTestSubscription(now)
	sub.DailyCharacterUsage = 480

	require.True(t, sub.HasQuota(now, 20))
	sub.RecordUsage(20)

	assert.Equal(t, 500, sub.DailyCharacterUsage)
	assert.Equal(t, 20, sub.MonthlyCharacterUsage)
}

func TestDefaultSubscriptionFreeTier(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	sub := DefaultSubscription("u1", now)

	assert.Equal(t, "free", sub.PlanID)
	assert.True(t, sub.IsActive)
	assert.Equal(t, 10000, sub.MonthlyCharacterLimit)
	assert.Equal(t, 500, sub.DailyCharacterLimit)
	assert.Equal(t, 3, sub.MaxVoiceClones)
	assert.Equal(t, now.AddDate(0, 0, 30), sub.CurrentPeriodEnd)
}
