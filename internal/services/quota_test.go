package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stresscall/stresscall-backend/internal/models"
)

func seedProfile(store *stubProfileStore, uid string, used int, tier models.SubscriptionTier, lastReset time.Time) {
	store.profiles[uid] = &models.UserProfile{
		UID:               uid,
		Email:             uid + "@example.com",
		MonthlyChecksUsed: used,
		LastResetDate:     lastReset,
		SubscriptionTier:  tier,
		CreatedAt:         lastReset,
	}
}

func TestQuota_AnonymousUnderLimit(t *testing.T) {
	svc := NewQuotaService(newStubProfileStore(), newStubAnonStore())

	status, err := svc.Status(context.Background(), AnonymousIdentity("scope-1"))
	require.NoError(t, err)
	assert.True(t, status.Allowed)
	assert.Equal(t, 0, status.Used)
	assert.Equal(t, MaxAnonymousChecks, status.Limit)
	assert.Equal(t, MaxAnonymousChecks, status.Remaining())
}

func TestQuota_AnonymousExhaustedWantsSignup(t *testing.T) {
	anon := newStubAnonStore()
	anon.counters["scope-2"] = MaxAnonymousChecks
	svc := NewQuotaService(newStubProfileStore(), anon)

	status, err := svc.Status(context.Background(), AnonymousIdentity("scope-2"))
	require.NoError(t, err)
	assert.False(t, status.Allowed)
	assert.Equal(t, ReasonSignupRequired, status.Reason)
	assert.Equal(t, 0, status.Remaining())
}

func TestQuota_AnonymousConsumeCountsUp(t *testing.T) {
	anon := newStubAnonStore()
	svc := NewQuotaService(newStubProfileStore(), anon)
	id := AnonymousIdentity("scope-3")

	for i := 1; i <= MaxAnonymousChecks; i++ {
		status, err := svc.Consume(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, i, status.Used)
	}

	status, err := svc.Status(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, status.Allowed)
	assert.Equal(t, ReasonSignupRequired, status.Reason)
}

func TestQuota_FreeTierExhaustedWantsUpgrade(t *testing.T) {
	store := newStubProfileStore()
	now := fixedTime()
	seedProfile(store, "uid-free", MaxFreeMonthlyChecks, models.TierFree, now)

	svc := NewQuotaService(store, newStubAnonStore())
	svc.now = fixedTime

	status, err := svc.Status(context.Background(), AccountIdentity("uid-free"))
	require.NoError(t, err)
	assert.False(t, status.Allowed)
	assert.Equal(t, ReasonUpgradeRequired, status.Reason)
	assert.Equal(t, MaxFreeMonthlyChecks, status.Limit)
}

func TestQuota_FreeTierLastCheckCrossesTheCeiling(t *testing.T) {
	store := newStubProfileStore()
	seedProfile(store, "uid-29", MaxFreeMonthlyChecks-1, models.TierFree, fixedTime())

	svc := NewQuotaService(store, newStubAnonStore())
	svc.now = fixedTime
	id := AccountIdentity("uid-29")

	before, err := svc.Status(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, before.Allowed)
	assert.Equal(t, 1, before.Remaining())

	after, err := svc.Consume(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, MaxFreeMonthlyChecks, after.Used)
	assert.False(t, after.Allowed)
	assert.Equal(t, ReasonUpgradeRequired, after.Reason)
}

func TestQuota_PremiumIsUnlimited(t *testing.T) {
	store := newStubProfileStore()
	seedProfile(store, "uid-prem", 500, models.TierPremium, fixedTime())

	svc := NewQuotaService(store, newStubAnonStore())
	svc.now = fixedTime

	status, err := svc.Status(context.Background(), AccountIdentity("uid-prem"))
	require.NoError(t, err)
	assert.True(t, status.Allowed)
	assert.Equal(t, UnlimitedChecks, status.Limit)
	assert.Equal(t, UnlimitedChecks, status.Remaining())

	consumed, err := svc.Consume(context.Background(), AccountIdentity("uid-prem"))
	require.NoError(t, err)
	assert.True(t, consumed.Allowed)
	assert.Equal(t, 501, consumed.Used)
}

func TestQuota_MonthRolloverResetsCounter(t *testing.T) {
	store := newStubProfileStore()
	lastReset := time.Date(2025, time.February, 20, 0, 0, 0, 0, time.UTC)
	seedProfile(store, "uid-roll", MaxFreeMonthlyChecks, models.TierFree, lastReset)

	svc := NewQuotaService(store, newStubAnonStore())
	svc.now = fixedTime // March 10

	status, err := svc.Status(context.Background(), AccountIdentity("uid-roll"))
	require.NoError(t, err)
	assert.True(t, status.Allowed)
	assert.Equal(t, 0, status.Used)

	// The reset was written back, not just computed.
	stored, err := store.Get(context.Background(), "uid-roll")
	require.NoError(t, err)
	assert.Equal(t, 0, stored.MonthlyChecksUsed)
	assert.Equal(t, fixedTime(), stored.LastResetDate)
}

func TestQuota_SameMonthDoesNotReset(t *testing.T) {
	store := newStubProfileStore()
	lastReset := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	seedProfile(store, "uid-same", 12, models.TierFree, lastReset)

	svc := NewQuotaService(store, newStubAnonStore())
	svc.now = fixedTime // March 10

	status, err := svc.Status(context.Background(), AccountIdentity("uid-same"))
	require.NoError(t, err)
	assert.Equal(t, 12, status.Used)
}

func TestQuota_ResetWriteBackFailureFallsBackToStaleCounter(t *testing.T) {
	store := newStubProfileStore()
	store.resetErr = errors.New("write refused")
	lastReset := time.Date(2025, time.February, 20, 0, 0, 0, 0, time.UTC)
	seedProfile(store, "uid-stale", 12, models.TierFree, lastReset)

	svc := NewQuotaService(store, newStubAnonStore())
	svc.now = fixedTime

	status, err := svc.Status(context.Background(), AccountIdentity("uid-stale"))
	require.Error(t, err)
	// The stale counter still gates the check rather than silently granting.
	assert.Equal(t, 12, status.Used)
	assert.True(t, status.Allowed)
}

func TestQuota_ConsumeBlockedAtCeiling(t *testing.T) {
	store := newStubProfileStore()
	seedProfile(store, "uid-cap", MaxFreeMonthlyChecks, models.TierFree, fixedTime())

	svc := NewQuotaService(store, newStubAnonStore())
	svc.now = fixedTime

	status, err := svc.Consume(context.Background(), AccountIdentity("uid-cap"))
	require.NoError(t, err)
	assert.False(t, status.Allowed)
	assert.Equal(t, ReasonUpgradeRequired, status.Reason)

	stored, err := store.Get(context.Background(), "uid-cap")
	require.NoError(t, err)
	assert.Equal(t, MaxFreeMonthlyChecks, stored.MonthlyChecksUsed, "blocked consume must not increment")
}

func TestQuota_MissingProfileIsAnError(t *testing.T) {
	svc := NewQuotaService(newStubProfileStore(), newStubAnonStore())

	_, err := svc.Status(context.Background(), AccountIdentity("uid-ghost"))
	assert.Error(t, err)
}

func TestMonthRolledOver(t *testing.T) {
	feb := time.Date(2025, time.February, 28, 23, 0, 0, 0, time.UTC)
	mar := time.Date(2025, time.March, 1, 0, 30, 0, 0, time.UTC)
	dec := time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC)
	jan := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

	assert.True(t, monthRolledOver(feb, mar))
	assert.True(t, monthRolledOver(dec, jan), "year boundary counts as rollover")
	assert.False(t, monthRolledOver(mar, mar))
	assert.False(t, monthRolledOver(mar, feb), "clock skew backwards never resets")
}
