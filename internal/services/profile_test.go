package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stresscall/stresscall-backend/internal/models"
)

func fixedTime() time.Time {
	return time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
}

func TestEnsure_CreatesProfileOnFirstSight(t *testing.T) {
	store := newStubProfileStore()
	svc := NewProfileService(store)
	svc.now = fixedTime

	profile, err := svc.Ensure(context.Background(), "uid-1", ProviderIdentity{
		Email:      "jordan@example.com",
		ProviderID: "password",
	})
	require.NoError(t, err)

	assert.Equal(t, "uid-1", profile.UID)
	assert.Equal(t, "jordan@example.com", profile.Email)
	assert.Equal(t, "jordan", profile.DisplayName)
	assert.Equal(t, models.TierFree, profile.SubscriptionTier)
	assert.Equal(t, 0, profile.MonthlyChecksUsed)
	assert.Equal(t, fixedTime(), profile.LastResetDate)
	assert.Equal(t, fixedTime(), profile.CreatedAt)
	assert.Equal(t, "password", profile.ProviderID)

	stored, err := store.Get(context.Background(), "uid-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
}

func TestEnsure_NoProviderDataFallsBackToAnonymousName(t *testing.T) {
	store := newStubProfileStore()
	svc := NewProfileService(store)
	svc.now = fixedTime

	profile, err := svc.Ensure(context.Background(), "uid-2", ProviderIdentity{})
	require.NoError(t, err)
	assert.Equal(t, "Anonymous User", profile.DisplayName)
	assert.Equal(t, "unknown", profile.ProviderID)
}

func TestEnsure_SecondSignInWithSameDataWritesNothing(t *testing.T) {
	store := newStubProfileStore()
	svc := NewProfileService(store)
	svc.now = fixedTime

	provider := ProviderIdentity{
		Email:       "pat@example.com",
		DisplayName: "Pat",
		PhotoURL:    "https://example.com/pat.png",
		ProviderID:  "google.com",
	}

	_, err := svc.Ensure(context.Background(), "uid-3", provider)
	require.NoError(t, err)

	_, err = svc.Ensure(context.Background(), "uid-3", provider)
	require.NoError(t, err)
	assert.Equal(t, 0, store.updateCalls, "unchanged provider data must not produce writes")
}

func TestEnsure_ProviderUpdatesOverwriteStoredFields(t *testing.T) {
	store := newStubProfileStore()
	svc := NewProfileService(store)
	svc.now = fixedTime

	_, err := svc.Ensure(context.Background(), "uid-4", ProviderIdentity{
		DisplayName: "Old Name",
		ProviderID:  "google.com",
	})
	require.NoError(t, err)

	profile, err := svc.Ensure(context.Background(), "uid-4", ProviderIdentity{
		DisplayName: "New Name",
		PhotoURL:    "https://example.com/new.png",
		ProviderID:  "google.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "New Name", profile.DisplayName)
	assert.Equal(t, "https://example.com/new.png", profile.PhotoURL)
	assert.Equal(t, 1, store.updateCalls)
}

func TestReconcileProfile_EmptyProviderFieldsNeverClobber(t *testing.T) {
	stored := &models.UserProfile{
		UID:              "uid-5",
		Email:            "sam@example.com",
		DisplayName:      "Sam",
		PhotoURL:         "https://example.com/sam.png",
		LastResetDate:    fixedTime(),
		SubscriptionTier: models.TierFree,
		CreatedAt:        fixedTime(),
		ProviderID:       "password",
	}

	merged, delta := ReconcileProfile(stored, ProviderIdentity{}, fixedTime())
	assert.Empty(t, delta)
	assert.Equal(t, stored.DisplayName, merged.DisplayName)
	assert.Equal(t, stored.Email, merged.Email)
	assert.Equal(t, stored.PhotoURL, merged.PhotoURL)
}

func TestReconcileProfile_BackfillsMissingBookkeeping(t *testing.T) {
	stored := &models.UserProfile{UID: "uid-6", Email: "a@b.co"}

	merged, delta := ReconcileProfile(stored, ProviderIdentity{ProviderID: "password"}, fixedTime())
	assert.Equal(t, fixedTime(), merged.LastResetDate)
	assert.Equal(t, models.TierFree, merged.SubscriptionTier)
	assert.Equal(t, fixedTime(), merged.CreatedAt)
	assert.Equal(t, "password", merged.ProviderID)
	assert.Contains(t, delta, "last_reset_date")
	assert.Contains(t, delta, "subscription_tier")
	assert.Contains(t, delta, "created_at")
	assert.Contains(t, delta, "provider_id")
}

func TestReconcileProfile_Idempotent(t *testing.T) {
	stored := &models.UserProfile{UID: "uid-7", Email: "x@y.co"}
	provider := ProviderIdentity{DisplayName: "X", ProviderID: "google.com"}

	merged, delta := ReconcileProfile(stored, provider, fixedTime())
	require.NotEmpty(t, delta)

	// Running reconciliation on its own output is a no-op.
	again, delta2 := ReconcileProfile(merged, provider, fixedTime())
	assert.Empty(t, delta2)
	assert.Equal(t, merged, again)
}

func TestUpdateDetails_EmptyInputIsNoop(t *testing.T) {
	store := newStubProfileStore()
	svc := NewProfileService(store)

	require.NoError(t, svc.UpdateDetails(context.Background(), "uid-8", "", ""))
	assert.Equal(t, 0, store.updateCalls)
}
