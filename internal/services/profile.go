package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/stresscall/stresscall-backend/internal/models"
)

// ProviderIdentity is what the identity provider asserts about an account at
// sign-in time. Empty fields mean the provider supplied nothing for them.
type ProviderIdentity struct {
	Email       string
	DisplayName string
	PhotoURL    string
	PhoneNumber string
	ProviderID  string // "password" or a federated provider like "google.com"
}

// ProfileStore is the narrow persistence interface the profile and quota
// services need. The production implementation is backed by the MongoDB
// "users" collection; tests use an in-memory stub.
type ProfileStore interface {
	// Get returns the profile for uid, or (nil, nil) when no document exists.
	Get(ctx context.Context, uid string) (*models.UserProfile, error)
	Insert(ctx context.Context, profile *models.UserProfile) error
	// Update applies a field delta to the profile document.
	Update(ctx context.Context, uid string, delta map[string]interface{}) error
	// ResetMonthly zeroes monthly_checks_used and advances last_reset_date.
	ResetMonthly(ctx context.Context, uid string, now time.Time) error
	// ConsumeCheck atomically increments monthly_checks_used, refusing the
	// increment when a non-negative limit is already reached. Returns the
	// updated profile, or (nil, nil) when the ceiling blocked the increment.
	ConsumeCheck(ctx context.Context, uid string, limit int) (*models.UserProfile, error)
	SetTier(ctx context.Context, uid string, tier models.SubscriptionTier) error
}

// ProfileService bridges identity-provider sessions to profile documents:
// create on first sight, reconcile drift on subsequent sign-ins.
type ProfileService struct {
	store ProfileStore
	now   func() time.Time
}

func NewProfileService(store ProfileStore) *ProfileService {
	return &ProfileService{store: store, now: time.Now}
}

// Ensure fetches the profile document for uid, creating it with default quota
// fields if absent, or reconciling provider-supplied fields if present.
// Reconciliation is idempotent: unchanged provider data produces no writes.
func (s *ProfileService) Ensure(ctx context.Context, uid string, provider ProviderIdentity) (*models.UserProfile, error) {
	existing, err := s.store.Get(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}

	now := s.now()

	if existing == nil {
		profile := &models.UserProfile{
			UID:               uid,
			Email:             provider.Email,
			DisplayName:       defaultDisplayName(provider),
			PhotoURL:          provider.PhotoURL,
			PhoneNumber:       provider.PhoneNumber,
			MonthlyChecksUsed: 0,
			LastResetDate:     now,
			SubscriptionTier:  models.TierFree,
			CreatedAt:         now,
			ProviderID:        providerOrUnknown(provider.ProviderID),
		}
		if err := s.store.Insert(ctx, profile); err != nil {
			return nil, fmt.Errorf("create profile: %w", err)
		}
		return profile, nil
	}

	merged, delta := ReconcileProfile(existing, provider, now)
	if len(delta) > 0 {
		if err := s.store.Update(ctx, uid, delta); err != nil {
			return nil, fmt.Errorf("update profile: %w", err)
		}
	}
	return merged, nil
}

// Get returns the stored profile, or an error when it does not exist.
func (s *ProfileService) Get(ctx context.Context, uid string) (*models.UserProfile, error) {
	profile, err := s.store.Get(ctx, uid)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, fmt.Errorf("profile not found for uid %s", uid)
	}
	return profile, nil
}

// UpdateDetails writes a display name and/or phone number change.
func (s *ProfileService) UpdateDetails(ctx context.Context, uid, displayName, phoneNumber string) error {
	delta := map[string]interface{}{}
	if displayName != "" {
		delta["display_name"] = displayName
	}
	if phoneNumber != "" {
		delta["phone_number"] = phoneNumber
	}
	if len(delta) == 0 {
		return nil
	}
	return s.store.Update(ctx, uid, delta)
}

// SetTier flips the subscription tier (billing webhook).
func (s *ProfileService) SetTier(ctx context.Context, uid string, tier models.SubscriptionTier) error {
	return s.store.SetTier(ctx, uid, tier)
}

// ReconcileProfile merges provider-supplied fields into a stored profile.
// It returns the merged profile and the minimal delta to persist; an empty
// delta means the stored document already matches the provider. The stored
// value wins unless the provider supplies a fresher non-empty one, and
// missing bookkeeping fields are backfilled with defaults.
func ReconcileProfile(stored *models.UserProfile, provider ProviderIdentity, now time.Time) (*models.UserProfile, map[string]interface{}) {
	merged := *stored
	delta := map[string]interface{}{}

	if provider.DisplayName != "" && provider.DisplayName != stored.DisplayName {
		merged.DisplayName = provider.DisplayName
		delta["display_name"] = provider.DisplayName
	}
	if provider.PhotoURL != "" && provider.PhotoURL != stored.PhotoURL {
		merged.PhotoURL = provider.PhotoURL
		delta["photo_url"] = provider.PhotoURL
	}
	if provider.Email != "" && stored.Email == "" {
		merged.Email = provider.Email
		delta["email"] = provider.Email
	}
	if stored.ProviderID == "" && provider.ProviderID != "" {
		merged.ProviderID = provider.ProviderID
		delta["provider_id"] = provider.ProviderID
	}

	// Backfill quota bookkeeping fields older documents may lack.
	if stored.LastResetDate.IsZero() {
		merged.LastResetDate = now
		delta["last_reset_date"] = now
	}
	if stored.SubscriptionTier == "" {
		merged.SubscriptionTier = models.TierFree
		delta["subscription_tier"] = models.TierFree
	}
	if stored.CreatedAt.IsZero() {
		merged.CreatedAt = now
		delta["created_at"] = now
	}

	return &merged, delta
}

func defaultDisplayName(provider ProviderIdentity) string {
	if provider.DisplayName != "" {
		return provider.DisplayName
	}
	if provider.Email != "" {
		if at := strings.Index(provider.Email, "@"); at > 0 {
			return provider.Email[:at]
		}
	}
	return "Anonymous User"
}

func providerOrUnknown(providerID string) string {
	if providerID == "" {
		return "unknown"
	}
	return providerID
}
