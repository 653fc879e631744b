package services

import (
	"context"
	"errors"
	"time"

	"github.com/stresscall/stresscall-backend/internal/models"
)

// stubProfileStore is an in-memory ProfileStore with injectable failures.
type stubProfileStore struct {
	profiles map[string]*models.UserProfile

	getErr    error
	resetErr  error
	updateErr error

	updateCalls int
	lastDelta   map[string]interface{}
}

func newStubProfileStore() *stubProfileStore {
	return &stubProfileStore{profiles: map[string]*models.UserProfile{}}
}

func (s *stubProfileStore) Get(ctx context.Context, uid string) (*models.UserProfile, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	p, ok := s.profiles[uid]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *stubProfileStore) Insert(ctx context.Context, profile *models.UserProfile) error {
	cp := *profile
	s.profiles[profile.UID] = &cp
	return nil
}

func (s *stubProfileStore) Update(ctx context.Context, uid string, delta map[string]interface{}) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updateCalls++
	s.lastDelta = delta
	p, ok := s.profiles[uid]
	if !ok {
		return errors.New("no profile")
	}
	for k, v := range delta {
		switch k {
		case "display_name":
			p.DisplayName = v.(string)
		case "photo_url":
			p.PhotoURL = v.(string)
		case "phone_number":
			p.PhoneNumber = v.(string)
		case "email":
			p.Email = v.(string)
		case "provider_id":
			p.ProviderID = v.(string)
		case "last_reset_date":
			p.LastResetDate = v.(time.Time)
		case "subscription_tier":
			p.SubscriptionTier = v.(models.SubscriptionTier)
		case "created_at":
			p.CreatedAt = v.(time.Time)
		}
	}
	return nil
}

func (s *stubProfileStore) ResetMonthly(ctx context.Context, uid string, now time.Time) error {
	if s.resetErr != nil {
		return s.resetErr
	}
	p, ok := s.profiles[uid]
	if !ok {
		return errors.New("no profile")
	}
	p.MonthlyChecksUsed = 0
	p.LastResetDate = now
	return nil
}

func (s *stubProfileStore) ConsumeCheck(ctx context.Context, uid string, limit int) (*models.UserProfile, error) {
	p, ok := s.profiles[uid]
	if !ok {
		return nil, errors.New("no profile")
	}
	if limit >= 0 && p.MonthlyChecksUsed >= limit {
		return nil, nil
	}
	p.MonthlyChecksUsed++
	cp := *p
	return &cp, nil
}

func (s *stubProfileStore) SetTier(ctx context.Context, uid string, tier models.SubscriptionTier) error {
	p, ok := s.profiles[uid]
	if !ok {
		return errors.New("no profile")
	}
	p.SubscriptionTier = tier
	return nil
}

// stubAnonStore is an in-memory AnonScopeStore.
type stubAnonStore struct {
	counters map[string]int
	reports  map[string]string
}

func newStubAnonStore() *stubAnonStore {
	return &stubAnonStore{counters: map[string]int{}, reports: map[string]string{}}
}

func (s *stubAnonStore) ChecksUsed(ctx context.Context, scopeID string) (int, error) {
	return s.counters[scopeID], nil
}

func (s *stubAnonStore) IncrementChecks(ctx context.Context, scopeID string) (int, error) {
	s.counters[scopeID]++
	return s.counters[scopeID], nil
}

func (s *stubAnonStore) Reports(ctx context.Context, scopeID string) (string, error) {
	return s.reports[scopeID], nil
}

func (s *stubAnonStore) SetReports(ctx context.Context, scopeID, raw string) error {
	s.reports[scopeID] = raw
	return nil
}
