package services

import (
	"context"
	"fmt"
	"time"
)

const (
	// MaxAnonymousChecks is the lifetime ceiling per anonymous browser scope.
	MaxAnonymousChecks = 5
	// MaxFreeMonthlyChecks is the monthly ceiling for free-tier accounts.
	MaxFreeMonthlyChecks = 30
	// UnlimitedChecks marks a tier with no ceiling.
	UnlimitedChecks = -1
)

// Quota exhaustion reasons. Exhaustion is a state, not an error: the UI uses
// the reason to prompt anonymous users to sign up and free accounts to upgrade.
const (
	ReasonSignupRequired  = "signup_required"
	ReasonUpgradeRequired = "upgrade_required"
)

// QuotaStatus is the ledger's answer for one identity at one instant.
type QuotaStatus struct {
	Allowed bool   `json:"allowed"`
	Used    int    `json:"used"`
	Limit   int    `json:"limit"` // -1 means unlimited
	Reason  string `json:"reason,omitempty"`
}

// Remaining returns how many checks are left, or -1 when unlimited.
func (q QuotaStatus) Remaining() int {
	if q.Limit == UnlimitedChecks {
		return UnlimitedChecks
	}
	if q.Used >= q.Limit {
		return 0
	}
	return q.Limit - q.Used
}

// QuotaService tracks how many analyses an identity has consumed and enforces
// the per-scope ceilings: 5 lifetime checks per anonymous browser, 30 per
// calendar month for free accounts, unlimited for premium.
type QuotaService struct {
	profiles ProfileStore
	anon     AnonScopeStore
	now      func() time.Time
}

func NewQuotaService(profiles ProfileStore, anon AnonScopeStore) *QuotaService {
	return &QuotaService{profiles: profiles, anon: anon, now: time.Now}
}

// Status evaluates the ledger without consuming a check. For authenticated
// identities this performs the monthly reset write-back when the calendar
// month has rolled over; if that write-back fails, the ceiling is evaluated
// against the stale pre-reset counter and the error is surfaced alongside.
func (s *QuotaService) Status(ctx context.Context, id Identity) (QuotaStatus, error) {
	if !id.Authenticated() {
		used, err := s.anon.ChecksUsed(ctx, id.AnonID)
		if err != nil {
			return QuotaStatus{}, fmt.Errorf("read anonymous counter: %w", err)
		}
		return anonymousStatus(used), nil
	}

	profile, err := s.profiles.Get(ctx, id.UID)
	if err != nil {
		return QuotaStatus{}, fmt.Errorf("fetch profile: %w", err)
	}
	if profile == nil {
		return QuotaStatus{}, fmt.Errorf("no profile for uid %s", id.UID)
	}

	used := profile.MonthlyChecksUsed
	now := s.now()
	var resetErr error
	if monthRolledOver(profile.LastResetDate, now) {
		if err := s.profiles.ResetMonthly(ctx, id.UID, now); err != nil {
			// Fall back to the last-known counter rather than silently
			// granting or denying; the caller sees the failure.
			resetErr = fmt.Errorf("monthly quota reset: %w", err)
		} else {
			used = 0
		}
	}

	if profile.IsPremium() {
		return QuotaStatus{Allowed: true, Used: used, Limit: UnlimitedChecks}, resetErr
	}
	return freeTierStatus(used), resetErr
}

// Consume records one check for the identity and returns the post-consumption
// status. The increment is atomic per scope: Redis INCR for anonymous
// counters, a ceiling-guarded FindOneAndUpdate for capped accounts.
func (s *QuotaService) Consume(ctx context.Context, id Identity) (QuotaStatus, error) {
	if !id.Authenticated() {
		used, err := s.anon.IncrementChecks(ctx, id.AnonID)
		if err != nil {
			return QuotaStatus{}, fmt.Errorf("increment anonymous counter: %w", err)
		}
		return anonymousStatus(used), nil
	}

	profile, err := s.profiles.Get(ctx, id.UID)
	if err != nil {
		return QuotaStatus{}, fmt.Errorf("fetch profile: %w", err)
	}
	if profile == nil {
		return QuotaStatus{}, fmt.Errorf("no profile for uid %s", id.UID)
	}

	limit := MaxFreeMonthlyChecks
	if profile.IsPremium() {
		limit = UnlimitedChecks
	}

	updated, err := s.profiles.ConsumeCheck(ctx, id.UID, limit)
	if err != nil {
		return QuotaStatus{}, fmt.Errorf("record check: %w", err)
	}
	if updated == nil {
		// Ceiling blocked the increment (possibly a racing request won).
		return freeTierStatus(limit), nil
	}

	if updated.IsPremium() {
		return QuotaStatus{Allowed: true, Used: updated.MonthlyChecksUsed, Limit: UnlimitedChecks}, nil
	}
	return freeTierStatus(updated.MonthlyChecksUsed), nil
}

func anonymousStatus(used int) QuotaStatus {
	st := QuotaStatus{Used: used, Limit: MaxAnonymousChecks}
	if used < MaxAnonymousChecks {
		st.Allowed = true
	} else {
		st.Reason = ReasonSignupRequired
	}
	return st
}

func freeTierStatus(used int) QuotaStatus {
	st := QuotaStatus{Used: used, Limit: MaxFreeMonthlyChecks}
	if used < MaxFreeMonthlyChecks {
		st.Allowed = true
	} else {
		st.Reason = ReasonUpgradeRequired
	}
	return st
}

// monthRolledOver reports whether now is in a strictly later calendar
// month/year than lastReset.
func monthRolledOver(lastReset, now time.Time) bool {
	if now.Year() != lastReset.Year() {
		return now.Year() > lastReset.Year()
	}
	return now.Month() > lastReset.Month()
}
