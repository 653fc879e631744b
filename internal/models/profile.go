package models

import (
	"time"
)

type SubscriptionTier string

const (
	TierFree    SubscriptionTier = "free"
	TierPremium SubscriptionTier = "premium"
)

// UserProfile is the per-account profile document in MongoDB (collection
// "users", _id = account UID). Created on first authenticated session and
// reconciled against the identity provider on every subsequent sign-in.
type UserProfile struct {
	UID               string           `bson:"_id" json:"uid"`
	Email             string           `bson:"email" json:"email"`
	DisplayName       string           `bson:"display_name" json:"display_name"`
	PhotoURL          string           `bson:"photo_url,omitempty" json:"photo_url,omitempty"`
	PhoneNumber       string           `bson:"phone_number,omitempty" json:"phone_number,omitempty"`
	MonthlyChecksUsed int              `bson:"monthly_checks_used" json:"monthly_checks_used"`
	LastResetDate     time.Time        `bson:"last_reset_date" json:"last_reset_date"`
	SubscriptionTier  SubscriptionTier `bson:"subscription_tier" json:"subscription_tier"`
	CreatedAt         time.Time        `bson:"created_at" json:"created_at"`
	ProviderID        string           `bson:"provider_id" json:"provider_id"`
}

// IsPremium reports whether the profile is on the premium tier.
func (p *UserProfile) IsPremium() bool {
	return p.SubscriptionTier == TierPremium
}
