package models

import (
	"time"
)

// StressAnalysisResult is the outcome of one analysis invocation.
// Produced exactly once per successful gateway call; never mutated after creation.
type StressAnalysisResult struct {
	StressLevel     int       `bson:"stress_level" json:"stress_level"` // 0-100
	AnalysisDetails string    `bson:"analysis_details" json:"analysis_details"`
	Timestamp       time.Time `bson:"timestamp" json:"timestamp"`
}

// CallReport is a persisted stress check record. Owned by exactly one identity
// scope: either an authenticated account (UserID set, stored in MongoDB) or an
// anonymous browser scope (stored in that scope's Redis slot, UserID empty).
type CallReport struct {
	ID             string                `bson:"_id" json:"id"`
	UserID         string                `bson:"user_id,omitempty" json:"-"`
	ContactName    string                `bson:"contact_name,omitempty" json:"contact_name,omitempty"`
	ContactNumber  string                `bson:"contact_number" json:"contact_number"`
	CallDuration   string                `bson:"call_duration" json:"call_duration"` // "N/A" for on-demand checks
	StressAnalysis *StressAnalysisResult `bson:"stress_analysis,omitempty" json:"stress_analysis,omitempty"`
	RecordingURL   string                `bson:"recording_url,omitempty" json:"recording_url,omitempty"`
	Timestamp      time.Time             `bson:"timestamp" json:"timestamp"`
}
