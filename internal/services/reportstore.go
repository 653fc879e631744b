package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/stresscall/stresscall-backend/internal/database"
	"github.com/stresscall/stresscall-backend/internal/models"
)

const (
	reportsCollection = "reports"
	// OnDemandContactName labels reports produced by the on-demand stress
	// check rather than a monitored call.
	OnDemandContactName = "On-Demand Stress Check"
	// OnDemandCallDuration is the duration placeholder for on-demand checks.
	OnDemandCallDuration = "N/A"

	maxListedReports = 100
)

// ReportStore persists completed analyses as CallReports for one identity
// scope and lists them newest first. The two backends share this contract:
// the anonymous one is a per-browser Redis slot, the authenticated one a
// per-account MongoDB collection. Select a backend once at the top of a
// workflow with ForIdentity and thread it through by passing.
type ReportStore interface {
	Save(ctx context.Context, analysis models.StressAnalysisResult, recordingURL string) (models.CallReport, error)
	List(ctx context.Context) ([]models.CallReport, error)
}

// ReportSelector resolves the ReportStore backend for an identity.
type ReportSelector struct {
	anon AnonScopeStore
	now  func() time.Time
}

func NewReportSelector(anon AnonScopeStore) *ReportSelector {
	return &ReportSelector{anon: anon, now: time.Now}
}

// ForIdentity returns the backend owning the identity's reports.
func (s *ReportSelector) ForIdentity(id Identity) ReportStore {
	if id.Authenticated() {
		return &accountReportStore{uid: id.UID, now: s.now}
	}
	return &anonReportStore{scopeID: id.AnonID, slots: s.anon, now: s.now}
}

// newReport assembles the CallReport shell around an analysis result.
// The id is generated here, before any write is issued, so it stays stable
// even if the write is retried.
func newReport(analysis models.StressAnalysisResult, recordingURL string, now time.Time) models.CallReport {
	return models.CallReport{
		ID:             uuid.NewString(),
		ContactName:    OnDemandContactName,
		ContactNumber:  analysis.Timestamp.Format("1/2/2006, 3:04:05 PM"),
		CallDuration:   OnDemandCallDuration,
		StressAnalysis: &analysis,
		RecordingURL:   recordingURL,
		Timestamp:      now,
	}
}

// --- Anonymous backend (Redis JSON slot, newest first by prepending) ---

type anonReportStore struct {
	scopeID string
	slots   AnonScopeStore
	now     func() time.Time
}

func (s *anonReportStore) Save(ctx context.Context, analysis models.StressAnalysisResult, recordingURL string) (models.CallReport, error) {
	reports, err := s.load(ctx)
	if err != nil {
		return models.CallReport{}, err
	}

	report := newReport(analysis, recordingURL, s.now())
	reports = append([]models.CallReport{report}, reports...)

	raw, err := json.Marshal(reports)
	if err != nil {
		return models.CallReport{}, fmt.Errorf("encode report list: %w", err)
	}
	if err := s.slots.SetReports(ctx, s.scopeID, string(raw)); err != nil {
		return models.CallReport{}, fmt.Errorf("write report list: %w", err)
	}
	return report, nil
}

func (s *anonReportStore) List(ctx context.Context) ([]models.CallReport, error) {
	return s.load(ctx)
}

func (s *anonReportStore) load(ctx context.Context) ([]models.CallReport, error) {
	raw, err := s.slots.Reports(ctx, s.scopeID)
	if err != nil {
		return nil, fmt.Errorf("read report list: %w", err)
	}
	if raw == "" {
		return []models.CallReport{}, nil
	}
	var reports []models.CallReport
	if err := json.Unmarshal([]byte(raw), &reports); err != nil {
		return nil, fmt.Errorf("decode report list: %w", err)
	}
	return reports, nil
}

// --- Authenticated backend (MongoDB, explicit descending sort) ---

type accountReportStore struct {
	uid string
	now func() time.Time
}

func (s *accountReportStore) Save(ctx context.Context, analysis models.StressAnalysisResult, recordingURL string) (models.CallReport, error) {
	report := newReport(analysis, recordingURL, s.now())
	report.UserID = s.uid

	_, err := database.DB.Collection(reportsCollection).InsertOne(ctx, report)
	if err != nil {
		return models.CallReport{}, fmt.Errorf("insert report: %w", err)
	}
	return report, nil
}

func (s *accountReportStore) List(ctx context.Context) ([]models.CallReport, error) {
	findOptions := options.Find()
	findOptions.SetSort(bson.M{"timestamp": -1})
	findOptions.SetLimit(maxListedReports)

	cursor, err := database.DB.Collection(reportsCollection).Find(ctx, bson.M{"user_id": s.uid}, findOptions)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer cursor.Close(ctx)

	reports := []models.CallReport{}
	if err := cursor.All(ctx, &reports); err != nil {
		return nil, fmt.Errorf("decode reports: %w", err)
	}
	return reports, nil
}
