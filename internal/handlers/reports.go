package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/stresscall/stresscall-backend/internal/models"
)

// GetReportsResponse is the body for GET /api/reports.
type GetReportsResponse struct {
	Success bool                `json:"success"`
	Message string              `json:"message,omitempty"`
	Reports []models.CallReport `json:"reports"`
	Total   int                 `json:"total"`
}

// GetReports lists the caller's reports, newest first. The backend is the
// caller's own scope: the per-browser slot for anonymous visitors, the
// account collection for signed-in users.
func GetReports(w http.ResponseWriter, r *http.Request) {
	identity := resolveIdentity(w, r)
	store := reportSelector.ForIdentity(identity)

	reports, err := store.List(r.Context())
	if err != nil {
		log.Printf("Failed to list reports: %v", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(GetReportsResponse{
			Success: false,
			Message: "Failed to load reports",
			Reports: []models.CallReport{},
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(GetReportsResponse{
		Success: true,
		Reports: reports,
		Total:   len(reports),
	})
}
