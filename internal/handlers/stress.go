package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/stresscall/stresscall-backend/internal/models"
	"github.com/stresscall/stresscall-backend/internal/services"
)

// AnalyzeStressRequest is the JSON body for POST /api/stress/analyze.
// Multipart uploads with a "file" part are accepted as an alternative.
type AnalyzeStressRequest struct {
	Base64Data string `json:"base64_data"`
	MimeType   string `json:"mime_type"`
}

// AnalyzeStressResponse carries the analysis outcome, the persisted report
// and the caller's post-check quota.
type AnalyzeStressResponse struct {
	Success  bool                         `json:"success"`
	Message  string                       `json:"message,omitempty"`
	Analysis *models.StressAnalysisResult `json:"analysis,omitempty"`
	Report   *models.CallReport           `json:"report,omitempty"`
	Quota    *services.QuotaStatus        `json:"quota,omitempty"`
	Peaks    []float64                    `json:"peaks,omitempty"`
}

// QuotaResponse is the body for GET /api/stress/quota.
type QuotaResponse struct {
	Success bool                  `json:"success"`
	Message string                `json:"message,omitempty"`
	Quota   *services.QuotaStatus `json:"quota,omitempty"`
}

func writeAnalyzeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(AnalyzeStressResponse{Success: false, Message: message})
}

// AnalyzeStress runs one stress check: quota gate, payload validation,
// gateway call, quota consumption, best-effort recording archive, report
// write. The ReportStore backend is selected once from the caller's identity
// and threaded through.
func AnalyzeStress(w http.ResponseWriter, r *http.Request) {
	identity := resolveIdentity(w, r)

	// Quota gate. For authenticated callers this also applies the monthly
	// reset; a reset write-back failure is reported, not swallowed.
	status, err := quotaService.Status(r.Context(), identity)
	if err != nil {
		log.Printf("Quota evaluation failed: %v", err)
		writeAnalyzeError(w, http.StatusInternalServerError, "Could not verify your remaining checks. Please try again.")
		return
	}
	if !status.Allowed {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(AnalyzeStressResponse{
			Success: false,
			Message: quotaExhaustedMessage(status.Reason),
			Quota:   &status,
		})
		return
	}

	base64Data, mimeType, ok := readAudioPayload(w, r)
	if !ok {
		return
	}

	raw, mediaType, err := services.DecodeRecording(base64Data, mimeType)
	if err != nil {
		writeAnalyzeError(w, http.StatusBadRequest, err.Error())
		return
	}

	analysis, err := analysisService.Analyze(r.Context(), base64Data, mediaType)
	if err != nil {
		var analysisErr *services.AnalysisError
		if errors.As(err, &analysisErr) {
			log.Printf("Analysis gateway error: %v", analysisErr)
			writeAnalyzeError(w, http.StatusBadGateway, analysisErr.Message)
			return
		}
		log.Printf("Analysis failed: %v", err)
		writeAnalyzeError(w, http.StatusBadGateway, "AI analysis failed. Please try again.")
		return
	}

	consumed, err := quotaService.Consume(r.Context(), identity)
	if err != nil {
		log.Printf("Failed to record check for identity: %v", err)
		writeAnalyzeError(w, http.StatusInternalServerError, "Could not record this check. Please try again.")
		return
	}

	// Archive is best effort: a missing archive never fails the check.
	recordingURL := ""
	if recordingArchive != nil {
		url, err := recordingArchive.Upload(r.Context(), raw, mediaType)
		if err != nil {
			log.Printf("Failed to archive recording: %v", err)
		} else {
			recordingURL = url
		}
	}

	store := reportSelector.ForIdentity(identity)
	report, err := store.Save(r.Context(), *analysis, recordingURL)
	if err != nil {
		log.Printf("Failed to save report: %v", err)
		writeAnalyzeError(w, http.StatusInternalServerError, "The analysis completed but the report could not be saved.")
		return
	}

	// Peaks are only available for PCM payloads; omitted otherwise.
	peaks := services.WAVPeaks(raw, 48)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(AnalyzeStressResponse{
		Success:  true,
		Analysis: analysis,
		Report:   &report,
		Quota:    &consumed,
		Peaks:    peaks,
	})
}

// GetQuota returns the caller's current quota state without consuming a check.
func GetQuota(w http.ResponseWriter, r *http.Request) {
	identity := resolveIdentity(w, r)

	status, err := quotaService.Status(r.Context(), identity)
	if err != nil {
		log.Printf("Quota evaluation failed: %v", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(QuotaResponse{Success: false, Message: "Could not load your remaining checks."})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(QuotaResponse{Success: true, Quota: &status})
}

// readAudioPayload accepts either a JSON body or a multipart "file" part and
// returns the base64 payload plus its media type.
func readAudioPayload(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(int64(services.MaxRecordingBytes)); err != nil {
			writeAnalyzeError(w, http.StatusBadRequest, "Invalid multipart form")
			return "", "", false
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeAnalyzeError(w, http.StatusBadRequest, "No audio file provided")
			return "", "", false
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, int64(services.MaxRecordingBytes)+1))
		if err != nil {
			writeAnalyzeError(w, http.StatusBadRequest, "Failed to read audio file")
			return "", "", false
		}
		return services.EncodeRecording(data), header.Header.Get("Content-Type"), true
	}

	var req AnalyzeStressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAnalyzeError(w, http.StatusBadRequest, "Invalid request body")
		return "", "", false
	}

	// Accept a full data URI in base64_data as well.
	if strings.HasPrefix(req.Base64Data, "data:") {
		mediaType, payload, err := services.SplitDataURI(req.Base64Data)
		if err != nil {
			writeAnalyzeError(w, http.StatusBadRequest, "Malformed audio data URI")
			return "", "", false
		}
		if req.MimeType == "" {
			req.MimeType = mediaType
		}
		req.Base64Data = payload
	}

	if req.Base64Data == "" || req.MimeType == "" {
		writeAnalyzeError(w, http.StatusBadRequest, "Base64 audio data and MIME type are required.")
		return "", "", false
	}
	return req.Base64Data, req.MimeType, true
}

func quotaExhaustedMessage(reason string) string {
	switch reason {
	case services.ReasonSignupRequired:
		return "You have used all of your free anonymous checks. Sign up to continue."
	case services.ReasonUpgradeRequired:
		return "You have used all of this month's checks. Upgrade to premium for unlimited checks."
	}
	return "No checks remaining."
}
