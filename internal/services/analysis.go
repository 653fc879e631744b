package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/stresscall/stresscall-backend/internal/models"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

	analysisPrompt = "You are an expert in analyzing voice recordings to detect stress levels.\n\n" +
		"Analyze the provided voice recording and determine the stress level on a scale of 0 to 100, " +
		"where 0 indicates no stress and 100 indicates maximum stress.\n" +
		"Also, provide a detailed analysis of the voice recording, explaining the factors that " +
		"contribute to the detected stress level."

	maxAnalysisResponseBytes = 1 << 20
)

// AnalysisError wraps any failure of the external analysis capability
// (network, quota, malformed response) into a single human-readable message.
type AnalysisError struct {
	Message string
}

func (e *AnalysisError) Error() string {
	return e.Message
}

func analysisFailed(format string, args ...interface{}) *AnalysisError {
	return &AnalysisError{Message: "AI analysis failed: " + fmt.Sprintf(format, args...)}
}

// AnalysisService calls the hosted generative model with a media-typed audio
// payload and a structured output schema, and normalizes the response into a
// StressAnalysisResult. One invocation per analyze call, no retry.
type AnalysisService struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	now     func() time.Time
}

func NewAnalysisService(apiKey, model string) *AnalysisService {
	return &AnalysisService{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultGeminiBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		now:     time.Now,
	}
}

// Configured reports whether an API key is present.
func (s *AnalysisService) Configured() bool {
	return s.apiKey != ""
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiGenerationConfig struct {
	ResponseMimeType string          `json:"response_mime_type"`
	ResponseSchema   json.RawMessage `json:"response_schema"`
}

// analysisResponseSchema constrains the model output to the two fields the
// result record needs.
var analysisResponseSchema = json.RawMessage(`{
	"type": "OBJECT",
	"properties": {
		"stressLevel": {"type": "NUMBER", "description": "The detected stress level, on a scale of 0 to 100."},
		"analysisDetails": {"type": "STRING", "description": "Detailed analysis of the voice recording related to stress."}
	},
	"required": ["stressLevel", "analysisDetails"]
}`)

// Analyze sends the base64 audio payload to the model and returns the
// normalized result. Every failure comes back as an *AnalysisError.
func (s *AnalysisService) Analyze(ctx context.Context, base64Data, mimeType string) (*models.StressAnalysisResult, error) {
	if base64Data == "" || mimeType == "" {
		return nil, analysisFailed("audio data and media type are required")
	}
	if !s.Configured() {
		return nil, analysisFailed("analysis service is not configured")
	}

	reqBody := geminiRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{
				{Text: analysisPrompt},
				{InlineData: &geminiInlineData{MimeType: mimeType, Data: base64Data}},
			},
		}},
		GenerationConfig: geminiGenerationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   analysisResponseSchema,
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, analysisFailed("encode request: %v", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", s.baseURL, s.model, s.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, analysisFailed("create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, analysisFailed("network error: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAnalysisResponseBytes))
	if err != nil {
		return nil, analysisFailed("read response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, analysisFailed("model returned status %d", resp.StatusCode)
	}

	text, err := extractCandidateText(body)
	if err != nil {
		return nil, analysisFailed("%v", err)
	}

	var out struct {
		StressLevel     float64 `json:"stressLevel"`
		AnalysisDetails string  `json:"analysisDetails"`
	}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, analysisFailed("model output is not valid JSON: %v", err)
	}
	if out.AnalysisDetails == "" {
		return nil, analysisFailed("model output is missing the analysis")
	}

	return &models.StressAnalysisResult{
		StressLevel:     clampStressLevel(out.StressLevel),
		AnalysisDetails: out.AnalysisDetails,
		Timestamp:       s.now(),
	}, nil
}

// extractCandidateText pulls the text of the first candidate part from a
// generateContent response body.
func extractCandidateText(body []byte) (string, error) {
	var resp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("invalid response JSON: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("response contains no candidates")
	}
	text := resp.Candidates[0].Content.Parts[0].Text
	if text == "" {
		return "", fmt.Errorf("response candidate is empty")
	}
	return text, nil
}

// clampStressLevel forces the contractual [0,100] range. The model is a trust
// boundary: an out-of-range value is clamped here rather than stored.
func clampStressLevel(level float64) int {
	if level < 0 {
		return 0
	}
	if level > 100 {
		return 100
	}
	return int(level + 0.5)
}
