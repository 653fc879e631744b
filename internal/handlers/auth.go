package handlers

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stresscall/stresscall-backend/internal/database"
	"github.com/stresscall/stresscall-backend/internal/models"
	"github.com/stresscall/stresscall-backend/internal/services"
	"github.com/stresscall/stresscall-backend/pkg/utils"
)

const passwordProviderID = "password"

// Signup Request
type SignupRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

// Signin Request
type SigninRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// FederatedSigninRequest carries the provider-asserted identity after a
// federated (e.g. Google popup) flow completes on the client.
type FederatedSigninRequest struct {
	ProviderID  string `json:"provider_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`
}

// ChangePasswordRequest for password changes
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// UpdateProfileRequest for display name / phone number edits
type UpdateProfileRequest struct {
	DisplayName string `json:"display_name,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

// Auth Response
type AuthResponse struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	User    map[string]interface{} `json:"user,omitempty"`
	Token   string                 `json:"token,omitempty"`
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(AuthResponse{Success: false, Message: message})
}

// userProfileMap shapes a profile document for JSON responses.
func userProfileMap(p *models.UserProfile) map[string]interface{} {
	return map[string]interface{}{
		"uid":                 p.UID,
		"email":               p.Email,
		"display_name":        p.DisplayName,
		"photo_url":           p.PhotoURL,
		"phone_number":        p.PhoneNumber,
		"monthly_checks_used": p.MonthlyChecksUsed,
		"last_reset_date":     p.LastResetDate,
		"subscription_tier":   p.SubscriptionTier,
		"created_at":          p.CreatedAt,
		"provider_id":         p.ProviderID,
	}
}

// Signup handles email/password registration. The profile document is
// created as part of the first session, with default quota fields.
func Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAuthError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		writeAuthError(w, http.StatusBadRequest, "A valid email is required")
		return
	}
	if len(req.Password) < 6 {
		writeAuthError(w, http.StatusBadRequest, "Password must be at least 6 characters")
		return
	}

	// Check if account already exists
	var existingEmail string
	err := database.PostgresDB.QueryRow("SELECT email FROM accounts WHERE LOWER(email) = $1", req.Email).Scan(&existingEmail)
	if err == nil {
		writeAuthError(w, http.StatusConflict, "An account with this email already exists")
		return
	} else if err != sql.ErrNoRows {
		writeAuthError(w, http.StatusInternalServerError, "Database error")
		return
	}

	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		writeAuthError(w, http.StatusInternalServerError, "Failed to hash password")
		return
	}

	accountID := uuid.New()
	now := time.Now()
	_, err = database.PostgresDB.Exec(`
		INSERT INTO accounts (id, email, password_hash, provider_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, accountID, req.Email, hashedPassword, passwordProviderID, now)
	if err != nil {
		writeAuthError(w, http.StatusInternalServerError, "Failed to create account")
		return
	}

	startSession(w, r, accountID, services.ProviderIdentity{
		Email:       req.Email,
		DisplayName: strings.TrimSpace(req.DisplayName),
		PhoneNumber: strings.TrimSpace(req.PhoneNumber),
		ProviderID:  passwordProviderID,
	}, http.StatusCreated, "Account created successfully")
}

// Signin handles email/password login.
func Signin(w http.ResponseWriter, r *http.Request) {
	var req SigninRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAuthError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		writeAuthError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	var accountID uuid.UUID
	var passwordHash, providerID string
	err := database.PostgresDB.QueryRow(`
		SELECT id, password_hash, provider_id FROM accounts
		WHERE LOWER(email) = $1 AND is_active = TRUE
	`, req.Email).Scan(&accountID, &passwordHash, &providerID)
	if err != nil {
		if err == sql.ErrNoRows {
			writeAuthError(w, http.StatusUnauthorized, "Invalid email or password")
		} else {
			writeAuthError(w, http.StatusInternalServerError, "Database error")
		}
		return
	}

	if providerID != passwordProviderID || passwordHash == "" {
		writeAuthError(w, http.StatusUnauthorized, "This account uses a federated sign-in provider")
		return
	}

	valid, err := utils.VerifyPassword(req.Password, passwordHash)
	if err != nil || !valid {
		writeAuthError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	startSession(w, r, accountID, services.ProviderIdentity{
		Email:      req.Email,
		ProviderID: passwordProviderID,
	}, http.StatusOK, "Login successful")
}

// FederatedSignin handles the completion of a federated sign-in flow.
// The account row is created on first sight with an empty password hash.
func FederatedSignin(w http.ResponseWriter, r *http.Request) {
	var req FederatedSigninRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAuthError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.ProviderID = strings.TrimSpace(req.ProviderID)
	if req.Email == "" || req.ProviderID == "" || req.ProviderID == passwordProviderID {
		writeAuthError(w, http.StatusBadRequest, "A federated provider and email are required")
		return
	}

	var accountID uuid.UUID
	err := database.PostgresDB.QueryRow(`
		SELECT id FROM accounts WHERE LOWER(email) = $1 AND is_active = TRUE
	`, req.Email).Scan(&accountID)
	if err == sql.ErrNoRows {
		accountID = uuid.New()
		_, err = database.PostgresDB.Exec(`
			INSERT INTO accounts (id, email, password_hash, provider_id, created_at)
			VALUES ($1, $2, '', $3, $4)
		`, accountID, req.Email, req.ProviderID, time.Now())
	}
	if err != nil {
		writeAuthError(w, http.StatusInternalServerError, "Database error")
		return
	}

	startSession(w, r, accountID, services.ProviderIdentity{
		Email:       req.Email,
		DisplayName: strings.TrimSpace(req.DisplayName),
		PhotoURL:    strings.TrimSpace(req.PhotoURL),
		ProviderID:  req.ProviderID,
	}, http.StatusOK, "Login successful")
}

// startSession ensures the profile document and issues the session. A
// profile-ensure failure degrades to signed-out: no session is created and
// the error is surfaced.
func startSession(w http.ResponseWriter, r *http.Request, accountID uuid.UUID, provider services.ProviderIdentity, status int, message string) {
	profile, err := profileService.Ensure(r.Context(), accountID.String(), provider)
	if err != nil {
		log.Printf("Failed to ensure profile for %s: %v", accountID, err)
		writeAuthError(w, http.StatusInternalServerError, "Failed to load user profile")
		return
	}

	token, err := services.CreateSession(accountID)
	if err != nil {
		log.Printf("Failed to create session for %s: %v", accountID, err)
		writeAuthError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	setClientSessionCookie(w, true)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(AuthResponse{
		Success: true,
		Message: message,
		User:    userProfileMap(profile),
		Token:   token,
	})
}

// Signout invalidates the caller's session.
func Signout(w http.ResponseWriter, r *http.Request) {
	token := extractBearerToken(r.Header.Get("Authorization"))
	if token != "" {
		if err := services.InvalidateSession(token); err != nil {
			log.Printf("Failed to invalidate session: %v", err)
		}
	}
	setClientSessionCookie(w, false)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(AuthResponse{Success: true, Message: "Signed out"})
}

// GetMe returns the authenticated caller's profile.
func GetMe(w http.ResponseWriter, r *http.Request) {
	accountID := currentAccount(r)
	if accountID == nil {
		writeAuthError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	profile, err := profileService.Get(r.Context(), accountID.String())
	if err != nil {
		writeAuthError(w, http.StatusInternalServerError, "Failed to load user profile")
		return
	}

	// Sliding expiration: active clients keep their session alive.
	if token := extractBearerToken(r.Header.Get("Authorization")); token != "" {
		services.RefreshSession(token)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(AuthResponse{Success: true, Message: "OK", User: userProfileMap(profile)})
}

// UpdateProfile edits the caller's display name and/or phone number.
func UpdateProfile(w http.ResponseWriter, r *http.Request) {
	accountID := currentAccount(r)
	if accountID == nil {
		writeAuthError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAuthError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	displayName := strings.TrimSpace(req.DisplayName)
	phoneNumber := strings.TrimSpace(req.PhoneNumber)
	if displayName == "" && phoneNumber == "" {
		writeAuthError(w, http.StatusBadRequest, "Nothing to update")
		return
	}

	if err := profileService.UpdateDetails(r.Context(), accountID.String(), displayName, phoneNumber); err != nil {
		writeAuthError(w, http.StatusInternalServerError, "Failed to update profile")
		return
	}

	profile, err := profileService.Get(r.Context(), accountID.String())
	if err != nil {
		writeAuthError(w, http.StatusInternalServerError, "Failed to load user profile")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(AuthResponse{Success: true, Message: "Profile updated", User: userProfileMap(profile)})
}

// ChangePassword updates the caller's password. Federated accounts have no
// password to change and are rejected with a distinct message.
func ChangePassword(w http.ResponseWriter, r *http.Request) {
	accountID := currentAccount(r)
	if accountID == nil {
		writeAuthError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAuthError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.NewPassword) < 6 {
		writeAuthError(w, http.StatusBadRequest, "New password must be at least 6 characters")
		return
	}

	var passwordHash, providerID string
	err := database.PostgresDB.QueryRow(`
		SELECT password_hash, provider_id FROM accounts WHERE id = $1 AND is_active = TRUE
	`, accountID).Scan(&passwordHash, &providerID)
	if err != nil {
		writeAuthError(w, http.StatusInternalServerError, "Database error")
		return
	}

	if providerID != passwordProviderID || passwordHash == "" {
		writeAuthError(w, http.StatusBadRequest, "Password change is not available for accounts using a federated sign-in provider")
		return
	}

	valid, err := utils.VerifyPassword(req.CurrentPassword, passwordHash)
	if err != nil || !valid {
		writeAuthError(w, http.StatusUnauthorized, "Current password is incorrect")
		return
	}

	newHash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		writeAuthError(w, http.StatusInternalServerError, "Failed to hash password")
		return
	}

	if _, err := database.PostgresDB.Exec(`UPDATE accounts SET password_hash = $1 WHERE id = $2`, newHash, accountID); err != nil {
		writeAuthError(w, http.StatusInternalServerError, "Failed to update password")
		return
	}

	// Existing sessions are invalidated so the new password takes effect everywhere.
	services.InvalidateAccountSessions(*accountID)
	setClientSessionCookie(w, false)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(AuthResponse{Success: true, Message: "Password changed. Please sign in again."})
}
