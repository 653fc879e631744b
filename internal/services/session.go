package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stresscall/stresscall-backend/internal/database"
)

const (
	// SessionDuration is 7 days
	SessionDuration = 7 * 24 * time.Hour
	// SessionKeyPrefix is the Redis key prefix for sessions
	SessionKeyPrefix = "session:"
	// AccountSessionKeyPrefix is the Redis key prefix for account->session mapping
	AccountSessionKeyPrefix = "account_session:"
)

// CreateSession creates a new session for an account and stores it in Redis.
// If the account already has a session, the old one is invalidated so the
// 7-day timer resets from the current sign-in. Returns the session token.
func CreateSession(accountID uuid.UUID) (string, error) {
	InvalidateAccountSessions(accountID)

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	sessionToken := base64.URLEncoding.EncodeToString(tokenBytes)

	ctx := context.Background()
	sessionKey := SessionKeyPrefix + sessionToken
	accountSessionKey := AccountSessionKeyPrefix + accountID.String()

	err := database.RedisClient.Set(ctx, sessionKey, accountID.String(), SessionDuration).Err()
	if err != nil {
		return "", err
	}

	err = database.RedisClient.Set(ctx, accountSessionKey, sessionToken, SessionDuration).Err()
	if err != nil {
		return "", err
	}

	return sessionToken, nil
}

// ValidateSession checks if a session token is valid and returns the account ID.
func ValidateSession(sessionToken string) (uuid.UUID, bool, error) {
	if sessionToken == "" {
		return uuid.Nil, false, nil
	}

	ctx := context.Background()
	sessionKey := SessionKeyPrefix + sessionToken

	accountIDStr, err := database.RedisClient.Get(ctx, sessionKey).Result()
	if err != nil {
		return uuid.Nil, false, nil
	}

	accountID, err := uuid.Parse(accountIDStr)
	if err != nil {
		return uuid.Nil, false, err
	}

	return accountID, true, nil
}

// RefreshSession extends the session expiration by 7 days from now.
func RefreshSession(sessionToken string) error {
	if sessionToken == "" {
		return fmt.Errorf("session token is empty")
	}

	ctx := context.Background()
	sessionKey := SessionKeyPrefix + sessionToken

	accountIDStr, err := database.RedisClient.Get(ctx, sessionKey).Result()
	if err != nil {
		return err
	}

	accountID, err := uuid.Parse(accountIDStr)
	if err != nil {
		return err
	}

	accountSessionKey := AccountSessionKeyPrefix + accountID.String()

	if err := database.RedisClient.Expire(ctx, sessionKey, SessionDuration).Err(); err != nil {
		return err
	}
	return database.RedisClient.Expire(ctx, accountSessionKey, SessionDuration).Err()
}

// InvalidateSession removes a session from Redis.
func InvalidateSession(sessionToken string) error {
	if sessionToken == "" {
		return nil
	}

	ctx := context.Background()
	sessionKey := SessionKeyPrefix + sessionToken

	accountIDStr, err := database.RedisClient.Get(ctx, sessionKey).Result()
	if err == nil && accountIDStr != "" {
		accountSessionKey := AccountSessionKeyPrefix + accountIDStr
		database.RedisClient.Del(ctx, accountSessionKey)
	}

	return database.RedisClient.Del(ctx, sessionKey).Err()
}

// InvalidateAccountSessions invalidates the account's active session. Used on
// password change and before issuing a replacement session.
func InvalidateAccountSessions(accountID uuid.UUID) error {
	ctx := context.Background()
	accountSessionKey := AccountSessionKeyPrefix + accountID.String()

	sessionToken, err := database.RedisClient.Get(ctx, accountSessionKey).Result()
	if err == nil && sessionToken != "" {
		sessionKey := SessionKeyPrefix + sessionToken
		database.RedisClient.Del(ctx, sessionKey)
	}

	return database.RedisClient.Del(ctx, accountSessionKey).Err()
}
