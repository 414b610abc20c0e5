package usecase

import (
	"context"

	authdomain "email-analyzer-backend/internal/auth/domain"
	authdto "email-analyzer-backend/internal/auth/dto"
	emaildomain "email-analyzer-backend/internal/email/domain"
)

// AuthUsecase covers Google sign-in and session tokens.
type AuthUsecase interface {
	// AuthCodeURL is where the browser is sent to grant offline mailbox access.
	AuthCodeURL(state string) string
	// HandleGoogleCallback exchanges the authorization code, stores the credential and issues a session token.
	HandleGoogleCallback(ctx context.Context, code string) (*authdto.TokenResponse, error)
	ValidateToken(tokenString string) (*authdomain.User, error)
	RegisterFCMToken(userID, token, deviceInfo string) error
	UnregisterFCMToken(userID, token string) error
}

// CredentialStore resolves a user's mailbox credential.
type CredentialStore interface {
	// GetCredential returns emaildomain.ErrAuthRequired when the user has no refresh token
	// and authdomain.ErrUserNotFound when the user does not exist.
	GetCredential(ctx context.Context, userID string) (emaildomain.Credential, error)
	// MarkNeedsReauth flags the user so the dashboard asks them to sign in again.
	MarkNeedsReauth(ctx context.Context, userID string) error
	// EligibleUserIDs lists users that hold a refresh token.
	EligibleUserIDs(ctx context.Context) ([]string, error)
}
