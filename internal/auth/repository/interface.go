package repository

import (
	"time"

	authdomain "email-analyzer-backend/internal/auth/domain"
)

// UserRepository is the credential store. Token values pass through it as stored (encrypted).
type UserRepository interface {
	FindByID(id string) (*authdomain.User, error)
	FindByEmail(email string) (*authdomain.User, error)
	// UpsertGoogleUser creates or updates the user for a Google account.
	// An empty RefreshToken never replaces a stored one.
	UpsertGoogleUser(user *authdomain.User) (*authdomain.User, error)
	// ListWithRefreshToken returns every user the pipeline can process.
	ListWithRefreshToken() ([]authdomain.User, error)
	UpdateAccessToken(userID, accessToken string, expiry time.Time) error
	UpdateRefreshToken(userID, refreshToken string) error
	SetNeedsReauth(userID string, needs bool) error
	TouchLastSynced(userID string, at time.Time) error
}
