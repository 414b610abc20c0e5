package usecase

import (
	"context"
	"fmt"
	"time"

	authdomain "email-analyzer-backend/internal/auth/domain"
	"email-analyzer-backend/internal/auth/repository"
	emaildomain "email-analyzer-backend/internal/email/domain"
	"email-analyzer-backend/pkg/logger"
	"email-analyzer-backend/pkg/utils/crypto"

	"golang.org/x/oauth2"
)

type credentialStore struct {
	userRepo      repository.UserRepository
	encryptionKey string
}

// NewCredentialStore creates a CredentialStore backed by the user table.
func NewCredentialStore(userRepo repository.UserRepository, encryptionKey string) CredentialStore {
	return &credentialStore{userRepo: userRepo, encryptionKey: encryptionKey}
}

func (s *credentialStore) GetCredential(_ context.Context, userID string) (emaildomain.Credential, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return emaildomain.Credential{}, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return emaildomain.Credential{}, authdomain.ErrUserNotFound
	}
	if !user.HasMailboxAccess() {
		return emaildomain.Credential{}, emaildomain.ErrAuthRequired
	}

	refreshToken, err := crypto.Decrypt(user.RefreshToken, s.encryptionKey)
	if err != nil {
		// a key rotation or corrupt value leaves the credential unusable
		return emaildomain.Credential{}, fmt.Errorf("%w: refresh token unreadable", emaildomain.ErrAuthRequired)
	}
	accessToken, err := crypto.Decrypt(user.AccessToken, s.encryptionKey)
	if err != nil {
		accessToken = ""
	}

	cred := emaildomain.Credential{
		UserID:       user.ID,
		Email:        user.Email,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		OnRefresh:    s.tokenUpdateCallback(user.ID),
	}
	if user.TokenExpiry != nil {
		cred.Expiry = *user.TokenExpiry
	}
	return cred, nil
}

// tokenUpdateCallback persists refreshed tokens. The refresh token is only replaced when a new one is issued.
func (s *credentialStore) tokenUpdateCallback(userID string) emaildomain.TokenUpdateFunc {
	return func(token *oauth2.Token) error {
		access, err := crypto.Encrypt(token.AccessToken, s.encryptionKey)
		if err != nil {
			return err
		}
		if err := s.userRepo.UpdateAccessToken(userID, access, token.Expiry); err != nil {
			return err
		}
		if token.RefreshToken == "" {
			return nil
		}
		refresh, err := crypto.Encrypt(token.RefreshToken, s.encryptionKey)
		if err != nil {
			return err
		}
		return s.userRepo.UpdateRefreshToken(userID, refresh)
	}
}

func (s *credentialStore) MarkNeedsReauth(_ context.Context, userID string) error {
	logger.For("auth").WithField("user_id", userID).Warn("credential rejected, user must sign in again")
	return s.userRepo.SetNeedsReauth(userID, true)
}

func (s *credentialStore) EligibleUserIDs(_ context.Context) ([]string, error) {
	users, err := s.userRepo.ListWithRefreshToken()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids, nil
}

// expiryPtr converts a zero time to nil.
func expiryPtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
