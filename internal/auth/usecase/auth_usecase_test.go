package usecase_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	authdomain "email-analyzer-backend/internal/auth/domain"
	"email-analyzer-backend/internal/auth/repository"
	"email-analyzer-backend/internal/auth/usecase"
	emaildomain "email-analyzer-backend/internal/email/domain"
	"email-analyzer-backend/pkg/config"
	"email-analyzer-backend/pkg/database"
	"email-analyzer-backend/pkg/utils/crypto"
)

const testKey = "test-encryption-key"

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:          "jwt-secret",
		JWTAccessExpiry:    time.Hour,
		EncryptionKey:      testKey,
		GoogleClientID:     "client-id",
		GoogleClientSecret: "client-secret",
		GoogleRedirectURI:  "http://localhost:8080/auth/google/callback",
	}
}

func newRepos(t *testing.T) (repository.UserRepository, repository.FCMTokenRepository) {
	t.Helper()
	db, err := database.NewInMemory()
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&authdomain.User{}, &authdomain.FCMToken{}))
	return repository.NewUserRepository(db), repository.NewFCMTokenRepository(db)
}

// fakeGoogle serves the token and userinfo endpoints. refreshToken is what the token endpoint hands out.
func fakeGoogle(t *testing.T, refreshToken *string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "auth-code", r.Form.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "google-access",
			"refresh_token": *refreshToken,
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	})
	mux.HandleFunc("/oauth2/v2/userinfo", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer google-access", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]string{
			"id":      "google-123",
			"email":   "ada@example.com",
			"name":    "Ada",
			"picture": "https://example.com/ada.png",
		})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestAuthCodeURLRequestsOfflineAccess(t *testing.T) {
	userRepo, fcmRepo := newRepos(t)
	uc := usecase.NewAuthUsecase(userRepo, fcmRepo, testConfig())

	parsed, err := url.Parse(uc.AuthCodeURL("state-1"))
	require.NoError(t, err)
	q := parsed.Query()
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Equal(t, "state-1", q.Get("state"))
	assert.Contains(t, q.Get("scope"), "gmail.readonly")
	assert.Contains(t, q.Get("scope"), "userinfo.email")
}

func TestGoogleCallbackStoresCredentialAndKeepsRefreshToken(t *testing.T) {
	userRepo, fcmRepo := newRepos(t)
	refresh := "google-refresh"
	server := fakeGoogle(t, &refresh)

	uc := usecase.NewAuthUsecase(userRepo, fcmRepo, testConfig(),
		usecase.WithGoogleEndpoints(server.URL+"/auth", server.URL+"/token", server.URL+"/"))

	resp, err := uc.HandleGoogleCallback(context.Background(), "auth-code")
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "ada@example.com", resp.User.Email)

	stored, err := userRepo.FindByEmail("ada@example.com")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.NotEqual(t, "google-refresh", stored.RefreshToken, "token must be encrypted at rest")
	plain, err := crypto.Decrypt(stored.RefreshToken, testKey)
	require.NoError(t, err)
	assert.Equal(t, "google-refresh", plain)

	// second sign-in without a refresh token keeps the stored one
	refresh = ""
	_, err = uc.HandleGoogleCallback(context.Background(), "auth-code")
	require.NoError(t, err)

	again, err := userRepo.FindByEmail("ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, stored.ID, again.ID)
	plain, err = crypto.Decrypt(again.RefreshToken, testKey)
	require.NoError(t, err)
	assert.Equal(t, "google-refresh", plain)

	user, err := uc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, stored.ID, user.ID)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	userRepo, fcmRepo := newRepos(t)
	uc := usecase.NewAuthUsecase(userRepo, fcmRepo, testConfig())

	_, err := uc.ValidateToken("not-a-jwt")
	assert.Error(t, err)
}

func TestCredentialStore(t *testing.T) {
	userRepo, _ := newRepos(t)
	store := usecase.NewCredentialStore(userRepo, testKey)
	ctx := context.Background()

	enc, err := crypto.Encrypt("refresh-1", testKey)
	require.NoError(t, err)
	withToken, err := userRepo.UpsertGoogleUser(&authdomain.User{GoogleID: "g1", Email: "a@example.com", RefreshToken: enc})
	require.NoError(t, err)
	withoutToken, err := userRepo.UpsertGoogleUser(&authdomain.User{GoogleID: "g2", Email: "b@example.com"})
	require.NoError(t, err)

	cred, err := store.GetCredential(ctx, withToken.ID)
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", cred.RefreshToken)
	assert.Equal(t, "a@example.com", cred.Email)

	_, err = store.GetCredential(ctx, withoutToken.ID)
	assert.ErrorIs(t, err, emaildomain.ErrAuthRequired)

	_, err = store.GetCredential(ctx, "nobody")
	assert.ErrorIs(t, err, authdomain.ErrUserNotFound)

	ids, err := store.EligibleUserIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{withToken.ID}, ids)

	// a refreshed access token is persisted, the refresh token survives an empty one
	expiry := time.Now().Add(time.Hour).UTC()
	require.NoError(t, cred.OnRefresh(&oauth2.Token{AccessToken: "access-2", Expiry: expiry}))
	cred, err = store.GetCredential(ctx, withToken.ID)
	require.NoError(t, err)
	assert.Equal(t, "access-2", cred.AccessToken)
	assert.Equal(t, "refresh-1", cred.RefreshToken)
	assert.WithinDuration(t, expiry, cred.Expiry, time.Second)

	require.NoError(t, store.MarkNeedsReauth(ctx, withToken.ID))
	flagged, err := userRepo.FindByID(withToken.ID)
	require.NoError(t, err)
	assert.True(t, flagged.NeedsReauth)
}

func TestFCMTokens(t *testing.T) {
	userRepo, fcmRepo := newRepos(t)
	uc := usecase.NewAuthUsecase(userRepo, fcmRepo, testConfig())

	require.NoError(t, uc.RegisterFCMToken("u1", "tok-1", "chrome"))
	require.NoError(t, uc.RegisterFCMToken("u1", "tok-1", "firefox"))

	tokens, err := fcmRepo.GetTokensByUserID("u1")
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, "firefox", tokens[0].DeviceInfo)

	require.NoError(t, uc.UnregisterFCMToken("u2", "tok-1"))
	tokens, err = fcmRepo.GetTokensByUserID("u1")
	require.NoError(t, err)
	assert.Len(t, tokens, 1)

	require.NoError(t, uc.UnregisterFCMToken("u1", "tok-1"))
	tokens, err = fcmRepo.GetTokensByUserID("u1")
	require.NoError(t, err)
	assert.Empty(t, tokens)
}
