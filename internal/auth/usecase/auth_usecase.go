package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	authdomain "email-analyzer-backend/internal/auth/domain"
	authdto "email-analyzer-backend/internal/auth/dto"
	"email-analyzer-backend/internal/auth/repository"
	"email-analyzer-backend/pkg/config"
	"email-analyzer-backend/pkg/utils/crypto"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// authUsecase implements AuthUsecase interface
type authUsecase struct {
	userRepo         repository.UserRepository
	fcmRepo          repository.FCMTokenRepository
	config           *config.Config
	oauthConfig      *oauth2.Config
	userInfoEndpoint string
}

type Option func(*authUsecase)

// WithGoogleEndpoints overrides Google's OAuth and userinfo URLs.
func WithGoogleEndpoints(authURL, tokenURL, userInfoEndpoint string) Option {
	return func(u *authUsecase) {
		u.oauthConfig.Endpoint = oauth2.Endpoint{AuthURL: authURL, TokenURL: tokenURL}
		u.userInfoEndpoint = userInfoEndpoint
	}
}

// NewAuthUsecase creates a new instance of authUsecase
func NewAuthUsecase(userRepo repository.UserRepository, fcmRepo repository.FCMTokenRepository, cfg *config.Config, opts ...Option) AuthUsecase {
	u := &authUsecase{
		userRepo: userRepo,
		fcmRepo:  fcmRepo,
		config:   cfg,
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURI,
			Scopes: []string{
				oauth2api.UserinfoProfileScope,
				oauth2api.UserinfoEmailScope,
				gmail.GmailReadonlyScope,
			},
			Endpoint: google.Endpoint,
		},
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func (u *authUsecase) AuthCodeURL(state string) string {
	// consent forces Google to hand out a refresh token every time
	return u.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
}

func (u *authUsecase) HandleGoogleCallback(ctx context.Context, code string) (*authdto.TokenResponse, error) {
	token, err := u.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	profile, err := u.fetchProfile(ctx, token)
	if err != nil {
		return nil, err
	}

	access, err := crypto.Encrypt(token.AccessToken, u.config.EncryptionKey)
	if err != nil {
		return nil, err
	}
	refresh, err := crypto.Encrypt(token.RefreshToken, u.config.EncryptionKey)
	if err != nil {
		return nil, err
	}

	user, err := u.userRepo.UpsertGoogleUser(&authdomain.User{
		GoogleID:     profile.ID,
		Email:        profile.Email,
		Name:         profile.Name,
		AvatarURL:    profile.AvatarURL,
		AccessToken:  access,
		RefreshToken: refresh,
		TokenExpiry:  expiryPtr(token.Expiry),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save user: %w", err)
	}

	accessToken, err := u.generateAccessToken(user)
	if err != nil {
		return nil, err
	}

	return &authdto.TokenResponse{
		AccessToken: accessToken,
		ExpiresIn:   int64(u.config.JWTAccessExpiry.Seconds()),
		User:        user,
	}, nil
}

func (u *authUsecase) fetchProfile(ctx context.Context, token *oauth2.Token) (*authdto.GoogleProfile, error) {
	opts := []option.ClientOption{option.WithTokenSource(oauth2.StaticTokenSource(token))}
	if u.userInfoEndpoint != "" {
		opts = append(opts, option.WithEndpoint(u.userInfoEndpoint))
	}

	svc, err := oauth2api.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create userinfo client: %w", err)
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch google profile: %w", err)
	}
	if info.Email == "" {
		return nil, errors.New("google profile has no email")
	}

	return &authdto.GoogleProfile{
		ID:        info.Id,
		Email:     info.Email,
		Name:      info.Name,
		AvatarURL: info.Picture,
	}, nil
}

func (u *authUsecase) generateAccessToken(user *authdomain.User) (string, error) {
	claims := jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"exp":     time.Now().Add(u.config.JWTAccessExpiry).Unix(),
		"iat":     time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(u.config.JWTSecret))
}

func (u *authUsecase) ValidateToken(tokenString string) (*authdomain.User, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(u.config.JWTSecret), nil
	})

	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	userID, ok := claims["user_id"].(string)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	user, err := u.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}

	if user == nil {
		return nil, authdomain.ErrUserNotFound
	}

	return user, nil
}

func (u *authUsecase) RegisterFCMToken(userID, token, deviceInfo string) error {
	return u.fcmRepo.SaveToken(userID, token, deviceInfo)
}

func (u *authUsecase) UnregisterFCMToken(userID, token string) error {
	return u.fcmRepo.DeleteUserToken(userID, token)
}
