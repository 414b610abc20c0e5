package dto

import authdomain "email-analyzer-backend/internal/auth/domain"

type TokenResponse struct {
	AccessToken string           `json:"access_token"`
	ExpiresIn   int64            `json:"expires_in"`
	User        *authdomain.User `json:"user"`
}

type RegisterFCMTokenRequest struct {
	Token      string `json:"token" binding:"required"`
	DeviceInfo string `json:"device_info"`
}

// GoogleProfile is the subset of the Google userinfo response we keep.
type GoogleProfile struct {
	ID        string
	Email     string
	Name      string
	AvatarURL string
}
