package delivery

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"

	authdto "email-analyzer-backend/internal/auth/dto"
	"email-analyzer-backend/internal/auth/usecase"
	"email-analyzer-backend/pkg/config"
	"email-analyzer-backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

const stateCookie = "oauth_state"

type AuthHandler struct {
	authUsecase usecase.AuthUsecase
	config      *config.Config
}

func NewAuthHandler(authUsecase usecase.AuthUsecase, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		authUsecase: authUsecase,
		config:      cfg,
	}
}

// GoogleLogin redirects the browser to Google's consent screen.
func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	state, err := randomState()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start sign-in"})
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookie, state, 600, "/", "", h.config.IsProduction(), true)
	c.Redirect(http.StatusTemporaryRedirect, h.authUsecase.AuthCodeURL(state))
}

// GoogleCallback finishes sign-in and hands the browser a session cookie.
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	log := logger.For("auth")
	frontend := strings.TrimRight(h.config.FrontendURL, "/")

	if errParam := c.Query("error"); errParam != "" {
		log.WithField("error", errParam).Warn("google sign-in was declined")
		c.Redirect(http.StatusTemporaryRedirect, frontend+"/?error=access_denied")
		return
	}

	state, err := c.Cookie(stateCookie)
	if err != nil || state == "" || state != c.Query("state") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid oauth state"})
		return
	}
	c.SetCookie(stateCookie, "", -1, "/", "", h.config.IsProduction(), true)

	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing authorization code"})
		return
	}

	resp, err := h.authUsecase.HandleGoogleCallback(c.Request.Context(), code)
	if err != nil {
		log.WithError(err).Error("google callback failed")
		c.Redirect(http.StatusTemporaryRedirect, frontend+"/?error=auth_failed")
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(TokenCookie, resp.AccessToken, int(resp.ExpiresIn), "/", "", h.config.IsProduction(), true)
	c.Redirect(http.StatusTemporaryRedirect, frontend+"/dashboard")
}

func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetCookie(TokenCookie, "", -1, "/", "", h.config.IsProduction(), true)
	c.JSON(http.StatusOK, gin.H{"message": "logged out successfully"})
}

func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *AuthHandler) RegisterFCMToken(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}

	var req authdto.RegisterFCMTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.authUsecase.RegisterFCMToken(user.ID, req.Token, req.DeviceInfo); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "token registered"})
}

func (h *AuthHandler) UnregisterFCMToken(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}

	if err := h.authUsecase.UnregisterFCMToken(user.ID, c.Param("token")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to unregister token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "token unregistered"})
}

func randomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
