package api

import (
	"time"

	authDelivery "email-analyzer-backend/internal/auth/delivery"
	authUsecase "email-analyzer-backend/internal/auth/usecase"
	emailDelivery "email-analyzer-backend/internal/email/delivery"
	emailUsecasePkg "email-analyzer-backend/internal/email/usecase"
	"email-analyzer-backend/pkg/config"
	"email-analyzer-backend/pkg/gmail"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	authUsecase     authUsecase.AuthUsecase
	authHandler     *authDelivery.AuthHandler
	emailHandler    *emailDelivery.EmailHandler
	summaryHandler  *emailDelivery.SummaryHandler
	adminHandler    *emailDelivery.AdminHandler
	settingsHandler *SettingsHandler
	config          *config.Config
}

// NewHandler builds the HTTP layer. nextRun reports the next scheduled pipeline run and may be nil.
func NewHandler(
	authUc authUsecase.AuthUsecase,
	emailUc emailUsecasePkg.EmailUsecase,
	runner emailDelivery.PipelineRunner,
	syncer emailUsecasePkg.Syncer,
	cfg *config.Config,
	nextRun func(time.Time) time.Time,
) *Handler {
	return &Handler{
		authUsecase:     authUc,
		authHandler:     authDelivery.NewAuthHandler(authUc, cfg),
		emailHandler:    emailDelivery.NewEmailHandler(emailUc),
		summaryHandler:  emailDelivery.NewSummaryHandler(emailUc),
		adminHandler:    emailDelivery.NewAdminHandler(runner, syncer, gmail.ParseQueryMode(cfg.SyncQueryMode)),
		settingsHandler: NewSettingsHandler(cfg, nextRun),
		config:          cfg,
	}
}

// Router returns the configured gin engine.
func (h *Handler) Router() *gin.Engine {
	if h.config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	if h.config.SentryDSN != "" {
		r.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Admin-Token")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	SetupRoutes(r, h.authUsecase, h.authHandler, h.emailHandler, h.summaryHandler, h.adminHandler, h.settingsHandler, h.config.AdminToken)
	return r
}
