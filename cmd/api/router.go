package api

import (
	"net/http"

	authDelivery "email-analyzer-backend/internal/auth/delivery"
	authUsecase "email-analyzer-backend/internal/auth/usecase"
	emailDelivery "email-analyzer-backend/internal/email/delivery"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	r *gin.Engine,
	authUc authUsecase.AuthUsecase,
	authHandler *authDelivery.AuthHandler,
	emailHandler *emailDelivery.EmailHandler,
	summaryHandler *emailDelivery.SummaryHandler,
	adminHandler *emailDelivery.AdminHandler,
	settingsHandler *SettingsHandler,
	adminToken string,
) {
	// OAuth redirect endpoints live outside /api so the registered redirect URI stays short
	r.GET("/auth/google", authHandler.GoogleLogin)
	r.GET("/auth/google/callback", authHandler.GoogleCallback)
	r.GET("/auth/logout", authHandler.Logout)

	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		auth := api.Group("/auth")
		{
			auth.GET("/me", authDelivery.AuthMiddleware(authUc), authHandler.Me)
			auth.POST("/logout", authHandler.Logout)
		}

		// FCM routes (protected)
		fcm := api.Group("/fcm")
		fcm.Use(authDelivery.AuthMiddleware(authUc))
		{
			fcm.POST("/register", authHandler.RegisterFCMToken)
			fcm.DELETE("/:token", authHandler.UnregisterFCMToken)
		}

		// Email routes (protected)
		emails := api.Group("/emails")
		emails.Use(authDelivery.AuthMiddleware(authUc))
		{
			emails.GET("", emailHandler.GetEmails)
			emails.POST("/watch", emailHandler.WatchMailbox)
			emails.GET("/:id", emailHandler.GetEmailByID)
			emails.PATCH("/:id/star", emailHandler.SetStarred)
			emails.PATCH("/:id/status", emailHandler.SetStatus)
			emails.POST("/:id/reanalyze", emailHandler.Reanalyze)
		}

		summaries := api.Group("/summaries")
		summaries.Use(authDelivery.AuthMiddleware(authUc))
		{
			summaries.GET("/daily", summaryHandler.GetDailySummaries)
		}

		// Operator routes, guarded by X-Admin-Token
		admin := api.Group("/admin")
		admin.Use(authDelivery.AdminMiddleware(adminToken))
		{
			admin.POST("/run", adminHandler.RunAll)
			admin.POST("/sync/:userId", adminHandler.SyncUser)
			admin.GET("/settings", settingsHandler.GetSettings)
			admin.POST("/settings/ollama/test", settingsHandler.TestOllamaConnection)
		}
	}
}
