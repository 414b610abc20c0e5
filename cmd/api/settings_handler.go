package api

import (
	"context"
	"net/http"
	"time"

	"email-analyzer-backend/pkg/ai"
	"email-analyzer-backend/pkg/config"

	"github.com/gin-gonic/gin"
)

// PipelineSettings is the effective, read-only pipeline configuration.
type PipelineSettings struct {
	AIProvider    string `json:"ai_provider"`
	GeminiModel   string `json:"gemini_model"`
	OllamaBaseURL string `json:"ollama_base_url"`
	OllamaModel   string `json:"ollama_model"`
	AITimeout     string `json:"ai_timeout"`

	QueryMode       string `json:"query_mode"`
	MaxResults      int    `json:"max_results"`
	ItemDelay       string `json:"item_delay"`
	RateLimitDelay  string `json:"rate_limit_cooldown"`
	MaxAttempts     int    `json:"max_attempts"`
	CronSchedule    string `json:"cron_schedule"`
	CronTimezone    string `json:"cron_timezone"`
	NextScheduledAt string `json:"next_scheduled_at,omitempty"`
}

// SettingsHandler reports configuration to operators.
type SettingsHandler struct {
	cfg  *config.Config
	next func(time.Time) time.Time
}

func NewSettingsHandler(cfg *config.Config, next func(time.Time) time.Time) *SettingsHandler {
	return &SettingsHandler{cfg: cfg, next: next}
}

// GET /api/admin/settings
func (h *SettingsHandler) GetSettings(c *gin.Context) {
	s := PipelineSettings{
		AIProvider:     h.cfg.AIProvider,
		GeminiModel:    h.cfg.GeminiModel,
		OllamaBaseURL:  h.cfg.OllamaBaseURL,
		OllamaModel:    h.cfg.OllamaModel,
		AITimeout:      h.cfg.AITimeout.String(),
		QueryMode:      h.cfg.SyncQueryMode,
		MaxResults:     h.cfg.SyncMaxResults,
		ItemDelay:      h.cfg.SyncItemDelay.String(),
		RateLimitDelay: h.cfg.SyncRateLimitCooldown.String(),
		MaxAttempts:    h.cfg.SyncMaxAttempts,
		CronSchedule:   h.cfg.CronSchedule,
		CronTimezone:   h.cfg.CronTimezone,
	}
	if h.next != nil {
		s.NextScheduledAt = h.next(time.Now()).UTC().Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, s)
}

// TestOllamaConnection checks whether an Ollama server is reachable.
// The body may name a different base URL to try; otherwise the configured one is used.
// POST /api/admin/settings/ollama/test
func (h *SettingsHandler) TestOllamaConnection(c *gin.Context) {
	var req struct {
		OllamaBaseURL string `json:"ollama_base_url"`
	}
	// An empty body is allowed.
	_ = c.ShouldBindJSON(&req)
	if req.OllamaBaseURL == "" {
		req.OllamaBaseURL = h.cfg.OllamaBaseURL
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := ai.NewOllamaGenerator(req.OllamaBaseURL, h.cfg.OllamaModel).Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"connected":       false,
			"ollama_base_url": req.OllamaBaseURL,
			"error":           err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"connected":       true,
		"ollama_base_url": req.OllamaBaseURL,
	})
}
