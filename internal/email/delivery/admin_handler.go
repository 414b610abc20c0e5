package delivery

import (
	"context"
	"net/http"

	emaildto "email-analyzer-backend/internal/email/dto"
	"email-analyzer-backend/internal/email/usecase"
	"email-analyzer-backend/pkg/gmail"

	"github.com/gin-gonic/gin"
)

// PipelineRunner runs the pipeline for every user. *usecase.Runner implements it.
type PipelineRunner interface {
	RunAll(ctx context.Context) usecase.RunStats
}

// AdminHandler exposes operator triggers for the pipeline.
type AdminHandler struct {
	runner PipelineRunner
	syncer usecase.Syncer
	mode   gmail.QueryMode
}

func NewAdminHandler(runner PipelineRunner, syncer usecase.Syncer, mode gmail.QueryMode) *AdminHandler {
	return &AdminHandler{runner: runner, syncer: syncer, mode: mode}
}

// POST /api/admin/run runs the same job as the scheduler and waits for it.
func (h *AdminHandler) RunAll(c *gin.Context) {
	stats := h.runner.RunAll(c.Request.Context())
	c.JSON(http.StatusOK, stats)
}

// POST /api/admin/sync/:userId
func (h *AdminHandler) SyncUser(c *gin.Context) {
	mode := h.mode
	if m := c.Query("mode"); m != "" {
		mode = gmail.ParseQueryMode(m)
	}

	result, err := h.syncer.SyncUser(c.Request.Context(), c.Param("userId"), mode)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, emaildto.SyncResult{
		Fetched:      result.Fetched,
		Processed:    result.Processed,
		Analyzed:     result.Analyzed,
		ActionPoints: result.ActionPoints,
		Saved:        result.Saved,
	})
}
