package delivery

import (
	"net/http"
	"strconv"

	emaildto "email-analyzer-backend/internal/email/dto"
	"email-analyzer-backend/internal/email/usecase"

	"github.com/gin-gonic/gin"
)

// SummaryHandler serves the daily rollups.
type SummaryHandler struct {
	emailUsecase usecase.EmailUsecase
}

func NewSummaryHandler(emailUsecase usecase.EmailUsecase) *SummaryHandler {
	return &SummaryHandler{emailUsecase: emailUsecase}
}

// GET /api/summaries/daily?limit=30
func (h *SummaryHandler) GetDailySummaries(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	limit := 30
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	summaries, err := h.emailUsecase.GetDailySummaries(userID, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, emaildto.DailySummariesResponse{Summaries: summaries})
}
