package delivery

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	authdelivery "email-analyzer-backend/internal/auth/delivery"
	authdomain "email-analyzer-backend/internal/auth/domain"
	emaildomain "email-analyzer-backend/internal/email/domain"
	emaildto "email-analyzer-backend/internal/email/dto"
	"email-analyzer-backend/internal/email/usecase"
	"email-analyzer-backend/pkg/ai"
	"email-analyzer-backend/pkg/logger"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
)

type EmailHandler struct {
	emailUsecase usecase.EmailUsecase
}

func NewEmailHandler(emailUsecase usecase.EmailUsecase) *EmailHandler {
	return &EmailHandler{
		emailUsecase: emailUsecase,
	}
}

// GetEmails syncs the mailbox and returns the dashboard list.
func (h *EmailHandler) GetEmails(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	result, err := h.emailUsecase.SyncAndList(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, emaildomain.ErrSyncInProgress) {
			// another sync owns the mailbox; serve what is stored
			emails, listErr := h.emailUsecase.ListEmails(userID)
			if listErr == nil {
				c.JSON(http.StatusConflict, gin.H{"error": "sync already in progress", "emails": emails})
				return
			}
			err = listErr
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, emaildto.EmailsResponse{Emails: result.Emails, Total: len(result.Emails)})
}

func (h *EmailHandler) GetEmailByID(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	email, err := h.emailUsecase.GetEmailByID(userID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, email)
}

func (h *EmailHandler) SetStarred(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req emaildto.StarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "isStarred must be a boolean"})
		return
	}

	email, err := h.emailUsecase.SetStarred(userID, c.Param("id"), *req.IsStarred)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, email)
}

func (h *EmailHandler) SetStatus(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req emaildto.StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be one of pending, done, dismissed"})
		return
	}

	email, err := h.emailUsecase.SetStatus(userID, c.Param("id"), emaildomain.ReviewStatus(req.Status))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, email)
}

func (h *EmailHandler) Reanalyze(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	email, err := h.emailUsecase.Reanalyze(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, email)
}

func (h *EmailHandler) WatchMailbox(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	historyID, err := h.emailUsecase.WatchMailbox(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, emaildto.WatchResponse{HistoryID: historyID})
}

func requireUser(c *gin.Context) (string, bool) {
	user, ok := authdelivery.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return "", false
	}
	return user.ID, true
}

// respondError maps domain errors to status codes. Anything unexpected is logged and hidden.
func respondError(c *gin.Context, err error) {
	if rl, ok := ai.AsRateLimit(err); ok {
		if rl.RetryAfter > 0 {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(rl.RetryAfter.Seconds()))))
		}
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "analysis is rate limited, try again later"})
		return
	}

	switch {
	case errors.Is(err, emaildomain.ErrAuthRequired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "re-authentication required", "needsReAuth": true})
	case errors.Is(err, authdomain.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	case errors.Is(err, emaildomain.ErrEmailNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "email not found"})
	case errors.Is(err, emaildomain.ErrInvalidReviewStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be one of pending, done, dismissed"})
	case errors.Is(err, emaildomain.ErrSyncInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": "sync already in progress"})
	default:
		logger.For("api").WithError(err).WithField("path", c.FullPath()).Error("request failed")
		if hub := sentrygin.GetHubFromContext(c); hub != nil {
			hub.CaptureException(err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
