package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	authdomain "email-analyzer-backend/internal/auth/domain"
	authrepo "email-analyzer-backend/internal/auth/repository"
	authusecase "email-analyzer-backend/internal/auth/usecase"
	emaildomain "email-analyzer-backend/internal/email/domain"
	emaildto "email-analyzer-backend/internal/email/dto"
	"email-analyzer-backend/pkg/gmail"
	"email-analyzer-backend/pkg/logger"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
)

// RunStats aggregates one pipeline run over all users.
type RunStats struct {
	UsersProcessed    int           `json:"users_processed"`
	UsersFailed       int           `json:"users_failed"`
	UsersSkipped      int           `json:"users_skipped"`
	MessagesProcessed int           `json:"messages_processed"`
	AnalysesPerformed int           `json:"analyses_performed"`
	ActionPointsFound int           `json:"action_points_found"`
	RecordsSaved      int           `json:"records_saved"`
	Duration          time.Duration `json:"duration"`
}

// Runner syncs every user that holds a refresh token, one after another.
type Runner struct {
	credentials authusecase.CredentialStore
	syncer      Syncer
	userRepo    authrepo.UserRepository
	mode        gmail.QueryMode
}

func NewRunner(credentials authusecase.CredentialStore, syncer Syncer, userRepo authrepo.UserRepository, mode gmail.QueryMode) *Runner {
	return &Runner{
		credentials: credentials,
		syncer:      syncer,
		userRepo:    userRepo,
		mode:        mode,
	}
}

// RunAll never stops at a failing user. The scheduled job and the admin endpoint both call it.
func (r *Runner) RunAll(ctx context.Context) RunStats {
	log := logger.For("runner")
	started := time.Now()
	var stats RunStats

	userIDs, err := r.credentials.EligibleUserIDs(ctx)
	if err != nil {
		log.WithError(err).Error("failed to list users")
		sentry.CaptureException(err)
		return stats
	}
	log.WithField("users", len(userIDs)).Info("pipeline run started")

	for _, userID := range userIDs {
		if ctx.Err() != nil {
			log.Warn("pipeline run cancelled")
			break
		}

		result, err := r.syncOne(ctx, userID)
		switch {
		case err == nil:
			stats.UsersProcessed++
			stats.MessagesProcessed += result.Processed
			stats.AnalysesPerformed += result.Analyzed
			stats.ActionPointsFound += result.ActionPoints
			stats.RecordsSaved += result.Saved
			if err := r.userRepo.TouchLastSynced(userID, time.Now()); err != nil {
				log.WithError(err).WithField("user_id", userID).Warn("failed to record sync time")
			}
		case errors.Is(err, emaildomain.ErrSyncInProgress):
			stats.UsersSkipped++
			log.WithField("user_id", userID).Info("sync already running, skipped")
		case errors.Is(err, emaildomain.ErrAuthRequired):
			// revoked mid-run; expected, so no Sentry report
			stats.UsersFailed++
			log.WithField("user_id", userID).Warn("credential rejected, user needs to re-authenticate")
			if err := r.credentials.MarkNeedsReauth(ctx, userID); err != nil {
				log.WithError(err).WithField("user_id", userID).Error("failed to flag user for re-authentication")
			}
		case errors.Is(err, authdomain.ErrUserNotFound):
			stats.UsersSkipped++
		default:
			stats.UsersFailed++
			log.WithError(err).WithField("user_id", userID).Error("user sync failed")
			sentry.WithScope(func(scope *sentry.Scope) {
				scope.SetUser(sentry.User{ID: userID})
				scope.SetTag("component", "runner")
				sentry.CaptureException(err)
			})
		}
	}

	stats.Duration = time.Since(started)
	log.WithFields(logrus.Fields{
		"users_processed":    stats.UsersProcessed,
		"users_failed":       stats.UsersFailed,
		"users_skipped":      stats.UsersSkipped,
		"messages_processed": stats.MessagesProcessed,
		"analyses":           stats.AnalysesPerformed,
		"action_points":      stats.ActionPointsFound,
		"records_saved":      stats.RecordsSaved,
		"duration":           stats.Duration.String(),
	}).Info("pipeline run finished")
	return stats
}

// syncOne turns a panic inside one user's sync into an error.
func (r *Runner) syncOne(ctx context.Context, userID string) (result *emaildto.SyncResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic during sync: %v", p)
		}
	}()
	return r.syncer.SyncUser(ctx, userID, r.mode)
}
