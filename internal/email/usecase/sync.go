package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	authusecase "email-analyzer-backend/internal/auth/usecase"
	emaildomain "email-analyzer-backend/internal/email/domain"
	emaildto "email-analyzer-backend/internal/email/dto"
	"email-analyzer-backend/internal/email/repository"
	"email-analyzer-backend/pkg/ai"
	"email-analyzer-backend/pkg/gmail"
	"email-analyzer-backend/pkg/lock"
	"email-analyzer-backend/pkg/logger"
	"email-analyzer-backend/pkg/pacer"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// SyncConfig bounds one sync.
type SyncConfig struct {
	// MaxResults is how many identifiers are listed from the provider.
	MaxResults int64
	// PageSize bounds the dashboard list returned after the sync.
	PageSize int
	// LockTTL is how long a user's sync lock lives if it is never released.
	LockTTL time.Duration
}

// SyncService reconciles a user's mailbox with the local store.
type SyncService struct {
	credentials authusecase.CredentialStore
	mailbox     Mailbox
	analyzer    EmailAnalyzer
	emailRepo   repository.EmailRepository
	reviewRepo  repository.EmailReviewRepository
	summaryRepo repository.EmailSummaryRepository
	policy      *pacer.Policy
	locker      lock.Locker
	notifier    ActionNotifier
	cfg         SyncConfig
	clock       func() time.Time
}

func NewSyncService(
	credentials authusecase.CredentialStore,
	mailbox Mailbox,
	analyzer EmailAnalyzer,
	emailRepo repository.EmailRepository,
	reviewRepo repository.EmailReviewRepository,
	summaryRepo repository.EmailSummaryRepository,
	policy *pacer.Policy,
	locker lock.Locker,
	cfg SyncConfig,
) *SyncService {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 50
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Minute
	}
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	return &SyncService{
		credentials: credentials,
		mailbox:     mailbox,
		analyzer:    analyzer,
		emailRepo:   emailRepo,
		reviewRepo:  reviewRepo,
		summaryRepo: summaryRepo,
		policy:      policy,
		locker:      locker,
		cfg:         cfg,
		clock:       time.Now,
	}
}

// SetNotifier installs the hook called when a sync finds action points.
func (s *SyncService) SetNotifier(n ActionNotifier) {
	s.notifier = n
}

// SetClock replaces the time source used for rollup days and analysis timestamps.
func (s *SyncService) SetClock(clock func() time.Time) {
	s.clock = clock
}

// SyncUser fetches, analyzes and stores every listed message the user does not have yet,
// then returns the user's newest emails.
//
// A mailbox or credential failure aborts the sync. A failure on a single message is logged
// and the message is skipped; it is picked up again on the next run since nothing was stored.
func (s *SyncService) SyncUser(ctx context.Context, userID string, mode gmail.QueryMode) (*emaildto.SyncResult, error) {
	log := logger.For("sync").WithField("user_id", userID)

	unlock, ok, err := s.locker.TryLock(ctx, "sync:"+userID, s.cfg.LockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, emaildomain.ErrSyncInProgress
	}
	defer unlock()

	cred, err := s.credentials.GetCredential(ctx, userID)
	if err != nil {
		return nil, err
	}

	ids, err := s.mailbox.ListMessageIDs(ctx, cred, mode, s.cfg.MaxResults)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	ids = lo.Uniq(ids)

	existing, err := s.emailRepo.ExistingMessageIDs(userID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load stored message ids: %w", err)
	}
	fresh := lo.Filter(ids, func(id string, _ int) bool { return !existing[id] })

	log.WithFields(logrus.Fields{"listed": len(ids), "new": len(fresh), "mode": mode}).Info("sync started")

	result := &emaildto.SyncResult{Fetched: len(ids)}
	var (
		processedIDs []string
		withActions  []*emaildomain.Email
		abortErr     error
	)

	for i, id := range fresh {
		email, cooldown, err := s.processMessage(ctx, cred, id, log)
		if err != nil {
			if errors.Is(err, emaildomain.ErrAuthRequired) || ctx.Err() != nil {
				abortErr = err
				break
			}
			log.WithError(err).WithField("message_id", id).Warn("message skipped")
		} else if email != nil {
			result.Processed++
			result.Saved++
			processedIDs = append(processedIDs, email.MessageID)
			if email.Analyzed() {
				result.Analyzed++
			}
			if len(email.ActionPoints) > 0 {
				result.ActionPoints += len(email.ActionPoints)
				withActions = append(withActions, email)
			}
		}

		if i < len(fresh)-1 {
			// a message that ended rate limited waits out the cooldown before the next model call
			delay := s.policy.NextDelay()
			if cooldown > 0 {
				delay = cooldown
			}
			if err := s.policy.Sleep(ctx, delay); err != nil {
				abortErr = err
				break
			}
		}
	}

	s.mergeRollup(userID, processedIDs, ids, log)

	if abortErr != nil {
		return nil, abortErr
	}

	if len(withActions) > 0 && s.notifier != nil {
		if err := s.notifier.NotifyActionPoints(ctx, userID, withActions); err != nil {
			log.WithError(err).Warn("failed to send action point notification")
		}
	}

	emails, err := s.list(userID)
	if err != nil {
		return nil, err
	}
	result.Emails = emails

	log.WithFields(logrus.Fields{
		"processed":     result.Processed,
		"analyzed":      result.Analyzed,
		"action_points": result.ActionPoints,
	}).Info("sync finished")
	return result, nil
}

// processMessage fetches, analyzes and stores one message. It returns a nil email when the message vanished.
// cooldown is non-zero when the last analysis attempt was rate limited.
func (s *SyncService) processMessage(ctx context.Context, cred emaildomain.Credential, messageID string, log *logrus.Entry) (email *emaildomain.Email, cooldown time.Duration, err error) {
	email, err = s.mailbox.GetMessage(ctx, cred, messageID)
	if err != nil {
		return nil, 0, err
	}
	if email == nil {
		log.WithField("message_id", messageID).Debug("message no longer exists")
		return nil, 0, nil
	}
	email.UserID = cred.UserID

	analysis, cooldown, err := s.analyze(ctx, email, log)
	if err != nil {
		return nil, 0, err
	}
	email.ApplyAnalysis(&analysis, s.clock())

	if err := s.emailRepo.Upsert(email); err != nil {
		return nil, cooldown, fmt.Errorf("failed to save email: %w", err)
	}
	if err := s.reviewRepo.EnsurePending(cred.UserID, email.MessageID); err != nil {
		log.WithError(err).WithField("message_id", email.MessageID).Warn("failed to create review record")
	}
	return email, cooldown, nil
}

// analyze retries the same message after a rate-limit cooldown, up to the policy's attempt limit.
// When attempts run out the email is stored with the fallback analysis and the pending
// cooldown is returned for the caller to wait out.
func (s *SyncService) analyze(ctx context.Context, email *emaildomain.Email, log *logrus.Entry) (emaildomain.Analysis, time.Duration, error) {
	for attempt := 1; ; attempt++ {
		analysis, err := s.analyzer.Analyze(ctx, email.Subject, email.Body)
		if err == nil {
			return analysis, 0, nil
		}

		rl, ok := ai.AsRateLimit(err)
		if !ok {
			log.WithError(err).WithField("message_id", email.MessageID).Warn("analysis failed")
			return ai.FailedAnalysis(), 0, nil
		}

		wait := s.policy.Cooldown(rl.RetryAfter, attempt)
		if attempt >= s.policy.MaxAttempts {
			log.WithField("message_id", email.MessageID).Warn("still rate limited, saving without analysis")
			return ai.FailedAnalysis(), wait, nil
		}

		log.WithFields(logrus.Fields{"message_id": email.MessageID, "cooldown": wait, "attempt": attempt}).
			Warn("rate limited, cooling down")
		if err := s.policy.Sleep(ctx, wait); err != nil {
			return emaildomain.Analysis{}, 0, err
		}
	}
}

func (s *SyncService) mergeRollup(userID string, processedIDs, fetchedIDs []string, log *logrus.Entry) {
	day := emaildomain.DayKey(s.clock())
	if _, err := s.summaryRepo.MergeProcessed(userID, day, processedIDs, fetchedIDs); err != nil {
		log.WithError(err).WithField("day", day).Error("failed to update daily summary")
	}
}

func (s *SyncService) list(userID string) ([]*emaildto.EnrichedEmail, error) {
	emails, err := s.emailRepo.ListByUser(userID, s.cfg.PageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list emails: %w", err)
	}
	return enrich(s.reviewRepo, userID, emails)
}

// enrich attaches review statuses; emails without a review record read as pending.
func enrich(reviewRepo repository.EmailReviewRepository, userID string, emails []emaildomain.Email) ([]*emaildto.EnrichedEmail, error) {
	messageIDs := lo.Map(emails, func(e emaildomain.Email, _ int) string { return e.MessageID })
	statuses, err := reviewRepo.GetStatuses(userID, messageIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load review statuses: %w", err)
	}

	result := make([]*emaildto.EnrichedEmail, 0, len(emails))
	for i := range emails {
		status, ok := statuses[emails[i].MessageID]
		if !ok {
			status = emaildomain.ReviewPending
		}
		result = append(result, &emaildto.EnrichedEmail{Email: &emails[i], Status: status})
	}
	return result, nil
}
