package usecase

import (
	"context"
	"fmt"
	"time"

	authusecase "email-analyzer-backend/internal/auth/usecase"
	emaildomain "email-analyzer-backend/internal/email/domain"
	emaildto "email-analyzer-backend/internal/email/dto"
	"email-analyzer-backend/internal/email/repository"
	"email-analyzer-backend/pkg/gmail"
	"email-analyzer-backend/pkg/logger"
)

// emailUsecase implements EmailUsecase interface
type emailUsecase struct {
	syncer      Syncer
	emailRepo   repository.EmailRepository
	reviewRepo  repository.EmailReviewRepository
	summaryRepo repository.EmailSummaryRepository
	analyzer    EmailAnalyzer
	credentials authusecase.CredentialStore
	watcher     Watcher
	topicName   string
	pageSize    int
}

// NewEmailUsecase creates a new instance of emailUsecase
func NewEmailUsecase(
	syncer Syncer,
	emailRepo repository.EmailRepository,
	reviewRepo repository.EmailReviewRepository,
	summaryRepo repository.EmailSummaryRepository,
	analyzer EmailAnalyzer,
	credentials authusecase.CredentialStore,
	watcher Watcher,
	topicName string,
	pageSize int,
) EmailUsecase {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &emailUsecase{
		syncer:      syncer,
		emailRepo:   emailRepo,
		reviewRepo:  reviewRepo,
		summaryRepo: summaryRepo,
		analyzer:    analyzer,
		credentials: credentials,
		watcher:     watcher,
		topicName:   topicName,
		pageSize:    pageSize,
	}
}

func (u *emailUsecase) SyncAndList(ctx context.Context, userID string) (*emaildto.SyncResult, error) {
	return u.syncer.SyncUser(ctx, userID, gmail.QueryRecent)
}

func (u *emailUsecase) ListEmails(userID string) ([]*emaildto.EnrichedEmail, error) {
	emails, err := u.emailRepo.ListByUser(userID, u.pageSize)
	if err != nil {
		return nil, err
	}
	return enrich(u.reviewRepo, userID, emails)
}

func (u *emailUsecase) GetEmailByID(userID, id string) (*emaildto.EnrichedEmail, error) {
	email, err := u.emailRepo.FindByID(userID, id)
	if err != nil {
		return nil, err
	}
	if email == nil {
		return nil, emaildomain.ErrEmailNotFound
	}

	enriched, err := enrich(u.reviewRepo, userID, []emaildomain.Email{*email})
	if err != nil {
		return nil, err
	}
	return enriched[0], nil
}

// SetStarred only changes the local flag; the provider mailbox is left alone.
func (u *emailUsecase) SetStarred(userID, id string, starred bool) (*emaildto.EnrichedEmail, error) {
	if err := u.emailRepo.SetStarred(userID, id, starred); err != nil {
		return nil, err
	}
	return u.GetEmailByID(userID, id)
}

func (u *emailUsecase) SetStatus(userID, id string, status emaildomain.ReviewStatus) (*emaildto.EnrichedEmail, error) {
	if _, err := emaildomain.ParseReviewStatus(string(status)); err != nil {
		return nil, err
	}

	email, err := u.emailRepo.FindByID(userID, id)
	if err != nil {
		return nil, err
	}
	if email == nil {
		return nil, emaildomain.ErrEmailNotFound
	}

	if err := u.reviewRepo.SetStatus(userID, email.MessageID, status); err != nil {
		return nil, err
	}
	return &emaildto.EnrichedEmail{Email: email, Status: status}, nil
}

func (u *emailUsecase) Reanalyze(ctx context.Context, userID, id string) (*emaildto.EnrichedEmail, error) {
	email, err := u.emailRepo.FindByID(userID, id)
	if err != nil {
		return nil, err
	}
	if email == nil {
		return nil, emaildomain.ErrEmailNotFound
	}

	analysis, err := u.analyzer.Analyze(ctx, email.Subject, email.Body)
	if err != nil {
		// rate limited: leave the stored analysis untouched
		return nil, err
	}
	if analysis.Summary == nil {
		logger.For("email").WithField("email_id", id).Warn("re-analysis fell back to defaults")
	}

	if err := u.emailRepo.SaveAnalysis(userID, id, &analysis, time.Now()); err != nil {
		return nil, fmt.Errorf("failed to save analysis: %w", err)
	}
	return u.GetEmailByID(userID, id)
}

func (u *emailUsecase) GetDailySummaries(userID string, limit int) ([]emaildomain.DailySummary, error) {
	if limit <= 0 || limit > 90 {
		limit = 30
	}
	return u.summaryRepo.ListByUser(userID, limit)
}

func (u *emailUsecase) WatchMailbox(ctx context.Context, userID string) (uint64, error) {
	if u.watcher == nil || u.topicName == "" {
		return 0, fmt.Errorf("push notifications are not configured")
	}
	cred, err := u.credentials.GetCredential(ctx, userID)
	if err != nil {
		return 0, err
	}
	return u.watcher.Watch(ctx, cred, u.topicName)
}
