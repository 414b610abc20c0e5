package usecase

import (
	"context"

	emaildomain "email-analyzer-backend/internal/email/domain"
	emaildto "email-analyzer-backend/internal/email/dto"
	"email-analyzer-backend/pkg/gmail"
)

// Mailbox reads a user's messages from the mail provider. *gmail.Service implements it.
type Mailbox interface {
	ListMessageIDs(ctx context.Context, cred emaildomain.Credential, mode gmail.QueryMode, max int64) ([]string, error)
	// GetMessage returns nil, nil when the message no longer exists.
	GetMessage(ctx context.Context, cred emaildomain.Credential, messageID string) (*emaildomain.Email, error)
}

// Watcher registers push notifications for a mailbox.
type Watcher interface {
	Watch(ctx context.Context, cred emaildomain.Credential, topicName string) (uint64, error)
}

// EmailAnalyzer produces an Analysis. *ai.Analyzer implements it.
// The only error it returns is a rate-limit signal.
type EmailAnalyzer interface {
	Analyze(ctx context.Context, subject, body string) (emaildomain.Analysis, error)
}

// ActionNotifier tells a user about newly found action points.
type ActionNotifier interface {
	NotifyActionPoints(ctx context.Context, userID string, emails []*emaildomain.Email) error
}

// Syncer runs the ingestion pipeline for one user.
type Syncer interface {
	SyncUser(ctx context.Context, userID string, mode gmail.QueryMode) (*emaildto.SyncResult, error)
}

// EmailUsecase is what the dashboard API needs.
type EmailUsecase interface {
	// SyncAndList runs a sync for the user and returns the dashboard list.
	SyncAndList(ctx context.Context, userID string) (*emaildto.SyncResult, error)
	ListEmails(userID string) ([]*emaildto.EnrichedEmail, error)
	GetEmailByID(userID, id string) (*emaildto.EnrichedEmail, error)
	SetStarred(userID, id string, starred bool) (*emaildto.EnrichedEmail, error)
	SetStatus(userID, id string, status emaildomain.ReviewStatus) (*emaildto.EnrichedEmail, error)
	// Reanalyze runs the analysis again and overwrites the stored result.
	Reanalyze(ctx context.Context, userID, id string) (*emaildto.EnrichedEmail, error)
	GetDailySummaries(userID string, limit int) ([]emaildomain.DailySummary, error)
	WatchMailbox(ctx context.Context, userID string) (uint64, error)
}
