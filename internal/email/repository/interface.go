package repository

import (
	"time"

	emaildomain "email-analyzer-backend/internal/email/domain"
)

// EmailRepository stores normalized emails and their analysis, keyed by (user, message id).
type EmailRepository interface {
	// Upsert inserts the email or refreshes the pipeline-owned columns of the existing row.
	// The starred flag of an existing row is never touched.
	Upsert(email *emaildomain.Email) error
	// ExistingMessageIDs returns which of messageIDs are already stored for the user.
	ExistingMessageIDs(userID string, messageIDs []string) (map[string]bool, error)
	// ListByUser returns the newest emails first.
	ListByUser(userID string, limit int) ([]emaildomain.Email, error)
	FindByID(userID, id string) (*emaildomain.Email, error)
	SetStarred(userID, id string, starred bool) error
	SaveAnalysis(userID, id string, analysis *emaildomain.Analysis, at time.Time) error
}

// EmailReviewRepository stores review statuses.
type EmailReviewRepository interface {
	// EnsurePending creates a pending review unless one exists.
	EnsurePending(userID, messageID string) error
	SetStatus(userID, messageID string, status emaildomain.ReviewStatus) error
	// GetStatuses returns a map of messageID -> status
	GetStatuses(userID string, messageIDs []string) (map[string]emaildomain.ReviewStatus, error)
}

// EmailSummaryRepository stores daily rollups.
type EmailSummaryRepository interface {
	// MergeProcessed adds processed and listed ids to the user's rollup for day, creating it when missing.
	// Merging ids that are already present leaves the row untouched.
	MergeProcessed(userID, day string, processedIDs, fetchedIDs []string) (*emaildomain.DailySummary, error)
	FindByDay(userID, day string) (*emaildomain.DailySummary, error)
	ListByUser(userID string, limit int) ([]emaildomain.DailySummary, error)
}
