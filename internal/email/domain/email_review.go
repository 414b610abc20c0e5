package domain

import (
	"errors"
	"time"
)

var ErrInvalidReviewStatus = errors.New("invalid review status")

type ReviewStatus string

const (
	ReviewPending   ReviewStatus = "pending"
	ReviewDone      ReviewStatus = "done"
	ReviewDismissed ReviewStatus = "dismissed"
)

// ParseReviewStatus accepts only the three known statuses.
func ParseReviewStatus(s string) (ReviewStatus, error) {
	switch ReviewStatus(s) {
	case ReviewPending, ReviewDone, ReviewDismissed:
		return ReviewStatus(s), nil
	}
	return "", ErrInvalidReviewStatus
}

// EmailReview tracks what the user decided about an email. Only the review API changes Status.
type EmailReview struct {
	ID        string       `json:"id" gorm:"primaryKey"`
	UserID    string       `json:"user_id" gorm:"uniqueIndex:idx_review_user_message;not null"`
	MessageID string       `json:"message_id" gorm:"uniqueIndex:idx_review_user_message;not null"`
	Status    ReviewStatus `json:"status" gorm:"type:varchar(16);default:pending;not null"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (EmailReview) TableName() string {
	return "email_reviews"
}
