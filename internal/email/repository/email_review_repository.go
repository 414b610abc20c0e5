package repository

import (
	"time"

	emaildomain "email-analyzer-backend/internal/email/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type emailReviewRepository struct {
	db *gorm.DB
}

// NewEmailReviewRepository creates a new instance of emailReviewRepository
func NewEmailReviewRepository(db *gorm.DB) EmailReviewRepository {
	return &emailReviewRepository{db: db}
}

func (r *emailReviewRepository) EnsurePending(userID, messageID string) error {
	now := time.Now()
	review := &emaildomain.EmailReview{
		ID:        uuid.New().String(),
		UserID:    userID,
		MessageID: messageID,
		Status:    emaildomain.ReviewPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "message_id"}},
		DoNothing: true,
	}).Create(review).Error
}

func (r *emailReviewRepository) SetStatus(userID, messageID string, status emaildomain.ReviewStatus) error {
	now := time.Now()
	review := &emaildomain.EmailReview{
		ID:        uuid.New().String(),
		UserID:    userID,
		MessageID: messageID,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "message_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "updated_at"}),
	}).Create(review).Error
}

func (r *emailReviewRepository) GetStatuses(userID string, messageIDs []string) (map[string]emaildomain.ReviewStatus, error) {
	if len(messageIDs) == 0 {
		return map[string]emaildomain.ReviewStatus{}, nil
	}

	var reviews []emaildomain.EmailReview
	err := r.db.Where("user_id = ? AND message_id IN ?", userID, messageIDs).Find(&reviews).Error
	if err != nil {
		return nil, err
	}

	result := make(map[string]emaildomain.ReviewStatus, len(reviews))
	for _, rv := range reviews {
		result[rv.MessageID] = rv.Status
	}
	return result, nil
}
