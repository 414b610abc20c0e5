package repository

import (
	"errors"
	"time"

	emaildomain "email-analyzer-backend/internal/email/domain"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// columns the pipeline may refresh on an existing row
var refreshableColumns = []string{
	"is_read", "summary", "category", "sentiment", "action_points", "analyzed_at", "updated_at",
}

type emailRepository struct {
	db *gorm.DB
}

// NewEmailRepository creates a new instance of emailRepository
func NewEmailRepository(db *gorm.DB) EmailRepository {
	return &emailRepository{db: db}
}

func (r *emailRepository) Upsert(email *emaildomain.Email) error {
	now := time.Now()
	if email.ID == "" {
		email.ID = uuid.New().String()
	}
	if email.CreatedAt.IsZero() {
		email.CreatedAt = now
	}
	email.UpdatedAt = now
	if email.ActionPoints == nil {
		email.ActionPoints = datatypes.JSONSlice[string]{}
	}
	if email.Category == "" {
		email.Category = emaildomain.CategoryOther
	}
	if email.Sentiment == "" {
		email.Sentiment = emaildomain.SentimentNeutral
	}

	// Atomic upsert: INSERT ... ON CONFLICT (user_id, message_id) DO UPDATE
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "message_id"}},
		DoUpdates: clause.AssignmentColumns(refreshableColumns),
	}).Create(email).Error
}

func (r *emailRepository) ExistingMessageIDs(userID string, messageIDs []string) (map[string]bool, error) {
	result := make(map[string]bool, len(messageIDs))
	if len(messageIDs) == 0 {
		return result, nil
	}

	var ids []string
	err := r.db.Model(&emaildomain.Email{}).
		Where("user_id = ? AND message_id IN ?", userID, messageIDs).
		Pluck("message_id", &ids).Error
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		result[id] = true
	}
	return result, nil
}

func (r *emailRepository) ListByUser(userID string, limit int) ([]emaildomain.Email, error) {
	var emails []emaildomain.Email
	q := r.db.Where("user_id = ?", userID).Order("received_at DESC").Order("id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&emails).Error; err != nil {
		return nil, err
	}
	return emails, nil
}

func (r *emailRepository) FindByID(userID, id string) (*emaildomain.Email, error) {
	var email emaildomain.Email
	err := r.db.Where("user_id = ? AND id = ?", userID, id).First(&email).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &email, nil
}

func (r *emailRepository) SetStarred(userID, id string, starred bool) error {
	res := r.db.Model(&emaildomain.Email{}).
		Where("user_id = ? AND id = ?", userID, id).
		Updates(map[string]interface{}{"is_starred": starred, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return emaildomain.ErrEmailNotFound
	}
	return nil
}

func (r *emailRepository) SaveAnalysis(userID, id string, analysis *emaildomain.Analysis, at time.Time) error {
	var email emaildomain.Email
	email.ApplyAnalysis(analysis, at)

	res := r.db.Model(&emaildomain.Email{}).
		Where("user_id = ? AND id = ?", userID, id).
		Updates(map[string]interface{}{
			"summary":       email.Summary,
			"category":      email.Category,
			"sentiment":     email.Sentiment,
			"action_points": email.ActionPoints,
			"analyzed_at":   email.AnalyzedAt,
			"updated_at":    time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return emaildomain.ErrEmailNotFound
	}
	return nil
}
