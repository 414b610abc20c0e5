package repository

import (
	"errors"
	"time"

	emaildomain "email-analyzer-backend/internal/email/domain"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type emailSummaryRepository struct {
	db *gorm.DB
}

// NewEmailSummaryRepository creates a new instance of emailSummaryRepository
func NewEmailSummaryRepository(db *gorm.DB) EmailSummaryRepository {
	return &emailSummaryRepository{db: db}
}

func (r *emailSummaryRepository) MergeProcessed(userID, day string, processedIDs, fetchedIDs []string) (*emaildomain.DailySummary, error) {
	var merged emaildomain.DailySummary

	err := r.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		seed := &emaildomain.DailySummary{
			ID:                uuid.New().String(),
			UserID:            userID,
			Day:               day,
			SummaryText:       emaildomain.SummaryTextFor(0, 0),
			ProcessedEmailIDs: datatypes.JSONSlice[string]{},
			FetchedEmailIDs:   datatypes.JSONSlice[string]{},
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "day"}},
			DoNothing: true,
		}).Create(seed).Error; err != nil {
			return err
		}

		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND day = ?", userID, day).
			First(&merged).Error; err != nil {
			return err
		}

		ids := lo.Union([]string(merged.ProcessedEmailIDs), processedIDs)
		// processed messages were listed too, even when an earlier run listed them
		fetched := lo.Union([]string(merged.FetchedEmailIDs), fetchedIDs, ids)
		text := emaildomain.SummaryTextFor(len(ids), len(fetched))
		if len(ids) == len(merged.ProcessedEmailIDs) && len(fetched) == len(merged.FetchedEmailIDs) &&
			text == merged.SummaryText {
			return nil
		}

		merged.ProcessedEmailIDs = datatypes.JSONSlice[string](ids)
		merged.FetchedEmailIDs = datatypes.JSONSlice[string](fetched)
		merged.FetchedCount = len(fetched)
		merged.SummaryText = text
		merged.UpdatedAt = now

		return tx.Model(&emaildomain.DailySummary{}).
			Where("id = ?", merged.ID).
			Updates(map[string]interface{}{
				"processed_email_ids": merged.ProcessedEmailIDs,
				"fetched_email_ids":   merged.FetchedEmailIDs,
				"fetched_count":       merged.FetchedCount,
				"summary_text":        merged.SummaryText,
				"updated_at":          merged.UpdatedAt,
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return &merged, nil
}

func (r *emailSummaryRepository) FindByDay(userID, day string) (*emaildomain.DailySummary, error) {
	var summary emaildomain.DailySummary
	err := r.db.Where("user_id = ? AND day = ?", userID, day).First(&summary).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &summary, nil
}

func (r *emailSummaryRepository) ListByUser(userID string, limit int) ([]emaildomain.DailySummary, error) {
	var summaries []emaildomain.DailySummary
	q := r.db.Where("user_id = ?", userID).Order("day DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&summaries).Error; err != nil {
		return nil, err
	}
	return summaries, nil
}
