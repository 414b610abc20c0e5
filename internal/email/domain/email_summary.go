package domain

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// DayLayout is the calendar-day key format of DailySummary.Day.
const DayLayout = "2006-01-02"

// DailySummary rolls up one user's processing for one calendar day (UTC).
type DailySummary struct {
	ID                string                      `json:"id" gorm:"primaryKey"`
	UserID            string                      `json:"user_id" gorm:"uniqueIndex:idx_daily_user_day;not null"`
	Day               string                      `json:"day" gorm:"uniqueIndex:idx_daily_user_day;type:varchar(10);not null"`
	SummaryText       string                      `json:"summary_text" gorm:"type:text"`
	ProcessedEmailIDs datatypes.JSONSlice[string] `json:"processed_email_ids"`
	FetchedEmailIDs   datatypes.JSONSlice[string] `json:"-"`
	FetchedCount      int                         `json:"fetched_count"`
	CreatedAt         time.Time                   `json:"created_at"`
	UpdatedAt         time.Time                   `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (DailySummary) TableName() string {
	return "daily_summaries"
}

// DayKey returns the rollup key for t.
func DayKey(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

// SummaryTextFor renders the rollup sentence for the cumulative counts.
func SummaryTextFor(processed, fetched int) string {
	if fetched == 0 && processed == 0 {
		return "No unread emails found today."
	}
	return fmt.Sprintf("Processed %d out of %d fetched emails today.", processed, fetched)
}
