package dto

import (
	emaildomain "email-analyzer-backend/internal/email/domain"
)

// EnrichedEmail is an email as the dashboard shows it: message, analysis and review status.
type EnrichedEmail struct {
	*emaildomain.Email
	Status emaildomain.ReviewStatus `json:"status"`
}

// SyncResult reports what one sync of one user did.
type SyncResult struct {
	Emails []*EnrichedEmail `json:"emails"`
	// Fetched counts the identifiers the provider listed.
	Fetched int `json:"fetched"`
	// Processed counts new messages that were fetched from the provider.
	Processed int `json:"processed"`
	// Analyzed counts messages that got a real analysis.
	Analyzed     int `json:"analyzed"`
	ActionPoints int `json:"action_points"`
	Saved        int `json:"saved"`
}

type EmailsResponse struct {
	Emails []*EnrichedEmail `json:"emails"`
	Total  int              `json:"total"`
}

type StarRequest struct {
	IsStarred *bool `json:"isStarred" binding:"required"`
}

type StatusRequest struct {
	Status string `json:"status" binding:"required,oneof=pending done dismissed"`
}

type DailySummariesResponse struct {
	Summaries []emaildomain.DailySummary `json:"summaries"`
}

type WatchResponse struct {
	HistoryID uint64 `json:"history_id"`
}
