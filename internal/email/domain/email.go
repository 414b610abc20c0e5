package domain

import (
	"errors"
	"time"

	"golang.org/x/oauth2"
	"gorm.io/datatypes"
)

var (
	// ErrAuthRequired means the user has no usable mailbox credential and must sign in again.
	ErrAuthRequired = errors.New("authentication required")
	// ErrEmailNotFound is returned when a stored email does not exist for the user.
	ErrEmailNotFound = errors.New("email not found")
	// ErrSyncInProgress is returned when another sync already holds the user's lock.
	ErrSyncInProgress = errors.New("sync already in progress")
)

// TokenUpdateFunc is called when the provider hands out a refreshed access token.
type TokenUpdateFunc func(token *oauth2.Token) error

// Credential is what the mailbox reader needs to act on a user's behalf.
type Credential struct {
	UserID       string
	Email        string
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
	OnRefresh    TokenUpdateFunc
}

type BodyKind string

const (
	BodyKindPlain  BodyKind = "plain"
	BodyKindMarkup BodyKind = "markup"
)

type Category string

const (
	CategoryJobAlert  Category = "Job Alert"
	CategoryPromotion Category = "Promotion"
	CategorySocial    Category = "Social"
	CategoryInvoice   Category = "Invoice"
	CategoryUrgent    Category = "Urgent"
	CategoryPersonal  Category = "Personal"
	CategoryOther     Category = "Other"
)

// Categories lists the closed set of categories in prompt order.
var Categories = []Category{
	CategoryJobAlert, CategoryPromotion, CategorySocial, CategoryInvoice,
	CategoryUrgent, CategoryPersonal, CategoryOther,
}

type Sentiment string

const (
	SentimentPositive Sentiment = "Positive"
	SentimentNeutral  Sentiment = "Neutral"
	SentimentNegative Sentiment = "Negative"
)

var Sentiments = []Sentiment{SentimentPositive, SentimentNeutral, SentimentNegative}

// Analysis is the model's verdict on one email. A nil Summary means the analysis did not run or failed.
type Analysis struct {
	Summary      *string   `json:"summary"`
	Category     Category  `json:"category"`
	Sentiment    Sentiment `json:"sentiment"`
	ActionPoints []string  `json:"action_points"`
}

// Email is a normalized provider message together with its analysis.
// (user_id, message_id) identifies a row; it is the only record of what has been processed.
type Email struct {
	ID           string                      `json:"id" gorm:"primaryKey"`
	UserID       string                      `json:"user_id" gorm:"uniqueIndex:idx_email_user_message;not null"`
	MessageID    string                      `json:"message_id" gorm:"uniqueIndex:idx_email_user_message;not null"`
	ThreadID     string                      `json:"thread_id"`
	Subject      string                      `json:"subject"`
	From         string                      `json:"from"`
	To           string                      `json:"to"`
	Snippet      string                      `json:"snippet"`
	Body         string                      `json:"body" gorm:"type:text"`
	BodyKind     BodyKind                    `json:"body_kind" gorm:"type:varchar(16);default:plain"`
	ReceivedAt   time.Time                   `json:"received_at" gorm:"index"`
	IsRead       bool                        `json:"is_read"`
	IsStarred    bool                        `json:"is_starred"`
	Summary      *string                     `json:"summary" gorm:"type:text"`
	Category     Category                    `json:"category" gorm:"type:varchar(32);default:Other"`
	Sentiment    Sentiment                   `json:"sentiment" gorm:"type:varchar(16);default:Neutral"`
	ActionPoints datatypes.JSONSlice[string] `json:"action_points"`
	AnalyzedAt   *time.Time                  `json:"analyzed_at"`
	CreatedAt    time.Time                   `json:"created_at"`
	UpdatedAt    time.Time                   `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Email) TableName() string {
	return "emails"
}

// ApplyAnalysis copies an analysis onto the email. A nil analysis resets it to the unanalyzed defaults.
func (e *Email) ApplyAnalysis(a *Analysis, at time.Time) {
	if a == nil || a.Summary == nil {
		e.Summary = nil
		e.Category = CategoryOther
		e.Sentiment = SentimentNeutral
		e.ActionPoints = datatypes.JSONSlice[string]{}
		e.AnalyzedAt = nil
		return
	}
	summary := *a.Summary
	e.Summary = &summary
	e.Category = a.Category
	e.Sentiment = a.Sentiment
	e.ActionPoints = append(datatypes.JSONSlice[string]{}, a.ActionPoints...)
	analyzedAt := at
	e.AnalyzedAt = &analyzedAt
}

// Analyzed reports whether a real analysis has been stored.
func (e *Email) Analyzed() bool {
	return e.AnalyzedAt != nil && e.Summary != nil
}
