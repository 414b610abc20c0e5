package domain

import (
	"errors"
	"time"
)

var ErrUserNotFound = errors.New("user not found")

// User is a Google account that granted mailbox access.
// AccessToken and RefreshToken are stored encrypted.
type User struct {
	ID           string     `json:"id" gorm:"primaryKey"`
	GoogleID     string     `json:"-" gorm:"uniqueIndex"`
	Email        string     `json:"email" gorm:"uniqueIndex;not null"`
	Name         string     `json:"name"`
	AvatarURL    string     `json:"avatar_url,omitempty"`
	AccessToken  string     `json:"-" gorm:"type:text"`
	RefreshToken string     `json:"-" gorm:"type:text"`
	TokenExpiry  *time.Time `json:"-"`
	NeedsReauth  bool       `json:"needs_reauth"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (User) TableName() string {
	return "users"
}

// HasMailboxAccess reports whether the pipeline can act for this user.
func (u *User) HasMailboxAccess() bool {
	return u.RefreshToken != ""
}
