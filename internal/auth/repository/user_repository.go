package repository

import (
	"errors"
	"time"

	authdomain "email-analyzer-backend/internal/auth/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// userRepository implements UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new instance of userRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{
		db: db,
	}
}

func (r *userRepository) FindByEmail(email string) (*authdomain.User, error) {
	var user authdomain.User
	err := r.db.Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByID(id string) (*authdomain.User, error) {
	var user authdomain.User
	err := r.db.Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) UpsertGoogleUser(user *authdomain.User) (*authdomain.User, error) {
	var result authdomain.User
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var existing authdomain.User
		err := tx.Where("google_id = ? OR email = ?", user.GoogleID, user.Email).First(&existing).Error
		now := time.Now()

		if errors.Is(err, gorm.ErrRecordNotFound) {
			result = *user
			result.ID = uuid.New().String()
			result.CreatedAt = now
			result.UpdatedAt = now
			return tx.Create(&result).Error
		}
		if err != nil {
			return err
		}

		existing.GoogleID = user.GoogleID
		existing.Email = user.Email
		existing.Name = user.Name
		existing.AvatarURL = user.AvatarURL
		if user.AccessToken != "" {
			existing.AccessToken = user.AccessToken
			existing.TokenExpiry = user.TokenExpiry
		}
		// Google only returns a refresh token on first consent; keep the stored one otherwise.
		if user.RefreshToken != "" {
			existing.RefreshToken = user.RefreshToken
			existing.NeedsReauth = false
		}
		existing.UpdatedAt = now
		result = existing
		return tx.Save(&result).Error
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *userRepository) ListWithRefreshToken() ([]authdomain.User, error) {
	var users []authdomain.User
	err := r.db.Where("refresh_token IS NOT NULL AND refresh_token <> ''").Order("created_at").Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) UpdateAccessToken(userID, accessToken string, expiry time.Time) error {
	updates := map[string]interface{}{"access_token": accessToken, "updated_at": time.Now()}
	if !expiry.IsZero() {
		updates["token_expiry"] = expiry
	}
	return r.db.Model(&authdomain.User{}).Where("id = ?", userID).Updates(updates).Error
}

func (r *userRepository) UpdateRefreshToken(userID, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return r.db.Model(&authdomain.User{}).Where("id = ?", userID).
		Updates(map[string]interface{}{"refresh_token": refreshToken, "updated_at": time.Now()}).Error
}

func (r *userRepository) SetNeedsReauth(userID string, needs bool) error {
	return r.db.Model(&authdomain.User{}).Where("id = ?", userID).
		Updates(map[string]interface{}{"needs_reauth": needs, "updated_at": time.Now()}).Error
}

func (r *userRepository) TouchLastSynced(userID string, at time.Time) error {
	return r.db.Model(&authdomain.User{}).Where("id = ?", userID).Update("last_synced_at", at).Error
}
