package repository

import (
	"errors"
	"time"

	"securetalk/internal/errs"
	"securetalk/internal/models"

	"gorm.io/gorm"
)

type RefreshTokenRepository struct {
	db *gorm.DB
}

func NewRefreshTokenRepository(db *gorm.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

// Create inserts a token row; the unique token index makes value collisions
// an errs.ErrConflict the issuer retries on.
func (r *RefreshTokenRepository) Create(t *models.RefreshToken) error {
	if err := r.db.Create(t).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return errs.ErrConflict
		}
		return err
	}
	return nil
}

func (r *RefreshTokenRepository) GetByToken(token string) (*models.RefreshToken, error) {
	var t models.RefreshToken
	if err := r.db.Where("token = ?", token).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *RefreshTokenRepository) Update(t *models.RefreshToken) error {
	return r.db.Save(t).Error
}

func (r *RefreshTokenRepository) RevokeAllForUser(userID uint, reason string, now time.Time) (int64, error) {
	res := r.db.Model(&models.RefreshToken{}).
		Where("user_id = ? AND is_active = 1", userID).
		Updates(map[string]interface{}{
			"is_active":      false,
			"is_revoked":     true,
			"revoked_at":     now,
			"revoked_reason": reason,
		})
	return res.RowsAffected, res.Error
}

// DeactivateExpired flips naturally lapsed tokens inactive without marking
// them revoked; expiry is not a revocation.
func (r *RefreshTokenRepository) DeactivateExpired(now time.Time) (int64, error) {
	res := r.db.Model(&models.RefreshToken{}).
		Where("is_active = 1 AND expires_at < ?", now).
		Update("is_active", false)
	return res.RowsAffected, res.Error
}
