package repository

import (
	"errors"
	"time"

	"securetalk/internal/errs"
	"securetalk/internal/models"

	"gorm.io/gorm"
)

type BlockRepository struct {
	db *gorm.DB
}

func NewBlockRepository(db *gorm.DB) *BlockRepository {
	return &BlockRepository{db: db}
}

// Create inserts a block row. The unique (blocker_id, blocked_id) index turns
// concurrent duplicate inserts into errs.ErrConflict.
func (r *BlockRepository) Create(b *models.BlockedUser) error {
	if err := r.db.Create(b).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return errs.ErrConflict
		}
		return err
	}
	return nil
}

func (r *BlockRepository) Update(b *models.BlockedUser) error {
	return r.db.Save(b).Error
}

func (r *BlockRepository) GetByID(id uint) (*models.BlockedUser, error) {
	var b models.BlockedUser
	if err := r.db.First(&b, id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// GetPair returns the row for an ordered pair regardless of active state.
// There is at most one because the pair is unique.
func (r *BlockRepository) GetPair(blockerID, blockedID uint) (*models.BlockedUser, error) {
	var b models.BlockedUser
	err := r.db.Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).First(&b).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ListActiveBetween returns rows flagged active in either direction between
// the pair. Expiry is the caller's concern; rows past expires_at may still be
// flagged active here.
func (r *BlockRepository) ListActiveBetween(a, b uint) ([]models.BlockedUser, error) {
	var list []models.BlockedUser
	err := r.db.
		Where("((blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?)) AND is_active = 1",
			a, b, b, a).
		Find(&list).Error
	return list, err
}

func (r *BlockRepository) ListActiveByBlocker(blockerID uint) ([]models.BlockedUser, error) {
	var list []models.BlockedUser
	err := r.db.
		Where("blocker_id = ? AND is_active = 1", blockerID).
		Order("blocked_at DESC").
		Find(&list).Error
	return list, err
}

// ListPendingReview returns active high-severity or admin-type blocks that
// have not been reviewed yet.
func (r *BlockRepository) ListPendingReview(limit int) ([]models.BlockedUser, error) {
	var list []models.BlockedUser
	err := r.db.
		Where("is_active = 1 AND admin_reviewed = 0 AND (severity IN ? OR block_type = ?)",
			[]string{"HIGH", "CRITICAL"}, "ADMIN").
		Order("blocked_at ASC").
		Limit(limit).
		Find(&list).Error
	return list, err
}

// DeactivateExpired flips lapsed temporary blocks inactive; the sweeper calls
// this so lazy read-path expiry eventually becomes durable.
func (r *BlockRepository) DeactivateExpired(now time.Time) (int64, error) {
	res := r.db.Model(&models.BlockedUser{}).
		Where("is_active = 1 AND expires_at IS NOT NULL AND expires_at < ?", now).
		Updates(map[string]interface{}{
			"is_active":      false,
			"unblocked_at":   now,
			"unblock_reason": "EXPIRED",
		})
	return res.RowsAffected, res.Error
}
