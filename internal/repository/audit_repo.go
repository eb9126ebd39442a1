package repository

import (
	"time"

	"securetalk/internal/models"

	"gorm.io/gorm"
)

type AuditLogRepository struct {
	db *gorm.DB
}

func NewAuditLogRepository(db *gorm.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

func (r *AuditLogRepository) Create(log *models.AuditLog) error {
	return r.db.Create(log).Error
}

func (r *AuditLogRepository) GetByID(id uint) (*models.AuditLog, error) {
	var a models.AuditLog
	if err := r.db.First(&a, id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AuditLogRepository) Update(a *models.AuditLog) error {
	return r.db.Save(a).Error
}

// MarkReviewed sets the review fields only when the row is still unreviewed,
// so the first reviewer wins under concurrency. Returns rows changed.
func (r *AuditLogRepository) MarkReviewed(id, reviewerID uint, notes string, at time.Time) (int64, error) {
	res := r.db.Model(&models.AuditLog{}).
		Where("id = ? AND reviewed = 0", id).
		Updates(map[string]interface{}{
			"reviewed":     true,
			"reviewed_by":  reviewerID,
			"reviewed_at":  at,
			"review_notes": notes,
		})
	return res.RowsAffected, res.Error
}

func (r *AuditLogRepository) ListByUser(userID uint, limit, offset int) ([]models.AuditLog, error) {
	var list []models.AuditLog
	err := r.db.Where("user_id = ?", userID).
		Order("timestamp DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}

func (r *AuditLogRepository) ListByAction(action string, from, to time.Time, limit, offset int) ([]models.AuditLog, error) {
	var list []models.AuditLog
	err := r.db.Where("action = ? AND timestamp BETWEEN ? AND ?", action, from, to).
		Order("timestamp DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}

func (r *AuditLogRepository) ListByEntity(entityType string, entityID uint, limit, offset int) ([]models.AuditLog, error) {
	var list []models.AuditLog
	err := r.db.Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("timestamp DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}

func (r *AuditLogRepository) ListBetween(from, to time.Time, limit, offset int) ([]models.AuditLog, error) {
	var list []models.AuditLog
	err := r.db.Where("timestamp BETWEEN ? AND ?", from, to).
		Order("timestamp DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}

func (r *AuditLogRepository) ListByIP(ip string, limit, offset int) ([]models.AuditLog, error) {
	var list []models.AuditLog
	err := r.db.Where("client_ip = ?", ip).
		Order("timestamp DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}

// Search matches the action name or description with a LIKE pattern.
func (r *AuditLogRepository) Search(query string, limit, offset int) ([]models.AuditLog, error) {
	var list []models.AuditLog
	pattern := "%" + query + "%"
	err := r.db.Where("action LIKE ? OR description LIKE ?", pattern, pattern).
		Order("timestamp DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}

func (r *AuditLogRepository) ListFlaggedUnreviewed(limit, offset int) ([]models.AuditLog, error) {
	var list []models.AuditLog
	err := r.db.Where("flagged = 1 AND reviewed = 0").
		Order("risk_score DESC, timestamp ASC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}
