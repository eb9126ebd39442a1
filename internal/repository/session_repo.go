package repository

import (
	"time"

	"securetalk/internal/models"

	"gorm.io/gorm"
)

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(s *models.UserSession) error {
	return r.db.Create(s).Error
}

func (r *SessionRepository) GetBySessionID(sessionID string) (*models.UserSession, error) {
	var s models.UserSession
	if err := r.db.Where("session_id = ?", sessionID).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SessionRepository) Update(s *models.UserSession) error {
	return r.db.Save(s).Error
}

// Touch bumps last_activity and the activity counter in one conditional
// update; inactive sessions are left untouched.
func (r *SessionRepository) Touch(sessionID string, now time.Time) (int64, error) {
	res := r.db.Model(&models.UserSession{}).
		Where("session_id = ? AND is_active = 1", sessionID).
		Updates(map[string]interface{}{
			"last_activity":  now,
			"activity_count": gorm.Expr("activity_count + 1"),
		})
	return res.RowsAffected, res.Error
}

// Terminate closes a session; the is_active guard makes it idempotent.
func (r *SessionRepository) Terminate(sessionID, reason string, now time.Time) (int64, error) {
	res := r.db.Model(&models.UserSession{}).
		Where("session_id = ? AND is_active = 1", sessionID).
		Updates(map[string]interface{}{
			"is_active":     false,
			"is_current":    false,
			"logout_time":   now,
			"logout_reason": reason,
		})
	return res.RowsAffected, res.Error
}

func (r *SessionRepository) ListActiveByUser(userID uint) ([]models.UserSession, error) {
	var list []models.UserSession
	err := r.db.Where("user_id = ? AND is_active = 1", userID).
		Order("last_activity DESC").Find(&list).Error
	return list, err
}

// TerminateAllForUser closes every active session, optionally sparing one
// (for "log out everywhere else").
func (r *SessionRepository) TerminateAllForUser(userID uint, exceptSessionID, reason string, now time.Time) (int64, error) {
	q := r.db.Model(&models.UserSession{}).
		Where("user_id = ? AND is_active = 1", userID)
	if exceptSessionID != "" {
		q = q.Where("session_id <> ?", exceptSessionID)
	}
	res := q.Updates(map[string]interface{}{
		"is_active":     false,
		"is_current":    false,
		"logout_time":   now,
		"logout_reason": reason,
	})
	return res.RowsAffected, res.Error
}

// ExpireLapsed times out sessions past expiry or idle beyond the inactivity
// threshold. Called by the sweeper.
func (r *SessionRepository) ExpireLapsed(now time.Time, inactivity time.Duration) (int64, error) {
	res := r.db.Model(&models.UserSession{}).
		Where("is_active = 1 AND (expires_at < ? OR last_activity < ?)", now, now.Add(-inactivity)).
		Updates(map[string]interface{}{
			"is_active":     false,
			"is_current":    false,
			"logout_time":   now,
			"logout_reason": "TIMEOUT",
		})
	return res.RowsAffected, res.Error
}
