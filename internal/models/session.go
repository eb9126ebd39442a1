package models

import (
	"time"

	"securetalk/internal/domain"
)

// UserSession tracks a single device/login event, one-to-many from a user.
type UserSession struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	SessionID     string     `gorm:"uniqueIndex;size:100;not null" json:"session_id"`
	UserID        uint       `gorm:"not null;index" json:"user_id"`
	DeviceType    string     `gorm:"size:50" json:"device_type"`
	DeviceName    string     `gorm:"size:100" json:"device_name"`
	LoginTime     time.Time  `gorm:"not null" json:"login_time"`
	LastActivity  time.Time  `gorm:"not null;index" json:"last_activity"`
	LogoutTime    *time.Time `json:"logout_time"`
	LogoutReason  string     `gorm:"size:50" json:"logout_reason"` // MANUAL, TIMEOUT, FORCE, SECURITY
	ExpiresAt     time.Time  `gorm:"not null;index" json:"expires_at"`
	IsActive      bool       `gorm:"not null;default:true;index" json:"is_active"`
	IsCurrent     bool       `gorm:"not null;default:false" json:"is_current"`
	LoginMethod   string     `gorm:"size:20;not null;default:'PASSWORD'" json:"login_method"`
	ActivityCount int        `gorm:"not null;default:0" json:"activity_count"`
	RequestMeta   `json:"-"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (UserSession) TableName() string {
	return "user_sessions"
}

func (s *UserSession) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

func (s *UserSession) IsValid(now time.Time) bool {
	return s.IsActive && !s.IsExpired(now)
}

// IsIdle reports whether the session's last activity predates the inactivity
// threshold; idle sessions are timed out on next evaluation.
func (s *UserSession) IsIdle(timeout time.Duration, now time.Time) bool {
	return s.LastActivity.Before(now.Add(-timeout))
}

func (s *UserSession) Touch(now time.Time) {
	s.LastActivity = now
	s.ActivityCount++
}

func (s *UserSession) Logout(reason string, now time.Time) {
	s.IsActive = false
	s.IsCurrent = false
	s.LogoutTime = &now
	s.LogoutReason = reason
}

func (s *UserSession) Expire(now time.Time) {
	s.Logout(domain.LogoutTimeout, now)
}
