package models

import (
	"strings"
	"time"

	"securetalk/internal/domain"
)

type User struct {
	ID                  uint       `gorm:"primaryKey" json:"id"`
	Username            string     `gorm:"uniqueIndex;size:50;not null" json:"username"`
	Email               string     `gorm:"uniqueIndex;size:100;not null" json:"email"`
	PasswordHash        string     `gorm:"size:255;not null" json:"-"`
	Roles               string     `gorm:"size:100;not null;default:'USER'" json:"roles"` // comma separated
	Enabled             bool       `gorm:"not null;default:true;index" json:"enabled"`
	LastLoginAt         *time.Time `json:"last_login_at"`
	FailedLoginAttempts int        `gorm:"not null;default:0" json:"-"`
	LockedUntil         *time.Time `json:"-"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// RoleSet splits the stored CSV into individual role names.
func (u *User) RoleSet() []string {
	parts := strings.Split(u.Roles, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (u *User) HasRole(role string) bool {
	for _, r := range u.RoleSet() {
		if r == role {
			return true
		}
	}
	return false
}

func (u *User) IsAdmin() bool { return u.HasRole(domain.RoleAdmin) }

// IsLocked reports whether a failed-login lockout is still in effect.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}
