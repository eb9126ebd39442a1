package models

import (
	"time"
)

// RefreshToken is an opaque random value looked up by exact match; it carries
// no decodable structure, unlike the signed access token.
type RefreshToken struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Token         string     `gorm:"uniqueIndex;size:128;not null" json:"-"`
	UserID        uint       `gorm:"not null;index" json:"user_id"`
	ExpiresAt     time.Time  `gorm:"not null;index" json:"expires_at"`
	IsActive      bool       `gorm:"not null;default:true;index" json:"is_active"`
	IsRevoked     bool       `gorm:"not null;default:false" json:"is_revoked"`
	RevokedAt     *time.Time `json:"revoked_at"`
	RevokedReason string     `gorm:"size:100" json:"revoked_reason"`
	LastUsedAt    *time.Time `json:"last_used_at"`
	UsageCount    int        `gorm:"not null;default:0" json:"usage_count"`
	RequestMeta   `json:"-"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

func (t *RefreshToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// IsValid is the redemption gate: active, not revoked, not past expiry.
func (t *RefreshToken) IsValid(now time.Time) bool {
	return t.IsActive && !t.IsRevoked && !t.IsExpired(now)
}

func (t *RefreshToken) Revoke(reason string, now time.Time) {
	t.IsRevoked = true
	t.IsActive = false
	t.RevokedAt = &now
	t.RevokedReason = reason
}

func (t *RefreshToken) MarkUsed(now time.Time) {
	t.LastUsedAt = &now
	t.UsageCount++
}
