package models

import (
	"time"

	"securetalk/internal/domain"
)

// BlockedUser is one directional block row. The pair is unique; re-blocking
// after an unblock reactivates the existing row instead of inserting a second.
type BlockedUser struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	BlockerID       uint       `gorm:"not null;index;uniqueIndex:idx_block_pair" json:"blocker_id"`
	BlockedID       uint       `gorm:"not null;index;uniqueIndex:idx_block_pair" json:"blocked_id"`
	Reason          string     `gorm:"size:500" json:"reason"`
	BlockedAt       time.Time  `gorm:"not null" json:"blocked_at"`
	ExpiresAt       *time.Time `gorm:"index" json:"expires_at"` // nil = permanent
	IsActive        bool       `gorm:"not null;default:true;index" json:"is_active"`
	UnblockedAt     *time.Time `json:"unblocked_at"`
	UnblockedBy     *uint      `json:"unblocked_by"`
	UnblockReason   string     `gorm:"size:500" json:"unblock_reason"`
	BlockType       string     `gorm:"size:20;not null;default:'MANUAL'" json:"block_type"`
	Severity        string     `gorm:"size:20;not null;default:'NORMAL'" json:"severity"`
	AdminReviewed   bool       `gorm:"not null;default:false" json:"admin_reviewed"`
	AdminReviewDate *time.Time `json:"admin_review_date"`
	AdminReviewerID *uint      `json:"admin_reviewer_id"`
	AdminNotes      string     `gorm:"size:1000" json:"admin_notes"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (BlockedUser) TableName() string {
	return "blocked_users"
}

func (b *BlockedUser) IsExpired(now time.Time) bool {
	return b.ExpiresAt != nil && now.After(*b.ExpiresAt)
}

// IsCurrentlyActive evaluates expiry lazily; an expired row still flagged
// active counts as inactive here.
func (b *BlockedUser) IsCurrentlyActive(now time.Time) bool {
	return b.IsActive && !b.IsExpired(now)
}

func (b *BlockedUser) IsTemporary() bool { return b.ExpiresAt != nil }

func (b *BlockedUser) Unblock(actorID *uint, reason string, now time.Time) {
	b.IsActive = false
	b.UnblockedAt = &now
	b.UnblockedBy = actorID
	b.UnblockReason = reason
}

// Expire deactivates a lapsed temporary block on a write path.
func (b *BlockedUser) Expire(now time.Time) {
	b.Unblock(nil, "EXPIRED", now)
}

// CanBeUnblockedBy allows the original blocker or an admin.
func (b *BlockedUser) CanBeUnblockedBy(user *User) bool {
	return b.BlockerID == user.ID || user.IsAdmin()
}

func (b *BlockedUser) MarkAdminReviewed(adminID uint, notes string, now time.Time) {
	b.AdminReviewed = true
	b.AdminReviewDate = &now
	b.AdminReviewerID = &adminID
	b.AdminNotes = notes
}

func (b *BlockedUser) RequiresAdminReview() bool {
	return b.Severity == domain.BlockSeverityHigh ||
		b.Severity == domain.BlockSeverityCritical ||
		b.BlockType == domain.BlockTypeAdmin
}
