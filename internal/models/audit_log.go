package models

import (
	"time"
)

type AuditLog struct {
	ID            uint              `gorm:"primaryKey" json:"id"`
	UserID        *uint             `gorm:"index" json:"user_id"` // nil = system action
	Action        string            `gorm:"size:100;not null;index" json:"action"`
	EntityType    string            `gorm:"size:50;index:idx_audit_entity" json:"entity_type"`
	EntityID      *uint             `gorm:"index:idx_audit_entity" json:"entity_id"`
	Timestamp     time.Time         `gorm:"not null;index" json:"timestamp"`
	SessionID     string            `gorm:"size:100" json:"session_id"`
	Description   string            `gorm:"type:text" json:"description"`
	Severity      string            `gorm:"size:20;not null;default:'INFO';index" json:"severity"`
	Category      string            `gorm:"size:50;not null;default:'GENERAL'" json:"category"`
	Success       bool              `gorm:"not null;default:true" json:"success"`
	ErrorMessage  string            `gorm:"type:text" json:"error_message"`
	Method        string            `gorm:"size:20" json:"method"`
	Endpoint      string            `gorm:"size:500" json:"endpoint"`
	DurationMs    *int64            `json:"duration_ms"`
	HTTPStatus    *int              `json:"http_status"`
	RiskScore     int               `gorm:"not null;default:0" json:"risk_score"` // 0..100, fixed at creation
	Flagged       bool              `gorm:"not null;default:false;index" json:"flagged"`
	FlaggedReason string            `gorm:"size:500" json:"flagged_reason"`
	Reviewed      bool              `gorm:"not null;default:false" json:"reviewed"`
	ReviewedBy    *uint             `json:"reviewed_by"`
	ReviewedAt    *time.Time        `json:"reviewed_at"`
	ReviewNotes   string            `gorm:"size:1000" json:"review_notes"`
	Metadata      map[string]string `gorm:"serializer:json" json:"metadata,omitempty"`
	RequestMeta   `json:"-"`
	CreatedAt     time.Time         `json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}

func (a *AuditLog) Flag(reason string) {
	a.Flagged = true
	a.FlaggedReason = reason
}

// MarkReviewed is terminal for the review workflow; callers must reject a
// second review themselves.
func (a *AuditLog) MarkReviewed(reviewerID uint, notes string, now time.Time) {
	a.Reviewed = true
	a.ReviewedBy = &reviewerID
	a.ReviewedAt = &now
	a.ReviewNotes = notes
}

func (a *AuditLog) AddMetadata(key, value string) {
	if a.Metadata == nil {
		a.Metadata = make(map[string]string)
	}
	a.Metadata[key] = value
}

func (a *AuditLog) IsHighRisk() bool { return a.RiskScore >= 70 }

func (a *AuditLog) RequiresReview() bool {
	return a.Flagged || a.IsHighRisk() || a.Severity == "CRITICAL"
}

func (a *AuditLog) IsFailedOperation() bool {
	return !a.Success || (a.HTTPStatus != nil && *a.HTTPStatus >= 400)
}
