package service

import (
	"errors"
	"fmt"
	"time"

	"securetalk/internal/errs"
	"securetalk/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AuditStore is the persistence surface the audit recorder needs.
type AuditStore interface {
	Create(*models.AuditLog) error
	GetByID(id uint) (*models.AuditLog, error)
	MarkReviewed(id, reviewerID uint, notes string, at time.Time) (int64, error)
	ListByUser(userID uint, limit, offset int) ([]models.AuditLog, error)
	ListByAction(action string, from, to time.Time, limit, offset int) ([]models.AuditLog, error)
	ListByEntity(entityType string, entityID uint, limit, offset int) ([]models.AuditLog, error)
	ListBetween(from, to time.Time, limit, offset int) ([]models.AuditLog, error)
	ListByIP(ip string, limit, offset int) ([]models.AuditLog, error)
	Search(query string, limit, offset int) ([]models.AuditLog, error)
	ListFlaggedUnreviewed(limit, offset int) ([]models.AuditLog, error)
}

// AuditEntry carries everything an action reports about itself.
type AuditEntry struct {
	ActorID      *uint // nil = system action
	Action       string
	EntityType   string
	EntityID     *uint
	Description  string
	Success      bool
	ErrorMessage string
	HTTPStatus   int
	DurationMs   int64
	Category     string
	Severity     string
	SessionID    string
	Meta         models.RequestMeta
	Metadata     map[string]string
}

type AuditService struct {
	store AuditStore
	log   *zap.Logger
	now   func() time.Time
}

func NewAuditService(store AuditStore, log *zap.Logger) *AuditService {
	return &AuditService{store: store, log: log, now: time.Now}
}

// Record creates an audit row for the entry. The risk score and flag state
// are computed here, once, from the entry's immutable inputs; nothing
// recomputes them later.
func (s *AuditService) Record(e AuditEntry) (*models.AuditLog, error) {
	if e.Action == "" {
		return nil, fmt.Errorf("%w: action required", errs.ErrValidation)
	}
	now := s.now()
	score, flagged, reason := ComputeRiskScore(RiskInput{
		Action:     e.Action,
		Success:    e.Success,
		HTTPStatus: e.HTTPStatus,
		DurationMs: e.DurationMs,
		Category:   e.Category,
	})
	entry := &models.AuditLog{
		UserID:       e.ActorID,
		Action:       e.Action,
		EntityType:   e.EntityType,
		EntityID:     e.EntityID,
		Timestamp:    now,
		SessionID:    e.SessionID,
		Description:  e.Description,
		Severity:     defaultString(e.Severity, "INFO"),
		Category:     defaultString(e.Category, "GENERAL"),
		Success:      e.Success,
		ErrorMessage: e.ErrorMessage,
		RiskScore:    score,
		Metadata:     e.Metadata,
		RequestMeta:  e.Meta,
	}
	if e.HTTPStatus != 0 {
		entry.HTTPStatus = &e.HTTPStatus
	}
	if e.DurationMs != 0 {
		entry.DurationMs = &e.DurationMs
	}
	if flagged {
		entry.Flag(reason)
	}
	if err := s.store.Create(entry); err != nil {
		s.log.Error("audit record failed", zap.String("action", e.Action), zap.Error(err))
		return nil, fmt.Errorf("%w: audit store", errs.ErrUnavailable)
	}
	if flagged {
		s.log.Warn("audit entry flagged",
			zap.Uint("id", entry.ID),
			zap.String("action", entry.Action),
			zap.Int("risk_score", entry.RiskScore))
	}
	return entry, nil
}

// Review marks a flagged entry reviewed. The first reviewer wins; a second
// call is rejected rather than silently overwriting the trail.
func (s *AuditService) Review(logID, reviewerID uint, notes string) (*models.AuditLog, error) {
	rows, err := s.store.MarkReviewed(logID, reviewerID, notes, s.now())
	if err != nil {
		return nil, fmt.Errorf("%w: audit store", errs.ErrUnavailable)
	}
	if rows == 0 {
		entry, err := s.store.GetByID(logID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: audit log %d", errs.ErrNotFound, logID)
			}
			return nil, fmt.Errorf("%w: audit store", errs.ErrUnavailable)
		}
		if entry.Reviewed {
			return nil, errs.ErrAlreadyReviewed
		}
		return nil, fmt.Errorf("%w: audit log %d", errs.ErrNotFound, logID)
	}
	return s.store.GetByID(logID)
}

// Query projections. These are read-only pass-throughs over the store.

func (s *AuditService) ListByActor(userID uint, limit, offset int) ([]models.AuditLog, error) {
	return s.store.ListByUser(userID, normalizeLimit(limit), offset)
}

func (s *AuditService) ListByAction(action string, from, to time.Time, limit, offset int) ([]models.AuditLog, error) {
	return s.store.ListByAction(action, from, to, normalizeLimit(limit), offset)
}

func (s *AuditService) ListByEntity(entityType string, entityID uint, limit, offset int) ([]models.AuditLog, error) {
	return s.store.ListByEntity(entityType, entityID, normalizeLimit(limit), offset)
}

func (s *AuditService) ListBetween(from, to time.Time, limit, offset int) ([]models.AuditLog, error) {
	return s.store.ListBetween(from, to, normalizeLimit(limit), offset)
}

func (s *AuditService) ListByIP(ip string, limit, offset int) ([]models.AuditLog, error) {
	return s.store.ListByIP(ip, normalizeLimit(limit), offset)
}

func (s *AuditService) Search(query string, limit, offset int) ([]models.AuditLog, error) {
	return s.store.Search(query, normalizeLimit(limit), offset)
}

func (s *AuditService) ListFlagged(limit, offset int) ([]models.AuditLog, error) {
	return s.store.ListFlaggedUnreviewed(normalizeLimit(limit), offset)
}

func defaultString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 200 {
		return 50
	}
	return limit
}
