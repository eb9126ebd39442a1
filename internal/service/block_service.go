package service

import (
	"errors"
	"fmt"
	"time"

	"securetalk/internal/domain"
	"securetalk/internal/errs"
	"securetalk/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// BlockStore is the persistence surface the block registry needs.
type BlockStore interface {
	Create(*models.BlockedUser) error
	Update(*models.BlockedUser) error
	GetByID(id uint) (*models.BlockedUser, error)
	GetPair(blockerID, blockedID uint) (*models.BlockedUser, error)
	ListActiveBetween(a, b uint) ([]models.BlockedUser, error)
	ListActiveByBlocker(blockerID uint) ([]models.BlockedUser, error)
	ListPendingReview(limit int) ([]models.BlockedUser, error)
	DeactivateExpired(now time.Time) (int64, error)
}

// UserStore resolves user ids to accounts for permission checks.
type UserStore interface {
	GetByID(id uint) (*models.User, error)
}

// Recorder is the audit surface other services report to.
type Recorder interface {
	Record(AuditEntry) (*models.AuditLog, error)
}

// BlockRequest is the input for creating a directional block.
type BlockRequest struct {
	BlockerID uint
	BlockedID uint
	Reason    string
	ExpiresAt *time.Time
	BlockType string
	Severity  string
	Meta      models.RequestMeta
}

type BlockService struct {
	blocks BlockStore
	users  UserStore
	audit  Recorder
	log    *zap.Logger
	now    func() time.Time
}

func NewBlockService(blocks BlockStore, users UserStore, audit Recorder, log *zap.Logger) *BlockService {
	return &BlockService{blocks: blocks, users: users, audit: audit, log: log, now: time.Now}
}

// Block creates (or reactivates) the directional block for the ordered pair.
// At most one row exists per pair; blocking an already actively blocked user
// returns the existing row with ErrAlreadyBlocked so callers stay idempotent.
func (s *BlockService) Block(req BlockRequest) (*models.BlockedUser, error) {
	if req.BlockerID == req.BlockedID {
		return nil, errs.ErrSelfBlock
	}
	now := s.now()

	existing, err := s.blocks.GetPair(req.BlockerID, req.BlockedID)
	switch {
	case err == nil:
		return s.reuseOrReject(existing, req, now)
	case errors.Is(err, gorm.ErrRecordNotFound):
		// fall through to insert
	default:
		return nil, fmt.Errorf("%w: block store", errs.ErrUnavailable)
	}

	b := &models.BlockedUser{
		BlockerID: req.BlockerID,
		BlockedID: req.BlockedID,
		Reason:    req.Reason,
		BlockedAt: now,
		ExpiresAt: req.ExpiresAt,
		IsActive:  true,
		BlockType: defaultString(req.BlockType, domain.BlockTypeManual),
		Severity:  defaultString(req.Severity, domain.BlockSeverityNormal),
	}
	if err := s.blocks.Create(b); err != nil {
		if errors.Is(err, errs.ErrConflict) {
			// Lost a race with a concurrent block of the same pair; the
			// uniqueness violation is the expected signal, not a failure.
			existing, gerr := s.blocks.GetPair(req.BlockerID, req.BlockedID)
			if gerr != nil {
				return nil, fmt.Errorf("%w: block store", errs.ErrUnavailable)
			}
			return s.reuseOrReject(existing, req, now)
		}
		return nil, fmt.Errorf("%w: block store", errs.ErrUnavailable)
	}
	s.recordBlockEvent(domain.ActionBlockUser, req.BlockerID, b, req.Meta, true, "")
	return b, nil
}

// reuseOrReject handles an existing pair row: an actively blocked pair is a
// conflict; an unblocked or lapsed row is reactivated in place, which also
// corrects stale expiry flags on this write path.
func (s *BlockService) reuseOrReject(existing *models.BlockedUser, req BlockRequest, now time.Time) (*models.BlockedUser, error) {
	if existing.IsCurrentlyActive(now) {
		return existing, errs.ErrAlreadyBlocked
	}
	if existing.IsActive && existing.IsExpired(now) {
		existing.Expire(now)
	}
	existing.IsActive = true
	existing.Reason = req.Reason
	existing.BlockedAt = now
	existing.ExpiresAt = req.ExpiresAt
	existing.UnblockedAt = nil
	existing.UnblockedBy = nil
	existing.UnblockReason = ""
	existing.BlockType = defaultString(req.BlockType, domain.BlockTypeManual)
	existing.Severity = defaultString(req.Severity, domain.BlockSeverityNormal)
	existing.AdminReviewed = false
	existing.AdminReviewDate = nil
	existing.AdminReviewerID = nil
	if err := s.blocks.Update(existing); err != nil {
		return nil, fmt.Errorf("%w: block store", errs.ErrUnavailable)
	}
	s.recordBlockEvent(domain.ActionBlockUser, req.BlockerID, existing, req.Meta, true, "")
	return existing, nil
}

// Unblock deactivates the active block for the ordered pair. Only the
// original blocker or an admin may unblock.
func (s *BlockService) Unblock(blockerID, blockedID, actorID uint, reason string, meta models.RequestMeta) error {
	b, err := s.blocks.GetPair(blockerID, blockedID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.ErrNotBlocked
		}
		return fmt.Errorf("%w: block store", errs.ErrUnavailable)
	}
	now := s.now()
	if !b.IsActive {
		return errs.ErrNotBlocked
	}
	if b.IsExpired(now) {
		// Lazily correct the lapsed row, then report there was nothing to unblock.
		b.Expire(now)
		if err := s.blocks.Update(b); err != nil {
			return fmt.Errorf("%w: block store", errs.ErrUnavailable)
		}
		return errs.ErrNotBlocked
	}
	actor, err := s.users.GetByID(actorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: user %d", errs.ErrNotFound, actorID)
		}
		return fmt.Errorf("%w: user store", errs.ErrUnavailable)
	}
	if !b.CanBeUnblockedBy(actor) {
		return fmt.Errorf("%w: only the blocker or an admin may unblock", errs.ErrForbidden)
	}
	b.Unblock(&actorID, reason, now)
	if err := s.blocks.Update(b); err != nil {
		return fmt.Errorf("%w: block store", errs.ErrUnavailable)
	}
	s.recordBlockEvent(domain.ActionUnblockUser, actorID, b, meta, true, "")
	return nil
}

// IsBlocked reports whether an active, non-expired block exists in either
// direction. Expiry is evaluated lazily here; rows are not mutated on the
// read path.
func (s *BlockService) IsBlocked(a, b uint) (bool, error) {
	if a == b {
		return false, nil
	}
	rows, err := s.blocks.ListActiveBetween(a, b)
	if err != nil {
		return false, fmt.Errorf("%w: block store", errs.ErrUnavailable)
	}
	now := s.now()
	for i := range rows {
		if rows[i].IsCurrentlyActive(now) {
			return true, nil
		}
	}
	return false, nil
}

// MutualBlockCount counts the active directional blocks between the pair
// (0, 1 or 2).
func (s *BlockService) MutualBlockCount(a, b uint) (int, error) {
	rows, err := s.blocks.ListActiveBetween(a, b)
	if err != nil {
		return 0, fmt.Errorf("%w: block store", errs.ErrUnavailable)
	}
	now := s.now()
	count := 0
	for i := range rows {
		if rows[i].IsCurrentlyActive(now) {
			count++
		}
	}
	return count, nil
}

// ListBlocked returns the caller's currently active blocks.
func (s *BlockService) ListBlocked(blockerID uint) ([]models.BlockedUser, error) {
	rows, err := s.blocks.ListActiveByBlocker(blockerID)
	if err != nil {
		return nil, fmt.Errorf("%w: block store", errs.ErrUnavailable)
	}
	now := s.now()
	out := rows[:0]
	for i := range rows {
		if rows[i].IsCurrentlyActive(now) {
			out = append(out, rows[i])
		}
	}
	return out, nil
}

// Review marks a high-severity block as admin reviewed.
func (s *BlockService) Review(blockID, reviewerID uint, notes string) (*models.BlockedUser, error) {
	b, err := s.blocks.GetByID(blockID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: block %d", errs.ErrNotFound, blockID)
		}
		return nil, fmt.Errorf("%w: block store", errs.ErrUnavailable)
	}
	if b.AdminReviewed {
		return nil, errs.ErrAlreadyReviewed
	}
	b.MarkAdminReviewed(reviewerID, notes, s.now())
	if err := s.blocks.Update(b); err != nil {
		return nil, fmt.Errorf("%w: block store", errs.ErrUnavailable)
	}
	return b, nil
}

func (s *BlockService) ListPendingReview(limit int) ([]models.BlockedUser, error) {
	return s.blocks.ListPendingReview(normalizeLimit(limit))
}

// SweepExpired makes lazy expiry durable; called by the background sweeper.
func (s *BlockService) SweepExpired() (int64, error) {
	return s.blocks.DeactivateExpired(s.now())
}

func (s *BlockService) recordBlockEvent(action string, actorID uint, b *models.BlockedUser, meta models.RequestMeta, success bool, errMsg string) {
	_, err := s.audit.Record(AuditEntry{
		ActorID:      &actorID,
		Action:       action,
		EntityType:   domain.EntityBlock,
		EntityID:     &b.ID,
		Success:      success,
		ErrorMessage: errMsg,
		Category:     domain.CategorySecurity,
		Severity:     domain.SeverityWarn,
		Meta:         meta,
		Metadata: map[string]string{
			"blocker_id": fmt.Sprint(b.BlockerID),
			"blocked_id": fmt.Sprint(b.BlockedID),
			"severity":   b.Severity,
		},
	})
	if err != nil {
		s.log.Warn("block audit failed", zap.String("action", action), zap.Error(err))
	}
}
