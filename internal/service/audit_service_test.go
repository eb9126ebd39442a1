package service

import (
	"testing"
	"time"

	"securetalk/internal/domain"
	"securetalk/internal/errs"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newAuditService(store AuditStore) *AuditService {
	s := NewAuditService(store, zap.NewNop())
	s.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestAudit_Record_ScoresAtCreation(t *testing.T) {
	t.Parallel()
	store := newFakeAuditStore()
	svc := newAuditService(store)

	actor := uint(7)
	entry, err := svc.Record(AuditEntry{
		ActorID:  &actor,
		Action:   domain.ActionLoginFailed,
		Success:  false,
		Category: domain.CategorySecurity,
		Severity: domain.SeverityWarn,
	})
	require.NoError(t, err)
	// 10 login + 20 failure + 20 security
	require.Equal(t, 50, entry.RiskScore)
	require.False(t, entry.Flagged)

	stored, err := store.GetByID(entry.ID)
	require.NoError(t, err)
	require.Equal(t, 50, stored.RiskScore)
	require.Equal(t, domain.SeverityWarn, stored.Severity)
}

func TestAudit_Record_FlagsHighRisk(t *testing.T) {
	t.Parallel()
	store := newFakeAuditStore()
	svc := newAuditService(store)

	entry, err := svc.Record(AuditEntry{
		Action:     "DELETE_USER",
		Success:    false,
		HTTPStatus: 500,
		Category:   domain.CategorySecurity,
	})
	require.NoError(t, err)
	require.Equal(t, 85, entry.RiskScore)
	require.True(t, entry.Flagged)
	require.Equal(t, "High risk score: 85", entry.FlaggedReason)
	require.True(t, entry.IsHighRisk())

	flagged, err := svc.ListFlagged(10, 0)
	require.NoError(t, err)
	require.Len(t, flagged, 1)
}

func TestAudit_Record_Defaults(t *testing.T) {
	t.Parallel()
	store := newFakeAuditStore()
	svc := newAuditService(store)

	entry, err := svc.Record(AuditEntry{Action: "PING", Success: true})
	require.NoError(t, err)
	require.Equal(t, "INFO", entry.Severity)
	require.Equal(t, "GENERAL", entry.Category)
	require.Nil(t, entry.HTTPStatus)
	require.Nil(t, entry.DurationMs)

	_, err = svc.Record(AuditEntry{Success: true})
	require.ErrorIs(t, err, errs.ErrValidation)
}

func TestAudit_Review_FirstReviewerWins(t *testing.T) {
	t.Parallel()
	store := newFakeAuditStore()
	svc := newAuditService(store)

	entry, err := svc.Record(AuditEntry{
		Action:   "DELETE_USER",
		Success:  false,
		Category: domain.CategorySecurity,
	})
	require.NoError(t, err)
	require.True(t, entry.Flagged)

	reviewed, err := svc.Review(entry.ID, 42, "looks intentional")
	require.NoError(t, err)
	require.True(t, reviewed.Reviewed)
	require.Equal(t, uint(42), *reviewed.ReviewedBy)
	require.Equal(t, "looks intentional", reviewed.ReviewNotes)

	_, err = svc.Review(entry.ID, 43, "me too")
	require.ErrorIs(t, err, errs.ErrAlreadyReviewed)

	// notes from the first reviewer survive
	stored, err := store.GetByID(entry.ID)
	require.NoError(t, err)
	require.Equal(t, uint(42), *stored.ReviewedBy)
}

func TestAudit_Review_NotFound(t *testing.T) {
	t.Parallel()
	svc := newAuditService(newFakeAuditStore())
	_, err := svc.Review(999, 1, "")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestAudit_Queries(t *testing.T) {
	t.Parallel()
	store := newFakeAuditStore()
	svc := newAuditService(store)

	actor := uint(5)
	_, err := svc.Record(AuditEntry{ActorID: &actor, Action: domain.ActionLogin, Success: true, Category: domain.CategorySecurity})
	require.NoError(t, err)
	msgID := uint(11)
	_, err = svc.Record(AuditEntry{ActorID: &actor, Action: domain.ActionSendMessage, EntityType: domain.EntityMessage, EntityID: &msgID, Success: true})
	require.NoError(t, err)

	byActor, err := svc.ListByActor(actor, 10, 0)
	require.NoError(t, err)
	require.Len(t, byActor, 2)

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	byAction, err := svc.ListByAction(domain.ActionLogin, from, to, 10, 0)
	require.NoError(t, err)
	require.Len(t, byAction, 1)

	byEntity, err := svc.ListByEntity(domain.EntityMessage, msgID, 10, 0)
	require.NoError(t, err)
	require.Len(t, byEntity, 1)

	found, err := svc.Search("SEND", 10, 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
}
