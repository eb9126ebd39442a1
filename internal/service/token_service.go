package service

import (
	"errors"
	"fmt"
	"time"

	"securetalk/config"
	"securetalk/internal/auth"
	"securetalk/internal/crypto"
	"securetalk/internal/domain"
	"securetalk/internal/errs"
	"securetalk/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TokenStore is the persistence surface for refresh tokens.
type TokenStore interface {
	Create(*models.RefreshToken) error
	GetByToken(token string) (*models.RefreshToken, error)
	Update(*models.RefreshToken) error
	RevokeAllForUser(userID uint, reason string, now time.Time) (int64, error)
	DeactivateExpired(now time.Time) (int64, error)
}

// SessionStore is the persistence surface for user sessions.
type SessionStore interface {
	Create(*models.UserSession) error
	GetBySessionID(sessionID string) (*models.UserSession, error)
	Touch(sessionID string, now time.Time) (int64, error)
	Terminate(sessionID, reason string, now time.Time) (int64, error)
	ListActiveByUser(userID uint) ([]models.UserSession, error)
	TerminateAllForUser(userID uint, exceptSessionID, reason string, now time.Time) (int64, error)
	ExpireLapsed(now time.Time, inactivity time.Duration) (int64, error)
}

const (
	tokenBytes   = 32
	issueRetries = 3
)

type TokenService struct {
	tokens   TokenStore
	sessions SessionStore
	users    UserStore
	audit    Recorder
	jwtCfg   *config.JWTConfig
	cfg      config.TokenConfig
	log      *zap.Logger
	now      func() time.Time
}

func NewTokenService(tokens TokenStore, sessions SessionStore, users UserStore, audit Recorder, jwtCfg *config.JWTConfig, cfg config.TokenConfig, log *zap.Logger) *TokenService {
	return &TokenService{
		tokens:   tokens,
		sessions: sessions,
		users:    users,
		audit:    audit,
		jwtCfg:   jwtCfg,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// IssueRefreshToken stores a new opaque token for the user. Value collisions
// are caught by the unique index and retried with a fresh value.
func (s *TokenService) IssueRefreshToken(userID uint, meta models.RequestMeta) (*models.RefreshToken, error) {
	now := s.now()
	for attempt := 0; attempt < issueRetries; attempt++ {
		value, err := crypto.RandomToken(tokenBytes)
		if err != nil {
			return nil, fmt.Errorf("%w: token generation", errs.ErrUnavailable)
		}
		t := &models.RefreshToken{
			Token:       value,
			UserID:      userID,
			ExpiresAt:   now.Add(s.cfg.RefreshExpiry),
			IsActive:    true,
			RequestMeta: meta,
		}
		err = s.tokens.Create(t)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, errs.ErrConflict) {
			return nil, fmt.Errorf("%w: token store", errs.ErrUnavailable)
		}
	}
	return nil, fmt.Errorf("%w: token collision retries exhausted", errs.ErrUnavailable)
}

// Redeem exchanges a valid refresh token for a fresh access token. Every
// successful redemption bumps the usage counter and last-used time.
func (s *TokenService) Redeem(tokenValue string, meta models.RequestMeta) (uint, string, error) {
	t, err := s.redeemToken(tokenValue, meta)
	if err != nil {
		return 0, "", err
	}
	user, err := s.users.GetByID(t.UserID)
	if err != nil {
		return 0, "", fmt.Errorf("%w: user store", errs.ErrUnavailable)
	}
	access, err := auth.GenerateAccessToken(s.jwtCfg, user.ID, user.Email, user.Roles, "", s.now())
	if err != nil {
		return 0, "", fmt.Errorf("%w: access token signing", errs.ErrUnavailable)
	}
	return user.ID, access, nil
}

// redeemToken validates and consumes one redemption of the token. Redeeming
// a token that rotation already revoked means the value leaked or the client
// replayed it; either way the whole session set is torched.
func (s *TokenService) redeemToken(tokenValue string, meta models.RequestMeta) (*models.RefreshToken, error) {
	t, err := s.tokens.GetByToken(tokenValue)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrInvalidToken
		}
		return nil, fmt.Errorf("%w: token store", errs.ErrUnavailable)
	}
	now := s.now()
	if !t.IsValid(now) {
		if t.IsRevoked && t.RevokedReason == domain.RevokeRotated {
			s.handleReuse(t, meta)
		}
		return nil, errs.ErrExpiredOrRevoked
	}
	t.MarkUsed(now)
	if err := s.tokens.Update(t); err != nil {
		return nil, fmt.Errorf("%w: token store", errs.ErrUnavailable)
	}
	return t, nil
}

// Rotate revokes the redeemed token and issues its replacement.
func (s *TokenService) Rotate(tokenValue string, meta models.RequestMeta) (*models.RefreshToken, uint, error) {
	old, err := s.redeemToken(tokenValue, meta)
	if err != nil {
		return nil, 0, err
	}
	old.Revoke(domain.RevokeRotated, s.now())
	if err := s.tokens.Update(old); err != nil {
		return nil, 0, fmt.Errorf("%w: token store", errs.ErrUnavailable)
	}
	fresh, err := s.IssueRefreshToken(old.UserID, meta)
	if err != nil {
		return nil, 0, err
	}
	return fresh, old.UserID, nil
}

func (s *TokenService) handleReuse(t *models.RefreshToken, meta models.RequestMeta) {
	now := s.now()
	if _, err := s.tokens.RevokeAllForUser(t.UserID, domain.RevokeReuse, now); err != nil {
		s.log.Error("reuse response: token revocation failed", zap.Uint("user_id", t.UserID), zap.Error(err))
	}
	if _, err := s.sessions.TerminateAllForUser(t.UserID, "", domain.LogoutSecurity, now); err != nil {
		s.log.Error("reuse response: session termination failed", zap.Uint("user_id", t.UserID), zap.Error(err))
	}
	s.log.Warn("refresh token reuse detected", zap.Uint("user_id", t.UserID), zap.Uint("token_id", t.ID))
	_, err := s.audit.Record(AuditEntry{
		ActorID:    &t.UserID,
		Action:     domain.ActionTokenReuse,
		EntityType: domain.EntityToken,
		EntityID:   &t.ID,
		Success:    false,
		Category:   domain.CategorySecurity,
		Severity:   domain.SeverityCritical,
		Meta:       meta,
	})
	if err != nil {
		s.log.Warn("reuse audit failed", zap.Error(err))
	}
}

// RevokeAll invalidates every token for the user; used on password change,
// suspected compromise, or "log out everywhere".
func (s *TokenService) RevokeAll(userID uint, reason string) (int64, error) {
	rows, err := s.tokens.RevokeAllForUser(userID, reason, s.now())
	if err != nil {
		return 0, fmt.Errorf("%w: token store", errs.ErrUnavailable)
	}
	return rows, nil
}

// RevokeToken revokes one token by value, tolerating unknown values so
// logout stays idempotent.
func (s *TokenService) RevokeToken(tokenValue, reason string) error {
	t, err := s.tokens.GetByToken(tokenValue)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("%w: token store", errs.ErrUnavailable)
	}
	if t.IsRevoked {
		return nil
	}
	t.Revoke(reason, s.now())
	if err := s.tokens.Update(t); err != nil {
		return fmt.Errorf("%w: token store", errs.ErrUnavailable)
	}
	return nil
}

// CreateSession opens a session for a fresh login.
func (s *TokenService) CreateSession(userID uint, deviceType, deviceName, loginMethod string, markCurrent bool, meta models.RequestMeta) (*models.UserSession, error) {
	now := s.now()
	sess := &models.UserSession{
		SessionID:    uuid.NewString(),
		UserID:       userID,
		DeviceType:   deviceType,
		DeviceName:   deviceName,
		LoginTime:    now,
		LastActivity: now,
		ExpiresAt:    now.Add(s.cfg.SessionExpiry),
		IsActive:     true,
		IsCurrent:    markCurrent,
		LoginMethod:  defaultString(loginMethod, domain.LoginMethodPassword),
		RequestMeta:  meta,
	}
	if err := s.sessions.Create(sess); err != nil {
		return nil, fmt.Errorf("%w: session store", errs.ErrUnavailable)
	}
	return sess, nil
}

// Touch records activity on a session; a no-op once the session is inactive.
func (s *TokenService) Touch(sessionID string) error {
	if _, err := s.sessions.Touch(sessionID, s.now()); err != nil {
		return fmt.Errorf("%w: session store", errs.ErrUnavailable)
	}
	return nil
}

// Terminate closes a session; idempotent.
func (s *TokenService) Terminate(sessionID, reason string) error {
	if _, err := s.sessions.Terminate(sessionID, reason, s.now()); err != nil {
		return fmt.Errorf("%w: session store", errs.ErrUnavailable)
	}
	return nil
}

// GetSession looks a session up by its public session ID.
func (s *TokenService) GetSession(sessionID string) (*models.UserSession, error) {
	sess, err := s.sessions.GetBySessionID(sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: session", errs.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: session store", errs.ErrUnavailable)
	}
	return sess, nil
}

// ListSessions returns the user's active sessions, applying the inactivity
// timeout lazily: idle sessions are reported as timed out without waiting
// for the sweeper.
func (s *TokenService) ListSessions(userID uint) ([]models.UserSession, error) {
	list, err := s.sessions.ListActiveByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: session store", errs.ErrUnavailable)
	}
	now := s.now()
	out := list[:0]
	for i := range list {
		sess := list[i]
		if !sess.IsValid(now) || sess.IsIdle(s.cfg.InactivityTimeout, now) {
			continue
		}
		out = append(out, sess)
	}
	return out, nil
}

// TerminateOthers closes every session except the caller's current one.
func (s *TokenService) TerminateOthers(userID uint, keepSessionID string) (int64, error) {
	rows, err := s.sessions.TerminateAllForUser(userID, keepSessionID, domain.LogoutForce, s.now())
	if err != nil {
		return 0, fmt.Errorf("%w: session store", errs.ErrUnavailable)
	}
	return rows, nil
}

// TerminateAll closes every session for the user.
func (s *TokenService) TerminateAll(userID uint, reason string) (int64, error) {
	rows, err := s.sessions.TerminateAllForUser(userID, "", reason, s.now())
	if err != nil {
		return 0, fmt.Errorf("%w: session store", errs.ErrUnavailable)
	}
	return rows, nil
}

// SweepExpired times out lapsed sessions and deactivates expired tokens.
// Invoked by the background sweeper, never by request-path code.
func (s *TokenService) SweepExpired() (sessions, tokens int64, err error) {
	now := s.now()
	sessions, err = s.sessions.ExpireLapsed(now, s.cfg.InactivityTimeout)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: session store", errs.ErrUnavailable)
	}
	tokens, err = s.tokens.DeactivateExpired(now)
	if err != nil {
		return sessions, 0, fmt.Errorf("%w: token store", errs.ErrUnavailable)
	}
	return sessions, tokens, nil
}
