package service

import (
	"errors"
	"fmt"
	"time"

	"securetalk/config"
	"securetalk/internal/auth"
	"securetalk/internal/domain"
	"securetalk/internal/errs"
	"securetalk/internal/models"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AccountStore is the persistence surface for user accounts.
type AccountStore interface {
	Create(*models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByUsername(username string) (*models.User, error)
	Update(*models.User) error
}

// AuthResult bundles everything a successful login hands back to the client.
type AuthResult struct {
	User         *models.User
	AccessToken  string
	RefreshToken string
	Session      *models.UserSession
}

type AuthService struct {
	users  AccountStore
	tokens *TokenService
	audit  Recorder
	jwtCfg *config.JWTConfig
	cfg    config.AuthConfig
	log    *zap.Logger
	now    func() time.Time
}

func NewAuthService(users AccountStore, tokens *TokenService, audit Recorder, jwtCfg *config.JWTConfig, cfg config.AuthConfig, log *zap.Logger) *AuthService {
	return &AuthService{users: users, tokens: tokens, audit: audit, jwtCfg: jwtCfg, cfg: cfg, log: log, now: time.Now}
}

func (s *AuthService) Register(username, email, password string, meta models.RequestMeta) (*models.User, error) {
	if username == "" || email == "" || len(password) < 8 {
		return nil, fmt.Errorf("%w: username, email and a password of 8+ chars required", errs.ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("%w: password hashing", errs.ErrUnavailable)
	}
	u := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Roles:        domain.RoleUser,
		Enabled:      true,
	}
	if err := s.users.Create(u); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: username or email taken", errs.ErrConflict)
		}
		return nil, fmt.Errorf("%w: user store", errs.ErrUnavailable)
	}
	s.recordAuthEvent(domain.ActionRegister, &u.ID, "", true, "", meta)
	return u, nil
}

// Login verifies credentials, applies the failed-attempt lockout, and on
// success opens a session and issues the token pair.
func (s *AuthService) Login(email, password, deviceType, deviceName string, meta models.RequestMeta) (*AuthResult, error) {
	u, err := s.users.GetByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.recordAuthEvent(domain.ActionLoginFailed, nil, "", false, "unknown email", meta)
			return nil, errs.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: user store", errs.ErrUnavailable)
	}
	now := s.now()
	if !u.Enabled {
		s.recordAuthEvent(domain.ActionLoginFailed, &u.ID, "", false, "account disabled", meta)
		return nil, errs.ErrAccountDisabled
	}
	if u.IsLocked(now) {
		s.recordAuthEvent(domain.ActionLoginFailed, &u.ID, "", false, "account locked", meta)
		return nil, errs.ErrAccountLocked
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.registerFailedAttempt(u, now)
		s.recordAuthEvent(domain.ActionLoginFailed, &u.ID, "", false, "wrong password", meta)
		return nil, errs.ErrInvalidCredentials
	}

	u.FailedLoginAttempts = 0
	u.LockedUntil = nil
	u.LastLoginAt = &now
	if err := s.users.Update(u); err != nil {
		return nil, fmt.Errorf("%w: user store", errs.ErrUnavailable)
	}

	sess, err := s.tokens.CreateSession(u.ID, deviceType, deviceName, domain.LoginMethodPassword, true, meta)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.IssueRefreshToken(u.ID, meta)
	if err != nil {
		return nil, err
	}
	access, err := auth.GenerateAccessToken(s.jwtCfg, u.ID, u.Email, u.Roles, sess.SessionID, now)
	if err != nil {
		return nil, fmt.Errorf("%w: access token signing", errs.ErrUnavailable)
	}
	s.recordAuthEvent(domain.ActionLogin, &u.ID, sess.SessionID, true, "", meta)
	return &AuthResult{User: u, AccessToken: access, RefreshToken: refresh.Token, Session: sess}, nil
}

func (s *AuthService) registerFailedAttempt(u *models.User, now time.Time) {
	u.FailedLoginAttempts++
	if u.FailedLoginAttempts >= s.cfg.MaxFailedLogins {
		until := now.Add(s.cfg.LockoutWindow)
		u.LockedUntil = &until
		u.FailedLoginAttempts = 0
		s.log.Warn("account locked after failed logins", zap.Uint("user_id", u.ID))
	}
	if err := s.users.Update(u); err != nil {
		s.log.Error("failed-attempt update failed", zap.Uint("user_id", u.ID), zap.Error(err))
	}
}

// Refresh rotates the refresh token and returns a fresh token pair.
func (s *AuthService) Refresh(refreshToken string, meta models.RequestMeta) (access, refresh string, err error) {
	fresh, userID, err := s.tokens.Rotate(refreshToken, meta)
	if err != nil {
		return "", "", err
	}
	u, err := s.users.GetByID(userID)
	if err != nil {
		return "", "", fmt.Errorf("%w: user store", errs.ErrUnavailable)
	}
	access, err = auth.GenerateAccessToken(s.jwtCfg, u.ID, u.Email, u.Roles, "", s.now())
	if err != nil {
		return "", "", fmt.Errorf("%w: access token signing", errs.ErrUnavailable)
	}
	s.recordAuthEvent(domain.ActionRefreshToken, &u.ID, "", true, "", meta)
	return access, fresh.Token, nil
}

// Logout closes the session and revokes the presented refresh token. Both
// halves are idempotent.
func (s *AuthService) Logout(userID uint, sessionID, refreshToken string, meta models.RequestMeta) error {
	if sessionID != "" {
		if err := s.tokens.Terminate(sessionID, domain.LogoutManual); err != nil {
			return err
		}
	}
	if refreshToken != "" {
		if err := s.tokens.RevokeToken(refreshToken, domain.RevokeLogout); err != nil {
			return err
		}
	}
	s.recordAuthEvent(domain.ActionLogout, &userID, sessionID, true, "", meta)
	return nil
}

// LogoutEverywhere revokes all tokens and terminates all sessions.
func (s *AuthService) LogoutEverywhere(userID uint, meta models.RequestMeta) error {
	if _, err := s.tokens.RevokeAll(userID, domain.RevokeLogout); err != nil {
		return err
	}
	if _, err := s.tokens.TerminateAll(userID, domain.LogoutForce); err != nil {
		return err
	}
	s.recordAuthEvent(domain.ActionLogout, &userID, "", true, "", meta)
	return nil
}

// ChangePassword re-verifies the current password, then revokes every token
// and every other session so stolen credentials die with the change.
func (s *AuthService) ChangePassword(userID uint, currentPassword, newPassword, keepSessionID string, meta models.RequestMeta) error {
	if len(newPassword) < 8 {
		return fmt.Errorf("%w: new password too short", errs.ErrValidation)
	}
	u, err := s.users.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: user %d", errs.ErrNotFound, userID)
		}
		return fmt.Errorf("%w: user store", errs.ErrUnavailable)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(currentPassword)); err != nil {
		s.recordAuthEvent(domain.ActionPasswordChange, &userID, "", false, "wrong current password", meta)
		return errs.ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("%w: password hashing", errs.ErrUnavailable)
	}
	u.PasswordHash = string(hash)
	if err := s.users.Update(u); err != nil {
		return fmt.Errorf("%w: user store", errs.ErrUnavailable)
	}
	if _, err := s.tokens.RevokeAll(userID, domain.RevokePasswordChange); err != nil {
		return err
	}
	if _, err := s.tokens.TerminateOthers(userID, keepSessionID); err != nil {
		return err
	}
	s.recordAuthEvent(domain.ActionPasswordChange, &userID, keepSessionID, true, "", meta)
	return nil
}

func (s *AuthService) recordAuthEvent(action string, userID *uint, sessionID string, success bool, errMsg string, meta models.RequestMeta) {
	severity := domain.SeverityInfo
	if !success {
		severity = domain.SeverityWarn
	}
	_, err := s.audit.Record(AuditEntry{
		ActorID:      userID,
		Action:       action,
		EntityType:   domain.EntityUser,
		EntityID:     userID,
		SessionID:    sessionID,
		Success:      success,
		ErrorMessage: errMsg,
		Category:     domain.CategorySecurity,
		Severity:     severity,
		Meta:         meta,
	})
	if err != nil {
		s.log.Warn("auth audit failed", zap.String("action", action), zap.Error(err))
	}
}
