package handler

import (
	"net/http"

	"securetalk/internal/domain"
	"securetalk/internal/middleware"
	"securetalk/internal/service"

	"github.com/gin-gonic/gin"
)

type SessionHandler struct {
	svc *service.TokenService
}

func NewSessionHandler(svc *service.TokenService) *SessionHandler {
	return &SessionHandler{svc: svc}
}

func (h *SessionHandler) List(c *gin.Context) {
	sessions, err := h.svc.ListSessions(middleware.GetUserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	current := middleware.GetSessionID(c)
	out := make([]gin.H, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, gin.H{
			"session_id":     s.SessionID,
			"device_type":    s.DeviceType,
			"device_name":    s.DeviceName,
			"ip_address":     s.ClientIP,
			"last_activity":  s.LastActivity,
			"login_time":     s.LoginTime,
			"current":        s.SessionID == current,
			"activity_count": s.ActivityCount,
		})
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out})
}

// Terminate closes one of the caller's sessions by its session ID.
func (h *SessionHandler) Terminate(c *gin.Context) {
	sessionID := c.Param("session_id")
	sess, err := h.svc.GetSession(sessionID)
	if err != nil {
		fail(c, err)
		return
	}
	if sess.UserID != middleware.GetUserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your session"})
		return
	}
	if err := h.svc.Terminate(sessionID, domain.LogoutManual); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "terminated"})
}

// TerminateOthers closes every session except the one making the call.
func (h *SessionHandler) TerminateOthers(c *gin.Context) {
	n, err := h.svc.TerminateOthers(middleware.GetUserID(c), middleware.GetSessionID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"terminated": n})
}
