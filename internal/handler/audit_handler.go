package handler

import (
	"net/http"
	"time"

	"securetalk/internal/middleware"
	"securetalk/internal/service"

	"github.com/gin-gonic/gin"
)

// AuditHandler exposes the audit trail to admins.
type AuditHandler struct {
	svc *service.AuditService
}

func NewAuditHandler(svc *service.AuditService) *AuditHandler {
	return &AuditHandler{svc: svc}
}

type ReviewAuditRequest struct {
	Notes string `json:"notes"`
}

// timeRange parses from/to query params (RFC3339). Defaults to the last 24h.
func timeRange(c *gin.Context) (time.Time, time.Time, bool) {
	now := time.Now()
	from, to := now.Add(-24*time.Hour), now
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from (use RFC3339)"})
			return from, to, false
		}
		from = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to (use RFC3339)"})
			return from, to, false
		}
		to = t
	}
	return from, to, true
}

func (h *AuditHandler) ListByUser(c *gin.Context) {
	userID, ok := uintParam(c, "user_id")
	if !ok {
		return
	}
	limit, offset := pagination(c)
	logs, err := h.svc.ListByActor(userID, limit, offset)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

func (h *AuditHandler) ListByAction(c *gin.Context) {
	action := c.Param("action")
	from, to, ok := timeRange(c)
	if !ok {
		return
	}
	limit, offset := pagination(c)
	logs, err := h.svc.ListByAction(action, from, to, limit, offset)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

func (h *AuditHandler) ListByEntity(c *gin.Context) {
	entityID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	limit, offset := pagination(c)
	logs, err := h.svc.ListByEntity(c.Param("type"), entityID, limit, offset)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

func (h *AuditHandler) ListBetween(c *gin.Context) {
	from, to, ok := timeRange(c)
	if !ok {
		return
	}
	limit, offset := pagination(c)
	logs, err := h.svc.ListBetween(from, to, limit, offset)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

func (h *AuditHandler) ListByIP(c *gin.Context) {
	ip := c.Query("ip")
	if ip == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ip required"})
		return
	}
	limit, offset := pagination(c)
	logs, err := h.svc.ListByIP(ip, limit, offset)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

func (h *AuditHandler) Search(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q required"})
		return
	}
	limit, offset := pagination(c)
	logs, err := h.svc.Search(q, limit, offset)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

// ListFlagged returns flagged, not yet reviewed entries for triage.
func (h *AuditHandler) ListFlagged(c *gin.Context) {
	limit, offset := pagination(c)
	logs, err := h.svc.ListFlagged(limit, offset)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

func (h *AuditHandler) Review(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var req ReviewAuditRequest
	_ = c.ShouldBindJSON(&req)
	l, err := h.svc.Review(id, middleware.GetUserID(c), req.Notes)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"log": l})
}
