package handler

import (
	"net/http"
	"time"

	"securetalk/internal/middleware"
	"securetalk/internal/service"

	"github.com/gin-gonic/gin"
)

type BlockHandler struct {
	svc *service.BlockService
}

func NewBlockHandler(svc *service.BlockService) *BlockHandler {
	return &BlockHandler{svc: svc}
}

type BlockUserRequest struct {
	BlockedID uint       `json:"blocked_id" binding:"required"`
	Reason    string     `json:"reason"`
	ExpiresAt *time.Time `json:"expires_at"`
	BlockType string     `json:"block_type"`
	Severity  string     `json:"severity"`
}

type UnblockRequest struct {
	Reason string `json:"reason"`
}

type ReviewBlockRequest struct {
	Notes string `json:"notes"`
}

func (h *BlockHandler) Block(c *gin.Context) {
	var req BlockUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	b, err := h.svc.Block(service.BlockRequest{
		BlockerID: middleware.GetUserID(c),
		BlockedID: req.BlockedID,
		Reason:    req.Reason,
		ExpiresAt: req.ExpiresAt,
		BlockType: req.BlockType,
		Severity:  req.Severity,
		Meta:      requestMeta(c),
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"block": b})
}

func (h *BlockHandler) Unblock(c *gin.Context) {
	blockedID, ok := uintParam(c, "user_id")
	if !ok {
		return
	}
	var req UnblockRequest
	_ = c.ShouldBindJSON(&req)
	userID := middleware.GetUserID(c)
	if err := h.svc.Unblock(userID, blockedID, userID, req.Reason, requestMeta(c)); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "unblocked"})
}

func (h *BlockHandler) List(c *gin.Context) {
	blocks, err := h.svc.ListBlocked(middleware.GetUserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"blocks": blocks})
}

// Status reports whether messaging is blocked in either direction.
func (h *BlockHandler) Status(c *gin.Context) {
	otherID, ok := uintParam(c, "user_id")
	if !ok {
		return
	}
	myID := middleware.GetUserID(c)
	blocked, err := h.svc.IsBlocked(myID, otherID)
	if err != nil {
		fail(c, err)
		return
	}
	mutual, err := h.svc.MutualBlockCount(myID, otherID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"blocked": blocked, "mutual_block_count": mutual})
}

func (h *BlockHandler) Review(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var req ReviewBlockRequest
	_ = c.ShouldBindJSON(&req)
	b, err := h.svc.Review(id, middleware.GetUserID(c), req.Notes)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"block": b})
}

func (h *BlockHandler) PendingReview(c *gin.Context) {
	limit, _ := pagination(c)
	blocks, err := h.svc.ListPendingReview(limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"blocks": blocks})
}
