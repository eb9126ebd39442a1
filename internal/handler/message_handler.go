package handler

import (
	"net/http"

	"securetalk/internal/middleware"
	"securetalk/internal/service"

	"github.com/gin-gonic/gin"
)

type MessageHandler struct {
	svc *service.MessageService
}

func NewMessageHandler(svc *service.MessageService) *MessageHandler {
	return &MessageHandler{svc: svc}
}

type SendMessageRequest struct {
	RecipientID uint   `json:"recipient_id" binding:"required"`
	Content     string `json:"content" binding:"required"`
	MessageType string `json:"message_type"`
	Priority    string `json:"priority"`
	ReplyToID   *uint  `json:"reply_to_id"`
}

type EditMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

func (h *MessageHandler) Send(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	m, err := h.svc.Send(service.SendRequest{
		SenderID:    middleware.GetUserID(c),
		RecipientID: req.RecipientID,
		Content:     req.Content,
		MessageType: req.MessageType,
		Priority:    req.Priority,
		ReplyToID:   req.ReplyToID,
		Meta:        requestMeta(c),
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": m})
}

func (h *MessageHandler) Get(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	m, err := h.svc.Get(id, middleware.GetUserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": m})
}

func (h *MessageHandler) MarkRead(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.MarkRead(id, middleware.GetUserID(c)); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "read"})
}

func (h *MessageHandler) Edit(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var req EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	m, err := h.svc.Edit(id, middleware.GetUserID(c), req.Content, requestMeta(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": m})
}

func (h *MessageHandler) Delete(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(id, middleware.GetUserID(c), requestMeta(c)); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// Conversation returns the message history with one counterpart, newest first.
func (h *MessageHandler) Conversation(c *gin.Context) {
	otherID, ok := uintParam(c, "user_id")
	if !ok {
		return
	}
	limit, offset := pagination(c)
	msgs, err := h.svc.Conversation(middleware.GetUserID(c), otherID, limit, offset)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (h *MessageHandler) MarkConversationRead(c *gin.Context) {
	otherID, ok := uintParam(c, "user_id")
	if !ok {
		return
	}
	n, err := h.svc.MarkConversationRead(otherID, middleware.GetUserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked_read": n})
}

func (h *MessageHandler) ListConversations(c *gin.Context) {
	sums, err := h.svc.ListConversations(middleware.GetUserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": sums})
}

func (h *MessageHandler) UnreadCount(c *gin.Context) {
	n, err := h.svc.UnreadCount(middleware.GetUserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": n})
}

func (h *MessageHandler) Stats(c *gin.Context) {
	stats, err := h.svc.Stats(middleware.GetUserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}
