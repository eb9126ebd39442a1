package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"securetalk/internal/crypto"
	"securetalk/internal/domain"
	"securetalk/internal/errs"
	"securetalk/internal/models"
	"securetalk/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MessageStore is the persistence surface the message engine needs.
type MessageStore interface {
	Create(*models.Message) error
	GetByID(id uint) (*models.Message, error)
	Update(*models.Message) error
	MarkRead(messageID, readerID uint, readAt time.Time) (int64, error)
	MarkConversationRead(senderID, readerID uint, readAt time.Time) (int64, error)
	SoftDelete(messageID, deletedBy uint, deletedAt time.Time) (int64, error)
	ListConversation(userA, userB uint, limit, offset int) ([]models.Message, error)
	ListConversationsForUser(userID uint) ([]repository.ConversationSummary, error)
	CountUnreadForUser(userID uint) (int64, error)
	StatsForUser(userID uint) (*repository.MessageStats, error)
	ListDeletedBefore(cutoff time.Time, limit int) ([]models.Message, error)
}

// BlockChecker gates sends on the mutual block state.
type BlockChecker interface {
	IsBlocked(a, b uint) (bool, error)
}

// Encrypter is the at-rest encryption boundary; plaintext never reaches
// storage.
type Encrypter interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// Notifier pushes best-effort new-message events to live connections.
type Notifier interface {
	NotifyNewMessage(recipientID uint, m *models.Message)
}

// SendRequest is the input for sending a message.
type SendRequest struct {
	SenderID    uint
	RecipientID uint
	Content     string
	MessageType string
	Priority    string
	ReplyToID   *uint
	Meta        models.RequestMeta
}

type MessageService struct {
	messages   MessageStore
	users      UserStore
	blocks     BlockChecker
	audit      Recorder
	cipher     Encrypter
	notifier   Notifier
	maxLength  int
	editWindow time.Duration
	log        *zap.Logger
	now        func() time.Time
}

func NewMessageService(messages MessageStore, users UserStore, blocks BlockChecker, audit Recorder, cipher Encrypter, notifier Notifier, maxLength int, editWindow time.Duration, log *zap.Logger) *MessageService {
	return &MessageService{
		messages:   messages,
		users:      users,
		blocks:     blocks,
		audit:      audit,
		cipher:     cipher,
		notifier:   notifier,
		maxLength:  maxLength,
		editWindow: editWindow,
		log:        log,
		now:        time.Now,
	}
}

// Send validates, checks the block state in both directions, encrypts the
// content and persists the message. The audit recorder sees the outcome
// either way.
func (s *MessageService) Send(req SendRequest) (*models.Message, error) {
	if req.SenderID == req.RecipientID {
		return nil, fmt.Errorf("%w: cannot message yourself", errs.ErrValidation)
	}
	content := req.Content
	if strings.TrimSpace(content) == "" || len(content) > s.maxLength {
		return nil, errs.ErrInvalidContent
	}
	if _, err := s.users.GetByID(req.RecipientID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %d", errs.ErrNotFound, req.RecipientID)
		}
		return nil, fmt.Errorf("%w: user store", errs.ErrUnavailable)
	}
	blocked, err := s.blocks.IsBlocked(req.SenderID, req.RecipientID)
	if err != nil {
		return nil, err
	}
	if blocked {
		s.recordMessageEvent(domain.ActionSendMessage, req.SenderID, nil, req.Meta, false, "recipient blocked")
		return nil, errs.ErrBlockedRecipient
	}

	ciphertext, err := s.cipher.Encrypt(content)
	if err != nil {
		s.log.Error("message encryption failed", zap.Error(err))
		return nil, fmt.Errorf("%w: encryption", errs.ErrUnavailable)
	}
	now := s.now()
	m := &models.Message{
		SenderID:          req.SenderID,
		RecipientID:       req.RecipientID,
		EncryptedContent:  ciphertext,
		MessageType:       defaultString(req.MessageType, domain.MessageTypeText),
		Priority:          defaultString(req.Priority, domain.PriorityNormal),
		Timestamp:         now,
		ReplyToMessageID:  req.ReplyToID,
		MessageSize:       len(content),
		EncryptionVersion: crypto.Version,
		RequestMeta:       req.Meta,
	}
	if err := s.messages.Create(m); err != nil {
		s.recordMessageEvent(domain.ActionSendMessage, req.SenderID, nil, req.Meta, false, "store failure")
		return nil, fmt.Errorf("%w: message store", errs.ErrUnavailable)
	}
	m.Content = content
	s.recordMessageEvent(domain.ActionSendMessage, req.SenderID, &m.ID, req.Meta, true, "")
	if s.notifier != nil {
		s.notifier.NotifyNewMessage(req.RecipientID, m)
	}
	return m, nil
}

// Get returns a message for one of its participants, decrypted.
func (s *MessageService) Get(messageID, requesterID uint) (*models.Message, error) {
	m, err := s.getMessage(messageID)
	if err != nil {
		return nil, err
	}
	if !m.IsInConversationWith(requesterID) {
		return nil, fmt.Errorf("%w: not a participant", errs.ErrForbidden)
	}
	if m.IsDeleted {
		return nil, fmt.Errorf("%w: message deleted", errs.ErrInvalidState)
	}
	return s.decrypted(m)
}

// MarkRead marks a message read by its recipient. The deleted check happens
// inside the same atomic update, so a racing delete wins. Re-marking an
// already-read message is a no-op, not an error.
func (s *MessageService) MarkRead(messageID, readerID uint) error {
	rows, err := s.messages.MarkRead(messageID, readerID, s.now())
	if err != nil {
		return fmt.Errorf("%w: message store", errs.ErrUnavailable)
	}
	if rows > 0 {
		return nil
	}
	// Nothing changed: distinguish the idempotent case from invalid ones.
	m, err := s.getMessage(messageID)
	if err != nil {
		return err
	}
	if m.RecipientID != readerID {
		return fmt.Errorf("%w: only the recipient may mark read", errs.ErrForbidden)
	}
	if m.IsDeleted {
		return fmt.Errorf("%w: message deleted", errs.ErrInvalidState)
	}
	return nil // already read
}

// MarkConversationRead marks every unread message from senderID to readerID.
func (s *MessageService) MarkConversationRead(senderID, readerID uint) (int64, error) {
	rows, err := s.messages.MarkConversationRead(senderID, readerID, s.now())
	if err != nil {
		return 0, fmt.Errorf("%w: message store", errs.ErrUnavailable)
	}
	return rows, nil
}

// Edit replaces the content of a recent, non-deleted message. Only the sender
// may edit, and only inside the edit window. The previous ciphertext is kept.
func (s *MessageService) Edit(messageID, editorID uint, newContent string, meta models.RequestMeta) (*models.Message, error) {
	if strings.TrimSpace(newContent) == "" || len(newContent) > s.maxLength {
		return nil, errs.ErrInvalidContent
	}
	m, err := s.getMessage(messageID)
	if err != nil {
		return nil, err
	}
	editor, err := s.users.GetByID(editorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %d", errs.ErrNotFound, editorID)
		}
		return nil, fmt.Errorf("%w: user store", errs.ErrUnavailable)
	}
	now := s.now()
	if !m.CanBeEditedBy(editor, now, s.editWindow) {
		return nil, errs.ErrEditNotAllowed
	}
	ciphertext, err := s.cipher.Encrypt(newContent)
	if err != nil {
		s.log.Error("message encryption failed", zap.Error(err))
		return nil, fmt.Errorf("%w: encryption", errs.ErrUnavailable)
	}
	m.OriginalContent = m.EncryptedContent
	m.EncryptedContent = ciphertext
	m.MessageSize = len(newContent)
	m.IsEdited = true
	m.EditedAt = &now
	if err := s.messages.Update(m); err != nil {
		return nil, fmt.Errorf("%w: message store", errs.ErrUnavailable)
	}
	m.Content = newContent
	s.recordMessageEvent(domain.ActionEditMessage, editorID, &m.ID, meta, true, "")
	return m, nil
}

// Delete soft-deletes a message. Sender, recipient or an admin may delete;
// the ciphertext remains for audit and potential undelete. Idempotent.
func (s *MessageService) Delete(messageID, actorID uint, meta models.RequestMeta) error {
	m, err := s.getMessage(messageID)
	if err != nil {
		return err
	}
	actor, err := s.users.GetByID(actorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: user %d", errs.ErrNotFound, actorID)
		}
		return fmt.Errorf("%w: user store", errs.ErrUnavailable)
	}
	if !m.CanBeDeletedBy(actor) {
		return fmt.Errorf("%w: not allowed to delete", errs.ErrForbidden)
	}
	if m.IsDeleted {
		return nil
	}
	if _, err := s.messages.SoftDelete(messageID, actorID, s.now()); err != nil {
		return fmt.Errorf("%w: message store", errs.ErrUnavailable)
	}
	s.recordMessageEvent(domain.ActionDeleteMessage, actorID, &m.ID, meta, true, "")
	return nil
}

// Conversation lists the messages between the requester and a counterpart,
// decrypted, oldest first.
func (s *MessageService) Conversation(requesterID, counterpartID uint, limit, offset int) ([]models.Message, error) {
	list, err := s.messages.ListConversation(requesterID, counterpartID, normalizeLimit(limit), offset)
	if err != nil {
		return nil, fmt.Errorf("%w: message store", errs.ErrUnavailable)
	}
	for i := range list {
		if _, err := s.decrypted(&list[i]); err != nil {
			return nil, err
		}
	}
	return list, nil
}

// ListConversations returns the grouped per-counterpart view. The store
// computes it from a single consistent snapshot; the last message of each
// group is decrypted here.
func (s *MessageService) ListConversations(userID uint) ([]repository.ConversationSummary, error) {
	summaries, err := s.messages.ListConversationsForUser(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: message store", errs.ErrUnavailable)
	}
	for i := range summaries {
		if _, err := s.decrypted(&summaries[i].LastMessage); err != nil {
			return nil, err
		}
	}
	return summaries, nil
}

func (s *MessageService) UnreadCount(userID uint) (int64, error) {
	c, err := s.messages.CountUnreadForUser(userID)
	if err != nil {
		return 0, fmt.Errorf("%w: message store", errs.ErrUnavailable)
	}
	return c, nil
}

func (s *MessageService) Stats(userID uint) (*repository.MessageStats, error) {
	stats, err := s.messages.StatsForUser(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: message store", errs.ErrUnavailable)
	}
	return stats, nil
}

// DeletedBefore exposes purge candidates for the external retention job.
// Content stays encrypted; the purge job has no business reading it.
func (s *MessageService) DeletedBefore(cutoff time.Time, limit int) ([]models.Message, error) {
	list, err := s.messages.ListDeletedBefore(cutoff, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("%w: message store", errs.ErrUnavailable)
	}
	return list, nil
}

func (s *MessageService) getMessage(id uint) (*models.Message, error) {
	m, err := s.messages.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: message %d", errs.ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: message store", errs.ErrUnavailable)
	}
	return m, nil
}

func (s *MessageService) decrypted(m *models.Message) (*models.Message, error) {
	content, err := s.cipher.Decrypt(m.EncryptedContent)
	if err != nil {
		s.log.Error("message decryption failed", zap.Uint("message_id", m.ID), zap.Error(err))
		return nil, fmt.Errorf("%w: decryption", errs.ErrUnavailable)
	}
	m.Content = content
	return m, nil
}

func (s *MessageService) recordMessageEvent(action string, actorID uint, messageID *uint, meta models.RequestMeta, success bool, errMsg string) {
	_, err := s.audit.Record(AuditEntry{
		ActorID:      &actorID,
		Action:       action,
		EntityType:   domain.EntityMessage,
		EntityID:     messageID,
		Success:      success,
		ErrorMessage: errMsg,
		Category:     domain.CategoryMessage,
		Severity:     domain.SeverityInfo,
		Meta:         meta,
	})
	if err != nil {
		s.log.Warn("message audit failed", zap.String("action", action), zap.Error(err))
	}
}
