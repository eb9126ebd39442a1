package models

import (
	"fmt"
	"time"
)

// RequestMeta captures the client context an entity was written under.
// Embedded instead of inherited so entities stay plain structs.
type RequestMeta struct {
	ClientIP   string `gorm:"size:45" json:"-"`
	UserAgent  string `gorm:"size:500" json:"-"`
	DeviceInfo string `gorm:"size:200" json:"-"`
}

type Message struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	SenderID           uint       `gorm:"not null;index;index:idx_message_pair" json:"sender_id"`
	RecipientID        uint       `gorm:"not null;index;index:idx_message_pair" json:"recipient_id"`
	EncryptedContent   string     `gorm:"type:text;not null" json:"-"`
	Content            string     `gorm:"-" json:"content,omitempty"` // decrypted, never persisted
	MessageType        string     `gorm:"size:50;not null;default:'TEXT'" json:"message_type"`
	Priority           string     `gorm:"size:20;not null;default:'NORMAL'" json:"priority"`
	Timestamp          time.Time  `gorm:"not null;index" json:"timestamp"`
	IsRead             bool       `gorm:"not null;default:false;index" json:"is_read"`
	ReadAt             *time.Time `json:"read_at"`
	IsEdited           bool       `gorm:"not null;default:false" json:"is_edited"`
	EditedAt           *time.Time `json:"edited_at"`
	OriginalContent    string     `gorm:"type:text" json:"-"` // ciphertext before the last edit
	IsDeleted          bool       `gorm:"not null;default:false;index" json:"is_deleted"`
	DeletedAt          *time.Time `json:"deleted_at"`
	DeletedBy          *uint      `json:"deleted_by"`
	ReplyToMessageID   *uint      `json:"reply_to_message_id"`
	MessageSize        int        `json:"message_size"` // plaintext length, statistics only
	EncryptionVersion  string     `gorm:"size:10;not null;default:'1.0'" json:"-"`
	RequestMeta        `json:"-"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func (Message) TableName() string {
	return "messages"
}

// ConversationID returns the canonical unordered pair key for the two
// participants, so both directions group under one conversation.
func (m *Message) ConversationID() string {
	return ConversationID(m.SenderID, m.RecipientID)
}

func ConversationID(a, b uint) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d_%d", a, b)
}

func (m *Message) IsFromUser(userID uint) bool { return m.SenderID == userID }
func (m *Message) IsToUser(userID uint) bool   { return m.RecipientID == userID }

func (m *Message) IsInConversationWith(userID uint) bool {
	return m.IsFromUser(userID) || m.IsToUser(userID)
}

// OtherParticipant returns the counterpart id, or 0 if userID is not a participant.
func (m *Message) OtherParticipant(userID uint) uint {
	switch userID {
	case m.SenderID:
		return m.RecipientID
	case m.RecipientID:
		return m.SenderID
	}
	return 0
}

// CanBeEditedBy allows the sender to edit a non-deleted message for editWindow
// after it was sent.
func (m *Message) CanBeEditedBy(user *User, now time.Time, editWindow time.Duration) bool {
	return m.SenderID == user.ID && !m.IsDeleted && now.Sub(m.Timestamp) < editWindow
}

// CanBeDeletedBy allows sender, recipient, or an admin.
func (m *Message) CanBeDeletedBy(user *User) bool {
	return m.SenderID == user.ID || m.RecipientID == user.ID || user.IsAdmin()
}

func (m *Message) IsReply() bool { return m.ReplyToMessageID != nil }
