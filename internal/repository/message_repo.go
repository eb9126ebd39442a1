package repository

import (
	"time"

	"securetalk/internal/models"

	"gorm.io/gorm"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(m *models.Message) error {
	return r.db.Create(m).Error
}

func (r *MessageRepository) GetByID(id uint) (*models.Message, error) {
	var m models.Message
	if err := r.db.First(&m, id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MessageRepository) Update(m *models.Message) error {
	return r.db.Save(m).Error
}

// MarkRead flips is_read in one conditional update so the not-deleted gate
// and the recipient check cannot race with a concurrent delete. Returns the
// number of rows changed (0 when the message was already read, deleted, or
// the reader is not the recipient).
func (r *MessageRepository) MarkRead(messageID, readerID uint, readAt time.Time) (int64, error) {
	res := r.db.Model(&models.Message{}).
		Where("id = ? AND recipient_id = ? AND is_deleted = 0 AND is_read = 0", messageID, readerID).
		Updates(map[string]interface{}{"is_read": true, "read_at": readAt})
	return res.RowsAffected, res.Error
}

// MarkConversationRead marks every unread message from senderID to readerID.
func (r *MessageRepository) MarkConversationRead(senderID, readerID uint, readAt time.Time) (int64, error) {
	res := r.db.Model(&models.Message{}).
		Where("sender_id = ? AND recipient_id = ? AND is_deleted = 0 AND is_read = 0", senderID, readerID).
		Updates(map[string]interface{}{"is_read": true, "read_at": readAt})
	return res.RowsAffected, res.Error
}

// SoftDelete marks a message deleted without erasing the ciphertext. The
// is_deleted guard makes repeated deletes no-ops.
func (r *MessageRepository) SoftDelete(messageID, deletedBy uint, deletedAt time.Time) (int64, error) {
	res := r.db.Model(&models.Message{}).
		Where("id = ? AND is_deleted = 0", messageID).
		Updates(map[string]interface{}{"is_deleted": true, "deleted_at": deletedAt, "deleted_by": deletedBy})
	return res.RowsAffected, res.Error
}

// ListConversation returns non-deleted messages between two users, oldest
// first, paginated.
func (r *MessageRepository) ListConversation(userA, userB uint, limit, offset int) ([]models.Message, error) {
	var list []models.Message
	err := r.db.
		Where("((sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)) AND is_deleted = 0",
			userA, userB, userB, userA).
		Order("timestamp ASC").
		Limit(limit).Offset(offset).
		Find(&list).Error
	return list, err
}

// ConversationSummary is one per-counterpart row of the conversation view.
type ConversationSummary struct {
	CounterpartID uint           `json:"counterpart_id"`
	LastMessage   models.Message `json:"last_message"`
	UnreadCount   int64          `json:"unread_count"`
}

// ListConversationsForUser computes the grouped conversation view inside a
// single transaction so the groups, last messages and unread counts come from
// one consistent snapshot.
func (r *MessageRepository) ListConversationsForUser(userID uint) ([]ConversationSummary, error) {
	var out []ConversationSummary
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var groups []struct {
			CounterpartID uint
			LastAt        time.Time
			UnreadCount   int64
		}
		err := tx.Raw(`
			SELECT CASE WHEN sender_id = ? THEN recipient_id ELSE sender_id END AS counterpart_id,
			       MAX(timestamp) AS last_at,
			       SUM(CASE WHEN recipient_id = ? AND is_read = 0 THEN 1 ELSE 0 END) AS unread_count
			FROM messages
			WHERE (sender_id = ? OR recipient_id = ?) AND is_deleted = 0
			GROUP BY counterpart_id
			ORDER BY last_at DESC`,
			userID, userID, userID, userID).Scan(&groups).Error
		if err != nil {
			return err
		}
		for _, g := range groups {
			var last models.Message
			err := tx.
				Where("((sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)) AND is_deleted = 0",
					userID, g.CounterpartID, g.CounterpartID, userID).
				Order("timestamp DESC").
				First(&last).Error
			if err != nil {
				return err
			}
			out = append(out, ConversationSummary{
				CounterpartID: g.CounterpartID,
				LastMessage:   last,
				UnreadCount:   g.UnreadCount,
			})
		}
		return nil
	})
	return out, err
}

func (r *MessageRepository) CountUnreadForUser(userID uint) (int64, error) {
	var c int64
	err := r.db.Model(&models.Message{}).
		Where("recipient_id = ? AND is_read = 0 AND is_deleted = 0", userID).
		Count(&c).Error
	return c, err
}

// MessageStats summarises a user's traffic for the statistics endpoint.
type MessageStats struct {
	Sent     int64 `json:"sent"`
	Received int64 `json:"received"`
	Unread   int64 `json:"unread"`
}

func (r *MessageRepository) StatsForUser(userID uint) (*MessageStats, error) {
	var s MessageStats
	err := r.db.Model(&models.Message{}).
		Where("sender_id = ? AND is_deleted = 0", userID).Count(&s.Sent).Error
	if err != nil {
		return nil, err
	}
	err = r.db.Model(&models.Message{}).
		Where("recipient_id = ? AND is_deleted = 0", userID).Count(&s.Received).Error
	if err != nil {
		return nil, err
	}
	err = r.db.Model(&models.Message{}).
		Where("recipient_id = ? AND is_read = 0 AND is_deleted = 0", userID).Count(&s.Unread).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListDeletedBefore returns soft-deleted messages whose deletion predates the
// cutoff; the external retention job uses this to pick purge candidates.
func (r *MessageRepository) ListDeletedBefore(cutoff time.Time, limit int) ([]models.Message, error) {
	var list []models.Message
	err := r.db.
		Where("is_deleted = 1 AND deleted_at < ?", cutoff).
		Order("deleted_at ASC").
		Limit(limit).
		Find(&list).Error
	return list, err
}
