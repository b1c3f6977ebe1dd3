package repository

import (
	"context"
	"errors"
	"slices"
	"time"

	"vibefeed/internal/models"

	"gorm.io/gorm"
)

// ChatRepository defines the interface for chat data operations
type ChatRepository interface {
	CreateConversation(ctx context.Context, participantIDs []uint) (*models.Conversation, error)
	FindDirectConversation(ctx context.Context, a, b uint) (*models.Conversation, error)
	GetConversation(ctx context.Context, id uint) (*models.Conversation, error)
	GetUserConversations(ctx context.Context, userID uint) ([]models.Conversation, error)
	IsParticipant(ctx context.Context, convID, userID uint) (bool, error)
	CreateMessage(ctx context.Context, msg *models.Message) error
	GetMessages(ctx context.Context, convID uint, limit, offset int) ([]models.Message, int64, error)
	MarkRead(ctx context.Context, convID, userID uint) error
}

// chatRepository implements ChatRepository
type chatRepository struct {
	db *gorm.DB
}

// NewChatRepository creates a new chat repository
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

func conversationNotFound(id uint) *models.AppError {
	return models.NewNotFoundError("Conversation", id)
}

// CreateConversation creates a conversation between distinct, existing users.
func (r *chatRepository) CreateConversation(ctx context.Context, participantIDs []uint) (*models.Conversation, error) {
	ids := slices.Clone(participantIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)
	if len(ids) == 0 {
		return nil, models.NewValidationError("Conversation needs at least one participant")
	}

	conv := &models.Conversation{}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.User{}).Where("id IN ?", ids).Count(&existing).Error; err != nil {
			return err
		}
		if existing != int64(len(ids)) {
			return models.NewNotFoundMessage("User not found")
		}

		if err := tx.Omit("Participants").Create(conv).Error; err != nil {
			return err
		}
		rows := make([]models.ConversationParticipant, len(ids))
		for i, id := range ids {
			rows[i] = models.ConversationParticipant{ConversationID: conv.ID, UserID: id}
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return nil, notFoundOr(err, models.NewNotFoundMessage("User not found"))
	}
	return r.GetConversation(ctx, conv.ID)
}

// FindDirectConversation returns the two-person conversation between a and b, or nil.
func (r *chatRepository) FindDirectConversation(ctx context.Context, a, b uint) (*models.Conversation, error) {
	var convID uint
	err := r.db.WithContext(ctx).
		Model(&models.ConversationParticipant{}).
		Select("conversation_id").
		Group("conversation_id").
		Having("COUNT(*) = 2 AND SUM(CASE WHEN user_id IN (?, ?) THEN 1 ELSE 0 END) = 2", a, b).
		Order("conversation_id ASC").
		Limit(1).
		Scan(&convID).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if convID == 0 {
		return nil, nil
	}
	return r.GetConversation(ctx, convID)
}

func (r *chatRepository) GetConversation(ctx context.Context, id uint) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.db.WithContext(ctx).
		Preload("Participants", func(db *gorm.DB) *gorm.DB {
			return db.Order("users.id ASC")
		}).
		First(&conv, id).Error
	if err != nil {
		return nil, notFoundOr(err, conversationNotFound(id))
	}
	return &conv, nil
}

// GetUserConversations lists the user's conversations, most recent activity first,
// with UnreadCount taken from the user's participant row.
func (r *chatRepository) GetUserConversations(ctx context.Context, userID uint) ([]models.Conversation, error) {
	var memberships []models.ConversationParticipant
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&memberships).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	conversations := []models.Conversation{}
	if len(memberships) == 0 {
		return conversations, nil
	}

	unread := make(map[uint]int, len(memberships))
	ids := make([]uint, len(memberships))
	for i, m := range memberships {
		unread[m.ConversationID] = m.UnreadCount
		ids[i] = m.ConversationID
	}

	if err := r.db.WithContext(ctx).
		Preload("Participants", func(db *gorm.DB) *gorm.DB {
			return db.Order("users.id ASC")
		}).
		Where("id IN ?", ids).
		Order("COALESCE(last_message_at, created_at) DESC").
		Order("id DESC").
		Find(&conversations).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	for i := range conversations {
		conversations[i].UnreadCount = unread[conversations[i].ID]
	}
	return conversations, nil
}

func (r *chatRepository) IsParticipant(ctx context.Context, convID, userID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", convID, userID).
		Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

// CreateMessage stores msg, updates the conversation's last message and
// bumps the unread counter of every participant except the sender.
func (r *chatRepository) CreateMessage(ctx context.Context, msg *models.Message) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conv models.Conversation
		if err := tx.Select("id").First(&conv, msg.ConversationID).Error; err != nil {
			return err
		}
		if err := tx.Omit("Sender", "Conversation").Create(msg).Error; err != nil {
			return err
		}

		sentAt := msg.CreatedAt
		if err := tx.Model(&models.Conversation{}).Where("id = ?", msg.ConversationID).
			Updates(map[string]any{"last_message": msg.Text, "last_message_at": sentAt, "updated_at": sentAt}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.ConversationParticipant{}).
			Where("conversation_id = ? AND user_id <> ?", msg.ConversationID, msg.SenderID).
			UpdateColumn("unread_count", gorm.Expr("unread_count + 1")).Error; err != nil {
			return err
		}
		return tx.Model(&models.ConversationParticipant{}).
			Where("conversation_id = ? AND user_id = ?", msg.ConversationID, msg.SenderID).
			Updates(map[string]any{"unread_count": 0, "last_read_at": sentAt}).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return conversationNotFound(msg.ConversationID)
		}
		if isForeignKeyError(err) {
			return models.NewNotFoundMessage("User not found")
		}
		return models.NewInternalError(err)
	}
	return nil
}

// GetMessages returns one page of messages in chronological order. Page one
// holds the newest limit messages.
func (r *chatRepository) GetMessages(ctx context.Context, convID uint, limit, offset int) ([]models.Message, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("conversation_id = ?", convID).
		Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	messages := []models.Message{}
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", convID).
		Preload("Sender").
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&messages).Error
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	// Fetched newest first; the client expects oldest -> newest
	slices.Reverse(messages)
	return messages, total, nil
}

func (r *chatRepository) MarkRead(ctx context.Context, convID, userID uint) error {
	now := time.Now()
	err := r.db.WithContext(ctx).Model(&models.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", convID, userID).
		Updates(map[string]any{"unread_count": 0, "last_read_at": now}).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
