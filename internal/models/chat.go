package models

import (
	"time"
)

// Conversation is a direct-message thread between two or more users.
type Conversation struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	LastMessage   string     `gorm:"type:text" json:"lastMessage"`
	LastMessageAt *time.Time `json:"lastMessageAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	Participants  []User     `gorm:"many2many:conversation_participants;" json:"participants,omitempty"`
	// UnreadCount is per viewer, filled from the participant row
	UnreadCount int `gorm:"-" json:"unreadCount"`
}

// ConversationParticipant tracks user participation in conversations.
// This is the join table GORM uses for Conversation.Participants.
type ConversationParticipant struct {
	ConversationID uint       `gorm:"primaryKey" json:"conversationId"`
	UserID         uint       `gorm:"primaryKey;index" json:"userId"`
	UnreadCount    int        `gorm:"not null;default:0" json:"unreadCount"`
	LastReadAt     *time.Time `json:"lastReadAt,omitempty"`
	JoinedAt       time.Time  `gorm:"autoCreateTime" json:"joinedAt"`
}

// HasParticipant reports whether userID takes part in the conversation.
func (c *Conversation) HasParticipant(userID uint) bool {
	for _, p := range c.Participants {
		if p.ID == userID {
			return true
		}
	}
	return false
}

// Message is an immutable entry in a conversation.
type Message struct {
	ID             uint          `gorm:"primaryKey" json:"id"`
	ConversationID uint          `gorm:"not null;index" json:"conversationId"`
	Conversation   *Conversation `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE" json:"-"`
	SenderID       uint          `gorm:"not null;index" json:"senderId"`
	Sender         *User         `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Text           string        `gorm:"type:text;not null" json:"text"`
	CreatedAt      time.Time     `gorm:"index" json:"timestamp"`
	// IsOwn is derived for the viewing user
	IsOwn bool `gorm:"-" json:"isOwn"`
}

// MarkOwn sets IsOwn on each message relative to viewerID.
func MarkOwn(messages []Message, viewerID uint) {
	for i := range messages {
		messages[i].IsOwn = messages[i].SenderID == viewerID
	}
}
