package database

import (
	"fmt"

	"vibefeed/internal/models"

	"gorm.io/gorm"
)

// PersistentModels lists every table the service owns, parents before children.
func PersistentModels() []any {
	return []any{
		&models.User{},
		&models.Post{},
		&models.Like{},
		&models.SavedPost{},
		&models.Conversation{},
		&models.ConversationParticipant{},
		&models.Message{},
	}
}

// Migrate brings the schema up to date. Conversation participants use an
// explicit join model because each row carries the member's unread count.
func Migrate(db *gorm.DB) error {
	if err := db.SetupJoinTable(&models.Conversation{}, "Participants", &models.ConversationParticipant{}); err != nil {
		return fmt.Errorf("join table conversation_participants: %w", err)
	}
	if err := db.AutoMigrate(PersistentModels()...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}
