package service

import (
	"context"
	"strings"

	"vibefeed/internal/feed"
	"vibefeed/internal/middleware"
	"vibefeed/internal/models"
	"vibefeed/internal/notifications"
	"vibefeed/internal/observability"
	"vibefeed/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

const maxMessageLen = 2000

// EventPublisher pushes real-time events to users.
type EventPublisher interface {
	PublishEvent(ctx context.Context, userIDs []uint, ev notifications.Event) error
}

// ChatService provides conversation and message business logic.
type ChatService struct {
	chatRepo  repository.ChatRepository
	userRepo  repository.UserRepository
	publisher EventPublisher
}

// CreateConversationInput is the input for creating a conversation.
type CreateConversationInput struct {
	UserID         uint
	ParticipantIDs []uint
}

// SendMessageInput is the input for sending a message.
type SendMessageInput struct {
	UserID         uint
	ConversationID uint
	Text           string
}

// MessageEvent is the payload of an EventMessage push.
type MessageEvent struct {
	ConversationID uint            `json:"conversationId"`
	Message        *models.Message `json:"message"`
}

// NewChatService returns a new ChatService. publisher may be nil.
func NewChatService(chatRepo repository.ChatRepository, userRepo repository.UserRepository, publisher EventPublisher) *ChatService {
	return &ChatService{chatRepo: chatRepo, userRepo: userRepo, publisher: publisher}
}

// CreateConversation returns the existing direct conversation when one
// exists; created reports whether a new one was made.
func (s *ChatService) CreateConversation(ctx context.Context, in CreateConversationInput) (conv *models.Conversation, created bool, err error) {
	others := make([]uint, 0, len(in.ParticipantIDs))
	for _, id := range in.ParticipantIDs {
		if id != 0 && id != in.UserID {
			others = append(others, id)
		}
	}
	if len(others) == 0 {
		return nil, false, models.NewValidationError("At least one other participant is required")
	}

	if len(others) == 1 {
		existing, err := s.chatRepo.FindDirectConversation(ctx, in.UserID, others[0])
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return existing, false, nil
		}
	}

	conv, err = s.chatRepo.CreateConversation(ctx, append(others, in.UserID))
	if err != nil {
		return nil, false, err
	}
	return conv, true, nil
}

// GetConversations returns the user's conversations with their unread counts.
func (s *ChatService) GetConversations(ctx context.Context, userID uint) ([]models.Conversation, error) {
	return s.chatRepo.GetUserConversations(ctx, userID)
}

// GetConversationForUser returns the conversation if the user is a participant.
func (s *ChatService) GetConversationForUser(ctx context.Context, convID, userID uint) (*models.Conversation, error) {
	conv, err := s.chatRepo.GetConversation(ctx, convID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(userID) {
		return nil, models.NewForbiddenError("You are not a participant in this conversation")
	}
	return conv, nil
}

// GetMessages returns one page of history, oldest first within the page, and
// marks the conversation read for the viewer.
func (s *ChatService) GetMessages(ctx context.Context, convID, userID uint, page feed.PageRequest) ([]models.Message, models.Pagination, error) {
	if _, err := s.GetConversationForUser(ctx, convID, userID); err != nil {
		return nil, models.Pagination{}, err
	}

	messages, total, err := s.chatRepo.GetMessages(ctx, convID, page.Limit, page.Offset())
	if err != nil {
		return nil, models.Pagination{}, err
	}
	models.MarkOwn(messages, userID)

	if err := s.chatRepo.MarkRead(ctx, convID, userID); err != nil {
		return nil, models.Pagination{}, err
	}
	return messages, page.Meta(total), nil
}

// SendMessage stores a message from a participant and pushes it to everyone
// in the conversation. Push failures are logged, not returned.
func (s *ChatService) SendMessage(ctx context.Context, in SendMessageInput) (*models.Message, error) {
	ctx, span := observability.StartSpan(ctx, "ChatService", "SendMessage",
		attribute.Int64("vibefeed.user_id", int64(in.UserID)),
		attribute.Int64("vibefeed.conversation_id", int64(in.ConversationID)),
	)
	msg, err := s.sendMessage(ctx, in)
	observability.EndSpan(span, err)
	return msg, err
}

func (s *ChatService) sendMessage(ctx context.Context, in SendMessageInput) (*models.Message, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, models.NewValidationError("Message text is required")
	}
	if len([]rune(text)) > maxMessageLen {
		return nil, models.NewValidationError("Message too long (max 2000 characters)")
	}

	conv, err := s.GetConversationForUser(ctx, in.ConversationID, in.UserID)
	if err != nil {
		return nil, err
	}

	msg := &models.Message{
		ConversationID: conv.ID,
		SenderID:       in.UserID,
		Text:           text,
	}
	if err := s.chatRepo.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}
	observability.MessagesSent.Inc()

	if sender, err := s.userRepo.GetByID(ctx, in.UserID); err == nil {
		msg.Sender = sender
	}

	if s.publisher != nil {
		recipients := make([]uint, len(conv.Participants))
		for i, p := range conv.Participants {
			recipients[i] = p.ID
		}
		ev := notifications.Event{
			Type:    notifications.EventMessage,
			Payload: MessageEvent{ConversationID: conv.ID, Message: msg},
		}
		if err := s.publisher.PublishEvent(ctx, recipients, ev); err != nil {
			middleware.Logger.WarnContext(ctx, "failed to publish message event",
				"conversation_id", conv.ID, "error", err)
		}
	}

	msg.IsOwn = true
	return msg, nil
}
