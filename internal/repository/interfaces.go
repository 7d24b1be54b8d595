package repository

import (
	"context"
	"time"

	"github.com/chatbird/chatbird-bridge/internal/domain"
)

type MessageRepository interface {
	CreateOrIgnore(ctx context.Context, msg *domain.Message) error
	GetByID(ctx context.Context, id string) (*domain.Message, error)
	GetByConversation(ctx context.Context, conversationID string, limit, offset int) ([]*domain.Message, error)
	Search(ctx context.Context, query string, limit int) ([]*domain.Message, error)
	Delete(ctx context.Context, id string) error
	DeleteByConversation(ctx context.Context, conversationID string) error
}

type ConversationRepository interface {
	Upsert(ctx context.Context, conv *domain.Conversation) error
	GetByID(ctx context.Context, id string) (*domain.Conversation, error)
	GetAll(ctx context.Context, limit, offset int) ([]*domain.Conversation, error)
	UpdateLastMessage(ctx context.Context, id, text, sender string, timestamp time.Time) error
	UpdateUnreadCount(ctx context.Context, id string, count int) error
	IncrementUnreadCount(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

type ParticipantRepository interface {
	Upsert(ctx context.Context, participant *domain.Participant) error
	GetByConversation(ctx context.Context, conversationID string) ([]*domain.Participant, error)
	Delete(ctx context.Context, conversationID, userID string) error
}
