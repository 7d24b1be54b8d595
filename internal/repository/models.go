package repository

import (
	"time"

	"github.com/chatbird/chatbird-bridge/internal/domain"
)

type MessageModel struct {
	ID             string    `gorm:"primaryKey;column:id"`
	ConversationID string    `gorm:"column:conversation_id;index:idx_conversation_created"`
	Sender         string    `gorm:"column:sender"`
	SenderName     string    `gorm:"column:sender_name"`
	Type           string    `gorm:"column:type"`
	Text           string    `gorm:"column:text"`
	Lang           string    `gorm:"column:lang"`
	MediaURL       string    `gorm:"column:media_url"`
	MediaSize      int64     `gorm:"column:media_size"`
	MediaName      string    `gorm:"column:media_name"`
	MessageTime    time.Time `gorm:"column:message_time;index:idx_conversation_created"`
	IsMine         bool      `gorm:"column:is_mine"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (MessageModel) TableName() string { return "messages" }

type ConversationModel struct {
	ID                string    `gorm:"primaryKey;column:id"`
	RecipientID       string    `gorm:"column:recipient_id"`
	RecipientName     string    `gorm:"column:recipient_name"`
	LastMessageTime   time.Time `gorm:"column:last_message_time;index"`
	LastMessageText   string    `gorm:"column:last_message_text"`
	LastMessageSender string    `gorm:"column:last_message_sender"`
	UnreadCount       int       `gorm:"column:unread_count"`
	CreatedAt         time.Time `gorm:"column:created_at"`
	UpdatedAt         time.Time `gorm:"column:updated_at"`
}

func (ConversationModel) TableName() string { return "conversations" }

type ParticipantModel struct {
	ID                string    `gorm:"primaryKey;column:id"`
	ConversationID    string    `gorm:"primaryKey;column:conversation_id"`
	Name              string    `gorm:"column:name"`
	Email             string    `gorm:"column:email"`
	PreferredLanguage string    `gorm:"column:preferred_language"`
	CreatedAt         time.Time `gorm:"column:created_at"`
	UpdatedAt         time.Time `gorm:"column:updated_at"`
}

func (ParticipantModel) TableName() string { return "participants" }

// Conversion functions
func MessageModelToDomain(m *MessageModel) *domain.Message {
	if m == nil {
		return nil
	}

	msg := &domain.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Sender:         m.Sender,
		SenderName:     m.SenderName,
		Type:           domain.MessageType(m.Type),
		Text:           m.Text,
		Lang:           m.Lang,
		CreatedAt:      m.MessageTime,
		IsMine:         m.IsMine,
	}

	if m.MediaURL != "" {
		msg.Media = &domain.Media{
			URL:          m.MediaURL,
			Size:         m.MediaSize,
			OriginalName: m.MediaName,
		}
	}

	return msg
}

func MessageDomainToModel(msg *domain.Message) *MessageModel {
	if msg == nil {
		return nil
	}

	model := &MessageModel{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		Sender:         msg.Sender,
		SenderName:     msg.SenderName,
		Type:           string(msg.Type),
		Text:           msg.Text,
		Lang:           msg.Lang,
		MessageTime:    msg.CreatedAt,
		IsMine:         msg.IsMine,
	}

	if msg.Media != nil {
		model.MediaURL = msg.Media.URL
		model.MediaSize = msg.Media.Size
		model.MediaName = msg.Media.OriginalName
	}

	return model
}

func ConversationModelToDomain(m *ConversationModel) *domain.Conversation {
	if m == nil {
		return nil
	}

	return &domain.Conversation{
		ID:                m.ID,
		RecipientID:       m.RecipientID,
		RecipientName:     m.RecipientName,
		LastMessageTime:   m.LastMessageTime,
		LastMessageText:   m.LastMessageText,
		LastMessageSender: m.LastMessageSender,
		UnreadCount:       m.UnreadCount,
	}
}

func ConversationDomainToModel(conv *domain.Conversation) *ConversationModel {
	if conv == nil {
		return nil
	}

	return &ConversationModel{
		ID:                conv.ID,
		RecipientID:       conv.RecipientID,
		RecipientName:     conv.RecipientName,
		LastMessageTime:   conv.LastMessageTime,
		LastMessageText:   conv.LastMessageText,
		LastMessageSender: conv.LastMessageSender,
		UnreadCount:       conv.UnreadCount,
	}
}

func ParticipantModelToDomain(m *ParticipantModel) *domain.Participant {
	if m == nil {
		return nil
	}

	return &domain.Participant{
		ID:                m.ID,
		ConversationID:    m.ConversationID,
		Name:              m.Name,
		Email:             m.Email,
		PreferredLanguage: m.PreferredLanguage,
	}
}

func ParticipantDomainToModel(p *domain.Participant) *ParticipantModel {
	if p == nil {
		return nil
	}

	return &ParticipantModel{
		ID:                p.ID,
		ConversationID:    p.ConversationID,
		Name:              p.Name,
		Email:             p.Email,
		PreferredLanguage: p.PreferredLanguage,
	}
}
