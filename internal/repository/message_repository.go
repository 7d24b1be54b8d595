package repository

import (
	"strings"

	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/chatbird/chatbird-bridge/internal/domain"
)

type gormMessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &gormMessageRepository{db: db}
}

func (r *gormMessageRepository) CreateOrIgnore(ctx context.Context, msg *domain.Message) error {
	model := MessageDomainToModel(msg)
	// INSERT OR IGNORE keyed on the message id mirrors the live
	// store's de-duplication (SQLite)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(model).Error
}

func (r *gormMessageRepository) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	var model MessageModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return MessageModelToDomain(&model), nil
}

func (r *gormMessageRepository) GetByConversation(ctx context.Context, conversationID string, limit, offset int) ([]*domain.Message, error) {
	var models []MessageModel
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("message_time ASC").
		Limit(limit).
		Offset(offset).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	messages := make([]*domain.Message, len(models))
	for i := range models {
		messages[i] = MessageModelToDomain(&models[i])
	}
	return messages, nil
}

func (r *gormMessageRepository) Search(ctx context.Context, query string, limit int) ([]*domain.Message, error) {
	// Escape LIKE special characters to prevent SQL injection
	escapedQuery := strings.ReplaceAll(query, "%", "\\%")
	escapedQuery = strings.ReplaceAll(escapedQuery, "_", "\\_")
	likePattern := "%" + escapedQuery + "%"

	var models []MessageModel
	err := r.db.WithContext(ctx).
		Where("text LIKE ? ESCAPE '\\'", likePattern).
		Order("message_time DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	messages := make([]*domain.Message, len(models))
	for i := range models {
		messages[i] = MessageModelToDomain(&models[i])
	}
	return messages, nil
}

func (r *gormMessageRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&MessageModel{}).Error
}

func (r *gormMessageRepository) DeleteByConversation(ctx context.Context, conversationID string) error {
	return r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Delete(&MessageModel{}).Error
}
