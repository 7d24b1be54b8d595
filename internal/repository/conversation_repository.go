package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/chatbird/chatbird-bridge/internal/domain"
)

type gormConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &gormConversationRepository{db: db}
}

func (r *gormConversationRepository) Upsert(ctx context.Context, conv *domain.Conversation) error {
	model := ConversationDomainToModel(conv)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(model).Error
}

func (r *gormConversationRepository) GetByID(ctx context.Context, id string) (*domain.Conversation, error) {
	var model ConversationModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return ConversationModelToDomain(&model), nil
}

func (r *gormConversationRepository) GetAll(ctx context.Context, limit, offset int) ([]*domain.Conversation, error) {
	var models []ConversationModel
	query := r.db.WithContext(ctx).Order("last_message_time DESC")

	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}

	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	conversations := make([]*domain.Conversation, len(models))
	for i := range models {
		conversations[i] = ConversationModelToDomain(&models[i])
	}
	return conversations, nil
}

func (r *gormConversationRepository) UpdateLastMessage(ctx context.Context, id, text, sender string, timestamp time.Time) error {
	return r.db.WithContext(ctx).
		Model(&ConversationModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_message_text":   text,
			"last_message_sender": sender,
			"last_message_time":   timestamp,
		}).Error
}

func (r *gormConversationRepository) UpdateUnreadCount(ctx context.Context, id string, count int) error {
	return r.db.WithContext(ctx).
		Model(&ConversationModel{}).
		Where("id = ?", id).
		Update("unread_count", count).Error
}

func (r *gormConversationRepository) IncrementUnreadCount(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&ConversationModel{}).
		Where("id = ?", id).
		UpdateColumn("unread_count", gorm.Expr("unread_count + ?", 1)).Error
}

func (r *gormConversationRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&ConversationModel{}).Error
}
