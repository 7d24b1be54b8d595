package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/chatbird/chatbird-bridge/internal/domain"
)

type gormParticipantRepository struct {
	db *gorm.DB
}

func NewParticipantRepository(db *gorm.DB) ParticipantRepository {
	return &gormParticipantRepository{db: db}
}

func (r *gormParticipantRepository) Upsert(ctx context.Context, participant *domain.Participant) error {
	model := ParticipantDomainToModel(participant)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}, {Name: "conversation_id"}},
		UpdateAll: true,
	}).Create(model).Error
}

func (r *gormParticipantRepository) GetByConversation(ctx context.Context, conversationID string) ([]*domain.Participant, error) {
	var models []ParticipantModel
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	participants := make([]*domain.Participant, len(models))
	for i := range models {
		participants[i] = ParticipantModelToDomain(&models[i])
	}
	return participants, nil
}

func (r *gormParticipantRepository) Delete(ctx context.Context, conversationID, userID string) error {
	return r.db.WithContext(ctx).
		Where("conversation_id = ? AND id = ?", conversationID, userID).
		Delete(&ParticipantModel{}).Error
}
