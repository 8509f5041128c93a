package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"lumina/internal/model"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(ctx context.Context, message *model.Message) error {
	if err := r.db.WithContext(ctx).Create(message).Error; err != nil {
		return fmt.Errorf("create message failed: %w", err)
	}
	return nil
}

// ListByConversationID returns the transcript oldest first. Ties on
// created_at fall back to id so the order is stable.
func (r *MessageRepository) ListByConversationID(ctx context.Context, conversationID string) ([]model.Message, error) {
	messages := make([]model.Message, 0)
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("list messages failed: %w", err)
	}
	return messages, nil
}

// LatestCreatedAt returns the newest created_at in the conversation, or the
// zero time when it has no messages.
func (r *MessageRepository) LatestCreatedAt(ctx context.Context, conversationID string) (time.Time, error) {
	var latest model.Message
	err := r.db.WithContext(ctx).
		Select("created_at").
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Limit(1).
		Find(&latest).Error
	if err != nil {
		return time.Time{}, fmt.Errorf("latest message time failed: %w", err)
	}
	return latest.CreatedAt, nil
}

func (r *MessageRepository) DeleteByConversationID(ctx context.Context, conversationID string) error {
	if err := r.db.WithContext(ctx).Where("conversation_id = ?", conversationID).Delete(&model.Message{}).Error; err != nil {
		return fmt.Errorf("delete messages by conversation failed: %w", err)
	}
	return nil
}
