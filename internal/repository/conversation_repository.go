package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"lumina/internal/model"
)

type ConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) Create(ctx context.Context, conversation *model.Conversation) error {
	if err := r.db.WithContext(ctx).Omit("User", "Messages").Create(conversation).Error; err != nil {
		return fmt.Errorf("create conversation failed: %w", err)
	}
	return nil
}

// ListByUserID returns the user's conversations, newest first.
func (r *ConversationRepository) ListByUserID(ctx context.Context, userID string) ([]model.Conversation, error) {
	conversations := make([]model.Conversation, 0)
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&conversations).Error; err != nil {
		return nil, fmt.Errorf("list conversations failed: %w", err)
	}
	return conversations, nil
}

func (r *ConversationRepository) GetByIDAndUserID(ctx context.Context, id, userID string) (*model.Conversation, error) {
	var conversation model.Conversation
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&conversation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get conversation failed: %w", err)
	}
	return &conversation, nil
}

// UpdateTitle reports whether a row owned by userID was updated.
func (r *ConversationRepository) UpdateTitle(ctx context.Context, id, userID, title string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Conversation{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("title", title)
	if result.Error != nil {
		return false, fmt.Errorf("update conversation title failed: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *ConversationRepository) DeleteByIDAndUserID(ctx context.Context, id, userID string) (bool, error) {
	result := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&model.Conversation{})
	if result.Error != nil {
		return false, fmt.Errorf("delete conversation failed: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}
