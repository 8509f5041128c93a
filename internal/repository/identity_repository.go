package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"lumina/internal/model"
)

type IdentityRepository struct {
	db *gorm.DB
}

func NewIdentityRepository(db *gorm.DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

func (r *IdentityRepository) Create(ctx context.Context, identity *model.Identity) error {
	if err := r.db.WithContext(ctx).Create(identity).Error; err != nil {
		return fmt.Errorf("create identity failed: %w", err)
	}
	return nil
}

func (r *IdentityRepository) GetByEmail(ctx context.Context, email string) (*model.Identity, error) {
	var identity model.Identity
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&identity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query identity by email failed: %w", err)
	}
	return &identity, nil
}

func (r *IdentityRepository) GetByID(ctx context.Context, id string) (*model.Identity, error) {
	var identity model.Identity
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&identity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query identity by id failed: %w", err)
	}
	return &identity, nil
}

// MarkConfirmed sets confirmed_at once; already confirmed identities keep
// their original timestamp.
func (r *IdentityRepository) MarkConfirmed(ctx context.Context, id string, at time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&model.Identity{}).
		Where("id = ? AND confirmed_at IS NULL", id).
		Update("confirmed_at", at).Error
	if err != nil {
		return fmt.Errorf("confirm identity failed: %w", err)
	}
	return nil
}
