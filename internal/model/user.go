package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is the public profile row; credentials live on Identity.
type User struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Username  string    `gorm:"size:64;not null" json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
