package model

import "time"

// Identity is the auth record behind a User. It shares the user's ID.
type Identity struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	Email        string     `gorm:"size:128;not null;uniqueIndex" json:"email"`
	PasswordHash string     `gorm:"size:255;not null" json:"-"`
	ConfirmedAt  *time.Time `json:"confirmed_at"`
	CreatedAt    time.Time  `json:"created_at"`
}

func (i *Identity) Confirmed() bool {
	return i.ConfirmedAt != nil
}
