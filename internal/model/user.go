package model

import "time"

// User is an account of the web API, optionally linked to a Telegram chat.
type User struct {
	ID             string     `gorm:"primaryKey;type:text" json:"id" bson:"_id"`
	Name           string     `gorm:"not null" json:"name" bson:"name"`
	Email          string     `gorm:"not null;uniqueIndex" json:"email" bson:"email"`
	PasswordHash   string     `gorm:"not null" json:"-" bson:"passwordHash"`
	TelegramChatID *int64     `gorm:"uniqueIndex" json:"telegramChatId,omitempty" bson:"telegramChatId,omitempty"`
	LinkCode       string     `gorm:"index" json:"-" bson:"linkCode,omitempty"`
	LinkCodeExpiry *time.Time `json:"-" bson:"linkCodeExpiry,omitempty"`
	CreatedAt      time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt" bson:"updatedAt"`
}
