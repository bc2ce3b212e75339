package model

import "time"

// Project groups tasks of one user. Deleting it removes its tasks.
type Project struct {
	ID          string    `gorm:"primaryKey;type:text" json:"id" bson:"_id"`
	UserID      string    `gorm:"not null;index" json:"userId" bson:"userId"`
	Name        string    `gorm:"not null" json:"name" bson:"name"`
	Description string    `json:"description" bson:"description"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updatedAt"`
}
