package models

import "time"

// User is created on first contact with the bot and its metadata refreshed on
// every subsequent update. Users are never deleted.
type User struct {
	UserID       int64     `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	Username     string    `gorm:"type:varchar(100)" json:"username"`
	FirstName    string    `gorm:"type:varchar(100)" json:"first_name"`
	LanguageCode string    `gorm:"type:varchar(10);default:en" json:"language_code"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (User) TableName() string { return "users" }
