package models

import "gorm.io/gorm"

// User is a registered account. Closing an account soft-deletes the row.
type User struct {
	gorm.Model
	Username     string `gorm:"uniqueIndex;not null" json:"username"`
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`
	IsActive     bool   `json:"is_active"`
	IsAdmin      bool   `json:"is_admin"`
}
