package domain

import "time"

// User is an administrator account for the dashboard. Visitors are never
// users; the analytics endpoints they hit are unauthenticated.
type User struct {
	ID           int64      `gorm:"primaryKey;column:id" json:"id"`
	Email        string     `gorm:"column:email;uniqueIndex;not null" json:"email"`
	PasswordHash string     `gorm:"column:password_hash;not null" json:"-"`
	DisplayName  *string    `gorm:"column:display_name;size:100" json:"display_name,omitempty"`
	LastLoginAt  *time.Time `gorm:"column:last_login_at" json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
	IsActive     bool       `gorm:"column:is_active;not null;default:true" json:"is_active"`
}

// TableName returns the table name for GORM.
func (User) TableName() string {
	return "users"
}
