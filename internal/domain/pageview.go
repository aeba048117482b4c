package domain

import "time"

// PageView is one view of one logical page path within a session.
// Multiple views per session are normal; there is no uniqueness constraint.
// A view duration reported later at page-exit arrives as a separate row
// rather than a merge into the original one.
type PageView struct {
	ID        int64   `gorm:"primaryKey;column:id" json:"id"`
	SessionID int64   `gorm:"column:session_id;not null;index" json:"session_id"`
	PagePath  string  `gorm:"column:page_path;size:500;not null" json:"page_path"`
	PageTitle *string `gorm:"column:page_title;size:255" json:"page_title,omitempty"`

	// Seconds the page was visible; null when not (yet) reported.
	ViewDuration *int `gorm:"column:view_duration" json:"view_duration,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime;index" json:"created_at"`

	// Relationships
	Session *Session `gorm:"foreignKey:SessionID" json:"session,omitempty"`
}

// TableName returns the table name for GORM.
func (PageView) TableName() string {
	return "page_views"
}
