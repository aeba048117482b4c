package domain

import "time"

// EventTypeAboutMeOpened is the reserved event type that marks the "about
// me" panel being opened; recording it also flips the session's
// about_me_viewed flag.
const EventTypeAboutMeOpened = "about_me_opened"

// Event is one discrete, timestamped interaction tied to a session.
// Rows are append-only; nothing mutates or deletes them except the
// administrative retention clear.
type Event struct {
	ID            int64    `gorm:"primaryKey;column:id" json:"id"`
	SessionID     int64    `gorm:"column:session_id;not null;index" json:"session_id"`
	EventType     string   `gorm:"column:event_type;size:100;not null;index" json:"event_type"`
	EventCategory *string  `gorm:"column:event_category;size:100" json:"event_category,omitempty"`
	EventLabel    *string  `gorm:"column:event_label;size:255" json:"event_label,omitempty"`
	EventValue    *float64 `gorm:"column:event_value" json:"event_value,omitempty"`

	// Opaque serialized JSON document; round-tripped, never interpreted.
	Metadata *string `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime;index" json:"created_at"`

	// Relationships
	Session *Session `gorm:"foreignKey:SessionID" json:"session,omitempty"`
}

// TableName returns the table name for GORM.
func (Event) TableName() string {
	return "events"
}
