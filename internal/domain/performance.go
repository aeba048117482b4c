package domain

import "time"

// PerformanceMetrics captures client-measured timings, at most one row per
// session (unique on session_id).
//
// Clients report partial measurements at different points of the page
// lifecycle, so the row is built up by a coalescing upsert: on conflict each
// column independently keeps the newly supplied value only if it is
// non-null, otherwise the previously stored value is retained. A later call
// must never null out a field an earlier call already filled.
type PerformanceMetrics struct {
	ID        int64 `gorm:"primaryKey;column:id" json:"id"`
	SessionID int64 `gorm:"column:session_id;uniqueIndex;not null" json:"session_id"`

	PageLoadTime      *float64 `gorm:"column:page_load_time" json:"page_load_time,omitempty"`
	CanvasInitTime    *float64 `gorm:"column:canvas_init_time" json:"canvas_init_time,omitempty"`
	FirstPhotoLoad    *float64 `gorm:"column:first_photo_load_time" json:"first_photo_load_time,omitempty"`
	AvgPhotoLoadTime  *float64 `gorm:"column:avg_photo_load_time" json:"avg_photo_load_time,omitempty"`
	TotalPhotosLoaded *int     `gorm:"column:total_photos_loaded" json:"total_photos_loaded,omitempty"`

	ConnectionType          *string `gorm:"column:connection_type;size:50" json:"connection_type,omitempty"`
	ConnectionEffectiveType *string `gorm:"column:connection_effective_type;size:20" json:"connection_effective_type,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	// Relationships
	Session *Session `gorm:"foreignKey:SessionID" json:"session,omitempty"`
}

// TableName returns the table name for GORM.
func (PerformanceMetrics) TableName() string {
	return "performance_metrics"
}
