package domain

import "time"

// Aggregation result types returned by the stats queries. These shapes feed
// the dashboard payload directly, so the JSON field names are part of the
// API contract.

// OverviewStats summarises the sessions within the selected period.
type OverviewStats struct {
	TotalSessions int64 `json:"total_sessions"`
	// Kept as a distinct field for forward compatibility; session tokens are
	// unique, so today this always equals TotalSessions.
	UniqueSessions  int64      `json:"unique_sessions"`
	BlockedMobile   int64      `json:"blocked_mobile"`
	MobileSessions  int64      `json:"mobile_sessions"`
	DesktopSessions int64      `json:"desktop_sessions"`
	AboutMeViews    int64      `json:"about_me_views"`
	AvgDuration     int64      `json:"avg_duration"`
	LastSessionAt   *time.Time `json:"last_session_at,omitempty"`
}

// CountryStat is one row of the top-countries breakdown.
type CountryStat struct {
	Country     string `gorm:"column:country" json:"country"`
	CountryCode string `gorm:"column:country_code" json:"country_code"`
	Count       int64  `gorm:"column:count" json:"count"`
}

// BrowserStat is one row of the browser breakdown.
type BrowserStat struct {
	Browser string `gorm:"column:browser" json:"browser"`
	Count   int64  `gorm:"column:count" json:"count"`
}

// OSStat is one row of the operating-system breakdown.
type OSStat struct {
	OS    string `gorm:"column:os" json:"os"`
	Count int64  `gorm:"column:count" json:"count"`
}

// PerformanceStats holds period-scoped averages. Each field is averaged
// independently over the rows where that field is non-null, so a partially
// reported row still contributes the fields it has.
type PerformanceStats struct {
	AvgPageLoad     *float64 `gorm:"column:avg_page_load" json:"avg_page_load,omitempty"`
	AvgCanvasInit   *float64 `gorm:"column:avg_canvas_init" json:"avg_canvas_init,omitempty"`
	AvgFirstPhoto   *float64 `gorm:"column:avg_first_photo" json:"avg_first_photo,omitempty"`
	AvgPhotoLoad    *float64 `gorm:"column:avg_photo_load" json:"avg_photo_load,omitempty"`
	AvgPhotosLoaded *float64 `gorm:"column:avg_photos_loaded" json:"avg_photos_loaded,omitempty"`
}

// EventStat is one row of the top-events breakdown.
type EventStat struct {
	EventType     string  `gorm:"column:event_type" json:"event_type"`
	EventCategory *string `gorm:"column:event_category" json:"event_category,omitempty"`
	Count         int64   `gorm:"column:count" json:"count"`
}

// DailyStat is one calendar date of the trailing-30-day session chart.
type DailyStat struct {
	Date           string `gorm:"column:date" json:"date"`
	Sessions       int64  `gorm:"column:sessions" json:"sessions"`
	UniqueVisitors int64  `gorm:"column:unique_visitors" json:"unique_visitors"`
}

// StatsPayload is the full dashboard payload for one stats request. The
// container keys are camelCase like the client's request fields; the row
// structs inside keep their snake_case column names.
type StatsPayload struct {
	Overview      *OverviewStats    `json:"overview"`
	PageViews     int64             `json:"pageViews"`
	TopCountries  []CountryStat     `json:"topCountries"`
	Browsers      []BrowserStat     `json:"browsers"`
	OS            []OSStat          `json:"os"`
	Performance   *PerformanceStats `json:"performance"`
	TopEvents     []EventStat       `json:"topEvents"`
	DailySessions []DailyStat       `json:"dailySessions"`
}
