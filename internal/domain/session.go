package domain

import "time"

// Session is one browsing session for one visitor-carrying device.
//
// The client generates the opaque session token and presents it on every
// analytics call; the token is the natural key for all upsert-style lookups.
// Child records reference the server-assigned surrogate ID instead.
type Session struct {
	ID           int64  `gorm:"primaryKey;column:id" json:"id"`
	SessionToken string `gorm:"column:session_token;size:64;uniqueIndex;not null" json:"session_token"`

	// Derived from the User-Agent string at creation time.
	UserAgent  *string `gorm:"column:user_agent;type:text" json:"user_agent,omitempty"`
	DeviceType string  `gorm:"column:device_type;size:10;not null;default:desktop" json:"device_type"`
	IsMobile   bool    `gorm:"column:is_mobile;not null;default:false" json:"is_mobile"`
	IsTablet   bool    `gorm:"column:is_tablet;not null;default:false" json:"is_tablet"`
	IsDesktop  bool    `gorm:"column:is_desktop;not null;default:true" json:"is_desktop"`
	Browser    string  `gorm:"column:browser;size:50;not null;default:Unknown" json:"browser"`
	OS         string  `gorm:"column:os;size:50;not null;default:Unknown" json:"os"`

	ScreenWidth  *int `gorm:"column:screen_width" json:"screen_width,omitempty"`
	ScreenHeight *int `gorm:"column:screen_height" json:"screen_height,omitempty"`

	// Best-effort, proxy-header derived. Holds the literal "unknown" when no
	// usable address could be extracted, so the column is text rather than inet.
	IPAddress *string `gorm:"column:ip_address;size:45" json:"ip_address,omitempty"`

	// Geolocation is looked up from the IP at creation time; all fields stay
	// null when the lookup fails.
	Country     *string `gorm:"column:country;size:100" json:"country,omitempty"`
	CountryCode *string `gorm:"column:country_code;size:2" json:"country_code,omitempty"`
	City        *string `gorm:"column:city;size:100" json:"city,omitempty"`
	Region      *string `gorm:"column:region;size:100" json:"region,omitempty"`
	Timezone    *string `gorm:"column:timezone;size:50" json:"timezone,omitempty"`

	Referrer    *string `gorm:"column:referrer;size:500" json:"referrer,omitempty"`
	UtmSource   *string `gorm:"column:utm_source;size:100" json:"utm_source,omitempty"`
	UtmMedium   *string `gorm:"column:utm_medium;size:100" json:"utm_medium,omitempty"`
	UtmCampaign *string `gorm:"column:utm_campaign;size:100" json:"utm_campaign,omitempty"`

	AboutMeViewed bool `gorm:"column:about_me_viewed;not null;default:false" json:"about_me_viewed"`
	BlockedMobile bool `gorm:"column:blocked_mobile;not null;default:false" json:"blocked_mobile"`

	StartedAt      time.Time  `gorm:"column:started_at;autoCreateTime;index" json:"started_at"`
	LastActivityAt time.Time  `gorm:"column:last_activity_at;not null" json:"last_activity_at"`
	EndedAt        *time.Time `gorm:"column:ended_at" json:"ended_at,omitempty"`

	// Wall-clock seconds between StartedAt and EndedAt; null until ended.
	DurationSeconds *int `gorm:"column:duration_seconds" json:"duration_seconds,omitempty"`

	// Relationships
	Events      []Event             `gorm:"foreignKey:SessionID" json:"events,omitempty"`
	PageViews   []PageView          `gorm:"foreignKey:SessionID" json:"page_views,omitempty"`
	Performance *PerformanceMetrics `gorm:"foreignKey:SessionID" json:"performance,omitempty"`
}

// TableName returns the table name for GORM.
func (Session) TableName() string {
	return "sessions"
}

// IsEnded reports whether the session has been explicitly ended.
func (s *Session) IsEnded() bool {
	return s.EndedAt != nil
}
