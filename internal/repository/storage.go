package repository

import (
	"Aperture-Backend/internal/domain"
	"context"
	"errors"
	"time"
)

var (
	// ErrSessionNotFound is returned when a session token does not resolve
	// to an existing session. Recorders surface this as 404; they never
	// create sessions implicitly.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExists is returned when a session insert conflicts on the
	// client token. The caller lost a race with a concurrent first init and
	// falls back to the update path.
	ErrSessionExists = errors.New("session already exists")
	// ErrUserNotFound is returned when no active user matches the lookup.
	ErrUserNotFound = errors.New("user not found")
)

// Storage is the persistence boundary of the analytics subsystem. Stats
// queries take a `since` cutoff as a bound value: nil means no period
// filter (all time), and every child aggregation must filter through the
// parent session's started_at, not the child row's own timestamp.
type Storage interface {
	// Session methods
	FindSessionByToken(ctx context.Context, token string) (*domain.Session, error)
	CreateSession(ctx context.Context, session *domain.Session) error
	TouchSession(ctx context.Context, sessionID int64, blockedMobile *bool) error
	EndSession(ctx context.Context, token string, endedAt time.Time) error
	MarkAboutMeViewed(ctx context.Context, sessionID int64) error

	// Recorder methods
	CreateEvent(ctx context.Context, event *domain.Event) error
	CreatePageView(ctx context.Context, view *domain.PageView) error
	UpsertPerformance(ctx context.Context, metrics *domain.PerformanceMetrics) error

	// Aggregation methods (read-only)
	GetOverviewStats(ctx context.Context, since *time.Time) (*domain.OverviewStats, error)
	CountPageViews(ctx context.Context, since *time.Time) (int64, error)
	GetTopCountries(ctx context.Context, since *time.Time, limit int) ([]domain.CountryStat, error)
	GetBrowserStats(ctx context.Context, since *time.Time) ([]domain.BrowserStat, error)
	GetOSStats(ctx context.Context, since *time.Time) ([]domain.OSStat, error)
	GetPerformanceStats(ctx context.Context, since *time.Time) (*domain.PerformanceStats, error)
	GetTopEvents(ctx context.Context, since *time.Time, limit int) ([]domain.EventStat, error)
	GetDailySessions(ctx context.Context, since time.Time) ([]domain.DailyStat, error)

	// Retention
	ClearAnalytics(ctx context.Context) error

	// User methods
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	CreateUser(ctx context.Context, user *domain.User) error
	UpdateLastLogin(ctx context.Context, userID int64, at time.Time) error
}
