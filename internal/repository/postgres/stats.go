package postgres

import (
	"Aperture-Backend/internal/domain"
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Aggregation queries for the stats dashboard. Every query that reaches a
// child table joins back to sessions and filters on sessions.started_at, so
// a session straddling the period boundary is included or excluded
// consistently across every sub-metric. The cutoff is always a bound
// parameter, never interpolated into the query text.

// sessionPeriod applies the optional period cutoff to a sessions query.
func sessionPeriod(q *gorm.DB, since *time.Time) *gorm.DB {
	if since != nil {
		return q.Where("sessions.started_at >= ?", *since)
	}
	return q
}

// GetOverviewStats computes the period-scoped session counters in a single
// conditional-aggregation pass.
func (s *PostgresStorage) GetOverviewStats(ctx context.Context, since *time.Time) (*domain.OverviewStats, error) {
	var row struct {
		TotalSessions   int64      `gorm:"column:total_sessions"`
		BlockedMobile   int64      `gorm:"column:blocked_mobile"`
		MobileSessions  int64      `gorm:"column:mobile_sessions"`
		DesktopSessions int64      `gorm:"column:desktop_sessions"`
		AboutMeViews    int64      `gorm:"column:about_me_views"`
		AvgDuration     int64      `gorm:"column:avg_duration"`
		LastSessionAt   *time.Time `gorm:"column:last_session_at"`
	}

	q := s.db.WithContext(ctx).Model(&domain.Session{}).
		Select(`COUNT(*) AS total_sessions,
			COUNT(*) FILTER (WHERE blocked_mobile) AS blocked_mobile,
			COUNT(*) FILTER (WHERE is_mobile) AS mobile_sessions,
			COUNT(*) FILTER (WHERE is_desktop) AS desktop_sessions,
			COUNT(*) FILTER (WHERE about_me_viewed) AS about_me_views,
			COALESCE(AVG(duration_seconds), 0)::bigint AS avg_duration,
			MAX(started_at) AS last_session_at`)

	if err := sessionPeriod(q, since).Scan(&row).Error; err != nil {
		s.log.Error("failed to get overview stats", zap.Error(err))
		return nil, fmt.Errorf("failed to get overview stats: %w", err)
	}

	return &domain.OverviewStats{
		TotalSessions: row.TotalSessions,
		// Tokens are unique, so the distinct count collapses to the total.
		UniqueSessions:  row.TotalSessions,
		BlockedMobile:   row.BlockedMobile,
		MobileSessions:  row.MobileSessions,
		DesktopSessions: row.DesktopSessions,
		AboutMeViews:    row.AboutMeViews,
		AvgDuration:     row.AvgDuration,
		LastSessionAt:   row.LastSessionAt,
	}, nil
}

// CountPageViews counts pageview rows whose parent session started within
// the period.
func (s *PostgresStorage) CountPageViews(ctx context.Context, since *time.Time) (int64, error) {
	var count int64

	q := s.db.WithContext(ctx).Model(&domain.PageView{}).
		Joins("JOIN sessions ON sessions.id = page_views.session_id")

	if err := sessionPeriod(q, since).Count(&count).Error; err != nil {
		s.log.Error("failed to count page views", zap.Error(err))
		return 0, fmt.Errorf("failed to count page views: %w", err)
	}

	return count, nil
}

// GetTopCountries groups sessions by country, non-null countries only,
// ordered by descending count.
func (s *PostgresStorage) GetTopCountries(ctx context.Context, since *time.Time, limit int) ([]domain.CountryStat, error) {
	var results []domain.CountryStat

	q := s.db.WithContext(ctx).Model(&domain.Session{}).
		Select("country, country_code, COUNT(*) AS count").
		Where("country IS NOT NULL").
		Group("country, country_code").
		Order("count DESC").
		Limit(limit)

	if err := sessionPeriod(q, since).Find(&results).Error; err != nil {
		s.log.Error("failed to get top countries", zap.Error(err))
		return nil, fmt.Errorf("failed to get top countries: %w", err)
	}

	return results, nil
}

// GetBrowserStats groups all sessions in the period by browser label,
// including Unknown.
func (s *PostgresStorage) GetBrowserStats(ctx context.Context, since *time.Time) ([]domain.BrowserStat, error) {
	var results []domain.BrowserStat

	q := s.db.WithContext(ctx).Model(&domain.Session{}).
		Select("browser, COUNT(*) AS count").
		Group("browser").
		Order("count DESC")

	if err := sessionPeriod(q, since).Find(&results).Error; err != nil {
		s.log.Error("failed to get browser stats", zap.Error(err))
		return nil, fmt.Errorf("failed to get browser stats: %w", err)
	}

	return results, nil
}

// GetOSStats groups all sessions in the period by OS label, including Unknown.
func (s *PostgresStorage) GetOSStats(ctx context.Context, since *time.Time) ([]domain.OSStat, error) {
	var results []domain.OSStat

	q := s.db.WithContext(ctx).Model(&domain.Session{}).
		Select("os, COUNT(*) AS count").
		Group("os").
		Order("count DESC")

	if err := sessionPeriod(q, since).Find(&results).Error; err != nil {
		s.log.Error("failed to get os stats", zap.Error(err))
		return nil, fmt.Errorf("failed to get os stats: %w", err)
	}

	return results, nil
}

// GetPerformanceStats averages each timing field independently; AVG skips
// NULLs per column, so a partially reported row still contributes the
// fields it has.
func (s *PostgresStorage) GetPerformanceStats(ctx context.Context, since *time.Time) (*domain.PerformanceStats, error) {
	var stats domain.PerformanceStats

	q := s.db.WithContext(ctx).Model(&domain.PerformanceMetrics{}).
		Select(`AVG(page_load_time) AS avg_page_load,
			AVG(canvas_init_time) AS avg_canvas_init,
			AVG(first_photo_load_time) AS avg_first_photo,
			AVG(avg_photo_load_time) AS avg_photo_load,
			AVG(total_photos_loaded) AS avg_photos_loaded`).
		Joins("JOIN sessions ON sessions.id = performance_metrics.session_id")

	if err := sessionPeriod(q, since).Scan(&stats).Error; err != nil {
		s.log.Error("failed to get performance stats", zap.Error(err))
		return nil, fmt.Errorf("failed to get performance stats: %w", err)
	}

	return &stats, nil
}

// GetTopEvents groups events by type and category, ordered by descending
// count.
func (s *PostgresStorage) GetTopEvents(ctx context.Context, since *time.Time, limit int) ([]domain.EventStat, error) {
	var results []domain.EventStat

	q := s.db.WithContext(ctx).Model(&domain.Event{}).
		Select("event_type, event_category, COUNT(*) AS count").
		Joins("JOIN sessions ON sessions.id = events.session_id").
		Group("event_type, event_category").
		Order("count DESC").
		Limit(limit)

	if err := sessionPeriod(q, since).Find(&results).Error; err != nil {
		s.log.Error("failed to get top events", zap.Error(err))
		return nil, fmt.Errorf("failed to get top events: %w", err)
	}

	return results, nil
}

// GetDailySessions returns one row per calendar date from the cutoff on,
// ascending. The caller always passes a trailing-30-day cutoff; the chart
// window does not follow the selected period.
func (s *PostgresStorage) GetDailySessions(ctx context.Context, since time.Time) ([]domain.DailyStat, error) {
	var results []domain.DailyStat

	err := s.db.WithContext(ctx).Model(&domain.Session{}).
		Select(`to_char(started_at, 'YYYY-MM-DD') AS date,
			COUNT(*) AS sessions,
			COUNT(DISTINCT session_token) AS unique_visitors`).
		Where("started_at >= ?", since).
		Group("to_char(started_at, 'YYYY-MM-DD')").
		Order("date ASC").
		Find(&results).Error
	if err != nil {
		s.log.Error("failed to get daily sessions", zap.Error(err))
		return nil, fmt.Errorf("failed to get daily sessions: %w", err)
	}

	return results, nil
}
