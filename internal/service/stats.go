package service

import (
	"Aperture-Backend/internal/domain"
	"Aperture-Backend/internal/repository"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Selectable aggregation periods.
const (
	Period7Days  = "7days"
	Period30Days = "30days"
	Period90Days = "90days"
	PeriodAll    = "all"
)

// ErrInvalidPeriod is returned for an unrecognised period parameter.
var ErrInvalidPeriod = errors.New("invalid period")

// dailyWindowDays is the fixed window of the daily session chart. It does
// not follow the selected period: the dashboard always charts the trailing
// 30 days even when the overview shows all-time numbers.
const dailyWindowDays = 30

// statsTopLimit caps the top-countries and top-events breakdowns.
const statsTopLimit = 10

// StatsService assembles the read-only dashboard payload.
type StatsService struct {
	storage repository.Storage
	log     *zap.Logger
}

// NewStatsService creates the stats service.
func NewStatsService(storage repository.Storage, log *zap.Logger) *StatsService {
	return &StatsService{
		storage: storage,
		log:     log,
	}
}

// periodCutoff maps a period name to a start-timestamp cutoff. The cutoff
// is passed to every query as a bound value; nil means unbounded.
func periodCutoff(period string, now time.Time) (*time.Time, error) {
	var days int
	switch period {
	case Period7Days:
		days = 7
	case Period30Days:
		days = 30
	case Period90Days:
		days = 90
	case PeriodAll:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
	}

	cutoff := now.AddDate(0, 0, -days)
	return &cutoff, nil
}

// GetStats runs every aggregation for the selected period and assembles the
// dashboard payload. It never mutates any store.
func (s *StatsService) GetStats(ctx context.Context, period string) (*domain.StatsPayload, error) {
	now := time.Now()

	since, err := periodCutoff(period, now)
	if err != nil {
		return nil, err
	}

	overview, err := s.storage.GetOverviewStats(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("overview stats: %w", err)
	}

	pageViews, err := s.storage.CountPageViews(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("page view count: %w", err)
	}

	topCountries, err := s.storage.GetTopCountries(ctx, since, statsTopLimit)
	if err != nil {
		return nil, fmt.Errorf("top countries: %w", err)
	}

	browsers, err := s.storage.GetBrowserStats(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("browser stats: %w", err)
	}

	osStats, err := s.storage.GetOSStats(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("os stats: %w", err)
	}

	performance, err := s.storage.GetPerformanceStats(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("performance stats: %w", err)
	}

	topEvents, err := s.storage.GetTopEvents(ctx, since, statsTopLimit)
	if err != nil {
		return nil, fmt.Errorf("top events: %w", err)
	}

	dailySessions, err := s.storage.GetDailySessions(ctx, now.AddDate(0, 0, -dailyWindowDays))
	if err != nil {
		return nil, fmt.Errorf("daily sessions: %w", err)
	}

	s.log.Debug("assembled stats payload",
		zap.String("period", period),
		zap.Int64("total_sessions", overview.TotalSessions))

	return &domain.StatsPayload{
		Overview:      overview,
		PageViews:     pageViews,
		TopCountries:  topCountries,
		Browsers:      browsers,
		OS:            osStats,
		Performance:   performance,
		TopEvents:     topEvents,
		DailySessions: dailySessions,
	}, nil
}
