// Package memory provides an in-memory Storage implementation. It backs the
// unit tests and the DATABASE_DRIVER=memory mode used for local development;
// it honours the same semantics as the PostgreSQL implementation, including
// the coalescing performance upsert and session-joined period filters.
package memory

import (
	"Aperture-Backend/internal/domain"
	"Aperture-Backend/internal/repository"
	"context"
	"math"
	"sort"
	"sync"
	"time"
)

type MemStorage struct {
	mu sync.RWMutex

	sessionsByToken map[string]*domain.Session
	sessionsByID    map[int64]*domain.Session
	events          []*domain.Event
	pageViews       []*domain.PageView
	performance     map[int64]*domain.PerformanceMetrics
	usersByEmail    map[string]*domain.User

	sessionCounter int64
	eventCounter   int64
	viewCounter    int64
	perfCounter    int64
	userCounter    int64
}

func New() *MemStorage {
	return &MemStorage{
		sessionsByToken: make(map[string]*domain.Session),
		sessionsByID:    make(map[int64]*domain.Session),
		performance:     make(map[int64]*domain.PerformanceMetrics),
		usersByEmail:    make(map[string]*domain.User),
	}
}

// --- Session Methods ---

func (s *MemStorage) FindSessionByToken(_ context.Context, token string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessionsByToken[token]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}

	copied := *session
	return &copied, nil
}

func (s *MemStorage) CreateSession(_ context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessionsByToken[session.SessionToken]; ok {
		return repository.ErrSessionExists
	}

	s.sessionCounter++
	session.ID = s.sessionCounter
	now := time.Now()
	if session.StartedAt.IsZero() {
		session.StartedAt = now
	}
	if session.LastActivityAt.IsZero() {
		session.LastActivityAt = now
	}

	stored := *session
	s.sessionsByToken[stored.SessionToken] = &stored
	s.sessionsByID[stored.ID] = &stored
	return nil
}

func (s *MemStorage) TouchSession(_ context.Context, sessionID int64, blockedMobile *bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessionsByID[sessionID]
	if !ok {
		return repository.ErrSessionNotFound
	}

	session.LastActivityAt = time.Now()
	if blockedMobile != nil {
		session.BlockedMobile = *blockedMobile
	}
	return nil
}

func (s *MemStorage) EndSession(_ context.Context, token string, endedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessionsByToken[token]
	if !ok || session.EndedAt != nil {
		// Ending an unknown or already-ended session is a no-op.
		return nil
	}

	duration := int(endedAt.Sub(session.StartedAt).Seconds())
	session.EndedAt = &endedAt
	session.DurationSeconds = &duration
	return nil
}

func (s *MemStorage) MarkAboutMeViewed(_ context.Context, sessionID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessionsByID[sessionID]
	if !ok {
		return repository.ErrSessionNotFound
	}

	session.AboutMeViewed = true
	return nil
}

// --- Recorder Methods ---

func (s *MemStorage) CreateEvent(_ context.Context, event *domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessionsByID[event.SessionID]; !ok {
		return repository.ErrSessionNotFound
	}

	s.eventCounter++
	event.ID = s.eventCounter
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	stored := *event
	s.events = append(s.events, &stored)
	return nil
}

func (s *MemStorage) CreatePageView(_ context.Context, view *domain.PageView) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessionsByID[view.SessionID]; !ok {
		return repository.ErrSessionNotFound
	}

	s.viewCounter++
	view.ID = s.viewCounter
	if view.CreatedAt.IsZero() {
		view.CreatedAt = time.Now()
	}

	stored := *view
	s.pageViews = append(s.pageViews, &stored)
	return nil
}

func (s *MemStorage) UpsertPerformance(_ context.Context, metrics *domain.PerformanceMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessionsByID[metrics.SessionID]; !ok {
		return repository.ErrSessionNotFound
	}

	existing, ok := s.performance[metrics.SessionID]
	if !ok {
		s.perfCounter++
		metrics.ID = s.perfCounter
		now := time.Now()
		metrics.CreatedAt = now
		metrics.UpdatedAt = now

		stored := *metrics
		s.performance[stored.SessionID] = &stored
		return nil
	}

	// Field-level coalesce: a nil incoming field keeps the stored value.
	if metrics.PageLoadTime != nil {
		existing.PageLoadTime = metrics.PageLoadTime
	}
	if metrics.CanvasInitTime != nil {
		existing.CanvasInitTime = metrics.CanvasInitTime
	}
	if metrics.FirstPhotoLoad != nil {
		existing.FirstPhotoLoad = metrics.FirstPhotoLoad
	}
	if metrics.AvgPhotoLoadTime != nil {
		existing.AvgPhotoLoadTime = metrics.AvgPhotoLoadTime
	}
	if metrics.TotalPhotosLoaded != nil {
		existing.TotalPhotosLoaded = metrics.TotalPhotosLoaded
	}
	if metrics.ConnectionType != nil {
		existing.ConnectionType = metrics.ConnectionType
	}
	if metrics.ConnectionEffectiveType != nil {
		existing.ConnectionEffectiveType = metrics.ConnectionEffectiveType
	}
	existing.UpdatedAt = time.Now()
	return nil
}

// --- Aggregation Methods ---

// inPeriod reports whether a session started at or after the cutoff.
func inPeriod(session *domain.Session, since *time.Time) bool {
	if since == nil {
		return true
	}
	return !session.StartedAt.Before(*since)
}

func (s *MemStorage) GetOverviewStats(_ context.Context, since *time.Time) (*domain.OverviewStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &domain.OverviewStats{}
	var durationSum, durationCount int64

	for _, session := range s.sessionsByID {
		if !inPeriod(session, since) {
			continue
		}
		stats.TotalSessions++
		if session.BlockedMobile {
			stats.BlockedMobile++
		}
		if session.IsMobile {
			stats.MobileSessions++
		}
		if session.IsDesktop {
			stats.DesktopSessions++
		}
		if session.AboutMeViewed {
			stats.AboutMeViews++
		}
		if session.DurationSeconds != nil {
			durationSum += int64(*session.DurationSeconds)
			durationCount++
		}
		if stats.LastSessionAt == nil || session.StartedAt.After(*stats.LastSessionAt) {
			started := session.StartedAt
			stats.LastSessionAt = &started
		}
	}

	stats.UniqueSessions = stats.TotalSessions
	if durationCount > 0 {
		stats.AvgDuration = int64(math.Round(float64(durationSum) / float64(durationCount)))
	}
	return stats, nil
}

func (s *MemStorage) CountPageViews(_ context.Context, since *time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, view := range s.pageViews {
		session, ok := s.sessionsByID[view.SessionID]
		if ok && inPeriod(session, since) {
			count++
		}
	}
	return count, nil
}

func (s *MemStorage) GetTopCountries(_ context.Context, since *time.Time, limit int) ([]domain.CountryStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type key struct{ country, code string }
	counts := make(map[key]int64)
	for _, session := range s.sessionsByID {
		if !inPeriod(session, since) || session.Country == nil {
			continue
		}
		k := key{country: *session.Country}
		if session.CountryCode != nil {
			k.code = *session.CountryCode
		}
		counts[k]++
	}

	results := make([]domain.CountryStat, 0, len(counts))
	for k, count := range counts {
		results = append(results, domain.CountryStat{Country: k.country, CountryCode: k.code, Count: count})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Count != results[j].Count {
			return results[i].Count > results[j].Count
		}
		return results[i].Country < results[j].Country
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *MemStorage) GetBrowserStats(_ context.Context, since *time.Time) ([]domain.BrowserStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int64)
	for _, session := range s.sessionsByID {
		if inPeriod(session, since) {
			counts[session.Browser]++
		}
	}

	results := make([]domain.BrowserStat, 0, len(counts))
	for browser, count := range counts {
		results = append(results, domain.BrowserStat{Browser: browser, Count: count})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Count != results[j].Count {
			return results[i].Count > results[j].Count
		}
		return results[i].Browser < results[j].Browser
	})
	return results, nil
}

func (s *MemStorage) GetOSStats(_ context.Context, since *time.Time) ([]domain.OSStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int64)
	for _, session := range s.sessionsByID {
		if inPeriod(session, since) {
			counts[session.OS]++
		}
	}

	results := make([]domain.OSStat, 0, len(counts))
	for os, count := range counts {
		results = append(results, domain.OSStat{OS: os, Count: count})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Count != results[j].Count {
			return results[i].Count > results[j].Count
		}
		return results[i].OS < results[j].OS
	})
	return results, nil
}

func (s *MemStorage) GetPerformanceStats(_ context.Context, since *time.Time) (*domain.PerformanceStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Each field averages independently over its non-null values.
	var (
		pageLoad, canvasInit, firstPhoto, photoLoad, photosLoaded      float64
		pageLoadN, canvasInitN, firstPhotoN, photoLoadN, photosLoadedN int64
	)

	for _, metrics := range s.performance {
		session, ok := s.sessionsByID[metrics.SessionID]
		if !ok || !inPeriod(session, since) {
			continue
		}
		if metrics.PageLoadTime != nil {
			pageLoad += *metrics.PageLoadTime
			pageLoadN++
		}
		if metrics.CanvasInitTime != nil {
			canvasInit += *metrics.CanvasInitTime
			canvasInitN++
		}
		if metrics.FirstPhotoLoad != nil {
			firstPhoto += *metrics.FirstPhotoLoad
			firstPhotoN++
		}
		if metrics.AvgPhotoLoadTime != nil {
			photoLoad += *metrics.AvgPhotoLoadTime
			photoLoadN++
		}
		if metrics.TotalPhotosLoaded != nil {
			photosLoaded += float64(*metrics.TotalPhotosLoaded)
			photosLoadedN++
		}
	}

	stats := &domain.PerformanceStats{}
	if pageLoadN > 0 {
		avg := pageLoad / float64(pageLoadN)
		stats.AvgPageLoad = &avg
	}
	if canvasInitN > 0 {
		avg := canvasInit / float64(canvasInitN)
		stats.AvgCanvasInit = &avg
	}
	if firstPhotoN > 0 {
		avg := firstPhoto / float64(firstPhotoN)
		stats.AvgFirstPhoto = &avg
	}
	if photoLoadN > 0 {
		avg := photoLoad / float64(photoLoadN)
		stats.AvgPhotoLoad = &avg
	}
	if photosLoadedN > 0 {
		avg := photosLoaded / float64(photosLoadedN)
		stats.AvgPhotosLoaded = &avg
	}
	return stats, nil
}

func (s *MemStorage) GetTopEvents(_ context.Context, since *time.Time, limit int) ([]domain.EventStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// A null category and an empty-string category group separately, same
	// as GROUP BY over a nullable column.
	type key struct {
		eventType   string
		category    string
		hasCategory bool
	}
	counts := make(map[key]int64)
	categories := make(map[key]*string)
	for _, event := range s.events {
		session, ok := s.sessionsByID[event.SessionID]
		if !ok || !inPeriod(session, since) {
			continue
		}
		k := key{eventType: event.EventType}
		if event.EventCategory != nil {
			k.category = *event.EventCategory
			k.hasCategory = true
		}
		counts[k]++
		categories[k] = event.EventCategory
	}

	results := make([]domain.EventStat, 0, len(counts))
	for k, count := range counts {
		results = append(results, domain.EventStat{
			EventType:     k.eventType,
			EventCategory: categories[k],
			Count:         count,
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Count != results[j].Count {
			return results[i].Count > results[j].Count
		}
		return results[i].EventType < results[j].EventType
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *MemStorage) GetDailySessions(_ context.Context, since time.Time) ([]domain.DailyStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type day struct {
		sessions int64
		tokens   map[string]struct{}
	}
	days := make(map[string]*day)
	for _, session := range s.sessionsByID {
		if session.StartedAt.Before(since) {
			continue
		}
		date := session.StartedAt.Format("2006-01-02")
		d, ok := days[date]
		if !ok {
			d = &day{tokens: make(map[string]struct{})}
			days[date] = d
		}
		d.sessions++
		d.tokens[session.SessionToken] = struct{}{}
	}

	results := make([]domain.DailyStat, 0, len(days))
	for date, d := range days {
		results = append(results, domain.DailyStat{
			Date:           date,
			Sessions:       d.sessions,
			UniqueVisitors: int64(len(d.tokens)),
		})
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Date < results[j].Date
	})
	return results, nil
}

// --- Retention ---

func (s *MemStorage) ClearAnalytics(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.performance = make(map[int64]*domain.PerformanceMetrics)
	s.pageViews = nil
	s.events = nil
	s.sessionsByToken = make(map[string]*domain.Session)
	s.sessionsByID = make(map[int64]*domain.Session)
	return nil
}

// --- User Methods ---

func (s *MemStorage) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.usersByEmail[email]
	if !ok || !user.IsActive {
		return nil, repository.ErrUserNotFound
	}

	copied := *user
	return &copied, nil
}

func (s *MemStorage) CreateUser(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.userCounter++
	user.ID = s.userCounter
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}

	stored := *user
	s.usersByEmail[stored.Email] = &stored
	return nil
}

func (s *MemStorage) UpdateLastLogin(_ context.Context, userID int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.usersByEmail {
		if user.ID == userID {
			lastLogin := at
			user.LastLoginAt = &lastLogin
			return nil
		}
	}
	return repository.ErrUserNotFound
}
