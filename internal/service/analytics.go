package service

import (
	"Aperture-Backend/internal/domain"
	"Aperture-Backend/internal/repository"
	"Aperture-Backend/pkg/geo"
	"Aperture-Backend/pkg/useragent"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	// ActionCreated is returned when session initialization inserted a new row.
	ActionCreated = "created"
	// ActionUpdated is returned when the token already had a session.
	ActionUpdated = "updated"
)

// AnalyticsService implements the session lifecycle and the three recorders.
// It is stateless; every call is an independent request-scoped operation and
// all concurrency control is delegated to the storage layer.
type AnalyticsService struct {
	storage repository.Storage
	geo     geo.Provider
	log     *zap.Logger
}

// NewAnalyticsService creates the analytics service.
func NewAnalyticsService(storage repository.Storage, geoProvider geo.Provider, log *zap.Logger) *AnalyticsService {
	return &AnalyticsService{
		storage: storage,
		geo:     geoProvider,
		log:     log,
	}
}

// SessionInput carries everything the client and transport layer supply for
// session initialization. Token is the client-generated idempotency key.
type SessionInput struct {
	Token         string
	ScreenWidth   *int
	ScreenHeight  *int
	Referrer      *string
	UtmSource     *string
	UtmMedium     *string
	UtmCampaign   *string
	BlockedMobile *bool
	UserAgent     string
	ClientIP      string
}

// SessionResult is the outcome of one initialization call. Device and Geo
// are only populated when a new session was created.
type SessionResult struct {
	SessionID int64
	Action    string
	Device    *useragent.DeviceInfo
	Geo       *geo.Location
}

// InitializeSession creates a session for an unseen token or touches the
// existing one. The call is idempotent on the token: a repeat never errors
// and never duplicates a row.
func (s *AnalyticsService) InitializeSession(ctx context.Context, in SessionInput) (*SessionResult, error) {
	existing, err := s.storage.FindSessionByToken(ctx, in.Token)
	if err == nil {
		return s.touchExisting(ctx, existing.ID, in.BlockedMobile)
	}
	if !errors.Is(err, repository.ErrSessionNotFound) {
		return nil, fmt.Errorf("failed to look up session: %w", err)
	}

	device := useragent.Detect(in.UserAgent)

	clientIP := in.ClientIP
	if clientIP == "" {
		clientIP = geo.UnknownIP
	}

	location := s.lookupGeo(ctx, in.Token, clientIP)

	now := time.Now()
	session := &domain.Session{
		SessionToken:   in.Token,
		DeviceType:     device.DeviceType,
		IsMobile:       device.IsMobile,
		IsTablet:       device.IsTablet,
		IsDesktop:      device.IsDesktop,
		Browser:        device.Browser,
		OS:             device.OS,
		ScreenWidth:    in.ScreenWidth,
		ScreenHeight:   in.ScreenHeight,
		IPAddress:      &clientIP,
		Referrer:       in.Referrer,
		UtmSource:      in.UtmSource,
		UtmMedium:      in.UtmMedium,
		UtmCampaign:    in.UtmCampaign,
		StartedAt:      now,
		LastActivityAt: now,
	}
	if in.UserAgent != "" {
		ua := in.UserAgent
		session.UserAgent = &ua
	}
	if in.BlockedMobile != nil {
		session.BlockedMobile = *in.BlockedMobile
	}
	if location != nil {
		session.Country = optional(location.Country)
		session.CountryCode = optional(location.CountryCode)
		session.City = optional(location.City)
		session.Region = optional(location.Region)
		session.Timezone = optional(location.Timezone)
	}

	if err := s.storage.CreateSession(ctx, session); err != nil {
		if errors.Is(err, repository.ErrSessionExists) {
			// Lost the insert race to a concurrent first init; the winner's
			// row is the session, so this call becomes an update.
			winner, findErr := s.storage.FindSessionByToken(ctx, in.Token)
			if findErr != nil {
				return nil, fmt.Errorf("failed to look up session: %w", findErr)
			}
			return s.touchExisting(ctx, winner.ID, in.BlockedMobile)
		}
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &SessionResult{
		SessionID: session.ID,
		Action:    ActionCreated,
		Device:    &device,
		Geo:       location,
	}, nil
}

// touchExisting is the repeat-initialization path: refresh activity and
// merge the blocked-mobile flag only when the client actually sent one.
func (s *AnalyticsService) touchExisting(ctx context.Context, sessionID int64, blockedMobile *bool) (*SessionResult, error) {
	if err := s.storage.TouchSession(ctx, sessionID, blockedMobile); err != nil {
		return nil, fmt.Errorf("failed to update session: %w", err)
	}
	return &SessionResult{SessionID: sessionID, Action: ActionUpdated}, nil
}

// lookupGeo resolves the client IP to a location. Any failure is swallowed:
// a slow or unavailable geo provider must never block session creation.
func (s *AnalyticsService) lookupGeo(ctx context.Context, token, clientIP string) *geo.Location {
	if clientIP == geo.UnknownIP {
		return nil
	}

	location, err := s.geo.Lookup(ctx, clientIP)
	if err != nil {
		s.log.Debug("geo lookup failed, storing session without location",
			zap.String("session_token", token),
			zap.Error(err))
		return nil
	}
	return location
}

// EndSession marks the session ended and records its duration. Ending an
// already-ended or unknown session is a no-op; an end-of-session beacon
// fired twice from a closing page must not rewrite the first duration.
func (s *AnalyticsService) EndSession(ctx context.Context, token string) error {
	if err := s.storage.EndSession(ctx, token, time.Now()); err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	return nil
}

// EventInput carries one interaction event.
type EventInput struct {
	EventType     string
	EventCategory *string
	EventLabel    *string
	EventValue    *float64
	Metadata      map[string]interface{}
}

// RecordEvent appends one event to an existing session. The session must
// already exist; recorders never self-initialize. The reserved about-me
// event type additionally flips the session flag the dashboard counts.
func (s *AnalyticsService) RecordEvent(ctx context.Context, token string, in EventInput) error {
	session, err := s.storage.FindSessionByToken(ctx, token)
	if err != nil {
		return err
	}

	event := &domain.Event{
		SessionID:     session.ID,
		EventType:     in.EventType,
		EventCategory: in.EventCategory,
		EventLabel:    in.EventLabel,
		EventValue:    in.EventValue,
	}
	if len(in.Metadata) > 0 {
		// Opaque payload: serialized as-is, never validated or interpreted.
		raw, err := json.Marshal(in.Metadata)
		if err != nil {
			return fmt.Errorf("failed to serialize event metadata: %w", err)
		}
		metadata := string(raw)
		event.Metadata = &metadata
	}

	if err := s.storage.CreateEvent(ctx, event); err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}

	if in.EventType == domain.EventTypeAboutMeOpened {
		if err := s.storage.MarkAboutMeViewed(ctx, session.ID); err != nil {
			return fmt.Errorf("failed to mark about-me viewed: %w", err)
		}
	}

	if err := s.storage.TouchSession(ctx, session.ID, nil); err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return nil
}

// PageViewInput carries one page view.
type PageViewInput struct {
	PagePath     string
	PageTitle    *string
	ViewDuration *int
}

// RecordPageView appends one pageview to an existing session. A duration
// reported later at page-exit arrives as a separate row by design.
func (s *AnalyticsService) RecordPageView(ctx context.Context, token string, in PageViewInput) error {
	session, err := s.storage.FindSessionByToken(ctx, token)
	if err != nil {
		return err
	}

	view := &domain.PageView{
		SessionID:    session.ID,
		PagePath:     in.PagePath,
		PageTitle:    in.PageTitle,
		ViewDuration: in.ViewDuration,
	}
	if err := s.storage.CreatePageView(ctx, view); err != nil {
		return fmt.Errorf("failed to record page view: %w", err)
	}

	if err := s.storage.TouchSession(ctx, session.ID, nil); err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return nil
}

// PerformanceInput carries one (possibly partial) performance report.
type PerformanceInput struct {
	PageLoadTime            *float64
	CanvasInitTime          *float64
	FirstPhotoLoadTime      *float64
	AvgPhotoLoadTime        *float64
	TotalPhotosLoaded       *int
	ConnectionType          *string
	ConnectionEffectiveType *string
}

// RecordPerformance merges a performance report into the session's single
// metrics row via the storage layer's coalescing upsert.
func (s *AnalyticsService) RecordPerformance(ctx context.Context, token string, in PerformanceInput) error {
	session, err := s.storage.FindSessionByToken(ctx, token)
	if err != nil {
		return err
	}

	metrics := &domain.PerformanceMetrics{
		SessionID:               session.ID,
		PageLoadTime:            in.PageLoadTime,
		CanvasInitTime:          in.CanvasInitTime,
		FirstPhotoLoad:          in.FirstPhotoLoadTime,
		AvgPhotoLoadTime:        in.AvgPhotoLoadTime,
		TotalPhotosLoaded:       in.TotalPhotosLoaded,
		ConnectionType:          in.ConnectionType,
		ConnectionEffectiveType: in.ConnectionEffectiveType,
	}
	if err := s.storage.UpsertPerformance(ctx, metrics); err != nil {
		return fmt.Errorf("failed to record performance metrics: %w", err)
	}

	if err := s.storage.TouchSession(ctx, session.ID, nil); err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return nil
}

// ClearAnalytics wipes all analytics data. Destructive and admin-only; the
// handler layer enforces authentication before this is ever reached.
func (s *AnalyticsService) ClearAnalytics(ctx context.Context) error {
	if err := s.storage.ClearAnalytics(ctx); err != nil {
		return fmt.Errorf("failed to clear analytics: %w", err)
	}
	s.log.Info("analytics data cleared by administrator")
	return nil
}

// optional converts a possibly empty string to a nullable column value.
func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
