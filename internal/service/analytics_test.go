package service

import (
	"Aperture-Backend/internal/domain"
	"Aperture-Backend/internal/repository"
	"Aperture-Backend/pkg/geo"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockStorage is a testify mock of the Storage interface.
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) FindSessionByToken(ctx context.Context, token string) (*domain.Session, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *MockStorage) CreateSession(ctx context.Context, session *domain.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockStorage) TouchSession(ctx context.Context, sessionID int64, blockedMobile *bool) error {
	args := m.Called(ctx, sessionID, blockedMobile)
	return args.Error(0)
}

func (m *MockStorage) EndSession(ctx context.Context, token string, endedAt time.Time) error {
	args := m.Called(ctx, token, endedAt)
	return args.Error(0)
}

func (m *MockStorage) MarkAboutMeViewed(ctx context.Context, sessionID int64) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

func (m *MockStorage) CreateEvent(ctx context.Context, event *domain.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockStorage) CreatePageView(ctx context.Context, view *domain.PageView) error {
	args := m.Called(ctx, view)
	return args.Error(0)
}

func (m *MockStorage) UpsertPerformance(ctx context.Context, metrics *domain.PerformanceMetrics) error {
	args := m.Called(ctx, metrics)
	return args.Error(0)
}

func (m *MockStorage) GetOverviewStats(ctx context.Context, since *time.Time) (*domain.OverviewStats, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OverviewStats), args.Error(1)
}

func (m *MockStorage) CountPageViews(ctx context.Context, since *time.Time) (int64, error) {
	args := m.Called(ctx, since)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStorage) GetTopCountries(ctx context.Context, since *time.Time, limit int) ([]domain.CountryStat, error) {
	args := m.Called(ctx, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.CountryStat), args.Error(1)
}

func (m *MockStorage) GetBrowserStats(ctx context.Context, since *time.Time) ([]domain.BrowserStat, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.BrowserStat), args.Error(1)
}

func (m *MockStorage) GetOSStats(ctx context.Context, since *time.Time) ([]domain.OSStat, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.OSStat), args.Error(1)
}

func (m *MockStorage) GetPerformanceStats(ctx context.Context, since *time.Time) (*domain.PerformanceStats, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PerformanceStats), args.Error(1)
}

func (m *MockStorage) GetTopEvents(ctx context.Context, since *time.Time, limit int) ([]domain.EventStat, error) {
	args := m.Called(ctx, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.EventStat), args.Error(1)
}

func (m *MockStorage) GetDailySessions(ctx context.Context, since time.Time) ([]domain.DailyStat, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DailyStat), args.Error(1)
}

func (m *MockStorage) ClearAnalytics(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockStorage) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockStorage) CreateUser(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockStorage) UpdateLastLogin(ctx context.Context, userID int64, at time.Time) error {
	args := m.Called(ctx, userID, at)
	return args.Error(0)
}

// stubGeo returns a fixed location for every lookup.
type stubGeo struct {
	location *geo.Location
	err      error
}

func (s stubGeo) Lookup(_ context.Context, _ string) (*geo.Location, error) {
	return s.location, s.err
}

func TestInitializeSessionCreatesNewSession(t *testing.T) {
	storage := new(MockStorage)
	provider := stubGeo{location: &geo.Location{Country: "Germany", CountryCode: "DE", City: "Berlin"}}
	svc := NewAnalyticsService(storage, provider, zap.NewNop())

	storage.On("FindSessionByToken", mock.Anything, "tok-new").
		Return(nil, repository.ErrSessionNotFound)
	storage.On("CreateSession", mock.Anything, mock.AnythingOfType("*domain.Session")).
		Run(func(args mock.Arguments) {
			session := args.Get(1).(*domain.Session)
			session.ID = 7
		}).
		Return(nil)

	width := 1920
	result, err := svc.InitializeSession(context.Background(), SessionInput{
		Token:       "tok-new",
		ScreenWidth: &width,
		UserAgent:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/120.0",
		ClientIP:    "203.0.113.7",
	})

	require.NoError(t, err)
	assert.Equal(t, int64(7), result.SessionID)
	assert.Equal(t, ActionCreated, result.Action)
	require.NotNil(t, result.Device)
	assert.Equal(t, "Chrome", result.Device.Browser)
	assert.Equal(t, "Windows", result.Device.OS)
	require.NotNil(t, result.Geo)
	assert.Equal(t, "Germany", result.Geo.Country)

	created := storage.Calls[1].Arguments.Get(1).(*domain.Session)
	assert.Equal(t, "tok-new", created.SessionToken)
	require.NotNil(t, created.Country)
	assert.Equal(t, "Germany", *created.Country)
	require.NotNil(t, created.IPAddress)
	assert.Equal(t, "203.0.113.7", *created.IPAddress)
	storage.AssertExpectations(t)
}

func TestInitializeSessionIdempotentOnRepeat(t *testing.T) {
	storage := new(MockStorage)
	svc := NewAnalyticsService(storage, geo.NoopProvider{}, zap.NewNop())

	blocked := true
	storage.On("FindSessionByToken", mock.Anything, "tok-seen").
		Return(&domain.Session{ID: 3, SessionToken: "tok-seen"}, nil)
	storage.On("TouchSession", mock.Anything, int64(3), &blocked).Return(nil)

	result, err := svc.InitializeSession(context.Background(), SessionInput{
		Token:         "tok-seen",
		BlockedMobile: &blocked,
	})

	require.NoError(t, err)
	assert.Equal(t, int64(3), result.SessionID)
	assert.Equal(t, ActionUpdated, result.Action)
	assert.Nil(t, result.Device)
	assert.Nil(t, result.Geo)
	storage.AssertNotCalled(t, "CreateSession", mock.Anything, mock.Anything)
	storage.AssertExpectations(t)
}

func TestInitializeSessionLostInsertRaceBecomesUpdate(t *testing.T) {
	storage := new(MockStorage)
	svc := NewAnalyticsService(storage, geo.NoopProvider{}, zap.NewNop())

	// The token is unseen at lookup time, but another request inserts it
	// before our create lands; the call must settle on the winner's row.
	storage.On("FindSessionByToken", mock.Anything, "tok-race").
		Return(nil, repository.ErrSessionNotFound).Once()
	storage.On("CreateSession", mock.Anything, mock.AnythingOfType("*domain.Session")).
		Return(repository.ErrSessionExists)
	storage.On("FindSessionByToken", mock.Anything, "tok-race").
		Return(&domain.Session{ID: 11, SessionToken: "tok-race"}, nil).Once()
	storage.On("TouchSession", mock.Anything, int64(11), (*bool)(nil)).Return(nil)

	result, err := svc.InitializeSession(context.Background(), SessionInput{Token: "tok-race"})

	require.NoError(t, err)
	assert.Equal(t, int64(11), result.SessionID)
	assert.Equal(t, ActionUpdated, result.Action)
	storage.AssertExpectations(t)
}

func TestInitializeSessionSurvivesGeoFailure(t *testing.T) {
	storage := new(MockStorage)
	provider := stubGeo{err: errors.New("provider timeout")}
	svc := NewAnalyticsService(storage, provider, zap.NewNop())

	storage.On("FindSessionByToken", mock.Anything, "tok-geo").
		Return(nil, repository.ErrSessionNotFound)
	storage.On("CreateSession", mock.Anything, mock.AnythingOfType("*domain.Session")).Return(nil)

	result, err := svc.InitializeSession(context.Background(), SessionInput{
		Token:    "tok-geo",
		ClientIP: "203.0.113.7",
	})

	require.NoError(t, err)
	assert.Equal(t, ActionCreated, result.Action)
	assert.Nil(t, result.Geo)

	created := storage.Calls[1].Arguments.Get(1).(*domain.Session)
	assert.Nil(t, created.Country)
	storage.AssertExpectations(t)
}

func TestInitializeSessionUnknownIPSkipsGeoLookup(t *testing.T) {
	storage := new(MockStorage)
	provider := stubGeo{location: &geo.Location{Country: "Nowhere"}}
	svc := NewAnalyticsService(storage, provider, zap.NewNop())

	storage.On("FindSessionByToken", mock.Anything, "tok-noip").
		Return(nil, repository.ErrSessionNotFound)
	storage.On("CreateSession", mock.Anything, mock.AnythingOfType("*domain.Session")).Return(nil)

	result, err := svc.InitializeSession(context.Background(), SessionInput{Token: "tok-noip"})

	require.NoError(t, err)
	assert.Nil(t, result.Geo)

	created := storage.Calls[1].Arguments.Get(1).(*domain.Session)
	require.NotNil(t, created.IPAddress)
	assert.Equal(t, geo.UnknownIP, *created.IPAddress)
	assert.Nil(t, created.Country)
	storage.AssertExpectations(t)
}

func TestEndSession(t *testing.T) {
	storage := new(MockStorage)
	svc := NewAnalyticsService(storage, geo.NoopProvider{}, zap.NewNop())

	storage.On("EndSession", mock.Anything, "tok-end", mock.AnythingOfType("time.Time")).Return(nil)

	err := svc.EndSession(context.Background(), "tok-end")
	require.NoError(t, err)
	storage.AssertExpectations(t)
}

func TestRecordEvent(t *testing.T) {
	storage := new(MockStorage)
	svc := NewAnalyticsService(storage, geo.NoopProvider{}, zap.NewNop())

	storage.On("FindSessionByToken", mock.Anything, "tok-ev").
		Return(&domain.Session{ID: 5, SessionToken: "tok-ev"}, nil)
	storage.On("CreateEvent", mock.Anything, mock.AnythingOfType("*domain.Event")).Return(nil)
	storage.On("TouchSession", mock.Anything, int64(5), (*bool)(nil)).Return(nil)

	category := "gallery"
	err := svc.RecordEvent(context.Background(), "tok-ev", EventInput{
		EventType:     "photo_click",
		EventCategory: &category,
		Metadata:      map[string]interface{}{"photo_id": 12},
	})

	require.NoError(t, err)
	created := storage.Calls[1].Arguments.Get(1).(*domain.Event)
	assert.Equal(t, int64(5), created.SessionID)
	assert.Equal(t, "photo_click", created.EventType)
	require.NotNil(t, created.Metadata)
	assert.JSONEq(t, `{"photo_id":12}`, *created.Metadata)
	storage.AssertNotCalled(t, "MarkAboutMeViewed", mock.Anything, mock.Anything)
	storage.AssertExpectations(t)
}

func TestRecordEventAboutMeFlipsFlag(t *testing.T) {
	storage := new(MockStorage)
	svc := NewAnalyticsService(storage, geo.NoopProvider{}, zap.NewNop())

	storage.On("FindSessionByToken", mock.Anything, "tok-about").
		Return(&domain.Session{ID: 8, SessionToken: "tok-about"}, nil)
	storage.On("CreateEvent", mock.Anything, mock.AnythingOfType("*domain.Event")).Return(nil)
	storage.On("MarkAboutMeViewed", mock.Anything, int64(8)).Return(nil)
	storage.On("TouchSession", mock.Anything, int64(8), (*bool)(nil)).Return(nil)

	err := svc.RecordEvent(context.Background(), "tok-about", EventInput{
		EventType: domain.EventTypeAboutMeOpened,
	})

	require.NoError(t, err)
	storage.AssertExpectations(t)
}

func TestRecordEventUnknownSession(t *testing.T) {
	storage := new(MockStorage)
	svc := NewAnalyticsService(storage, geo.NoopProvider{}, zap.NewNop())

	storage.On("FindSessionByToken", mock.Anything, "tok-missing").
		Return(nil, repository.ErrSessionNotFound)

	err := svc.RecordEvent(context.Background(), "tok-missing", EventInput{EventType: "photo_click"})
	assert.ErrorIs(t, err, repository.ErrSessionNotFound)
	storage.AssertNotCalled(t, "CreateEvent", mock.Anything, mock.Anything)
}

func TestRecordPageView(t *testing.T) {
	storage := new(MockStorage)
	svc := NewAnalyticsService(storage, geo.NoopProvider{}, zap.NewNop())

	storage.On("FindSessionByToken", mock.Anything, "tok-pv").
		Return(&domain.Session{ID: 4, SessionToken: "tok-pv"}, nil)
	storage.On("CreatePageView", mock.Anything, mock.AnythingOfType("*domain.PageView")).Return(nil)
	storage.On("TouchSession", mock.Anything, int64(4), (*bool)(nil)).Return(nil)

	title := "Gallery"
	err := svc.RecordPageView(context.Background(), "tok-pv", PageViewInput{
		PagePath:  "/gallery",
		PageTitle: &title,
	})

	require.NoError(t, err)
	created := storage.Calls[1].Arguments.Get(1).(*domain.PageView)
	assert.Equal(t, "/gallery", created.PagePath)
	storage.AssertExpectations(t)
}

func TestRecordPerformance(t *testing.T) {
	storage := new(MockStorage)
	svc := NewAnalyticsService(storage, geo.NoopProvider{}, zap.NewNop())

	storage.On("FindSessionByToken", mock.Anything, "tok-perf").
		Return(&domain.Session{ID: 6, SessionToken: "tok-perf"}, nil)
	storage.On("UpsertPerformance", mock.Anything, mock.AnythingOfType("*domain.PerformanceMetrics")).Return(nil)
	storage.On("TouchSession", mock.Anything, int64(6), (*bool)(nil)).Return(nil)

	pageLoad := 1234.5
	err := svc.RecordPerformance(context.Background(), "tok-perf", PerformanceInput{
		PageLoadTime: &pageLoad,
	})

	require.NoError(t, err)
	created := storage.Calls[1].Arguments.Get(1).(*domain.PerformanceMetrics)
	assert.Equal(t, int64(6), created.SessionID)
	require.NotNil(t, created.PageLoadTime)
	assert.Equal(t, 1234.5, *created.PageLoadTime)
	assert.Nil(t, created.CanvasInitTime)
	storage.AssertExpectations(t)
}

func TestClearAnalytics(t *testing.T) {
	storage := new(MockStorage)
	svc := NewAnalyticsService(storage, geo.NoopProvider{}, zap.NewNop())

	storage.On("ClearAnalytics", mock.Anything).Return(nil)

	require.NoError(t, svc.ClearAnalytics(context.Background()))
	storage.AssertExpectations(t)
}

func TestClearAnalyticsPropagatesError(t *testing.T) {
	storage := new(MockStorage)
	svc := NewAnalyticsService(storage, geo.NoopProvider{}, zap.NewNop())

	storage.On("ClearAnalytics", mock.Anything).Return(errors.New("db down"))

	err := svc.ClearAnalytics(context.Background())
	assert.Error(t, err)
}
