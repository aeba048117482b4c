package postgres

import (
	"Aperture-Backend/internal/domain"
	"Aperture-Backend/internal/repository"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostgresStorage implements the Storage interface for PostgreSQL.
type PostgresStorage struct {
	db  *gorm.DB
	log *zap.Logger
}

// New creates a new PostgreSQL storage instance.
func New(db *gorm.DB, log *zap.Logger) *PostgresStorage {
	return &PostgresStorage{
		db:  db,
		log: log,
	}
}

// --- Session Methods ---

// FindSessionByToken resolves a client session token to its session row.
func (s *PostgresStorage) FindSessionByToken(ctx context.Context, token string) (*domain.Session, error) {
	var session domain.Session

	err := s.db.WithContext(ctx).Where("session_token = ?", token).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrSessionNotFound
	}
	if err != nil {
		s.log.Error("failed to find session by token", zap.String("session_token", token), zap.Error(err))
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	return &session, nil
}

// CreateSession inserts a new session row. A conflicting token means a
// concurrent first init won the insert; the caller re-reads the winner
// instead of failing.
func (s *PostgresStorage) CreateSession(ctx context.Context, session *domain.Session) error {
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_token"}},
		DoNothing: true,
	}).Create(session)
	if result.Error != nil {
		s.log.Error("failed to create session", zap.String("session_token", session.SessionToken), zap.Error(result.Error))
		return fmt.Errorf("failed to create session: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrSessionExists
	}

	s.log.Info("created session",
		zap.Int64("session_id", session.ID),
		zap.String("device_type", session.DeviceType),
		zap.String("browser", session.Browser))
	return nil
}

// TouchSession updates the last-activity timestamp and, when provided,
// merges the blocked-mobile flag. A nil blockedMobile keeps the stored value.
func (s *PostgresStorage) TouchSession(ctx context.Context, sessionID int64, blockedMobile *bool) error {
	updates := map[string]interface{}{
		"last_activity_at": time.Now(),
	}
	if blockedMobile != nil {
		updates["blocked_mobile"] = *blockedMobile
	}

	err := s.db.WithContext(ctx).Model(&domain.Session{}).
		Where("id = ?", sessionID).
		Updates(updates).Error
	if err != nil {
		s.log.Error("failed to touch session", zap.Int64("session_id", sessionID), zap.Error(err))
		return fmt.Errorf("failed to touch session: %w", err)
	}

	return nil
}

// EndSession sets the end timestamp and computed duration, but only for a
// session that has not already ended. Re-ending is a no-op so the first
// call's duration is never overwritten.
func (s *PostgresStorage) EndSession(ctx context.Context, token string, endedAt time.Time) error {
	err := s.db.WithContext(ctx).Model(&domain.Session{}).
		Where("session_token = ? AND ended_at IS NULL", token).
		Updates(map[string]interface{}{
			"ended_at":         endedAt,
			"duration_seconds": gorm.Expr("EXTRACT(EPOCH FROM (?::timestamptz - started_at))::int", endedAt),
		}).Error
	if err != nil {
		s.log.Error("failed to end session", zap.String("session_token", token), zap.Error(err))
		return fmt.Errorf("failed to end session: %w", err)
	}

	return nil
}

// MarkAboutMeViewed flips the session's about-me-viewed flag to true.
func (s *PostgresStorage) MarkAboutMeViewed(ctx context.Context, sessionID int64) error {
	err := s.db.WithContext(ctx).Model(&domain.Session{}).
		Where("id = ?", sessionID).
		Update("about_me_viewed", true).Error
	if err != nil {
		s.log.Error("failed to mark about-me viewed", zap.Int64("session_id", sessionID), zap.Error(err))
		return fmt.Errorf("failed to mark about-me viewed: %w", err)
	}

	return nil
}

// --- Recorder Methods ---

// CreateEvent appends one event row.
func (s *PostgresStorage) CreateEvent(ctx context.Context, event *domain.Event) error {
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		s.log.Error("failed to create event",
			zap.Int64("session_id", event.SessionID),
			zap.String("event_type", event.EventType),
			zap.Error(err))
		return fmt.Errorf("failed to create event: %w", err)
	}

	return nil
}

// CreatePageView appends one pageview row.
func (s *PostgresStorage) CreatePageView(ctx context.Context, view *domain.PageView) error {
	if err := s.db.WithContext(ctx).Create(view).Error; err != nil {
		s.log.Error("failed to create page view",
			zap.Int64("session_id", view.SessionID),
			zap.String("page_path", view.PagePath),
			zap.Error(err))
		return fmt.Errorf("failed to create page view: %w", err)
	}

	return nil
}

// UpsertPerformance inserts or updates the single performance row for a
// session. The conflict assignments coalesce column by column, so a partial
// report never nulls out fields an earlier report already filled. The whole
// merge is one statement, leaving the lost-update window to the database.
func (s *PostgresStorage) UpsertPerformance(ctx context.Context, metrics *domain.PerformanceMetrics) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"page_load_time":            gorm.Expr("COALESCE(excluded.page_load_time, performance_metrics.page_load_time)"),
			"canvas_init_time":          gorm.Expr("COALESCE(excluded.canvas_init_time, performance_metrics.canvas_init_time)"),
			"first_photo_load_time":     gorm.Expr("COALESCE(excluded.first_photo_load_time, performance_metrics.first_photo_load_time)"),
			"avg_photo_load_time":       gorm.Expr("COALESCE(excluded.avg_photo_load_time, performance_metrics.avg_photo_load_time)"),
			"total_photos_loaded":       gorm.Expr("COALESCE(excluded.total_photos_loaded, performance_metrics.total_photos_loaded)"),
			"connection_type":           gorm.Expr("COALESCE(excluded.connection_type, performance_metrics.connection_type)"),
			"connection_effective_type": gorm.Expr("COALESCE(excluded.connection_effective_type, performance_metrics.connection_effective_type)"),
			"updated_at":                time.Now(),
		}),
	}).Create(metrics).Error
	if err != nil {
		s.log.Error("failed to upsert performance metrics",
			zap.Int64("session_id", metrics.SessionID),
			zap.Error(err))
		return fmt.Errorf("failed to upsert performance metrics: %w", err)
	}

	return nil
}

// --- Retention ---

// ClearAnalytics deletes every analytics row, children before parent so
// foreign keys are never violated. The whole sequence runs in one
// transaction; a failure leaves all four tables untouched.
func (s *PostgresStorage) ClearAnalytics(ctx context.Context) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, table := range []string{"performance_metrics", "page_views", "events", "sessions"} {
			if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}
		return nil
	})
	if err != nil {
		s.log.Error("failed to clear analytics data", zap.Error(err))
		return fmt.Errorf("failed to clear analytics: %w", err)
	}

	s.log.Info("cleared all analytics data")
	return nil
}

// --- User Methods ---

// GetUserByEmail looks up an active user by email.
func (s *PostgresStorage) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User

	err := s.db.WithContext(ctx).Where("email = ? AND is_active = ?", email, true).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrUserNotFound
	}
	if err != nil {
		s.log.Error("failed to get user by email", zap.String("email", email), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// CreateUser inserts a new admin user.
func (s *PostgresStorage) CreateUser(ctx context.Context, user *domain.User) error {
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		s.log.Error("failed to create user", zap.String("email", user.Email), zap.Error(err))
		return fmt.Errorf("failed to create user: %w", err)
	}

	s.log.Info("created user", zap.Int64("user_id", user.ID), zap.String("email", user.Email))
	return nil
}

// UpdateLastLogin records a successful login time.
func (s *PostgresStorage) UpdateLastLogin(ctx context.Context, userID int64, at time.Time) error {
	err := s.db.WithContext(ctx).Model(&domain.User{}).
		Where("id = ?", userID).
		Update("last_login_at", at).Error
	if err != nil {
		s.log.Error("failed to update last login", zap.Int64("user_id", userID), zap.Error(err))
		return fmt.Errorf("failed to update last login: %w", err)
	}

	return nil
}
