package http

import (
	"Aperture-Backend/internal/auth"
	"Aperture-Backend/internal/repository"
	"Aperture-Backend/internal/service"
	"net/http"

	"go.uber.org/zap"
)

// Server wires the HTTP handlers and middleware together.
type Server struct {
	authHandlers     *auth.AuthHandlers
	analyticsHandler *AnalyticsHandler
	healthHandler    *HealthHandler
	authMiddleware   *auth.Middleware
	log              *zap.Logger
}

// NewServer creates the HTTP server facade.
func NewServer(
	storage repository.Storage,
	analytics *service.AnalyticsService,
	stats *service.StatsService,
	jwtService *auth.JWTService,
	passwordService *auth.PasswordService,
	log *zap.Logger,
) *Server {
	return &Server{
		authHandlers:     auth.NewAuthHandlers(storage, jwtService, passwordService, log),
		analyticsHandler: NewAnalyticsHandler(analytics, stats, log),
		healthHandler:    NewHealthHandler(storage, log),
		authMiddleware:   auth.NewMiddleware(jwtService, log),
		log:              log,
	}
}

// SetupRoutes registers all routes and returns the root handler.
func (s *Server) SetupRoutes() http.Handler {
	mux := http.NewServeMux()

	// Health checks (no auth)
	mux.HandleFunc("/health", s.healthHandler.Health)
	mux.HandleFunc("/ready", s.healthHandler.Ready)

	// Admin auth (no auth)
	mux.HandleFunc("/api/auth/login", s.withCORS(s.authHandlers.Login))

	// Visitor-facing recorders (no auth; failures here must never break the
	// browsing experience, the client treats them as fire-and-forget)
	mux.HandleFunc("/api/analytics/session", s.withCORS(s.analyticsHandler.HandleSession))
	mux.HandleFunc("/api/analytics/event", s.withCORS(s.analyticsHandler.RecordEvent))
	mux.HandleFunc("/api/analytics/pageview", s.withCORS(s.analyticsHandler.RecordPageView))
	mux.HandleFunc("/api/analytics/performance", s.withCORS(s.analyticsHandler.RecordPerformance))

	// Dashboard endpoints (auth required)
	mux.HandleFunc("/api/analytics/stats", s.withCORS(s.authMiddleware.RequireAuth(s.analyticsHandler.GetStats)))
	mux.HandleFunc("/api/analytics/clear", s.withCORS(s.authMiddleware.RequireAuth(s.analyticsHandler.ClearAnalytics)))

	return RequestLogger(s.log, mux)
}

// withCORS adds CORS headers to a handler.
func (s *Server) withCORS(handler http.HandlerFunc) http.HandlerFunc {
	return s.authMiddleware.CORS(handler)
}
