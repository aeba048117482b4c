package http

import (
	"Aperture-Backend/internal/repository"
	"Aperture-Backend/internal/service"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"
)

// AnalyticsHandler serves the visitor-facing recorder endpoints and the
// admin-facing stats/clear endpoints.
type AnalyticsHandler struct {
	analytics *service.AnalyticsService
	stats     *service.StatsService
	log       *zap.Logger
}

// NewAnalyticsHandler creates the analytics handler.
func NewAnalyticsHandler(analytics *service.AnalyticsService, stats *service.StatsService, log *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		analytics: analytics,
		stats:     stats,
		log:       log,
	}
}

// InitSessionRequest is the session init/update request body. SessionID is
// the client-generated token; the client keeps presenting the same one for
// the lifetime of the browsing session.
type InitSessionRequest struct {
	SessionID     string  `json:"sessionId"`
	ScreenWidth   *int    `json:"screenWidth,omitempty"`
	ScreenHeight  *int    `json:"screenHeight,omitempty"`
	Referrer      *string `json:"referrer,omitempty"`
	UtmSource     *string `json:"utmSource,omitempty"`
	UtmMedium     *string `json:"utmMedium,omitempty"`
	UtmCampaign   *string `json:"utmCampaign,omitempty"`
	BlockedMobile *bool   `json:"blockedMobile,omitempty"`
}

// EndSessionRequest is the session termination request body.
type EndSessionRequest struct {
	SessionID string `json:"sessionId"`
}

// RecordEventRequest is the event recorder request body. Metadata is an
// opaque document stored as-is.
type RecordEventRequest struct {
	SessionID     string                 `json:"sessionId"`
	EventType     string                 `json:"eventType"`
	EventCategory *string                `json:"eventCategory,omitempty"`
	EventLabel    *string                `json:"eventLabel,omitempty"`
	EventValue    *float64               `json:"eventValue,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// RecordPageViewRequest is the pageview recorder request body.
type RecordPageViewRequest struct {
	SessionID    string  `json:"sessionId"`
	PagePath     string  `json:"pagePath"`
	PageTitle    *string `json:"pageTitle,omitempty"`
	ViewDuration *int    `json:"viewDuration,omitempty"`
}

// RecordPerformanceRequest is the performance recorder request body. Every
// metric is optional; clients report what they have measured so far.
type RecordPerformanceRequest struct {
	SessionID               string   `json:"sessionId"`
	PageLoadTime            *float64 `json:"pageLoadTime,omitempty"`
	CanvasInitTime          *float64 `json:"canvasInitTime,omitempty"`
	FirstPhotoLoadTime      *float64 `json:"firstPhotoLoadTime,omitempty"`
	AvgPhotoLoadTime        *float64 `json:"avgPhotoLoadTime,omitempty"`
	TotalPhotosLoaded       *int     `json:"totalPhotosLoaded,omitempty"`
	ConnectionType          *string  `json:"connectionType,omitempty"`
	ConnectionEffectiveType *string  `json:"connectionEffectiveType,omitempty"`
}

// HandleSession dispatches the shared session endpoint: POST initializes or
// updates, PATCH ends.
func (h *AnalyticsHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.initSession(w, r)
	case http.MethodPatch:
		h.endSession(w, r)
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *AnalyticsHandler) initSession(w http.ResponseWriter, r *http.Request) {
	var req InitSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("invalid session init request", zap.Error(err))
		h.writeError(w, "Invalid request format", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		h.writeError(w, "sessionId is required", http.StatusBadRequest)
		return
	}

	result, err := h.analytics.InitializeSession(r.Context(), service.SessionInput{
		Token:         req.SessionID,
		ScreenWidth:   req.ScreenWidth,
		ScreenHeight:  req.ScreenHeight,
		Referrer:      req.Referrer,
		UtmSource:     req.UtmSource,
		UtmMedium:     req.UtmMedium,
		UtmCampaign:   req.UtmCampaign,
		BlockedMobile: req.BlockedMobile,
		UserAgent:     r.UserAgent(),
		ClientIP:      clientIP(r),
	})
	if err != nil {
		h.log.Error("failed to initialize session", zap.String("session_token", req.SessionID), zap.Error(err))
		h.writeError(w, "Failed to initialize session", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"success":   true,
		"sessionId": req.SessionID,
		"action":    result.Action,
	}
	if result.Action == service.ActionCreated {
		response["deviceInfo"] = result.Device
		response["geoData"] = result.Geo
	}
	h.writeJSON(w, response, http.StatusOK)
}

func (h *AnalyticsHandler) endSession(w http.ResponseWriter, r *http.Request) {
	var req EndSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("invalid session end request", zap.Error(err))
		h.writeError(w, "Invalid request format", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		h.writeError(w, "sessionId is required", http.StatusBadRequest)
		return
	}

	// Best-effort beacon fired during page teardown: ending an unknown or
	// already-ended session succeeds quietly.
	if err := h.analytics.EndSession(r.Context(), req.SessionID); err != nil {
		h.log.Error("failed to end session", zap.String("session_token", req.SessionID), zap.Error(err))
		h.writeError(w, "Failed to end session", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, map[string]interface{}{"success": true}, http.StatusOK)
}

// RecordEvent appends one interaction event to an existing session.
func (h *AnalyticsHandler) RecordEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RecordEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("invalid event request", zap.Error(err))
		h.writeError(w, "Invalid request format", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" || req.EventType == "" {
		h.writeError(w, "sessionId and eventType are required", http.StatusBadRequest)
		return
	}

	err := h.analytics.RecordEvent(r.Context(), req.SessionID, service.EventInput{
		EventType:     req.EventType,
		EventCategory: req.EventCategory,
		EventLabel:    req.EventLabel,
		EventValue:    req.EventValue,
		Metadata:      req.Metadata,
	})
	if err != nil {
		h.handleRecorderError(w, "event", req.SessionID, err)
		return
	}

	h.writeJSON(w, map[string]interface{}{"success": true}, http.StatusOK)
}

// RecordPageView appends one page view to an existing session.
func (h *AnalyticsHandler) RecordPageView(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RecordPageViewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("invalid pageview request", zap.Error(err))
		h.writeError(w, "Invalid request format", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" || req.PagePath == "" {
		h.writeError(w, "sessionId and pagePath are required", http.StatusBadRequest)
		return
	}

	err := h.analytics.RecordPageView(r.Context(), req.SessionID, service.PageViewInput{
		PagePath:     req.PagePath,
		PageTitle:    req.PageTitle,
		ViewDuration: req.ViewDuration,
	})
	if err != nil {
		h.handleRecorderError(w, "pageview", req.SessionID, err)
		return
	}

	h.writeJSON(w, map[string]interface{}{"success": true}, http.StatusOK)
}

// RecordPerformance merges a performance report into the session's metrics row.
func (h *AnalyticsHandler) RecordPerformance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RecordPerformanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("invalid performance request", zap.Error(err))
		h.writeError(w, "Invalid request format", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		h.writeError(w, "sessionId is required", http.StatusBadRequest)
		return
	}

	err := h.analytics.RecordPerformance(r.Context(), req.SessionID, service.PerformanceInput{
		PageLoadTime:            req.PageLoadTime,
		CanvasInitTime:          req.CanvasInitTime,
		FirstPhotoLoadTime:      req.FirstPhotoLoadTime,
		AvgPhotoLoadTime:        req.AvgPhotoLoadTime,
		TotalPhotosLoaded:       req.TotalPhotosLoaded,
		ConnectionType:          req.ConnectionType,
		ConnectionEffectiveType: req.ConnectionEffectiveType,
	})
	if err != nil {
		h.handleRecorderError(w, "performance", req.SessionID, err)
		return
	}

	h.writeJSON(w, map[string]interface{}{"success": true}, http.StatusOK)
}

// GetStats returns the aggregated dashboard payload. Reached only through
// the auth middleware.
func (h *AnalyticsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	period := r.URL.Query().Get("period")
	if period == "" {
		period = service.Period7Days
	}

	payload, err := h.stats.GetStats(r.Context(), period)
	if err != nil {
		if errors.Is(err, service.ErrInvalidPeriod) {
			h.writeError(w, "Invalid period. Use one of: 7days, 30days, 90days, all", http.StatusBadRequest)
			return
		}
		h.log.Error("failed to get stats", zap.String("period", period), zap.Error(err))
		h.writeError(w, "Failed to retrieve statistics", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, map[string]interface{}{
		"success": true,
		"period":  period,
		"stats":   payload,
	}, http.StatusOK)
}

// ClearAnalytics wipes all analytics data. Reached only through the auth
// middleware.
func (h *AnalyticsHandler) ClearAnalytics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.analytics.ClearAnalytics(r.Context()); err != nil {
		h.log.Error("failed to clear analytics", zap.Error(err))
		h.writeError(w, "Failed to clear analytics data", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, map[string]interface{}{
		"success": true,
		"message": "All analytics data cleared",
	}, http.StatusOK)
}

// handleRecorderError maps recorder failures: an unknown session is the
// client's error, everything else is ours.
func (h *AnalyticsHandler) handleRecorderError(w http.ResponseWriter, kind, token string, err error) {
	if errors.Is(err, repository.ErrSessionNotFound) {
		h.log.Debug("recorder call for unknown session",
			zap.String("kind", kind),
			zap.String("session_token", token))
		h.writeError(w, "Session not found", http.StatusNotFound)
		return
	}
	h.log.Error("recorder call failed",
		zap.String("kind", kind),
		zap.String("session_token", token),
		zap.Error(err))
	h.writeError(w, "Failed to record "+kind, http.StatusInternalServerError)
}

// Helper methods

func (h *AnalyticsHandler) writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func (h *AnalyticsHandler) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
