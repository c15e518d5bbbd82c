package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/packstation/station-server-go/internal/errors"
	"github.com/packstation/station-server-go/internal/gate"
	"github.com/packstation/station-server-go/internal/model"
	"github.com/packstation/station-server-go/internal/service"
)

// Coordinator is the slice of the session-switch coordinator the intake
// endpoints drive.
type Coordinator interface {
	OnIdentityPresented(ctx context.Context, tagID string) error
	OnManualLogout(ctx context.Context, sessionID string) error
	OnManualLogin(ctx context.Context, identityID string) error
	Current() (*model.Session, *model.Identity)
}

// ScanPipeline is the admit→decode→record pipeline for raw scans.
type ScanPipeline interface {
	OnRawScan(ctx context.Context, sessionID, payload string) (*service.ScanResult, error)
}

type StationHandler struct {
	coordinator Coordinator
	pipeline    ScanPipeline
}

func NewStationHandler(coord Coordinator, pipeline ScanPipeline) *StationHandler {
	return &StationHandler{
		coordinator: coord,
		pipeline:    pipeline,
	}
}

func (h *StationHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/tag", h.TagPresented)
	r.Post("/scan", h.RawScan)
	r.Post("/logout", h.ManualLogout)
	r.Post("/login", h.ManualLogin)
	r.Get("/current", h.CurrentSession)

	return r
}

type tagRequest struct {
	TagID string `json:"tagId"`
}

// POST /station/tag
func (h *StationHandler) TagPresented(w http.ResponseWriter, r *http.Request) {
	var req tagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TagID == "" {
		writeError(w, apperrors.MissingRequired("tagId"))
		return
	}

	if err := h.coordinator.OnIdentityPresented(r.Context(), req.TagID); err != nil {
		writeError(w, err)
		return
	}

	session, identity := h.coordinator.Current()
	writeJSON(w, http.StatusOK, map[string]any{
		"session":  session,
		"identity": identity,
	})
}

type scanRequest struct {
	SessionID string `json:"sessionId"`
	Payload   string `json:"payload"`
}

type scanResponse struct {
	*service.ScanResult
	SeenAgoMS int64 `json:"seenAgoMs,omitempty"`
}

// POST /station/scan
func (h *StationHandler) RawScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("invalid request body"))
		return
	}
	if req.SessionID == "" {
		writeError(w, apperrors.MissingRequired("sessionId"))
		return
	}

	result, err := h.pipeline.OnRawScan(r.Context(), req.SessionID, req.Payload)
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusOK
	switch result.Decision.Verdict {
	case gate.VerdictDuplicate:
		status = http.StatusConflict
	case gate.VerdictRateLimited:
		status = http.StatusTooManyRequests
	}

	writeJSON(w, status, scanResponse{
		ScanResult: result,
		SeenAgoMS:  result.Decision.SeenAgo.Milliseconds(),
	})
}

type logoutRequest struct {
	SessionID string `json:"sessionId"`
}

// POST /station/logout
func (h *StationHandler) ManualLogout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		writeError(w, apperrors.MissingRequired("sessionId"))
		return
	}

	if err := h.coordinator.OnManualLogout(r.Context(), req.SessionID); err != nil {
		log.Error().Err(err).Str("sessionId", req.SessionID).Msg("manual logout failed")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type loginRequest struct {
	IdentityID string `json:"identityId"`
}

// POST /station/login
func (h *StationHandler) ManualLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IdentityID == "" {
		writeError(w, apperrors.MissingRequired("identityId"))
		return
	}

	if err := h.coordinator.OnManualLogin(r.Context(), req.IdentityID); err != nil {
		writeError(w, err)
		return
	}

	session, identity := h.coordinator.Current()
	writeJSON(w, http.StatusOK, map[string]any{
		"session":  session,
		"identity": identity,
	})
}

// GET /station/current
func (h *StationHandler) CurrentSession(w http.ResponseWriter, r *http.Request) {
	session, identity := h.coordinator.Current()
	if session == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"active":    false,
			"timestamp": time.Now().UnixMilli(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"active":   true,
		"session":  session,
		"identity": identity,
	})
}
