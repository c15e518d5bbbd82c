// Package service routes admitted scans through decode and persistence and
// pushes the outcome into the notification sink.
package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/packstation/station-server-go/internal/audit"
	"github.com/packstation/station-server-go/internal/decoder"
	apperrors "github.com/packstation/station-server-go/internal/errors"
	"github.com/packstation/station-server-go/internal/events"
	"github.com/packstation/station-server-go/internal/gate"
	"github.com/packstation/station-server-go/internal/model"
	"github.com/packstation/station-server-go/internal/repository"
)

// ScanResult is the host-visible outcome of one raw scan event.
type ScanResult struct {
	Decision  gate.Decision         `json:"decision"`
	Decoded   *model.DecodedPayload `json:"decoded,omitempty"`
	Record    *model.ScanRecord     `json:"record,omitempty"`
	Persisted bool                  `json:"persisted"`
}

// SessionSource exposes the coordinator's current session to the pipeline.
type SessionSource interface {
	Current() (*model.Session, *model.Identity)
}

type StationService struct {
	gate      *gate.Gate
	sessions  SessionSource
	scanRepo  repository.ScanRepository
	publisher events.Publisher

	now func() time.Time
}

func NewStationService(
	g *gate.Gate,
	sessions SessionSource,
	scanRepo repository.ScanRepository,
	publisher events.Publisher,
) *StationService {
	return &StationService{
		gate:      g,
		sessions:  sessions,
		scanRepo:  scanRepo,
		publisher: publisher,
		now:       time.Now,
	}
}

// OnRawScan admits, decodes, records and announces one scanned payload.
// A persistence failure after admission is reported as a SystemError
// notification but does not revoke the admission decision.
func (s *StationService) OnRawScan(ctx context.Context, sessionID, payload string) (*ScanResult, error) {
	if payload == "" {
		return nil, apperrors.MissingRequired("payload")
	}

	current, _ := s.sessions.Current()
	if current == nil || current.ID != sessionID {
		s.notify(ctx, events.TypeScanRejected, events.ScanRejected{
			SessionID: sessionID,
			Reason:    "no_active_session",
			Detail:    "scan does not belong to the current session",
		})
		return nil, apperrors.NoActiveSession()
	}

	decision := s.gate.Admit(ctx, sessionID, payload, s.now())
	if !decision.Admitted() {
		s.rejected(ctx, sessionID, payload, decision)
		return &ScanResult{Decision: decision}, nil
	}

	decoded := decoder.Decode(payload)
	result := &ScanResult{Decision: decision, Decoded: &decoded}

	record, err := s.scanRepo.Record(ctx, model.RecordScanParams{
		SessionID: sessionID,
		Payload:   payload,
		Decoded:   decoded,
	})
	if err != nil {
		// Admission stands; the failure is surfaced, not retried.
		log.Error().Err(err).Str("sessionId", sessionID).Msg("failed to record scan")
		s.notify(ctx, events.TypeSystemError, events.SystemError{Message: "failed to record scan"})
		return result, nil
	}

	result.Record = record
	result.Persisted = true

	log.Info().
		Str("sessionId", sessionID).
		Str("recordId", record.ID).
		Str("formatKind", string(decoded.FormatKind)).
		Msg("scan recorded")
	audit.Log(ctx, audit.Event{Type: audit.EventScanAdmitted, SessionID: sessionID})

	s.notify(ctx, events.TypeScanAdmitted, events.ScanAdmitted{
		SessionID: sessionID,
		RecordID:  record.ID,
		Decoded:   decoded,
	})

	return result, nil
}

func (s *StationService) rejected(ctx context.Context, sessionID, payload string, decision gate.Decision) {
	auditType := audit.EventScanDuplicate
	if decision.Verdict == gate.VerdictRateLimited {
		auditType = audit.EventScanRateLimited
	}
	audit.Log(ctx, audit.Event{
		Type:      auditType,
		SessionID: sessionID,
		Details:   map[string]interface{}{"detail": decision.Detail},
	})

	s.notify(ctx, events.TypeScanRejected, events.ScanRejected{
		SessionID: sessionID,
		Reason:    string(decision.Verdict),
		Detail:    decision.Detail,
	})
}

func (s *StationService) notify(ctx context.Context, t events.Type, payload any) {
	event, err := events.New(t, payload)
	if err != nil {
		log.Error().Err(err).Str("type", string(t)).Msg("failed to encode notification")
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Warn().Err(err).Str("type", string(t)).Msg("failed to publish notification")
	}
}
