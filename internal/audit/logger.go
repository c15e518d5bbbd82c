package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type EventType string

const (
	EventLogin             EventType = "login"
	EventLogout            EventType = "logout"
	EventUnknownTag        EventType = "unknown_tag"
	EventScanAdmitted      EventType = "scan_admitted"
	EventScanDuplicate     EventType = "scan_duplicate"
	EventScanRateLimited   EventType = "scan_rate_limited"
	EventStaleSessionEnded EventType = "stale_session_ended"
)

type Event struct {
	Type       EventType
	IdentityID string
	SessionID  string
	Details    map[string]interface{}
}

func Log(ctx context.Context, event Event) {
	logger := log.With().
		Str("audit", "station").
		Str("event_type", string(event.Type)).
		Time("timestamp", time.Now()).
		Logger()

	if event.IdentityID != "" {
		logger = logger.With().Str("identity_id", event.IdentityID).Logger()
	}
	if event.SessionID != "" {
		logger = logger.With().Str("session_id", event.SessionID).Logger()
	}

	logEvent := logger.Info()
	for k, v := range event.Details {
		logEvent = addField(logEvent, k, v)
	}
	logEvent.Msg("station audit event")
}

func addField(e *zerolog.Event, key string, value interface{}) *zerolog.Event {
	switch v := value.(type) {
	case string:
		return e.Str(key, v)
	case int:
		return e.Int(key, v)
	case int64:
		return e.Int64(key, v)
	case bool:
		return e.Bool(key, v)
	default:
		return e.Interface(key, v)
	}
}
