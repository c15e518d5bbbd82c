package events

import (
	"context"
	"encoding/json"

	"github.com/packstation/station-server-go/internal/model"
)

// Type identifies a station notification.
type Type string

const (
	TypeSessionResetRequested Type = "session_reset_requested"
	TypeUserLoggedIn          Type = "user_logged_in"
	TypeUserLoggedOut         Type = "user_logged_out"
	TypeScanAdmitted          Type = "scan_admitted"
	TypeScanRejected          Type = "scan_rejected"
	TypeScanError             Type = "scan_error"
	TypeSystemError           Type = "system_error"
)

// Event is one serialized notification as it travels through the broker.
type Event struct {
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Publisher is the broadcast sink the coordinator and scan pipeline push
// notifications into. Fire-and-forget from the core's perspective.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Notification payloads.

type SessionResetRequested struct {
	Identity model.Identity `json:"identity"`
}

type UserLoggedIn struct {
	Identity   model.Identity `json:"identity"`
	Session    model.Session  `json:"session"`
	EndedCount int            `json:"endedCount"`
	FullReset  bool           `json:"fullReset"`
}

type UserLoggedOut struct {
	SessionID           string          `json:"sessionId"`
	IdentityID          string          `json:"identityId"`
	IdentityDisplayName string          `json:"identityDisplayName,omitempty"`
	Reason              model.EndReason `json:"reason"`
}

type ScanAdmitted struct {
	SessionID string               `json:"sessionId"`
	RecordID  string               `json:"recordId"`
	Decoded   model.DecodedPayload `json:"decoded"`
}

type ScanRejected struct {
	SessionID string `json:"sessionId"`
	Reason    string `json:"reason"`
	Detail    string `json:"detail,omitempty"`
}

type ScanError struct {
	TagOrPayload string `json:"tagOrPayload"`
	Message      string `json:"message"`
}

type SystemError struct {
	Message string `json:"message"`
}

// New builds an Event from a typed payload.
func New(t Type, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: t, Data: data}, nil
}
