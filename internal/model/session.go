package model

import "time"

// EndReason records why a session was closed.
type EndReason string

const (
	EndReasonManual          EndReason = "manual"
	EndReasonAutomaticSwitch EndReason = "automatic_switch"
	EndReasonStale           EndReason = "stale"
	EndReasonShutdown        EndReason = "shutdown"
)

// Session is one worker's active presence at the station. At most one session
// is active at any instant; the coordinator enforces this.
type Session struct {
	ID         string     `db:"id" json:"id"`
	IdentityID string     `db:"identity_id" json:"identityId"`
	Active     bool       `db:"active" json:"active"`
	StartedAt  time.Time  `db:"started_at" json:"startedAt"`
	EndedAt    *time.Time `db:"ended_at" json:"endedAt,omitempty"`
	EndReason  *EndReason `db:"end_reason" json:"endReason,omitempty"`
}

// EndedSession is what EndAllActive reports back for each session it closed.
type EndedSession struct {
	SessionID           string `db:"id"`
	IdentityID          string `db:"identity_id"`
	IdentityDisplayName string `db:"display_name"`
}
