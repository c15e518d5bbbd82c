// Package coordinator owns the station's single "current session" slot and
// runs the switch protocol triggered when a badge tag is presented. Switches
// are serialized: the coordinator mutex is held across the whole protocol,
// persistence calls and settle delays included, so a second tag event cannot
// interleave its end/create steps with a switch already in flight.
package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/packstation/station-server-go/internal/audit"
	apperrors "github.com/packstation/station-server-go/internal/errors"
	"github.com/packstation/station-server-go/internal/events"
	"github.com/packstation/station-server-go/internal/model"
	"github.com/packstation/station-server-go/internal/repository"
)

// AdmissionState is the slice of the gate the coordinator needs: tearing
// down a session's rate/dedup state when that session ends.
type AdmissionState interface {
	DropSession(sessionID string)
}

type Coordinator struct {
	mu sync.Mutex

	identityRepo repository.IdentityRepository
	sessionRepo  repository.SessionRepository
	admission    AdmissionState
	publisher    events.Publisher

	cooldown     time.Duration
	resetSettle  time.Duration
	logoutSettle time.Duration

	// Injectable for tests. The settle delays are part of the notification
	// ordering contract and must not be skipped in production.
	now   func() time.Time
	sleep func(time.Duration)

	current         *model.Session
	currentIdentity *model.Identity
	lastPresentedAt time.Time
}

func New(
	identityRepo repository.IdentityRepository,
	sessionRepo repository.SessionRepository,
	admission AdmissionState,
	publisher events.Publisher,
	cooldown, resetSettle, logoutSettle time.Duration,
) *Coordinator {
	return &Coordinator{
		identityRepo: identityRepo,
		sessionRepo:  sessionRepo,
		admission:    admission,
		publisher:    publisher,
		cooldown:     cooldown,
		resetSettle:  resetSettle,
		logoutSettle: logoutSettle,
		now:          time.Now,
		sleep:        time.Sleep,
	}
}

// Current returns the session and identity currently installed, or nils when
// the coordinator is idle.
func (c *Coordinator) Current() (*model.Session, *model.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current, c.currentIdentity
}

// OnIdentityPresented runs the switch protocol for a presented badge tag:
// cooldown check, tag resolution, reset notification, end-all-active,
// logout notifications, new session create, login notification. The
// notification order for one switch is always
// SessionResetRequested, UserLoggedOut*, UserLoggedIn.
func (c *Coordinator) OnIdentityPresented(ctx context.Context, tagID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if !c.lastPresentedAt.IsZero() && now.Sub(c.lastPresentedAt) < c.cooldown {
		log.Debug().Str("tagId", tagID).Msg("tag presented within cooldown, ignoring")
		return nil
	}
	c.lastPresentedAt = now

	identity, err := c.identityRepo.FindByTag(ctx, tagID)
	if err != nil {
		c.notifySystemError(ctx, "identity lookup failed")
		return apperrors.Database(err)
	}
	if identity == nil {
		log.Warn().Str("tagId", tagID).Msg("unknown tag presented")
		audit.Log(ctx, audit.Event{Type: audit.EventUnknownTag, Details: map[string]interface{}{"tagId": tagID}})
		c.notify(ctx, events.TypeScanError, events.ScanError{TagOrPayload: tagID, Message: "unknown tag"})
		return apperrors.UnknownIdentity(tagID)
	}

	// The reset notification goes out before any session state moves so the
	// presentation layer clears its display before the authoritative
	// logout/login notifications arrive.
	c.notify(ctx, events.TypeSessionResetRequested, events.SessionResetRequested{Identity: *identity})
	c.sleep(c.resetSettle)

	ended, err := c.sessionRepo.EndAllActive(ctx, model.EndReasonAutomaticSwitch)
	if err != nil {
		c.notifySystemError(ctx, "failed to end active sessions")
		return apperrors.SessionEndFailed(err)
	}

	for _, e := range ended {
		c.admission.DropSession(e.SessionID)
		if c.current != nil && c.current.ID == e.SessionID {
			c.current = nil
			c.currentIdentity = nil
		}
		c.notify(ctx, events.TypeUserLoggedOut, events.UserLoggedOut{
			SessionID:           e.SessionID,
			IdentityID:          e.IdentityID,
			IdentityDisplayName: e.IdentityDisplayName,
			Reason:              model.EndReasonAutomaticSwitch,
		})
		audit.Log(ctx, audit.Event{
			Type:       audit.EventLogout,
			IdentityID: e.IdentityID,
			SessionID:  e.SessionID,
			Details:    map[string]interface{}{"reason": string(model.EndReasonAutomaticSwitch)},
		})
	}
	if len(ended) > 0 {
		c.sleep(c.logoutSettle)
	}

	session, err := c.sessionRepo.Create(ctx, identity.ID)
	if err != nil {
		log.Error().Err(err).Str("identityId", identity.ID).Msg("session creation failed")
		c.notify(ctx, events.TypeScanError, events.ScanError{TagOrPayload: tagID, Message: "session creation failed"})
		return apperrors.SessionCreateFailed(err)
	}

	c.admission.DropSession(session.ID)
	c.current = session
	c.currentIdentity = identity

	log.Info().
		Str("sessionId", session.ID).
		Str("identityId", identity.ID).
		Int("endedCount", len(ended)).
		Msg("session switched")
	audit.Log(ctx, audit.Event{Type: audit.EventLogin, IdentityID: identity.ID, SessionID: session.ID})

	c.notify(ctx, events.TypeUserLoggedIn, events.UserLoggedIn{
		Identity:   *identity,
		Session:    *session,
		EndedCount: len(ended),
		FullReset:  true,
	})

	return nil
}

// OnManualLogout ends the current session if sessionID matches it. Logging
// out an already-superseded session is a no-op success.
func (c *Coordinator) OnManualLogout(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil || c.current.ID != sessionID {
		log.Debug().Str("sessionId", sessionID).Msg("manual logout for non-current session, ignoring")
		return nil
	}

	if _, err := c.sessionRepo.End(ctx, sessionID, model.EndReasonManual); err != nil {
		c.notifySystemError(ctx, "failed to end session")
		return apperrors.SessionEndFailed(err)
	}

	identity := c.currentIdentity
	c.current = nil
	c.currentIdentity = nil
	c.admission.DropSession(sessionID)

	logged := events.UserLoggedOut{
		SessionID: sessionID,
		Reason:    model.EndReasonManual,
	}
	if identity != nil {
		logged.IdentityID = identity.ID
		logged.IdentityDisplayName = identity.DisplayName
	}
	c.notify(ctx, events.TypeUserLoggedOut, logged)
	audit.Log(ctx, audit.Event{
		Type:       audit.EventLogout,
		IdentityID: logged.IdentityID,
		SessionID:  sessionID,
		Details:    map[string]interface{}{"reason": string(model.EndReasonManual)},
	})

	return nil
}

// OnManualLogin installs a session for a known identity without a badge tap.
// Only that identity's previous sessions are ended, and the resulting login
// notification is not flagged as a full reset.
func (c *Coordinator) OnManualLogin(ctx context.Context, identityID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	identity, err := c.identityRepo.FindByID(ctx, identityID)
	if err != nil {
		c.notifySystemError(ctx, "identity lookup failed")
		return apperrors.Database(err)
	}
	if identity == nil {
		c.notify(ctx, events.TypeScanError, events.ScanError{TagOrPayload: identityID, Message: "unknown identity"})
		return apperrors.UnknownIdentity(identityID)
	}

	ended, err := c.sessionRepo.EndActiveByIdentity(ctx, identityID, model.EndReasonAutomaticSwitch)
	if err != nil {
		c.notifySystemError(ctx, "failed to end active sessions")
		return apperrors.SessionEndFailed(err)
	}

	for _, e := range ended {
		c.admission.DropSession(e.SessionID)
		if c.current != nil && c.current.ID == e.SessionID {
			c.current = nil
			c.currentIdentity = nil
		}
		c.notify(ctx, events.TypeUserLoggedOut, events.UserLoggedOut{
			SessionID:           e.SessionID,
			IdentityID:          e.IdentityID,
			IdentityDisplayName: e.IdentityDisplayName,
			Reason:              model.EndReasonAutomaticSwitch,
		})
	}

	session, err := c.sessionRepo.Create(ctx, identity.ID)
	if err != nil {
		c.notify(ctx, events.TypeScanError, events.ScanError{TagOrPayload: identityID, Message: "session creation failed"})
		return apperrors.SessionCreateFailed(err)
	}

	c.admission.DropSession(session.ID)
	c.current = session
	c.currentIdentity = identity

	audit.Log(ctx, audit.Event{Type: audit.EventLogin, IdentityID: identity.ID, SessionID: session.ID})
	c.notify(ctx, events.TypeUserLoggedIn, events.UserLoggedIn{
		Identity:   *identity,
		Session:    *session,
		EndedCount: len(ended),
		FullReset:  false,
	})

	return nil
}

// Shutdown ends the current session on process exit so it cannot linger as
// a stale active session for the next instance.
func (c *Coordinator) Shutdown(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return
	}

	sessionID := c.current.ID
	if _, err := c.sessionRepo.End(ctx, sessionID, model.EndReasonShutdown); err != nil {
		log.Error().Err(err).Str("sessionId", sessionID).Msg("failed to end session on shutdown")
		return
	}

	c.admission.DropSession(sessionID)
	c.current = nil
	c.currentIdentity = nil
	log.Info().Str("sessionId", sessionID).Msg("session ended on shutdown")
}

// notify publishes a notification to the broadcast sink. Publishing is
// fire-and-forget: a failed publish is logged, never propagated.
func (c *Coordinator) notify(ctx context.Context, t events.Type, payload any) {
	event, err := events.New(t, payload)
	if err != nil {
		log.Error().Err(err).Str("type", string(t)).Msg("failed to encode notification")
		return
	}
	if err := c.publisher.Publish(ctx, event); err != nil {
		log.Warn().Err(err).Str("type", string(t)).Msg("failed to publish notification")
	}
}

func (c *Coordinator) notifySystemError(ctx context.Context, message string) {
	c.notify(ctx, events.TypeSystemError, events.SystemError{Message: message})
}
