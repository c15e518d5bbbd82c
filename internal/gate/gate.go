// Package gate decides whether an inbound scan is admitted for decoding and
// persistence. It owns the per-session duplicate guard and rate window; the
// durable same-day duplicate check is delegated to the persistence layer.
package gate

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/packstation/station-server-go/internal/config"
)

// Verdict is the outcome of one admission attempt.
type Verdict string

const (
	VerdictAdmitted    Verdict = "admitted"
	VerdictDuplicate   Verdict = "rejected_duplicate"
	VerdictRateLimited Verdict = "rejected_rate_limited"
)

// Decision is the result of Admit. Admission never fails with an error;
// whatever happens downstream does not revoke the decision.
type Decision struct {
	Verdict Verdict `json:"verdict"`
	// SeenAgo is how long before this attempt the identical payload was last
	// seen. Only set on duplicate rejections from the short guard.
	SeenAgo time.Duration `json:"-"`
	Detail  string        `json:"detail,omitempty"`
}

func (d Decision) Admitted() bool {
	return d.Verdict == VerdictAdmitted
}

// DuplicateLookup is the injected "already durably recorded today" check.
type DuplicateLookup interface {
	HasDuplicateToday(ctx context.Context, payload string) (bool, error)
}

// sessionState is one session's admission state bundle. Created on first
// admission attempt for the session, dropped when the session ends.
type sessionState struct {
	recent     map[string]time.Time
	pending    map[string]struct{}
	admissions []time.Time
}

type Gate struct {
	mu       sync.Mutex
	sessions map[string]*sessionState

	lookup DuplicateLookup
	guard  time.Duration // identical-payload-too-soon window
	limit  int           // max admissions per rate window
	window time.Duration // rolling rate window
}

func NewGate(lookup DuplicateLookup, guard time.Duration, limit int) *Gate {
	return &Gate{
		sessions: make(map[string]*sessionState),
		lookup:   lookup,
		guard:    guard,
		limit:    limit,
		window:   config.ScanRateWindow,
	}
}

// Admit decides admit / reject-duplicate / reject-rate-limited for one scan.
// Check order: short duplicate guard, rate limit (a rejected attempt consumes
// no slot), durable same-day duplicate, then admit. The payload is held as
// pending and the rate slot is reserved before the lock is released for the
// durable lookup, so concurrent scans cannot double-admit an identical
// payload or overrun the rate cap while a lookup is in flight.
func (g *Gate) Admit(ctx context.Context, sessionID, payload string, now time.Time) Decision {
	g.mu.Lock()

	st := g.sessions[sessionID]
	if st == nil {
		st = &sessionState{
			recent:  make(map[string]time.Time),
			pending: make(map[string]struct{}),
		}
		g.sessions[sessionID] = st
	}

	st.evict(now, g.guard)

	if last, ok := st.recent[payload]; ok {
		seenAgo := now.Sub(last)
		st.recent[payload] = now
		g.mu.Unlock()
		return Decision{Verdict: VerdictDuplicate, SeenAgo: seenAgo, Detail: "identical payload scanned moments ago"}
	}

	if _, ok := st.pending[payload]; ok {
		g.mu.Unlock()
		return Decision{Verdict: VerdictDuplicate, Detail: "identical payload already being processed"}
	}

	st.pruneWindow(now, g.window)
	if len(st.admissions) >= g.limit {
		g.mu.Unlock()
		log.Warn().Str("sessionId", sessionID).Int("limit", g.limit).Msg("scan rate limit exceeded")
		return Decision{Verdict: VerdictRateLimited, Detail: "too many scans in the last minute"}
	}

	// Reserve the rate slot now. Waiting until after the lookup would let
	// concurrent scans of distinct payloads all clear the limit check against
	// the same count.
	st.pending[payload] = struct{}{}
	st.admissions = append(st.admissions, now)
	g.mu.Unlock()

	durableDup, err := g.lookup.HasDuplicateToday(ctx, payload)
	if err != nil {
		// Admission must not fail: a lookup error degrades to "not a
		// duplicate" and the scan proceeds.
		log.Warn().Err(err).Str("sessionId", sessionID).Msg("durable duplicate lookup failed, admitting scan")
		durableDup = false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	// The session may have been dropped while the lookup was in flight.
	st, ok := g.sessions[sessionID]
	if !ok {
		return Decision{Verdict: VerdictDuplicate, Detail: "session ended during admission"}
	}
	delete(st.pending, payload)

	if durableDup {
		st.releaseSlot(now)
		return Decision{Verdict: VerdictDuplicate, Detail: "payload already recorded today"}
	}

	st.recent[payload] = now
	return Decision{Verdict: VerdictAdmitted}
}

// DropSession tears down a session's admission state. Called when the
// session ends so per-session state cannot grow without bound.
func (g *Gate) DropSession(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.sessions, sessionID)
}

// SessionCount reports how many sessions currently hold admission state.
func (g *Gate) SessionCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sessions)
}

func (st *sessionState) evict(now time.Time, guard time.Duration) {
	for payload, seen := range st.recent {
		if now.Sub(seen) >= guard {
			delete(st.recent, payload)
		}
	}
}

// releaseSlot gives back a reservation made before a durable lookup that
// ended in rejection.
func (st *sessionState) releaseSlot(ts time.Time) {
	for i := len(st.admissions) - 1; i >= 0; i-- {
		if st.admissions[i].Equal(ts) {
			st.admissions = append(st.admissions[:i], st.admissions[i+1:]...)
			return
		}
	}
}

func (st *sessionState) pruneWindow(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	kept := st.admissions[:0]
	for _, ts := range st.admissions {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	st.admissions = kept
}
