package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/packstation/station-server-go/internal/model"
)

type SessionRepository interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
	FindActive(ctx context.Context) ([]model.Session, error)
	Create(ctx context.Context, identityID string) (*model.Session, error)
	// End closes one session. Returns false when the session was already
	// ended (or never existed), which callers treat as an idempotent no-op.
	End(ctx context.Context, id string, reason model.EndReason) (bool, error)
	// EndAllActive closes every active session in one statement and reports
	// what it closed. Must stay a single UPDATE so two processes cannot both
	// observe a session as still active.
	EndAllActive(ctx context.Context, reason model.EndReason) ([]model.EndedSession, error)
	// EndActiveByIdentity closes only the given worker's active sessions.
	EndActiveByIdentity(ctx context.Context, identityID string, reason model.EndReason) ([]model.EndedSession, error)
	// EndStale force-ends sessions that have been active longer than maxAge.
	EndStale(ctx context.Context, maxAge time.Duration) (int64, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) SessionRepository
}

// sessionDB is an interface satisfied by both *sqlx.DB and *sqlx.Tx
type sessionDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type sessionRepo struct {
	db sessionDB
}

func NewSessionRepository(db *sqlx.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) WithTx(tx *sqlx.Tx) SessionRepository {
	return &sessionRepo{db: tx}
}

func (r *sessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM sessions WHERE id = $1
	`, id)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) FindActive(ctx context.Context) ([]model.Session, error) {
	var sessions []model.Session
	err := r.db.SelectContext(ctx, &sessions, `
		SELECT * FROM sessions WHERE active ORDER BY started_at
	`)
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *sessionRepo) Create(ctx context.Context, identityID string) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		INSERT INTO sessions (id, identity_id, active, started_at)
		VALUES ($1, $2, TRUE, NOW())
		RETURNING *
	`, uuid.NewString(), identityID)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) End(ctx context.Context, id string, reason model.EndReason) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET
			active = FALSE,
			ended_at = NOW(),
			end_reason = $2
		WHERE id = $1 AND active
	`, id, reason)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *sessionRepo) EndAllActive(ctx context.Context, reason model.EndReason) ([]model.EndedSession, error) {
	var ended []model.EndedSession
	err := r.db.SelectContext(ctx, &ended, `
		UPDATE sessions s SET
			active = FALSE,
			ended_at = NOW(),
			end_reason = $1
		FROM identities i
		WHERE s.identity_id = i.id AND s.active
		RETURNING s.id, s.identity_id, i.display_name
	`, reason)
	if err != nil {
		return nil, err
	}
	return ended, nil
}

func (r *sessionRepo) EndActiveByIdentity(ctx context.Context, identityID string, reason model.EndReason) ([]model.EndedSession, error) {
	var ended []model.EndedSession
	err := r.db.SelectContext(ctx, &ended, `
		UPDATE sessions s SET
			active = FALSE,
			ended_at = NOW(),
			end_reason = $2
		FROM identities i
		WHERE s.identity_id = i.id AND s.identity_id = $1 AND s.active
		RETURNING s.id, s.identity_id, i.display_name
	`, identityID, reason)
	if err != nil {
		return nil, err
	}
	return ended, nil
}

func (r *sessionRepo) EndStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET
			active = FALSE,
			ended_at = NOW(),
			end_reason = 'stale'
		WHERE active AND started_at < NOW() - make_interval(secs => $1)
	`, maxAge.Seconds())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
