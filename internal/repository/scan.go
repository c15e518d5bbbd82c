package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/packstation/station-server-go/internal/model"
)

type ScanRepository interface {
	Record(ctx context.Context, params model.RecordScanParams) (*model.ScanRecord, error)
	// HasDuplicateToday reports whether the payload was already durably
	// recorded since local midnight, regardless of session.
	HasDuplicateToday(ctx context.Context, payload string) (bool, error)
	CountBySession(ctx context.Context, sessionID string) (int, error)
	DeleteOlderThan(ctx context.Context, retention time.Duration) (int64, error)
}

type scanRepo struct {
	db *sqlx.DB
}

func NewScanRepository(db *sqlx.DB) ScanRepository {
	return &scanRepo{db: db}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r *scanRepo) Record(ctx context.Context, params model.RecordScanParams) (*model.ScanRecord, error) {
	var record model.ScanRecord
	err := r.db.GetContext(ctx, &record, `
		INSERT INTO scans (id, session_id, payload, order_ref, package_ref, customer_ref, format_kind, scanned_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING *
	`, uuid.NewString(), params.SessionID, params.Payload,
		nullable(params.Decoded.OrderRef),
		nullable(params.Decoded.PackageRef),
		nullable(params.Decoded.CustomerRef),
		params.Decoded.FormatKind)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *scanRepo) HasDuplicateToday(ctx context.Context, payload string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM scans
			WHERE payload = $1 AND scanned_at >= date_trunc('day', NOW())
		)
	`, payload)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (r *scanRepo) CountBySession(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM scans WHERE session_id = $1
	`, sessionID)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *scanRepo) DeleteOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM scans
		WHERE scanned_at < NOW() - make_interval(secs => $1)
	`, retention.Seconds())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
