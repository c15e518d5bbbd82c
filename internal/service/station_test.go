package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/packstation/station-server-go/internal/errors"
	"github.com/packstation/station-server-go/internal/events"
	"github.com/packstation/station-server-go/internal/gate"
	"github.com/packstation/station-server-go/internal/model"
)

type fakeSessionSource struct {
	session  *model.Session
	identity *model.Identity
}

func (f *fakeSessionSource) Current() (*model.Session, *model.Identity) {
	return f.session, f.identity
}

type fakeScanRepo struct {
	mu        sync.Mutex
	records   []model.RecordScanParams
	dup       bool
	recordErr error
}

func (f *fakeScanRepo) Record(ctx context.Context, params model.RecordScanParams) (*model.ScanRecord, error) {
	if f.recordErr != nil {
		return nil, f.recordErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, params)
	return &model.ScanRecord{
		ID:         "rec-1",
		SessionID:  params.SessionID,
		Payload:    params.Payload,
		FormatKind: params.Decoded.FormatKind,
		ScannedAt:  time.Now(),
	}, nil
}

func (f *fakeScanRepo) HasDuplicateToday(ctx context.Context, payload string) (bool, error) {
	return f.dup, nil
}

func (f *fakeScanRepo) CountBySession(ctx context.Context, sessionID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records), nil
}

func (f *fakeScanRepo) DeleteOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	return 0, nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingSink) Publish(ctx context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingSink) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	var types []events.Type
	for _, e := range r.events {
		types = append(types, e.Type)
	}
	return types
}

func newTestService(repo *fakeScanRepo, sink *recordingSink) *StationService {
	source := &fakeSessionSource{
		session:  &model.Session{ID: "s1", IdentityID: "id-a", Active: true},
		identity: &model.Identity{ID: "id-a", DisplayName: "Worker A"},
	}
	g := gate.NewGate(repo, 3*time.Second, 20)
	return NewStationService(g, source, repo, sink)
}

func TestOnRawScan(t *testing.T) {
	ctx := context.Background()

	t.Run("admitted scan is decoded, recorded and announced", func(t *testing.T) {
		repo := &fakeScanRepo{}
		sink := &recordingSink{}
		svc := newTestService(repo, sink)

		result, err := svc.OnRawScan(ctx, "s1", "1^ORD-42^CUST-9^PKG-777")
		require.NoError(t, err)

		assert.True(t, result.Decision.Admitted())
		assert.True(t, result.Persisted)
		require.NotNil(t, result.Decoded)
		assert.Equal(t, "ORD-42", result.Decoded.OrderRef)
		require.NotNil(t, result.Record)
		assert.Equal(t, "rec-1", result.Record.ID)

		require.Len(t, repo.records, 1)
		assert.Equal(t, model.FormatCaretSeparated, repo.records[0].Decoded.FormatKind)

		require.Equal(t, []events.Type{events.TypeScanAdmitted}, sink.types())
		var admitted events.ScanAdmitted
		require.NoError(t, json.Unmarshal(sink.events[0].Data, &admitted))
		assert.Equal(t, "s1", admitted.SessionID)
		assert.Equal(t, "PKG-777", admitted.Decoded.PackageRef)
	})

	t.Run("duplicate scan within guard window is rejected and announced", func(t *testing.T) {
		repo := &fakeScanRepo{}
		sink := &recordingSink{}
		svc := newTestService(repo, sink)

		first, err := svc.OnRawScan(ctx, "s1", "ABC123")
		require.NoError(t, err)
		assert.True(t, first.Decision.Admitted())

		second, err := svc.OnRawScan(ctx, "s1", "ABC123")
		require.NoError(t, err)
		assert.Equal(t, gate.VerdictDuplicate, second.Decision.Verdict)
		assert.Nil(t, second.Decoded)

		assert.Len(t, repo.records, 1)
		assert.Equal(t, []events.Type{
			events.TypeScanAdmitted,
			events.TypeScanRejected,
		}, sink.types())
	})

	t.Run("durable duplicate is rejected without recording", func(t *testing.T) {
		repo := &fakeScanRepo{dup: true}
		sink := &recordingSink{}
		svc := newTestService(repo, sink)

		result, err := svc.OnRawScan(ctx, "s1", "ABC123")
		require.NoError(t, err)
		assert.Equal(t, gate.VerdictDuplicate, result.Decision.Verdict)
		assert.Empty(t, repo.records)
	})

	t.Run("persistence failure keeps the admission and reports a system error", func(t *testing.T) {
		repo := &fakeScanRepo{recordErr: errors.New("insert failed")}
		sink := &recordingSink{}
		svc := newTestService(repo, sink)

		result, err := svc.OnRawScan(ctx, "s1", "ABC123")
		require.NoError(t, err)

		assert.True(t, result.Decision.Admitted())
		assert.False(t, result.Persisted)
		assert.Nil(t, result.Record)
		assert.Equal(t, []events.Type{events.TypeSystemError}, sink.types())
	})

	t.Run("scan for a non-current session is rejected", func(t *testing.T) {
		repo := &fakeScanRepo{}
		sink := &recordingSink{}
		svc := newTestService(repo, sink)

		_, err := svc.OnRawScan(ctx, "someone-elses-session", "ABC123")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeNoActiveSession, apperrors.GetCode(err))
		assert.Equal(t, []events.Type{events.TypeScanRejected}, sink.types())
	})

	t.Run("empty payload is a validation error", func(t *testing.T) {
		repo := &fakeScanRepo{}
		sink := &recordingSink{}
		svc := newTestService(repo, sink)

		_, err := svc.OnRawScan(ctx, "s1", "")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrCodeMissingRequired, apperrors.GetCode(err))
		assert.Empty(t, sink.types())
	})
}
