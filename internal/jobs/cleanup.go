package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/packstation/station-server-go/internal/repository"
)

// CleanupJob periodically force-ends sessions that outlived the longest
// plausible shift and trims scan records past the retention window.
type CleanupJob struct {
	sessionRepo repository.SessionRepository
	scanRepo    repository.ScanRepository
	maxShift    time.Duration
	retention   time.Duration
	interval    time.Duration
	done        chan struct{}
}

func NewCleanupJob(
	sessionRepo repository.SessionRepository,
	scanRepo repository.ScanRepository,
	maxShift, retention, interval time.Duration,
) *CleanupJob {
	return &CleanupJob{
		sessionRepo: sessionRepo,
		scanRepo:    scanRepo,
		maxShift:    maxShift,
		retention:   retention,
		interval:    interval,
		done:        make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("cleanup job started")
}

func (j *CleanupJob) Stop() {
	close(j.done)
	log.Info().Msg("cleanup job stopped")
}

func (j *CleanupJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.cleanup()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.cleanup()
		}
	}
}

func (j *CleanupJob) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	j.runCleanup(ctx, "stale sessions", func(ctx context.Context) (int64, error) {
		return j.sessionRepo.EndStale(ctx, j.maxShift)
	})
	j.runCleanup(ctx, "old scans", func(ctx context.Context) (int64, error) {
		return j.scanRepo.DeleteOlderThan(ctx, j.retention)
	})
}

func (j *CleanupJob) runCleanup(ctx context.Context, name string, fn func(context.Context) (int64, error)) {
	count, err := fn(ctx)
	if err != nil {
		log.Error().Err(err).Msgf("failed to cleanup %s", name)
	} else if count > 0 {
		log.Info().Int64("count", count).Msgf("cleaned up %s", name)
	}
}
