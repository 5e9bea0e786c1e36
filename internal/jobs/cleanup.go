package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openclaw/interview-server-go/internal/audio"
)

// ExpiringStore is a session store that must be swept for expired entries.
// Redis expires keys itself and needs no sweep.
type ExpiringStore interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// CleanupJob periodically drops expired in-memory sessions and audio
// artifacts orphaned by crashed turns.
type CleanupJob struct {
	sessions    ExpiringStore
	audioDir    string
	audioMaxAge time.Duration
	interval    time.Duration
	now         func() time.Time
	done        chan struct{}
	finished    chan struct{}
}

// NewCleanupJob builds a job. sessions may be nil.
func NewCleanupJob(sessions ExpiringStore, audioDir string, audioMaxAge, interval time.Duration) *CleanupJob {
	return &CleanupJob{
		sessions:    sessions,
		audioDir:    audioDir,
		audioMaxAge: audioMaxAge,
		interval:    interval,
		now:         time.Now,
		done:        make(chan struct{}),
		finished:    make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("cleanup job started")
}

// Stop ends the job and waits for a running sweep to finish.
func (j *CleanupJob) Stop() {
	close(j.done)
	<-j.finished
	log.Info().Msg("cleanup job stopped")
}

func (j *CleanupJob) run() {
	defer close(j.finished)

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

	if j.sessions != nil {
		j.runCleanup(ctx, "expired sessions", j.sessions.DeleteExpired)
	}
	if j.audioDir != "" {
		j.runCleanup(ctx, "stale audio artifacts", func(context.Context) (int64, error) {
			return audio.SweepStale(j.audioDir, j.audioMaxAge, j.now())
		})
	}
}

func (j *CleanupJob) runCleanup(ctx context.Context, name string, fn func(context.Context) (int64, error)) {
	count, err := fn(ctx)
	if err != nil {
		log.Error().Err(err).Msgf("failed to cleanup %s", name)
	} else if count > 0 {
		log.Info().Int64("count", count).Msgf("cleaned up %s", name)
	}
}
