package cache

import (
	"time"

	"github.com/rs/zerolog"
)

// SweeperJob evicts expired cache entries across every facet namespace.
// It runs on a long fixed schedule, independent of the refresh interval.
// Sweep failures are logged and swallowed so the schedule always proceeds.
type SweeperJob struct {
	store *Store
	log   zerolog.Logger
}

// NewSweeperJob creates a new cache sweeper job.
func NewSweeperJob(store *Store, log zerolog.Logger) *SweeperJob {
	return &SweeperJob{
		store: store,
		log:   log.With().Str("job", "cache_sweeper").Logger(),
	}
}

// Run executes one sweep pass.
func (j *SweeperJob) Run() error {
	// A failed pass is logged by the scheduler and retried on the next
	// tick; cron keeps the schedule regardless of the returned error.
	results, err := j.store.SweepExpired(time.Now())
	if err != nil {
		j.log.Error().Err(err).Msg("Cache sweep failed")
		return err
	}

	var total int64
	for facet, deleted := range results {
		if deleted > 0 {
			j.log.Info().
				Str("facet", string(facet)).
				Int64("deleted", deleted).
				Msg("Evicted expired cache entries")
			total += deleted
		}
	}

	if total > 0 {
		j.log.Info().Int64("total_deleted", total).Msg("Cache sweep completed")
	}

	return nil
}

// Name returns the job name for scheduling and logging.
func (j *SweeperJob) Name() string {
	return "cache_sweeper"
}
