package pipeline

import (
	"time"

	"github.com/rs/zerolog"
)

// CleanupCoordinator guarantees staged files do not outlive their request.
type CleanupCoordinator struct {
	store *StagingStore
	log   zerolog.Logger
}

func NewCleanupCoordinator(store *StagingStore, logger zerolog.Logger) *CleanupCoordinator {
	return &CleanupCoordinator{store: store, log: logger.With().Str("component", "cleanup").Logger()}
}

// Guard returns a release function for sf. It is meant to be deferred and may
// also be called early; only the first call deletes.
func (c *CleanupCoordinator) Guard(sf *StagedFile) func() {
	return func() { c.store.Release(sf) }
}

// Sweep removes staging files left behind by a crashed process.
func (c *CleanupCoordinator) Sweep(olderThan time.Duration) {
	n, err := c.store.SweepStale(olderThan)
	if err != nil {
		c.log.Error().Err(err).Msg("staging sweep failed")
		return
	}
	c.log.Info().Int("removed", n).Dur("older_than", olderThan).Msg("staging sweep complete")
}
