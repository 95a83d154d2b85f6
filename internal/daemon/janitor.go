package daemon

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/amadou/relais/pkg/session"
)

// janitorSchedule is how often stale pairing artifacts are swept.
const janitorSchedule = "@every 10m"

// orphanMaxAge is how long an artifact without a live session may linger
// before the sweep removes it.
const orphanMaxAge = time.Hour

// JanitorOptions configures the artifact janitor.
type JanitorOptions struct {
	ArtifactDir string
	Registry    *session.Registry
	Logger      zerolog.Logger
}

// Janitor periodically removes pairing artifacts that outlived their
// purpose: sessions that finished pairing, and leftovers from previous
// runs with no live session behind them.
type Janitor struct {
	artifactDir string
	registry    *session.Registry
	logger      zerolog.Logger
	cron        *cron.Cron
}

// NewJanitor creates an artifact janitor.
func NewJanitor(opts JanitorOptions) *Janitor {
	return &Janitor{
		artifactDir: opts.ArtifactDir,
		registry:    opts.Registry,
		logger:      opts.Logger.With().Str("component", "janitor").Logger(),
		cron:        cron.New(),
	}
}

// Start schedules the periodic sweep.
func (j *Janitor) Start() {
	if _, err := j.cron.AddFunc(janitorSchedule, j.Sweep); err != nil {
		j.logger.Error().Err(err).Msg("Failed to schedule artifact sweep")
		return
	}
	j.cron.Start()
	j.logger.Info().Str("schedule", janitorSchedule).Msg("Artifact janitor started")
}

// Stop cancels the schedule and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
}

// Sweep removes artifacts for paired sessions immediately and orphaned
// artifacts once they pass the age threshold.
func (j *Janitor) Sweep() {
	entries, err := os.ReadDir(j.artifactDir)
	if err != nil {
		if !os.IsNotExist(err) {
			j.logger.Warn().Err(err).Msg("Failed to read artifact directory")
		}
		return
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".png") {
			continue
		}
		sessionID := strings.TrimSuffix(entry.Name(), ".png")

		if !j.removable(sessionID, entry) {
			continue
		}

		path := filepath.Join(j.artifactDir, entry.Name())
		if err := os.Remove(path); err != nil {
			j.logger.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to remove stale artifact")
			continue
		}
		removed++
		j.logger.Debug().Str("session_id", sessionID).Msg("Stale artifact removed")
	}

	if removed > 0 {
		j.logger.Info().Int("removed", removed).Msg("Artifact sweep completed")
	}
}

func (j *Janitor) removable(sessionID string, entry os.DirEntry) bool {
	sess, err := j.registry.Get(sessionID)
	if err == nil {
		// Live session: the artifact is stale once pairing completed.
		return sess.State() == session.StateReady
	}

	// No live session. Likely a leftover from a previous run; give a
	// freshly written file time in case creation is still in flight.
	info, err := entry.Info()
	if err != nil {
		return false
	}
	return time.Since(info.ModTime()) > orphanMaxAge
}
