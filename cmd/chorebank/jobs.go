package main

import (
	"log/slog"
	"time"

	"chorebank/internal/server"
)

const jobInterval = 15 * time.Minute

// runScheduledJobs periodically generates the day's instances, sweeps
// overdue ones, and prunes expired sessions for every family. Generation
// and the sweep are idempotent, so running them often is harmless; the
// interval just bounds how stale a kiosk can get.
func runScheduledJobs(srv *server.Server, logger *slog.Logger, stop <-chan struct{}) {
	logger = logger.With("component", "jobs")

	// One cleanup pass at startup repairs any duplicates left by older
	// versions, then the regular cadence takes over.
	runCleanup(srv, logger)
	runJobs(srv, logger)

	ticker := time.NewTicker(jobInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			runJobs(srv, logger)
		case <-stop:
			return
		}
	}
}

func runJobs(srv *server.Server, logger *slog.Logger) {
	families, err := srv.FamilyStore().ListFamilies()
	if err != nil {
		logger.Error("list families", "error", err)
		return
	}

	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	for _, f := range families {
		if created, err := srv.Generator().Generate(f.ID, today); err != nil {
			logger.Error("generate instances", "family_id", f.ID, "error", err)
		} else if len(created) > 0 {
			logger.Info("generated instances", "family_id", f.ID, "count", len(created))
		}

		if result, err := srv.Lifecycle().Sweep(f.ID, now); err != nil {
			logger.Error("sweep instances", "family_id", f.ID, "error", err)
		} else if result.Missed > 0 || result.Expired > 0 {
			logger.Info("swept instances", "family_id", f.ID, "missed", result.Missed, "expired", result.Expired)
		}
	}

	if deleted, err := srv.FamilyStore().DeleteExpiredSessions(); err != nil {
		logger.Error("delete expired sessions", "error", err)
	} else if deleted > 0 {
		logger.Info("deleted expired sessions", "count", deleted)
	}

	srv.RateLimiter().Cleanup()
}

func runCleanup(srv *server.Server, logger *slog.Logger) {
	families, err := srv.FamilyStore().ListFamilies()
	if err != nil {
		logger.Error("list families", "error", err)
		return
	}

	for _, f := range families {
		result, err := srv.Cleaner().Run(f.ID)
		if err != nil {
			logger.Error("cleanup", "family_id", f.ID, "error", err)
			continue
		}
		if result.SchedulesDeactivated > 0 || result.InstancesDeleted > 0 {
			logger.Info("cleanup repaired duplicates", "family_id", f.ID,
				"schedules_deactivated", result.SchedulesDeactivated,
				"instances_deleted", result.InstancesDeleted)
		}
	}
}
