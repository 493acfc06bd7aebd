package chore

import (
	"fmt"
	"log/slog"
	"sort"

	"chorebank/internal/model"
	"chorebank/internal/store"
)

// Cleaner removes the debris a race or a bug can leave behind: duplicate
// active schedules for the same (template, child) pair, and duplicate
// instances for the same (schedule, date).
type Cleaner struct {
	schedules *store.ScheduleStore
	instances *store.InstanceStore
	logger    *slog.Logger
}

func NewCleaner(schedules *store.ScheduleStore, instances *store.InstanceStore, logger *slog.Logger) *Cleaner {
	return &Cleaner{schedules: schedules, instances: instances, logger: logger.With("component", "cleanup")}
}

// CleanupResult summarizes one cleanup pass.
type CleanupResult struct {
	SchedulesDeactivated int `json:"schedules_deactivated"`
	InstancesDeleted     int `json:"instances_deleted"`
}

// Run deactivates duplicate schedules and deletes duplicate instances.
func (c *Cleaner) Run(familyID int64) (CleanupResult, error) {
	var res CleanupResult

	deactivated, err := c.deactivateDuplicateSchedules(familyID)
	if err != nil {
		return res, err
	}
	res.SchedulesDeactivated = deactivated

	deleted, err := c.deleteDuplicateInstances(familyID)
	if err != nil {
		return res, err
	}
	res.InstancesDeleted = deleted

	if res.SchedulesDeactivated > 0 || res.InstancesDeleted > 0 {
		c.logger.Info("cleanup finished", "family_id", familyID,
			"schedules_deactivated", res.SchedulesDeactivated, "instances_deleted", res.InstancesDeleted)
	}
	return res, nil
}

func (c *Cleaner) deactivateDuplicateSchedules(familyID int64) (int, error) {
	ids, err := c.schedules.ActiveDuplicates(familyID)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		if err := c.schedules.Deactivate(id); err != nil {
			return 0, fmt.Errorf("deactivate schedule %d: %w", id, err)
		}
	}
	return len(ids), nil
}

// statusRank orders duplicates by how much progress they carry. The
// highest-ranked instance in each group survives.
func statusRank(s model.InstanceStatus) int {
	switch s {
	case model.StatusApproved:
		return 4
	case model.StatusCompleted:
		return 3
	case model.StatusPending:
		return 2
	case model.StatusRejected:
		return 1
	default:
		return 0
	}
}

func (c *Cleaner) deleteDuplicateInstances(familyID int64) (int, error) {
	candidates, err := c.instances.ListDuplicateCandidates(familyID)
	if err != nil {
		return 0, err
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	type groupKey struct {
		scheduleID int64
		date       string
	}
	groups := make(map[groupKey][]model.ChoreInstance)
	for _, in := range candidates {
		k := groupKey{*in.ScheduleID, in.Date.Format("2006-01-02")}
		groups[k] = append(groups[k], in)
	}

	var doomed []int64
	for _, group := range groups {
		// best progress first, then earliest created
		sort.Slice(group, func(i, j int) bool {
			ri, rj := statusRank(group[i].Status), statusRank(group[j].Status)
			if ri != rj {
				return ri > rj
			}
			return group[i].CreatedAt.Before(group[j].CreatedAt)
		})

		for _, in := range group[1:] {
			// never destroy a credited instance, whatever its rank
			if in.Status == model.StatusApproved && in.TransactionID != nil {
				c.logger.Warn("skipping credited duplicate instance",
					"instance_id", in.ID, "transaction_id", *in.TransactionID)
				continue
			}
			doomed = append(doomed, in.ID)
		}
	}

	deleted, err := c.instances.DeleteInstances(doomed)
	if err != nil {
		return 0, fmt.Errorf("delete duplicate instances: %w", err)
	}
	return int(deleted), nil
}
