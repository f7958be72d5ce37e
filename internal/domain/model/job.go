package model

import "time"

// RecomputeJob asks the batch runner to rebuild the precomputed tables for
// one scope.
type RecomputeJob struct {
	ID        string
	Scope     Scope
	Trigger   string
	Requested time.Time
}

// Triggers recorded on a RecomputeJob.
const (
	TriggerAPI      = "api"
	TriggerSchedule = "schedule"
	TriggerStartup  = "startup"
)
