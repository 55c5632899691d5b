// Package jobs keeps the in-memory registry of render jobs.
package jobs

import "time"

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is one of the four known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// canMove lists the allowed status changes. Staying put is always allowed
// for non-terminal states so progress can be updated.
func canMove(from, to Status) bool {
	if from == to {
		return !from.Terminal()
	}
	switch from {
	case StatusPending:
		return to == StatusRunning || to == StatusFailed
	case StatusRunning:
		return to == StatusCompleted || to == StatusFailed
	}
	return false
}

type Job struct {
	ID         string    `json:"id"`
	Status     Status    `json:"status"`
	Progress   int       `json:"progress"`
	OutputPath string    `json:"output_path,omitempty"`
	ObjectKey  string    `json:"object_key,omitempty"`
	Error      string    `json:"error,omitempty"`
	WorkDir    string    `json:"work_dir"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// New returns a pending job.
func New(id, workDir string) Job {
	now := time.Now().UTC()
	return Job{
		ID:        id,
		Status:    StatusPending,
		WorkDir:   workDir,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
