package domain

import "time"

// Session status values.
const (
	SessionStatusOpen     = "open"
	SessionStatusPrompted = "prompted"
	SessionStatusClosed   = "closed"
)

// Task status values.
const (
	TaskStatusQueued  = "queued"
	TaskStatusRunning = "running"
	TaskStatusDone    = "done"
	TaskStatusFailed  = "failed"
)

// CrewSession is an interactive session held by a bridge crew agent.
type CrewSession struct {
	ID           string
	DeploymentID string
	CrewID       string
	Status       string
	StartedAt    time.Time
	LastPromptAt *time.Time
	ClosedAt     *time.Time
}

// Task tracks a unit of bootstrap or operational work on a ship.
type Task struct {
	ID           string
	DeploymentID string
	Kind         string
	Status       string
	Detail       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RuntimeSnapshot aggregates fleet activity for the dashboard refresh.
type RuntimeSnapshot struct {
	OpenSessions  int            `json:"open_sessions"`
	PendingTasks  int            `json:"pending_tasks"`
	RunningTasks  int            `json:"running_tasks"`
	ShipsByStatus map[string]int `json:"ships_by_status"`
	GeneratedAt   time.Time      `json:"generated_at"`
}
