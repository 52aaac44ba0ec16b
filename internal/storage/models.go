package storage

import (
	"time"

	"leandash/internal/core"
)

// Service is one enterprise service/department; teams hang off it.
type Service struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Team struct {
	ID        int64     `json:"id"`
	ServiceID int64     `json:"service_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type User struct {
	ID        int64     `json:"id"`
	TeamID    *int64    `json:"team_id,omitempty"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Bundle is a named group of charts assigned to a team.
type Bundle struct {
	ID        int64     `json:"id"`
	TeamID    int64     `json:"team_id"`
	Name      string    `json:"name"`
	Icon      string    `json:"icon"`
	CreatedAt time.Time `json:"created_at"`
}

// Chart is one tracked indicator and its presentation configuration.
type Chart struct {
	ID          int64            `json:"id"`
	BundleID    int64            `json:"bundle_id"`
	Name        string           `json:"name"`
	UXComponent string           `json:"ux_component"`
	Config      core.ChartConfig `json:"config"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Entry is a persisted chart observation plus the bookkeeping the mirror
// worker needs (version and sync status).
type Entry struct {
	ID         int64           `json:"id"`
	ChartID    int64           `json:"chart_id"`
	Horizon    core.Horizon    `json:"horizon"`
	Data       core.ChartEntry `json:"data"`
	Version    int64           `json:"version"`
	SyncStatus string          `json:"sync_status"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Sync statuses for chart entries.
const (
	SyncPending = "pending"
	SyncDone    = "synced"
	SyncError   = "error"
)
