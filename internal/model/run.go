package model

import (
	"encoding/json"
	"time"
)

// RunStatus represents the current state of an analysis run.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Dataset is a normalized, persisted set of entities.
type Dataset struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Source    string    `json:"source"`
	Rows      int       `json:"rows"`
	Rejected  int       `json:"rejected"`
	CreatedAt time.Time `json:"created_at"`
}

// Run represents one analysis invocation.
type Run struct {
	ID          string          `json:"id"`
	Policy      Policy          `json:"policy"`
	ReferenceID string          `json:"reference_id,omitempty"` // dataset ID
	CandidateID string          `json:"candidate_id,omitempty"` // dataset ID
	Config      json.RawMessage `json:"config,omitempty"`       // policy config snapshot
	Status      RunStatus       `json:"status"`
	Result      *RunResult      `json:"result,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// RunResult holds the final outcome of a run.
type RunResult struct {
	Candidates int         `json:"candidates"`
	ByTag      map[Tag]int `json:"by_tag"`
	DurationMS int64       `json:"duration_ms"`
	Error      string      `json:"error,omitempty"`
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status RunStatus `json:"status,omitempty"`
	Policy Policy    `json:"policy,omitempty"`
	Limit  int       `json:"limit,omitempty"`
	Offset int       `json:"offset,omitempty"`
}
