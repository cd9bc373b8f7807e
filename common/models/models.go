package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RunStatus represents the status of a pipeline run
type RunStatus string

const (
	RunQueued  RunStatus = "queued"
	RunRunning RunStatus = "running"
	RunDone    RunStatus = "done"
	RunFailed  RunStatus = "failed"
)

// Terminal reports whether no further run transitions are allowed
func (s RunStatus) Terminal() bool {
	return s == RunDone || s == RunFailed
}

// CanTransition reports whether the queued -> running -> {done,failed}
// ordering allows moving to next.
func (s RunStatus) CanTransition(next RunStatus) bool {
	switch s {
	case RunQueued:
		return next == RunRunning
	case RunRunning:
		return next == RunDone || next == RunFailed
	default:
		return false
	}
}

// StepStatus represents the status of a single pipeline step
type StepStatus string

const (
	StepPending  StepStatus = "pending"
	StepRunning  StepStatus = "running"
	StepComplete StepStatus = "complete"
	StepFailed   StepStatus = "failed"
)

// Terminal reports whether the step status may never be overwritten
func (s StepStatus) Terminal() bool {
	return s == StepComplete || s == StepFailed
}

// Photo is an uploaded image, immutable once stored.
// Maps to: photos table
type Photo struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Filename    string    `db:"filename" json:"filename"`
	ContentType string    `db:"content_type" json:"content_type"`
	ObjectKey   string    `db:"object_key" json:"object_key"`
	UploadedAt  time.Time `db:"uploaded_at" json:"uploaded_at"`
}

// Run is one pipeline execution attempt over a photo.
// Maps to: runs table
type Run struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	PhotoID        uuid.UUID       `db:"photo_id" json:"photo_id"`
	Status         RunStatus       `db:"status" json:"status"`
	DetectorName   string          `db:"detector_name" json:"detector_name"`
	DetectorParams json.RawMessage `db:"detector_params" json:"detector_params"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	CompletedAt    *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
}

// Step is one ordered stage within a run's pipeline.
// Step payload shapes vary per step name, so details stays an opaque
// document.
// Maps to: steps table
type Step struct {
	RunID     uuid.UUID       `db:"run_id" json:"run_id"`
	Seq       int             `db:"seq" json:"seq"`
	Name      string          `db:"name" json:"name"`
	Status    StepStatus      `db:"status" json:"status"`
	Details   json.RawMessage `db:"details" json:"details"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// RunWithSteps is a consistent point-in-time view of a run and its
// ordered steps, as served to pollers.
type RunWithSteps struct {
	Run
	Steps []Step `json:"steps"`
}

// Feedback is a post-hoc verdict attached to a run. It never touches the
// run/step state machine.
// Maps to: feedback table
type Feedback struct {
	ID        uuid.UUID `db:"id" json:"id"`
	RunID     uuid.UUID `db:"run_id" json:"run_id"`
	Correct   bool      `db:"correct" json:"correct"`
	Reasons   []string  `db:"reasons" json:"reasons"`
	Notes     string    `db:"notes" json:"notes"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
