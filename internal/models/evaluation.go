package models

import (
	"strings"
	"time"
)

// Registry status values. Failed statuses carry the reason after the prefix.
const (
	StatusRunning   = "Running"
	StatusCompleted = "Completed"
	StatusFailedPfx = "Failed:"
)

// EvaluationRequest is the body accepted by the submit endpoint
type EvaluationRequest struct {
	ClientID       string  `json:"client_id" binding:"required"`
	SubmissionDate string  `json:"submission_date" binding:"required"`
	Question       *string `json:"question,omitempty"`
}

// Instance is one end-to-end run of the evaluation pipeline.
// It has no table of its own; the ID joins registry entries and audit records.
type Instance struct {
	ID             string    `json:"instance_id"`
	ClientID       string    `json:"client_id"`
	SubmissionDate string    `json:"submission_date"`
	CreatedAt      time.Time `json:"created_at"`
}

// RegistryEntry is the live progress view of a running instance
type RegistryEntry struct {
	InstanceID     string    `json:"instance_id"`
	Status         string    `json:"status"`
	ClientID       string    `json:"client_id"`
	SubmissionDate string    `json:"submission_date"`
	StartedAt      time.Time `json:"started_at"`
	CompletedSteps []string  `json:"completed_steps"`
}

// StatusReport is returned by the poll endpoint
type StatusReport struct {
	InstanceID     string        `json:"instance_id"`
	CurrentStatus  string        `json:"current_status"`
	Source         string        `json:"source"` // "registry" or "audit_log"
	CompletedSteps []string      `json:"completed_steps,omitempty"`
	Timeline       []AuditRecord `json:"timeline"`
}

// FailedStatus formats a terminal failure status.
func FailedStatus(reason string) string {
	return StatusFailedPfx + reason
}

// IsFailed reports whether status is a failure status.
func IsFailed(status string) bool {
	return strings.HasPrefix(status, StatusFailedPfx)
}

// IsTerminal reports whether status ends an instance's lifecycle.
func IsTerminal(status string) bool {
	return status == StatusCompleted || IsFailed(status)
}
