package models

import "time"

// Audit record statuses. Failed records use FailedStatus(reason).
const (
	AuditInProgress = "In_Progress"
	AuditCompleted  = StatusCompleted
)

// AuditRecord is one append-only entry in the evaluation audit log
type AuditRecord struct {
	ID             int64     `json:"id" db:"id"`
	InstanceID     string    `json:"instance_id" db:"instance_id"`
	ClientID       string    `json:"client_id" db:"client_id"`
	SubmissionDate string    `json:"submission_date" db:"submission_date"`
	Status         string    `json:"status" db:"status"`
	Content        string    `json:"content" db:"content"`
	Timestamp      time.Time `json:"timestamp" db:"recorded_at"`
	RiskScore      *int      `json:"risk_score,omitempty" db:"risk_score"`
}
