package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/vsudarshan995/RAG-AI/internal/models"
	"github.com/vsudarshan995/RAG-AI/internal/registry"
)

// ErrInstanceNotFound is returned when neither the audit log nor the registry
// knows an instance.
var ErrInstanceNotFound = errors.New("instance not found")

// AuditReader is the read side of the audit log
type AuditReader interface {
	QueryByInstance(ctx context.Context, instanceID string) ([]models.AuditRecord, error)
	QueryByClient(ctx context.Context, clientID string) ([]models.AuditRecord, error)
}

// StatusReconstructor answers status polls from the audit log and the registry
type StatusReconstructor struct {
	audit    AuditReader
	registry *registry.Registry
}

func NewStatusReconstructor(audit AuditReader, reg *registry.Registry) *StatusReconstructor {
	return &StatusReconstructor{
		audit:    audit,
		registry: reg,
	}
}

// Status builds the timeline of an instance. A live registry entry decides the
// current status; otherwise the latest audit record does. An instance that is
// registered but has no records yet is reported with an empty timeline.
func (s *StatusReconstructor) Status(ctx context.Context, instanceID string) (*models.StatusReport, error) {
	records, err := s.audit.QueryByInstance(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}

	entry, live := s.registry.Get(instanceID)
	if len(records) == 0 && !live {
		return nil, ErrInstanceNotFound
	}
	if records == nil {
		records = []models.AuditRecord{}
	}

	report := &models.StatusReport{
		InstanceID: instanceID,
		Timeline:   records,
	}

	if live {
		report.CurrentStatus = entry.Status
		report.Source = "registry"
		report.CompletedSteps = entry.CompletedSteps
	} else {
		report.CurrentStatus = records[len(records)-1].Status
		report.Source = "audit_log"
	}

	return report, nil
}

// ClientHistory returns every audit record of a client, oldest first
func (s *StatusReconstructor) ClientHistory(ctx context.Context, clientID string) ([]models.AuditRecord, error) {
	records, err := s.audit.QueryByClient(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	return records, nil
}
