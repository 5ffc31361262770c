package service

import (
	"context"
	"fmt"
	"time"

	"github.com/vsudarshan995/RAG-AI/internal/models"
	"github.com/vsudarshan995/RAG-AI/internal/registry"
	"github.com/vsudarshan995/RAG-AI/internal/repository"

	"go.uber.org/zap"
)

// OrphanedReason is recorded for instances that were running when the process stopped.
const OrphanedReason = "orphaned (process restarted before completion)"

// Reconciler closes out instances left In_Progress by a previous process
type Reconciler struct {
	audit    repository.AuditRepository
	registry *registry.Registry
	logger   *zap.Logger
}

func NewReconciler(audit repository.AuditRepository, reg *registry.Registry, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		audit:    audit,
		registry: reg,
		logger:   logger,
	}
}

// Sweep appends a Failed record for every instance whose latest record is
// In_Progress and which this process is not running. Run it before accepting
// submissions. It returns the number of instances marked.
//
// Sweep assumes it is the only process writing to the audit log. Replicas
// sharing one postgres database would mark each other's live instances as
// orphaned, so run a single replica per database.
func (r *Reconciler) Sweep(ctx context.Context) (int, error) {
	pending, err := r.audit.PendingInstances(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending instances: %w", err)
	}

	marked := 0
	for _, p := range pending {
		if _, live := r.registry.Get(p.InstanceID); live {
			continue
		}

		rec := &models.AuditRecord{
			InstanceID:     p.InstanceID,
			ClientID:       p.ClientID,
			SubmissionDate: p.SubmissionDate,
			Status:         models.FailedStatus(OrphanedReason),
			Content:        fmt.Sprintf("Instance was still in progress at %s when the service restarted.", p.Timestamp.Format(time.RFC3339)),
			Timestamp:      time.Now().UTC(),
		}
		if err := r.audit.Append(ctx, rec); err != nil {
			return marked, fmt.Errorf("failed to mark instance %s orphaned: %w", p.InstanceID, err)
		}
		marked++

		r.logger.Warn("Marked orphaned instance as failed",
			zap.String("instance_id", p.InstanceID),
			zap.String("client_id", p.ClientID))
	}

	if marked > 0 {
		r.logger.Info("Orphan sweep finished", zap.Int("marked", marked))
	}
	return marked, nil
}

// PurgeClient deletes every audit record of a client. Administrative only.
func (r *Reconciler) PurgeClient(ctx context.Context, clientID string) (int64, error) {
	n, err := r.audit.PurgeClient(ctx, clientID)
	if err != nil {
		return 0, fmt.Errorf("failed to purge client %s: %w", clientID, err)
	}

	r.logger.Warn("Purged client audit records",
		zap.String("client_id", clientID),
		zap.Int64("deleted", n))
	return n, nil
}
