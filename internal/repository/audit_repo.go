package repository

import (
	"context"
	"errors"

	"github.com/vsudarshan995/RAG-AI/internal/models"
)

// ErrAuditWrite marks failures to durably append an audit record. It is kept
// distinct from inference failures: when it occurs even the failure itself
// may not be recorded.
var ErrAuditWrite = errors.New("audit log write failed")

// AuditRepository is the append-only evaluation audit log.
// Records are never updated; PurgeClient is an administrative operation and is
// not used by the evaluation path.
type AuditRepository interface {
	Append(ctx context.Context, rec *models.AuditRecord) error
	QueryByInstance(ctx context.Context, instanceID string) ([]models.AuditRecord, error)
	QueryByClient(ctx context.Context, clientID string) ([]models.AuditRecord, error)
	// PendingInstances returns the latest record of every instance whose latest
	// record is still In_Progress.
	PendingInstances(ctx context.Context) ([]models.AuditRecord, error)
	PurgeClient(ctx context.Context, clientID string) (int64, error)
	Close() error
}
