package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/vsudarshan995/RAG-AI/internal/models"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// PostgresAuditRepository stores audit records in PostgreSQL. The schema is
// owned by the files in migrations/.
type PostgresAuditRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewPostgresAuditRepository wraps an already-migrated connection
func NewPostgresAuditRepository(db *sqlx.DB, logger *zap.Logger) *PostgresAuditRepository {
	return &PostgresAuditRepository{db: db, logger: logger}
}

func (r *PostgresAuditRepository) Append(ctx context.Context, rec *models.AuditRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	query := `INSERT INTO audit_records (instance_id, client_id, submission_date, status, content, recorded_at, risk_score)
	          VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	err := r.db.QueryRowxContext(ctx, query,
		rec.InstanceID, rec.ClientID, rec.SubmissionDate, rec.Status, rec.Content, rec.Timestamp, rec.RiskScore,
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAuditWrite, err)
	}
	return nil
}

func (r *PostgresAuditRepository) QueryByInstance(ctx context.Context, instanceID string) ([]models.AuditRecord, error) {
	var records []models.AuditRecord
	query := `SELECT ` + auditColumns + ` FROM audit_records WHERE instance_id = $1 ORDER BY recorded_at, id`
	if err := r.db.SelectContext(ctx, &records, query, instanceID); err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	return records, nil
}

func (r *PostgresAuditRepository) QueryByClient(ctx context.Context, clientID string) ([]models.AuditRecord, error) {
	var records []models.AuditRecord
	query := `SELECT ` + auditColumns + ` FROM audit_records WHERE client_id = $1 ORDER BY recorded_at, id`
	if err := r.db.SelectContext(ctx, &records, query, clientID); err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	return records, nil
}

func (r *PostgresAuditRepository) PendingInstances(ctx context.Context) ([]models.AuditRecord, error) {
	var records []models.AuditRecord
	if err := r.db.SelectContext(ctx, &records, pendingInstancesQuery, models.AuditInProgress); err != nil {
		return nil, fmt.Errorf("failed to query pending instances: %w", err)
	}
	return records, nil
}

// pendingInstancesQuery selects the latest record of each instance and keeps
// only those still In_Progress.
const pendingInstancesQuery = `
	SELECT ` + auditColumns + ` FROM (
		SELECT DISTINCT ON (instance_id) ` + auditColumns + `
		FROM audit_records
		ORDER BY instance_id, id DESC
	) latest
	WHERE status = $1
	ORDER BY recorded_at, id
`

func (r *PostgresAuditRepository) PurgeClient(ctx context.Context, clientID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM audit_records WHERE client_id = $1`, clientID)
	if err != nil {
		return 0, fmt.Errorf("failed to purge client records: %w", err)
	}
	return result.RowsAffected()
}

func (r *PostgresAuditRepository) Close() error {
	return r.db.Close()
}
