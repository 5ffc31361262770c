package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vsudarshan995/RAG-AI/internal/models"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const auditColumns = `id, instance_id, client_id, submission_date, status, content, recorded_at, risk_score`

// SQLiteAuditRepository stores audit records in a local SQLite file
type SQLiteAuditRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteAuditRepository opens (and creates if needed) the audit database
func NewSQLiteAuditRepository(dbPath string, logger *zap.Logger) (*SQLiteAuditRepository, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer; concurrent pipelines queue on this connection.
	db.SetMaxOpenConns(1)

	repo := &SQLiteAuditRepository{
		db:     db,
		logger: logger,
	}

	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Info("Audit repository initialized", zap.String("db_path", dbPath))

	return repo, nil
}

// migrate creates tables
func (r *SQLiteAuditRepository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS audit_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		instance_id TEXT NOT NULL,
		client_id TEXT NOT NULL,
		submission_date TEXT NOT NULL,
		status TEXT NOT NULL,
		content TEXT NOT NULL,
		recorded_at DATETIME NOT NULL,
		risk_score INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_audit_instance ON audit_records(instance_id);
	CREATE INDEX IF NOT EXISTS idx_audit_client ON audit_records(client_id);
	`

	_, err := r.db.Exec(schema)
	return err
}

// Append writes a single record. Timestamp defaults to now.
func (r *SQLiteAuditRepository) Append(ctx context.Context, rec *models.AuditRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	query := `
		INSERT INTO audit_records (
			instance_id, client_id, submission_date, status, content, recorded_at, risk_score
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	var risk sql.NullInt64
	if rec.RiskScore != nil {
		risk = sql.NullInt64{Int64: int64(*rec.RiskScore), Valid: true}
	}

	result, err := r.db.ExecContext(ctx, query,
		rec.InstanceID,
		rec.ClientID,
		rec.SubmissionDate,
		rec.Status,
		rec.Content,
		rec.Timestamp.UTC(),
		risk,
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAuditWrite, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("%w: failed to get last insert id: %w", ErrAuditWrite, err)
	}

	rec.ID = id
	return nil
}

// QueryByInstance returns all records of an instance ordered by timestamp
func (r *SQLiteAuditRepository) QueryByInstance(ctx context.Context, instanceID string) ([]models.AuditRecord, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_records WHERE instance_id = ? ORDER BY recorded_at, id`
	return r.query(ctx, query, instanceID)
}

// QueryByClient returns all records of a client ordered by timestamp
func (r *SQLiteAuditRepository) QueryByClient(ctx context.Context, clientID string) ([]models.AuditRecord, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_records WHERE client_id = ? ORDER BY recorded_at, id`
	return r.query(ctx, query, clientID)
}

// PendingInstances returns latest records still In_Progress
func (r *SQLiteAuditRepository) PendingInstances(ctx context.Context) ([]models.AuditRecord, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM audit_records a
		WHERE a.id = (SELECT MAX(b.id) FROM audit_records b WHERE b.instance_id = a.instance_id)
		  AND a.status = ?
		ORDER BY a.recorded_at, a.id
	`
	return r.query(ctx, query, models.AuditInProgress)
}

// PurgeClient deletes every record of a client
func (r *SQLiteAuditRepository) PurgeClient(ctx context.Context, clientID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM audit_records WHERE client_id = ?`, clientID)
	if err != nil {
		return 0, fmt.Errorf("failed to purge client records: %w", err)
	}
	return result.RowsAffected()
}

func (r *SQLiteAuditRepository) query(ctx context.Context, query string, args ...interface{}) ([]models.AuditRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer rows.Close()

	var records []models.AuditRecord
	for rows.Next() {
		var rec models.AuditRecord
		var risk sql.NullInt64
		err := rows.Scan(
			&rec.ID,
			&rec.InstanceID,
			&rec.ClientID,
			&rec.SubmissionDate,
			&rec.Status,
			&rec.Content,
			&rec.Timestamp,
			&risk,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		if risk.Valid {
			score := int(risk.Int64)
			rec.RiskScore = &score
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit records: %w", err)
	}

	return records, nil
}

// Close closes the database connection
func (r *SQLiteAuditRepository) Close() error {
	return r.db.Close()
}
