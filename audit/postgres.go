package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgresRecorder persists audit entries to the access_audit table.
type PostgresRecorder struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresRecorder creates a postgres-backed recorder.
func NewPostgresRecorder(db *sql.DB, logger *zap.Logger) *PostgresRecorder {
	return &PostgresRecorder{db: db, logger: logger}
}

// InitSchema creates the audit table if it does not exist.
func (r *PostgresRecorder) InitSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS access_audit (
			id UUID PRIMARY KEY,
			username VARCHAR(255) NOT NULL,
			actions TEXT[] NOT NULL,
			outcome VARCHAR(16) NOT NULL,
			request_id VARCHAR(255),
			timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_access_audit_username ON access_audit(username);
		CREATE INDEX IF NOT EXISTS idx_access_audit_outcome ON access_audit(outcome);
		CREATE INDEX IF NOT EXISTS idx_access_audit_timestamp ON access_audit(timestamp);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize audit schema: %w", err)
	}
	r.logger.Info("audit schema initialized")
	return nil
}

// Record implements Recorder.
func (r *PostgresRecorder) Record(ctx context.Context, entry *Entry) error {
	query := `
		INSERT INTO access_audit (id, username, actions, outcome, request_id, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.Username,
		pq.Array(entry.Actions),
		entry.Outcome,
		entry.RequestID,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// LogRecorder writes audit entries to the structured log. Used when no
// database is available, and as the development default.
type LogRecorder struct {
	logger *zap.Logger
}

// NewLogRecorder creates a log-backed recorder.
func NewLogRecorder(logger *zap.Logger) *LogRecorder {
	return &LogRecorder{logger: logger}
}

// Record implements Recorder.
func (r *LogRecorder) Record(ctx context.Context, entry *Entry) error {
	r.logger.Info("access audit",
		zap.String("audit_id", entry.ID.String()),
		zap.String("username", entry.Username),
		zap.Strings("actions", entry.Actions),
		zap.String("outcome", string(entry.Outcome)),
		zap.String("request_id", entry.RequestID),
		zap.Time("timestamp", entry.Timestamp))
	return nil
}
