package savedobjects

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PostgresClient implements Client against the saved_objects table. It is
// the pass-through storage layer; it performs no authorization of its own.
type PostgresClient struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresClient creates a postgres-backed saved-objects client.
func NewPostgresClient(db *sql.DB, logger *zap.Logger) *PostgresClient {
	return &PostgresClient{
		db:     db,
		logger: logger,
	}
}

// InitSchema creates the saved_objects table if it does not exist.
func (c *PostgresClient) InitSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS saved_objects (
			id UUID PRIMARY KEY,
			type VARCHAR(100) NOT NULL,
			attributes JSONB NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_saved_objects_type ON saved_objects(type);
		CREATE INDEX IF NOT EXISTS idx_saved_objects_updated_at ON saved_objects(updated_at);
	`
	if _, err := c.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize saved objects schema: %w", err)
	}
	c.logger.Info("saved objects schema initialized")
	return nil
}

// Create inserts a new saved object.
func (c *PostgresClient) Create(ctx context.Context, obj *SavedObject) (*SavedObject, error) {
	query := `
		INSERT INTO saved_objects (id, type, attributes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := c.db.ExecContext(ctx, query,
		obj.ID,
		obj.Type,
		obj.Attributes,
		obj.CreatedAt,
		obj.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create saved object: %w", err)
	}

	c.logger.Debug("saved object created",
		zap.String("id", obj.ID.String()),
		zap.String("type", obj.Type))
	return obj, nil
}

// BulkCreate inserts multiple saved objects in one transaction.
func (c *PostgresClient) BulkCreate(ctx context.Context, objs []*SavedObject) ([]*SavedObject, error) {
	if len(objs) == 0 {
		return nil, nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin bulk create: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO saved_objects (id, type, attributes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	for _, obj := range objs {
		if _, err := tx.ExecContext(ctx, query,
			obj.ID, obj.Type, obj.Attributes, obj.CreatedAt, obj.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to bulk create saved object %s: %w", obj.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit bulk create: %w", err)
	}

	c.logger.Debug("saved objects bulk created", zap.Int("count", len(objs)))
	return objs, nil
}

// Get retrieves a saved object by type and id.
func (c *PostgresClient) Get(ctx context.Context, objectType string, id uuid.UUID) (*SavedObject, error) {
	query := `
		SELECT id, type, attributes, created_at, updated_at
		FROM saved_objects
		WHERE type = $1 AND id = $2
	`

	obj := &SavedObject{}
	err := c.db.QueryRowContext(ctx, query, objectType, id).Scan(
		&obj.ID,
		&obj.Type,
		&obj.Attributes,
		&obj.CreatedAt,
		&obj.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, objectType, id)
		}
		return nil, fmt.Errorf("failed to get saved object: %w", err)
	}

	return obj, nil
}

// Find retrieves saved objects of a type with pagination.
func (c *PostgresClient) Find(ctx context.Context, opts FindOptions) ([]*SavedObject, error) {
	perPage := opts.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	page := opts.Page
	if page <= 0 {
		page = 1
	}

	query := `
		SELECT id, type, attributes, created_at, updated_at
		FROM saved_objects
		WHERE type = $1
		ORDER BY updated_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := c.db.QueryContext(ctx, query, opts.Type, perPage, (page-1)*perPage)
	if err != nil {
		return nil, fmt.Errorf("failed to find saved objects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var objs []*SavedObject
	for rows.Next() {
		obj := &SavedObject{}
		if err := rows.Scan(&obj.ID, &obj.Type, &obj.Attributes, &obj.CreatedAt, &obj.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan saved object: %w", err)
		}
		objs = append(objs, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate saved objects: %w", err)
	}

	return objs, nil
}

// Update replaces a saved object's attributes.
func (c *PostgresClient) Update(ctx context.Context, obj *SavedObject) (*SavedObject, error) {
	query := `
		UPDATE saved_objects
		SET attributes = $1, updated_at = $2
		WHERE type = $3 AND id = $4
	`

	obj.UpdatedAt = time.Now()
	result, err := c.db.ExecContext(ctx, query, obj.Attributes, obj.UpdatedAt, obj.Type, obj.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update saved object: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, obj.Type, obj.ID)
	}

	c.logger.Debug("saved object updated",
		zap.String("id", obj.ID.String()),
		zap.String("type", obj.Type))
	return obj, nil
}

// Delete removes a saved object.
func (c *PostgresClient) Delete(ctx context.Context, objectType string, id uuid.UUID) error {
	query := `DELETE FROM saved_objects WHERE type = $1 AND id = $2`

	result, err := c.db.ExecContext(ctx, query, objectType, id)
	if err != nil {
		return fmt.Errorf("failed to delete saved object: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, objectType, id)
	}

	c.logger.Debug("saved object deleted",
		zap.String("id", id.String()),
		zap.String("type", objectType))
	return nil
}
