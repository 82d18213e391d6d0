package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tunogya/spi/pkg/data"
	"github.com/tunogya/spi/pkg/model"
)

// StrategyRepo reads and writes strategies
type StrategyRepo struct {
	db *DB
}

var _ data.StrategyReader = (*StrategyRepo)(nil)

// NewStrategyRepo creates a new strategy repository
func NewStrategyRepo(db *DB) *StrategyRepo {
	return &StrategyRepo{db: db}
}

// FindByID returns the strategy, or nil when it does not exist
func (r *StrategyRepo) FindByID(ctx context.Context, id string) (*model.StrategyRecord, error) {
	var s model.StrategyRecord
	var config []byte

	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, user_id, tenant_id, name, description, config, status, tier, created_at, updated_at
		FROM strategies WHERE id = $1
	`, id).Scan(
		&s.ID, &s.UserID, &s.TenantID, &s.Name, &s.Description, &config,
		&s.Status, &s.Tier, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query strategy %s: %w", id, err)
	}

	if s.Config, err = decodeConfig(config); err != nil {
		return nil, fmt.Errorf("failed to decode config of strategy %s: %w", id, err)
	}
	return &s, nil
}

// ListIDs returns the ids of a tenant's strategies, or of all strategies when tenantID is empty
func (r *StrategyRepo) ListIDs(ctx context.Context, tenantID string) ([]string, error) {
	query := `SELECT id FROM strategies ORDER BY created_at, id`
	args := []any{}
	if tenantID != "" {
		query = `SELECT id FROM strategies WHERE tenant_id = $1 ORDER BY created_at, id`
		args = append(args, tenantID)
	}

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list strategies: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan strategy ids: %w", err)
	}
	return ids, nil
}

// Save upserts a strategy
func (r *StrategyRepo) Save(ctx context.Context, s *model.StrategyRecord) error {
	config, err := json.Marshal(s.Config)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = now
	}

	_, err = r.db.Pool.Exec(ctx, `
		INSERT INTO strategies (id, user_id, tenant_id, name, description, config, status, tier, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			config = EXCLUDED.config,
			status = EXCLUDED.status,
			tier = EXCLUDED.tier,
			updated_at = EXCLUDED.updated_at
	`, s.ID, s.UserID, s.TenantID, s.Name, s.Description, config, s.Status, s.Tier, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save strategy %s: %w", s.ID, err)
	}
	return nil
}

func decodeConfig(raw []byte) (map[string]any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var config map[string]any
	if err := json.Unmarshal(raw, &config); err != nil {
		return nil, err
	}
	return config, nil
}
