package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-iot-backend/internal/model"
)

// controlRowID is the single row of switch_condition.
const controlRowID = 1

type ControlRepository struct {
	pool *pgxpool.Pool
}

func NewControlRepository(pool *pgxpool.Pool) *ControlRepository {
	return &ControlRepository{pool: pool}
}

func (r *ControlRepository) Get(ctx context.Context) (model.ControlState, error) {
	var state model.ControlState
	err := r.pool.QueryRow(ctx,
		`SELECT tv, updated_at FROM switch_condition WHERE id = $1`, controlRowID).
		Scan(&state.TV, &state.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return model.ControlState{}, model.ErrNotFound
	}
	if err != nil {
		return model.ControlState{}, fmt.Errorf("get control state: %w", err)
	}
	return state, nil
}

// EnsureDefault creates the TV=0 row if it does not exist yet.
func (r *ControlRepository) EnsureDefault(ctx context.Context) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO switch_condition (id, tv, created_at, updated_at)
		 VALUES ($1, 0, now(), now())
		 ON CONFLICT (id) DO NOTHING`, controlRowID)
	if err != nil {
		return fmt.Errorf("initialize control state: %w", err)
	}
	return nil
}

func (r *ControlRepository) Set(ctx context.Context, tv int) (model.ControlState, int64, error) {
	state, affected, err := r.writeRow(ctx,
		`INSERT INTO switch_condition (id, tv, created_at, updated_at)
		 VALUES ($1, $2, now(), now())
		 ON CONFLICT (id) DO UPDATE SET tv = EXCLUDED.tv, updated_at = now()
		 RETURNING tv, updated_at`, controlRowID, tv)
	if err != nil {
		return model.ControlState{}, 0, fmt.Errorf("set control state: %w", err)
	}
	return state, affected, nil
}

// Toggle flips TV in one statement so concurrent toggles never read a stale
// value. The row must exist (see EnsureDefault).
func (r *ControlRepository) Toggle(ctx context.Context) (model.ControlState, int64, error) {
	state, affected, err := r.writeRow(ctx,
		`UPDATE switch_condition SET tv = 1 - tv, updated_at = now()
		 WHERE id = $1 RETURNING tv, updated_at`, controlRowID)
	if err != nil {
		return model.ControlState{}, 0, fmt.Errorf("toggle control state: %w", err)
	}
	return state, affected, nil
}

// writeRow runs a statement returning (tv, updated_at) and reports the rows
// affected from its command tag.
func (r *ControlRepository) writeRow(ctx context.Context, sql string, args ...any) (model.ControlState, int64, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return model.ControlState{}, 0, err
	}
	defer rows.Close()

	var state model.ControlState
	found := false
	for rows.Next() {
		if err := rows.Scan(&state.TV, &state.UpdatedAt); err != nil {
			return model.ControlState{}, 0, err
		}
		found = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return model.ControlState{}, 0, err
	}
	if !found {
		return model.ControlState{}, 0, model.ErrNotFound
	}
	return state, rows.CommandTag().RowsAffected(), nil
}
