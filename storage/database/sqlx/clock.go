package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/thesisman/backend/core/clock"
)

type clockRepository struct {
	repo
}

var _ clock.Repository = (*clockRepository)(nil) // interface compliance check

func NewClockRepository(db *sqlx.DB) *clockRepository {
	return &clockRepository{repo{db: db}}
}

func (r clockRepository) get(ctx context.Context, lock bool) (clock.State, error) {
	q := "SELECT delta_days FROM clock_state WHERE id = 1"
	if lock {
		q += " FOR UPDATE"
	}
	var state clock.State
	err := sqlx.GetContext(ctx, r.getExec(ctx), &state, q)
	if errors.Cause(err) == sql.ErrNoRows {
		return clock.State{}, nil
	}
	return state, errors.Wrap(err, "getting clock state")
}

func (r clockRepository) GetState(ctx context.Context) (clock.State, error) {
	return r.get(ctx, false)
}

func (r clockRepository) LockState(ctx context.Context) (clock.State, error) {
	return r.get(ctx, true)
}

func (r clockRepository) SaveState(ctx context.Context, state clock.State) error {
	_, err := r.getExec(ctx).ExecContext(ctx,
		"INSERT INTO clock_state (id, delta_days) VALUES (1, $1) ON CONFLICT (id) DO UPDATE SET delta_days = EXCLUDED.delta_days",
		state.DeltaDays)
	return errors.Wrap(err, "saving clock state")
}
