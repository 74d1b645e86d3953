package inmemdb

import (
	"context"

	"github.com/thesisman/backend/core/clock"
)

type clockRepository struct {
	db *DB
}

var _ clock.Repository = (*clockRepository)(nil) // interface compliance check

func NewClockRepository(db *DB) *clockRepository {
	return &clockRepository{db: db}
}

func (repo *clockRepository) GetState(ctx context.Context) (clock.State, error) {
	defer repo.db.lock(ctx)()
	return repo.db.tables.clock, nil
}

func (repo *clockRepository) LockState(ctx context.Context) (clock.State, error) {
	return repo.GetState(ctx)
}

func (repo *clockRepository) SaveState(ctx context.Context, state clock.State) error {
	defer repo.db.lock(ctx)()
	repo.db.tables.clock = state
	return nil
}
