package inmemdb

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/thesisman/backend/core"
	"github.com/thesisman/backend/core/application"
)

type applicationRepository struct {
	db *DB
}

var _ application.Repository = (*applicationRepository)(nil) // interface compliance check

func NewApplicationRepository(db *DB) *applicationRepository {
	return &applicationRepository{db: db}
}

func (repo *applicationRepository) CreateApplication(ctx context.Context, app application.Application) (application.Application, error) {
	defer repo.db.lock(ctx)()

	if app.State == application.StatePending || app.State == application.StateAccepted {
		for _, a := range repo.db.tables.applications {
			if a.StudentID == app.StudentID && (a.State == application.StatePending || a.State == application.StateAccepted) {
				return application.Application{}, application.ErrAlreadyApplied
			}
		}
	}
	repo.db.tables.applications[app.ID] = app
	return app, nil
}

func (repo *applicationRepository) GetApplication(ctx context.Context, id string) (application.Application, error) {
	defer repo.db.lock(ctx)()

	if app, ok := repo.db.tables.applications[id]; ok {
		return app, nil
	}
	return application.Application{}, application.ErrNotFound
}

func (repo *applicationRepository) QueryApplications(ctx context.Context, filter application.QueryFilter) ([]application.Application, error) {
	defer repo.db.lock(ctx)()
	return repo.query(filter), nil
}

func (repo *applicationRepository) UpdateApplicationState(ctx context.Context, id string, state application.State) (application.Application, error) {
	defer repo.db.lock(ctx)()

	app, ok := repo.db.tables.applications[id]
	if !ok {
		return application.Application{}, application.ErrNotFound
	}
	if state == application.StateAccepted {
		for _, a := range repo.db.tables.applications {
			if a.ID != id && a.ProposalID == app.ProposalID && a.State == application.StateAccepted {
				return application.Application{}, core.NewError(core.KindConflict, "the proposal already has an accepted application")
			}
		}
	}
	app.State = state
	repo.db.tables.applications[id] = app
	return app, nil
}

func (repo *applicationRepository) UpdateStates(ctx context.Context, filter application.QueryFilter, state application.State) ([]application.Application, error) {
	defer repo.db.lock(ctx)()

	if len(filter.IDs) == 0 && len(filter.ProposalIDs) == 0 && filter.StudentID == "" && len(filter.States) == 0 {
		return nil, errors.New("refusing to update every application")
	}
	apps := repo.query(filter)
	for i := range apps {
		apps[i].State = state
		repo.db.tables.applications[apps[i].ID] = apps[i]
	}
	return apps, nil
}

func (repo *applicationRepository) query(filter application.QueryFilter) []application.Application {
	apps := make([]application.Application, 0)
	for _, app := range repo.db.tables.applications {
		if len(filter.IDs) > 0 && !contains(filter.IDs, app.ID) {
			continue
		}
		if len(filter.ProposalIDs) > 0 && !contains(filter.ProposalIDs, app.ProposalID) {
			continue
		}
		if filter.StudentID != "" && app.StudentID != filter.StudentID {
			continue
		}
		if len(filter.States) > 0 && !hasState(filter.States, app.State) {
			continue
		}
		apps = append(apps, app)
	}
	sort.Slice(apps, func(i, j int) bool {
		if !apps[i].CreatedAt.Equal(apps[j].CreatedAt) {
			return apps[i].CreatedAt.Before(apps[j].CreatedAt)
		}
		return apps[i].ID < apps[j].ID
	})
	return apps
}

func hasState(states []application.State, s application.State) bool {
	for _, st := range states {
		if st == s {
			return true
		}
	}
	return false
}
