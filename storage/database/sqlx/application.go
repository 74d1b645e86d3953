package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/thesisman/backend/core/application"
)

const applicationColumns = "id, proposal_id, student_id, state, created_at"

type applicationRepository struct {
	repo
}

var _ application.Repository = (*applicationRepository)(nil) // interface compliance check

func NewApplicationRepository(db *sqlx.DB) *applicationRepository {
	return &applicationRepository{repo{db: db}}
}

type applicationRow struct {
	ID         string    `db:"id"`
	ProposalID string    `db:"proposal_id"`
	StudentID  string    `db:"student_id"`
	State      string    `db:"state"`
	CreatedAt  time.Time `db:"created_at"`
}

func (row applicationRow) application() application.Application {
	return application.Application{
		ID:         row.ID,
		ProposalID: row.ProposalID,
		StudentID:  row.StudentID,
		State:      application.State(row.State),
		CreatedAt:  row.CreatedAt.UTC(),
	}
}

func (r applicationRepository) conditions(filter application.QueryFilter) conditions {
	var conds conditions
	if len(filter.IDs) > 0 {
		conds.add("id IN (?)", filter.IDs)
	}
	if len(filter.ProposalIDs) > 0 {
		conds.add("proposal_id IN (?)", filter.ProposalIDs)
	}
	if filter.StudentID != "" {
		conds.add("student_id = ?", filter.StudentID)
	}
	if len(filter.States) > 0 {
		states := make([]string, 0, len(filter.States))
		for _, s := range filter.States {
			states = append(states, string(s))
		}
		conds.add("state IN (?)", states)
	}
	return conds
}

func (r applicationRepository) selectRows(ctx context.Context, q string, args []interface{}) ([]application.Application, error) {
	var rows []applicationRow
	if err := sqlx.SelectContext(ctx, r.getExec(ctx), &rows, q, args...); err != nil {
		return nil, err
	}
	apps := make([]application.Application, 0, len(rows))
	for _, row := range rows {
		apps = append(apps, row.application())
	}
	return apps, nil
}

func (r applicationRepository) CreateApplication(ctx context.Context, app application.Application) (application.Application, error) {
	row := applicationRow{
		ID:         app.ID,
		ProposalID: app.ProposalID,
		StudentID:  app.StudentID,
		State:      string(app.State),
		CreatedAt:  app.CreatedAt.UTC(),
	}
	_, err := sqlx.NamedExecContext(ctx, r.getExec(ctx),
		"INSERT INTO applications ("+applicationColumns+") VALUES (:id, :proposal_id, :student_id, :state, :created_at)", row)
	if err != nil {
		return application.Application{}, trapUniqueErr(err, application.ErrAlreadyApplied.Error(), "inserting application")
	}
	return row.application(), nil
}

func (r applicationRepository) GetApplication(ctx context.Context, id string) (application.Application, error) {
	var row applicationRow
	err := sqlx.GetContext(ctx, r.getExec(ctx), &row, "SELECT "+applicationColumns+" FROM applications WHERE id = $1", id)
	if err != nil {
		return application.Application{}, trapNoRowsErr(err, application.ErrNotFound, "getting application")
	}
	return row.application(), nil
}

func (r applicationRepository) QueryApplications(ctx context.Context, filter application.QueryFilter) ([]application.Application, error) {
	conds := r.conditions(filter)
	q, args, err := conds.build("SELECT " + applicationColumns + " FROM applications" + conds.where() + " ORDER BY created_at, id")
	if err != nil {
		return nil, err
	}
	apps, err := r.selectRows(ctx, q, args)
	return apps, errors.Wrap(err, "querying applications")
}

func (r applicationRepository) UpdateApplicationState(ctx context.Context, id string, state application.State) (application.Application, error) {
	var row applicationRow
	err := sqlx.GetContext(ctx, r.getExec(ctx), &row,
		"UPDATE applications SET state = $1 WHERE id = $2 RETURNING "+applicationColumns, string(state), id)
	if err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return application.Application{}, application.ErrNotFound
		}
		return application.Application{}, trapUniqueErr(err, "the proposal already has an accepted application", "updating application")
	}
	return row.application(), nil
}

func (r applicationRepository) UpdateStates(ctx context.Context, filter application.QueryFilter, state application.State) ([]application.Application, error) {
	conds := r.conditions(filter)
	if len(conds.clauses) == 0 {
		return nil, errors.New("refusing to update every application")
	}
	q, args, err := conds.build("UPDATE applications SET state = ?"+conds.where()+" RETURNING "+applicationColumns, string(state))
	if err != nil {
		return nil, err
	}
	apps, err := r.selectRows(ctx, q, args)
	return apps, errors.Wrap(err, "updating application states")
}
