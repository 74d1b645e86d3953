package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/thesisman/backend/core/clock"
	"github.com/thesisman/backend/core/proposal"
)

const proposalColumns = "id, title, description, supervisor_id, co_supervisors, group_codes, keywords, " +
	"level, cds, expiration_date, deleted, manually_archived, created_at"

type proposalRow struct {
	ID               string         `db:"id"`
	Title            string         `db:"title"`
	Description      string         `db:"description"`
	SupervisorID     string         `db:"supervisor_id"`
	CoSupervisors    pq.StringArray `db:"co_supervisors"`
	Groups           pq.StringArray `db:"group_codes"`
	Keywords         pq.StringArray `db:"keywords"`
	Level            string         `db:"level"`
	CdS              string         `db:"cds"`
	ExpirationDate   time.Time      `db:"expiration_date"`
	Deleted          bool           `db:"deleted"`
	ManuallyArchived bool           `db:"manually_archived"`
	CreatedAt        time.Time      `db:"created_at"`
}

type proposalRepository struct {
	repo
}

var _ proposal.Repository = (*proposalRepository)(nil) // interface compliance check

func NewProposalRepository(db *sqlx.DB) *proposalRepository {
	return &proposalRepository{repo{db: db}}
}

func (r proposalRepository) toRow(p proposal.Proposal) proposalRow {
	return proposalRow{
		ID:               p.ID,
		Title:            p.Title,
		Description:      p.Description,
		SupervisorID:     p.SupervisorID,
		CoSupervisors:    nonNil(p.CoSupervisors),
		Groups:           nonNil(p.Groups),
		Keywords:         nonNil(p.Keywords),
		Level:            string(p.Level),
		CdS:              p.CdS,
		ExpirationDate:   p.ExpirationDate,
		Deleted:          p.Deleted,
		ManuallyArchived: p.ManuallyArchived,
		CreatedAt:        p.CreatedAt.UTC(),
	}
}

func (r proposalRepository) fromRow(row proposalRow) proposal.Proposal {
	return proposal.Proposal{
		ID:               row.ID,
		Title:            row.Title,
		Description:      row.Description,
		SupervisorID:     row.SupervisorID,
		CoSupervisors:    nonNil(row.CoSupervisors),
		Groups:           nonNil(row.Groups),
		Keywords:         nonNil(row.Keywords),
		Level:            proposal.Level(row.Level),
		CdS:              row.CdS,
		ExpirationDate:   clock.Date(row.ExpirationDate),
		Deleted:          row.Deleted,
		ManuallyArchived: row.ManuallyArchived,
		CreatedAt:        row.CreatedAt.UTC(),
	}
}

func (r proposalRepository) CreateProposal(ctx context.Context, p proposal.Proposal) (proposal.Proposal, error) {
	_, err := sqlx.NamedExecContext(ctx, r.getExec(ctx),
		"INSERT INTO proposals ("+proposalColumns+") VALUES (:id, :title, :description, :supervisor_id, "+
			":co_supervisors, :group_codes, :keywords, :level, :cds, :expiration_date, :deleted, "+
			":manually_archived, :created_at)",
		r.toRow(p))
	if err != nil {
		return proposal.Proposal{}, errors.Wrap(err, "inserting proposal")
	}
	return r.GetProposal(ctx, p.ID)
}

func (r proposalRepository) get(ctx context.Context, id string, lock bool) (proposal.Proposal, error) {
	q := "SELECT " + proposalColumns + " FROM proposals WHERE id = $1"
	if lock {
		q += " FOR UPDATE"
	}
	var row proposalRow
	if err := sqlx.GetContext(ctx, r.getExec(ctx), &row, q, id); err != nil {
		return proposal.Proposal{}, trapNoRowsErr(err, proposal.ErrNotFound, "getting proposal")
	}
	return r.fromRow(row), nil
}

func (r proposalRepository) GetProposal(ctx context.Context, id string) (proposal.Proposal, error) {
	return r.get(ctx, id, false)
}

func (r proposalRepository) LockProposal(ctx context.Context, id string) (proposal.Proposal, error) {
	return r.get(ctx, id, true)
}

func (r proposalRepository) QueryProposals(ctx context.Context, filter proposal.QueryFilter) ([]proposal.Proposal, error) {
	var conds conditions
	if len(filter.IDs) > 0 {
		conds.add("id IN (?)", filter.IDs)
	}
	if filter.SupervisorID != "" {
		conds.add("supervisor_id = ?", filter.SupervisorID)
	}
	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		conds.add("(title ILIKE ? OR description ILIKE ? OR array_to_string(keywords, ' ') ILIKE ?)", val, val, val)
	}
	if filter.Level != "" {
		conds.add("level = ?", string(filter.Level))
	}
	if filter.CdS != "" {
		conds.add("cds = ?", filter.CdS)
	}
	if !filter.ActiveOn.IsZero() {
		conds.add("NOT deleted AND NOT manually_archived AND expiration_date >= ? AND NOT EXISTS "+
			"(SELECT 1 FROM applications a WHERE a.proposal_id = proposals.id AND a.state = 'accepted')",
			filter.ActiveOn)
	}
	if !filter.ExpiringFrom.IsZero() {
		conds.add("expiration_date >= ?", filter.ExpiringFrom)
	}
	if !filter.ExpiringTo.IsZero() {
		conds.add("expiration_date <= ?", filter.ExpiringTo)
	}
	if !filter.IncludeDeleted {
		conds.add("NOT deleted")
	}
	if filter.ExcludeArchived {
		conds.add("NOT manually_archived")
	}

	q, args, err := conds.build("SELECT " + proposalColumns + " FROM proposals" + conds.where() +
		" ORDER BY expiration_date, created_at, id")
	if err != nil {
		return nil, err
	}
	var rows []proposalRow
	if err = sqlx.SelectContext(ctx, r.getExec(ctx), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying proposals")
	}
	props := make([]proposal.Proposal, 0, len(rows))
	for _, row := range rows {
		props = append(props, r.fromRow(row))
	}
	return props, nil
}

func (r proposalRepository) UpdateProposal(ctx context.Context, p proposal.Proposal) (proposal.Proposal, error) {
	res, err := sqlx.NamedExecContext(ctx, r.getExec(ctx),
		"UPDATE proposals SET title = :title, description = :description, co_supervisors = :co_supervisors, "+
			"group_codes = :group_codes, keywords = :keywords, level = :level, cds = :cds, "+
			"expiration_date = :expiration_date, deleted = :deleted, manually_archived = :manually_archived "+
			"WHERE id = :id",
		r.toRow(p))
	if err != nil {
		return proposal.Proposal{}, errors.Wrap(err, "updating proposal")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return proposal.Proposal{}, proposal.ErrNotFound
	}
	return r.GetProposal(ctx, p.ID)
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
