package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/thesisman/backend/core/clock"
	"github.com/thesisman/backend/core/startrequest"
)

const startRequestColumns = "id, student_id, supervisor_id, co_supervisors, title, description, status, " +
	"changes_requested, approval_date, created_at"

type startRequestRow struct {
	ID               string         `db:"id"`
	StudentID        string         `db:"student_id"`
	SupervisorID     string         `db:"supervisor_id"`
	CoSupervisors    pq.StringArray `db:"co_supervisors"`
	Title            string         `db:"title"`
	Description      string         `db:"description"`
	Status           string         `db:"status"`
	ChangesRequested null.String    `db:"changes_requested"`
	ApprovalDate     null.Time      `db:"approval_date"`
	CreatedAt        time.Time      `db:"created_at"`
}

type startRequestRepository struct {
	repo
}

var _ startrequest.Repository = (*startRequestRepository)(nil) // interface compliance check

func NewStartRequestRepository(db *sqlx.DB) *startRequestRepository {
	return &startRequestRepository{repo{db: db}}
}

func (r startRequestRepository) toRow(sr startrequest.StartRequest) startRequestRow {
	return startRequestRow{
		ID:               sr.ID,
		StudentID:        sr.StudentID,
		SupervisorID:     sr.SupervisorID,
		CoSupervisors:    nonNil(sr.CoSupervisors),
		Title:            sr.Title,
		Description:      sr.Description,
		Status:           string(sr.Status),
		ChangesRequested: sr.ChangesRequested,
		ApprovalDate:     sr.ApprovalDate,
		CreatedAt:        sr.CreatedAt.UTC(),
	}
}

func (r startRequestRepository) fromRow(row startRequestRow) startrequest.StartRequest {
	sr := startrequest.StartRequest{
		ID:               row.ID,
		StudentID:        row.StudentID,
		SupervisorID:     row.SupervisorID,
		CoSupervisors:    nonNil(row.CoSupervisors),
		Title:            row.Title,
		Description:      row.Description,
		Status:           startrequest.Status(row.Status),
		ChangesRequested: row.ChangesRequested,
		CreatedAt:        row.CreatedAt.UTC(),
	}
	if row.ApprovalDate.Valid {
		sr.ApprovalDate = null.TimeFrom(clock.Date(row.ApprovalDate.Time))
	}
	return sr
}

func (r startRequestRepository) CreateStartRequest(ctx context.Context, sr startrequest.StartRequest) (startrequest.StartRequest, error) {
	_, err := sqlx.NamedExecContext(ctx, r.getExec(ctx),
		"INSERT INTO start_requests ("+startRequestColumns+") VALUES (:id, :student_id, :supervisor_id, "+
			":co_supervisors, :title, :description, :status, :changes_requested, :approval_date, :created_at)",
		r.toRow(sr))
	if err != nil {
		return startrequest.StartRequest{}, trapUniqueErr(err, startrequest.ErrOutstanding.Error(), "inserting start request")
	}
	return r.GetStartRequest(ctx, sr.ID)
}

func (r startRequestRepository) get(ctx context.Context, id string, lock bool) (startrequest.StartRequest, error) {
	q := "SELECT " + startRequestColumns + " FROM start_requests WHERE id = $1"
	if lock {
		q += " FOR UPDATE"
	}
	var row startRequestRow
	if err := sqlx.GetContext(ctx, r.getExec(ctx), &row, q, id); err != nil {
		return startrequest.StartRequest{}, trapNoRowsErr(err, startrequest.ErrNotFound, "getting start request")
	}
	return r.fromRow(row), nil
}

func (r startRequestRepository) GetStartRequest(ctx context.Context, id string) (startrequest.StartRequest, error) {
	return r.get(ctx, id, false)
}

func (r startRequestRepository) LockStartRequest(ctx context.Context, id string) (startrequest.StartRequest, error) {
	return r.get(ctx, id, true)
}

func (r startRequestRepository) QueryStartRequests(ctx context.Context, filter startrequest.QueryFilter) ([]startrequest.StartRequest, error) {
	var conds conditions
	if filter.StudentID != "" {
		conds.add("student_id = ?", filter.StudentID)
	}
	switch {
	case filter.TeacherID != "" && filter.TeacherEmail != "":
		conds.add("(supervisor_id = ? OR ? = ANY(co_supervisors))", filter.TeacherID, filter.TeacherEmail)
	case filter.TeacherID != "":
		conds.add("supervisor_id = ?", filter.TeacherID)
	case filter.TeacherEmail != "":
		conds.add("? = ANY(co_supervisors)", filter.TeacherEmail)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		conds.add("status IN (?)", statuses)
	}

	q, args, err := conds.build("SELECT " + startRequestColumns + " FROM start_requests" + conds.where() + " ORDER BY created_at DESC, id")
	if err != nil {
		return nil, err
	}
	var rows []startRequestRow
	if err = sqlx.SelectContext(ctx, r.getExec(ctx), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying start requests")
	}
	srs := make([]startrequest.StartRequest, 0, len(rows))
	for _, row := range rows {
		srs = append(srs, r.fromRow(row))
	}
	return srs, nil
}

func (r startRequestRepository) UpdateStartRequest(ctx context.Context, sr startrequest.StartRequest) (startrequest.StartRequest, error) {
	res, err := sqlx.NamedExecContext(ctx, r.getExec(ctx),
		"UPDATE start_requests SET co_supervisors = :co_supervisors, title = :title, description = :description, "+
			"status = :status, changes_requested = :changes_requested, approval_date = :approval_date WHERE id = :id",
		r.toRow(sr))
	if err != nil {
		return startrequest.StartRequest{}, trapUniqueErr(err, startrequest.ErrOutstanding.Error(), "updating start request")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return startrequest.StartRequest{}, startrequest.ErrNotFound
	}
	return r.GetStartRequest(ctx, sr.ID)
}
