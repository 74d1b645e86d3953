package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/thesisman/backend/core/notification"
)

const notificationColumns = "id, student_id, teacher_id, object, content, date, read"

type notificationRow struct {
	ID        string      `db:"id"`
	StudentID null.String `db:"student_id"`
	TeacherID null.String `db:"teacher_id"`
	Object    string      `db:"object"`
	Content   string      `db:"content"`
	Date      time.Time   `db:"date"`
	Read      bool        `db:"read"`
}

type notificationRepository struct {
	repo
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *sqlx.DB) *notificationRepository {
	return &notificationRepository{repo{db: db}}
}

func (r notificationRepository) toRow(n notification.Notification) notificationRow {
	return notificationRow{
		ID:        n.ID,
		StudentID: null.NewString(n.StudentID, n.StudentID != ""),
		TeacherID: null.NewString(n.TeacherID, n.TeacherID != ""),
		Object:    n.Object,
		Content:   n.Content,
		Date:      n.Date.UTC(),
		Read:      n.Read,
	}
}

func (r notificationRepository) fromRow(row notificationRow) notification.Notification {
	return notification.Notification{
		ID:        row.ID,
		StudentID: row.StudentID.String,
		TeacherID: row.TeacherID.String,
		Object:    row.Object,
		Content:   row.Content,
		Date:      row.Date.UTC(),
		Read:      row.Read,
	}
}

func (r notificationRepository) CreateNotifications(ctx context.Context, notes ...notification.Notification) error {
	if len(notes) == 0 {
		return nil
	}
	rows := make([]notificationRow, 0, len(notes))
	for _, n := range notes {
		rows = append(rows, r.toRow(n))
	}
	_, err := sqlx.NamedExecContext(ctx, r.getExec(ctx),
		"INSERT INTO notifications ("+notificationColumns+") VALUES (:id, :student_id, :teacher_id, :object, :content, :date, :read)",
		rows)
	return errors.Wrap(err, "inserting notifications")
}

func (r notificationRepository) GetNotification(ctx context.Context, id string) (notification.Notification, error) {
	var row notificationRow
	err := sqlx.GetContext(ctx, r.getExec(ctx), &row, "SELECT "+notificationColumns+" FROM notifications WHERE id = $1", id)
	if err != nil {
		return notification.Notification{}, trapNoRowsErr(err, notification.ErrNotFound, "getting notification")
	}
	return r.fromRow(row), nil
}

func (r notificationRepository) QueryNotifications(ctx context.Context, filter notification.QueryFilter) ([]notification.Notification, error) {
	var conds conditions
	if filter.StudentID != "" {
		conds.add("student_id = ?", filter.StudentID)
	}
	if filter.TeacherID != "" {
		conds.add("teacher_id = ?", filter.TeacherID)
	}
	if filter.UnreadOnly {
		conds.add("NOT read")
	}

	q, args, err := conds.build("SELECT " + notificationColumns + " FROM notifications" + conds.where() + " ORDER BY date DESC, id")
	if err != nil {
		return nil, err
	}
	var rows []notificationRow
	if err = sqlx.SelectContext(ctx, r.getExec(ctx), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}
	notes := make([]notification.Notification, 0, len(rows))
	for _, row := range rows {
		notes = append(notes, r.fromRow(row))
	}
	return notes, nil
}

func (r notificationRepository) MarkRead(ctx context.Context, id string) error {
	res, err := r.getExec(ctx).ExecContext(ctx, "UPDATE notifications SET read = true WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "marking notification read")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notification.ErrNotFound
	}
	return nil
}
