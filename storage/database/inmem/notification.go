package inmemdb

import (
	"context"
	"sort"

	"github.com/thesisman/backend/core/notification"
)

type notificationRepository struct {
	db *DB
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *DB) *notificationRepository {
	return &notificationRepository{db: db}
}

func (repo *notificationRepository) CreateNotifications(ctx context.Context, notes ...notification.Notification) error {
	defer repo.db.lock(ctx)()
	for _, n := range notes {
		repo.db.tables.notifications[n.ID] = n
	}
	return nil
}

func (repo *notificationRepository) GetNotification(ctx context.Context, id string) (notification.Notification, error) {
	defer repo.db.lock(ctx)()

	if n, ok := repo.db.tables.notifications[id]; ok {
		return n, nil
	}
	return notification.Notification{}, notification.ErrNotFound
}

func (repo *notificationRepository) QueryNotifications(ctx context.Context, filter notification.QueryFilter) ([]notification.Notification, error) {
	defer repo.db.lock(ctx)()

	notes := make([]notification.Notification, 0)
	for _, n := range repo.db.tables.notifications {
		if filter.StudentID != "" && n.StudentID != filter.StudentID {
			continue
		}
		if filter.TeacherID != "" && n.TeacherID != filter.TeacherID {
			continue
		}
		if filter.UnreadOnly && n.Read {
			continue
		}
		notes = append(notes, n)
	}
	sort.Slice(notes, func(i, j int) bool {
		if !notes[i].Date.Equal(notes[j].Date) {
			return notes[i].Date.After(notes[j].Date)
		}
		return notes[i].ID < notes[j].ID
	})
	return notes, nil
}

func (repo *notificationRepository) MarkRead(ctx context.Context, id string) error {
	defer repo.db.lock(ctx)()

	n, ok := repo.db.tables.notifications[id]
	if !ok {
		return notification.ErrNotFound
	}
	n.Read = true
	repo.db.tables.notifications[id] = n
	return nil
}
