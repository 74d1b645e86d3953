package inmemdb

import (
	"context"
	"sort"

	"github.com/thesisman/backend/core/startrequest"
)

type startRequestRepository struct {
	db *DB
}

var _ startrequest.Repository = (*startRequestRepository)(nil) // interface compliance check

func NewStartRequestRepository(db *DB) *startRequestRepository {
	return &startRequestRepository{db: db}
}

func (repo *startRequestRepository) checkOutstanding(sr startrequest.StartRequest) error {
	if !isOutstanding(sr.Status) {
		return nil
	}
	for _, other := range repo.db.tables.startRequests {
		if other.ID != sr.ID && other.StudentID == sr.StudentID && isOutstanding(other.Status) {
			return startrequest.ErrOutstanding
		}
	}
	return nil
}

func (repo *startRequestRepository) store(sr startrequest.StartRequest) startrequest.StartRequest {
	sr.CoSupervisors = copyStrings(sr.CoSupervisors)
	repo.db.tables.startRequests[sr.ID] = sr
	return sr
}

func (repo *startRequestRepository) CreateStartRequest(ctx context.Context, sr startrequest.StartRequest) (startrequest.StartRequest, error) {
	defer repo.db.lock(ctx)()

	if err := repo.checkOutstanding(sr); err != nil {
		return startrequest.StartRequest{}, err
	}
	return repo.store(sr), nil
}

func (repo *startRequestRepository) GetStartRequest(ctx context.Context, id string) (startrequest.StartRequest, error) {
	defer repo.db.lock(ctx)()

	if sr, ok := repo.db.tables.startRequests[id]; ok {
		return sr, nil
	}
	return startrequest.StartRequest{}, startrequest.ErrNotFound
}

func (repo *startRequestRepository) LockStartRequest(ctx context.Context, id string) (startrequest.StartRequest, error) {
	return repo.GetStartRequest(ctx, id)
}

func (repo *startRequestRepository) QueryStartRequests(ctx context.Context, filter startrequest.QueryFilter) ([]startrequest.StartRequest, error) {
	defer repo.db.lock(ctx)()

	srs := make([]startrequest.StartRequest, 0)
	for _, sr := range repo.db.tables.startRequests {
		if filter.StudentID != "" && sr.StudentID != filter.StudentID {
			continue
		}
		if filter.TeacherID != "" || filter.TeacherEmail != "" {
			supervises := filter.TeacherID != "" && sr.SupervisorID == filter.TeacherID
			coSupervises := filter.TeacherEmail != "" && contains(sr.CoSupervisors, filter.TeacherEmail)
			if !supervises && !coSupervises {
				continue
			}
		}
		if len(filter.Statuses) > 0 && !hasStatus(filter.Statuses, sr.Status) {
			continue
		}
		srs = append(srs, sr)
	}
	sort.Slice(srs, func(i, j int) bool {
		if !srs[i].CreatedAt.Equal(srs[j].CreatedAt) {
			return srs[i].CreatedAt.After(srs[j].CreatedAt)
		}
		return srs[i].ID < srs[j].ID
	})
	return srs, nil
}

func (repo *startRequestRepository) UpdateStartRequest(ctx context.Context, sr startrequest.StartRequest) (startrequest.StartRequest, error) {
	defer repo.db.lock(ctx)()

	orig, ok := repo.db.tables.startRequests[sr.ID]
	if !ok {
		return startrequest.StartRequest{}, startrequest.ErrNotFound
	}
	if err := repo.checkOutstanding(sr); err != nil {
		return startrequest.StartRequest{}, err
	}
	sr.StudentID = orig.StudentID
	sr.SupervisorID = orig.SupervisorID
	sr.CreatedAt = orig.CreatedAt
	return repo.store(sr), nil
}

func isOutstanding(s startrequest.Status) bool {
	return hasStatus(startrequest.Outstanding, s)
}

func hasStatus(statuses []startrequest.Status, s startrequest.Status) bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}
