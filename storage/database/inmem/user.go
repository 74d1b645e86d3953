package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/thesisman/backend/core"
	"github.com/thesisman/backend/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db}
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	defer repo.db.lock(ctx)()

	if filter.ID != "" {
		if usr, ok := repo.db.tables.users[filter.ID]; ok {
			return usr, nil
		}
		return user.User{}, user.ErrNotFound
	}
	if filter.Email != "" {
		for _, usr := range repo.db.tables.users {
			if strings.EqualFold(usr.Email, filter.Email) {
				return usr, nil
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter) ([]user.User, error) {
	defer repo.db.lock(ctx)()

	users := make([]user.User, 0)
	for _, usr := range repo.db.tables.users {
		if filter.Role != "" && usr.Role != filter.Role {
			continue
		}
		if len(filter.IDs) > 0 && !contains(filter.IDs, usr.ID) {
			continue
		}
		if len(filter.Emails) > 0 && !contains(filter.Emails, strings.ToLower(usr.Email)) {
			continue
		}
		users = append(users, usr)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].Surname != users[j].Surname {
			return users[i].Surname < users[j].Surname
		}
		if users[i].Name != users[j].Name {
			return users[i].Name < users[j].Name
		}
		return users[i].ID < users[j].ID
	})
	return users, nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	defer repo.db.lock(ctx)()

	for _, existing := range repo.db.tables.users {
		if existing.ID == usr.ID || strings.EqualFold(existing.Email, usr.Email) {
			return user.User{}, core.NewError(core.KindConflict, "a user with this ID or email already exists")
		}
	}
	repo.db.tables.users[usr.ID] = usr
	return usr, nil
}
