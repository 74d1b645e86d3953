package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/thesisman/backend/core/user"
)

const userColumns = "id, name, surname, email, role"

type userRepository struct {
	repo
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{repo{db: db}}
}

func (r userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var conds conditions
	switch {
	case filter.ID != "":
		conds.add("id = ?", filter.ID)
	case filter.Email != "":
		conds.add("lower(email) = lower(?)", filter.Email)
	default:
		return user.User{}, user.ErrNotFound
	}

	q, args, err := conds.build("SELECT " + userColumns + " FROM users" + conds.where())
	if err != nil {
		return user.User{}, err
	}
	var usr user.User
	if err = sqlx.GetContext(ctx, r.getExec(ctx), &usr, q, args...); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "getting user")
	}
	return usr, nil
}

func (r userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter) ([]user.User, error) {
	var conds conditions
	if filter.Role != "" {
		conds.add("role = ?", filter.Role)
	}
	if len(filter.IDs) > 0 {
		conds.add("id IN (?)", filter.IDs)
	}
	if len(filter.Emails) > 0 {
		conds.add("lower(email) IN (?)", filter.Emails)
	}

	q, args, err := conds.build("SELECT " + userColumns + " FROM users" + conds.where() + " ORDER BY surname, name, id")
	if err != nil {
		return nil, err
	}
	users := make([]user.User, 0)
	if err = sqlx.SelectContext(ctx, r.getExec(ctx), &users, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return users, nil
}

// CreateUser provisions a directory entry. The workflow never calls it.
func (r userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	_, err := sqlx.NamedExecContext(ctx, r.getExec(ctx),
		"INSERT INTO users ("+userColumns+") VALUES (:id, :name, :surname, :email, :role)", usr)
	if err != nil {
		return user.User{}, trapUniqueErr(err, "a user with this ID or email already exists", "inserting user")
	}
	return usr, nil
}
