package main

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/thesisman/backend/core"
	"github.com/thesisman/backend/core/user"
)

type userStore interface {
	user.Repository
	CreateUser(ctx context.Context, usr user.User) (user.User, error)
}

var errInvalidRole = fmt.Errorf("role must be one of %v", user.AllRoles)

// addUser creates a user.User in the directory
func (cli *commandLine) addUser(id, name, surname, email, role string) error {
	usr := user.User{
		ID:      core.CleanString(id),
		Name:    core.CleanString(name),
		Surname: core.CleanString(surname),
		Email:   core.CleanString(email, true /* lower */),
		Role:    user.Role(core.CleanString(role, true /* lower */)),
	}
	if !usr.Role.Valid() {
		return errInvalidRole
	}
	if err := validator.New().Var(usr.Email, "email"); err != nil {
		return fmt.Errorf("invalid email %q", usr.Email)
	}

	usr, err := cli.users.CreateUser(context.Background(), usr)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "user %s (%s) added as %s\n", usr.ID, usr.Email, usr.Role)
	return nil
}
