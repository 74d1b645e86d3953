package main

import (
	"errors"

	"github.com/thesisman/backend/storage/database"
)

var (
	gooseRunFunc = database.RunMigrations // mockable

	errNoSchema = errors.New("the memory engine has no schema to migrate")
)

func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return errNoSchema
	}
	return gooseRunFunc(cli.db.DB, args[0], args[1:]...)
}
