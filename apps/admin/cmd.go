package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/thesisman/backend/core"
	"github.com/thesisman/backend/core/clock"
	"github.com/thesisman/backend/core/sweeper"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	conf    *core.Config
	db      *sqlx.DB // nil on the memory engine
	users   userStore
	clock   *clock.Service
	sweeper *sweeper.Service
	out     io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose command (up, down, status, ...) against the database")
	fmt.Fprintln(cli.out, "  adduser -id ID -name NAME -surname SURNAME -email EMAIL -role ROLE - add a user to the directory")
	fmt.Fprintln(cli.out, "  clock [-delta DAYS | -date YYYY-MM-DD] - show or move the virtual clock forward")
	fmt.Fprintln(cli.out, "  sweep - run the expiration sweep for the current virtual date")
	fmt.Fprintln(cli.out, "  token -id ID [-ttl DURATION] - print an API token for a user")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserID := addUserCmd.String("id", "", "The user's ID (matricola).")
	addUserName := addUserCmd.String("name", "", "The user's first name.")
	addUserSurname := addUserCmd.String("surname", "", "The user's last name.")
	addUserEmail := addUserCmd.String("email", "", "The user's email address.")
	addUserRole := addUserCmd.String("role", "", "One of student, teacher, secretary_clerk.")

	clockCmd := flag.NewFlagSet("clock", flag.ContinueOnError)
	clockDelta := clockCmd.String("delta", "", "Days between the real and the virtual date.")
	clockDate := clockCmd.String("date", "", "Virtual date to move to (YYYY-MM-DD).")

	tokenCmd := flag.NewFlagSet("token", flag.ContinueOnError)
	tokenID := tokenCmd.String("id", "", "The user's ID.")
	tokenTTL := tokenCmd.Duration("ttl", 24*time.Hour, "How long the token is valid.")

	for _, fs := range []*flag.FlagSet{addUserCmd, clockCmd, tokenCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *addUserID == "" || *addUserEmail == "" || *addUserRole == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserID, *addUserName, *addUserSurname, *addUserEmail, *addUserRole)

	case "clock":
		if err := clockCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *clockDelta != "" && *clockDate != "" {
			clockCmd.Usage()
			return errHelp
		}
		raw := *clockDelta
		if raw == "" {
			raw = *clockDate
		}
		return cli.moveClock(raw)

	case "sweep":
		return cli.sweep()

	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *tokenID == "" || *tokenTTL <= 0 {
			tokenCmd.Usage()
			return errHelp
		}
		return cli.token(*tokenID, *tokenTTL)

	default:
		cli.printUsage()
		return errHelp
	}
}
