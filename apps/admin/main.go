package main

import (
	"fmt"
	"log"
	"os"

	"github.com/jmoiron/sqlx"
	"go.uber.org/dig"

	dig_container "github.com/thesisman/backend/apps/api/di/dig"
	"github.com/thesisman/backend/core"
	"github.com/thesisman/backend/core/clock"
	"github.com/thesisman/backend/core/sweeper"
	"github.com/thesisman/backend/core/user"
)

type cliParams struct {
	dig.In

	Conf    *core.Config
	Logger  core.Logger
	DB      *sqlx.DB
	Users   user.Repository
	Clock   *clock.Service
	Sweeper *sweeper.Service
}

func main() {
	c := dig_container.New(dig_container.Options{LoggerPrefix: "ADMIN"})

	must(c.Invoke(func(p cliParams) {
		if p.DB != nil {
			defer p.DB.Close()
		}
		core.ParseEmailTemplates(p.Conf, p.Logger)

		users, ok := p.Users.(userStore)
		if !ok {
			log.Fatal("user repository cannot create users")
		}
		cli := commandLine{
			conf:    p.Conf,
			db:      p.DB,
			users:   users,
			clock:   p.Clock,
			sweeper: p.Sweeper,
			out:     os.Stdout,
		}
		if err := cli.run(os.Args); err != nil {
			if err != errHelp {
				fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
			}
			os.Exit(1)
		}
	}))
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
