package dig_container

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/thesisman/backend/apps/api/echo"
	"github.com/thesisman/backend/core"
	"github.com/thesisman/backend/core/application"
	"github.com/thesisman/backend/core/clock"
	"github.com/thesisman/backend/core/event"
	"github.com/thesisman/backend/core/notification"
	"github.com/thesisman/backend/core/proposal"
	"github.com/thesisman/backend/core/startrequest"
	"github.com/thesisman/backend/core/sweeper"
	"github.com/thesisman/backend/core/user"
	appfs "github.com/thesisman/backend/fs"
	dedupsvc "github.com/thesisman/backend/services/dedup"
	emailsvc "github.com/thesisman/backend/services/email"
	logsvc "github.com/thesisman/backend/services/logger"
	metricsvc "github.com/thesisman/backend/services/metrics"
	"github.com/thesisman/backend/storage/database"
	inmemdb "github.com/thesisman/backend/storage/database/inmem"
	sqlxrepos "github.com/thesisman/backend/storage/database/sqlx"
)

const usersFixture = "fixtures/users.json"

type (
	// Options tune what the container does while building its values.
	Options struct {
		// Migrate creates the database if needed and applies the pending migrations.
		Migrate bool
		// LoggerPrefix prefixes the lines of the main logger.
		LoggerPrefix string
	}

	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	// Storage is the entity store picked by the configured engine.
	// DB is nil for the in-memory engine.
	Storage struct {
		dig.Out

		DB            *sqlx.DB
		Transactor    core.Transactor
		Users         user.Repository
		Proposals     proposal.Repository
		Applications  application.Repository
		StartRequests startrequest.Repository
		Notifications notification.Repository
		Clock         clock.Repository
	}

	// Publisher is the event publisher handed to the workflow services.
	Publisher struct {
		dig.Out
		Events event.Publisher
	}

	ServerParams struct {
		dig.In

		Conf          *core.Config
		Logger        core.Logger
		Metrics       *metricsvc.Metrics
		Validate      *validator.Validate
		Translator    ut.Translator
		Proposals     *proposal.Service
		Applications  *application.Service
		StartRequests *startrequest.Service
		Notifications *notification.Service
		Clock         *clock.Service
		Sweeper       *sweeper.Service
	}
)

func newLoggerFunc(prefix string) func(conf *core.Config) core.Logger {
	return func(conf *core.Config) core.Logger {
		stdLogger := log.New(os.Stdout, prefix+" : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
		logger := logsvc.NewRollbarLogger(stdLogger, conf)
		logger.Enable(!conf.Debug)
		return logger
	}
}

func newStorageFunc(opts Options) func(conf *core.Config, loggerParam DBLoggerParam) (Storage, error) {
	return func(conf *core.Config, loggerParam DBLoggerParam) (Storage, error) {
		if conf.Database.InMemory() {
			db := inmemdb.Open()
			if err := db.LoadUsers(appfs.FS, usersFixture); err != nil {
				return Storage{}, err
			}
			loggerParam.Logger.Warn("database: using the in-memory store, data is lost on exit")
			return Storage{
				Transactor:    db,
				Users:         inmemdb.NewUserRepository(db),
				Proposals:     inmemdb.NewProposalRepository(db),
				Applications:  inmemdb.NewApplicationRepository(db),
				StartRequests: inmemdb.NewStartRequestRepository(db),
				Notifications: inmemdb.NewNotificationRepository(db),
				Clock:         inmemdb.NewClockRepository(db),
			}, nil
		}

		if opts.Migrate {
			if err := database.CreateIfNotExist(conf); err != nil {
				return Storage{}, errors.Wrap(err, "creating database")
			}
		}
		db, err := database.Open(conf)
		if err != nil {
			return Storage{}, errors.Wrap(err, "opening database")
		}
		if opts.Migrate {
			if err = database.Migrate(db); err != nil {
				return Storage{}, errors.Wrap(err, "migrating database")
			}
		}
		loggerParam.Logger.Info(fmt.Sprintf("database: connected to %s/%s", conf.Database.Address(), conf.Database.Name))

		return Storage{
			DB:            db,
			Transactor:    database.NewTransactor(db),
			Users:         sqlxrepos.NewUserRepository(db),
			Proposals:     sqlxrepos.NewProposalRepository(db),
			Applications:  sqlxrepos.NewApplicationRepository(db),
			StartRequests: sqlxrepos.NewStartRequestRepository(db),
			Notifications: sqlxrepos.NewNotificationRepository(db),
			Clock:         sqlxrepos.NewClockRepository(db),
		}, nil
	}
}

func newClockService(conf *core.Config, repo clock.Repository, tx core.Transactor, logger core.Logger) *clock.Service {
	return clock.NewService(repo, tx, conf.Sweeper.Location(), logger)
}

func newDeduper(conf *core.Config, logger core.Logger) notification.Deduper {
	if conf.Redis.Address == "" {
		logger.Warn("dedup: no redis address, event claims are kept in memory")
		return dedupsvc.NewMemoryDeduper()
	}
	return dedupsvc.NewRedisDeduper(dedupsvc.NewRedisClient(conf), conf.Redis.DedupTTL)
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newDispatcher(
	repo notification.Repository,
	users *user.Service,
	dedup notification.Deduper,
	clk *clock.Service,
	email core.EmailService,
	logger core.Logger,
) *notification.Dispatcher {
	return notification.NewDispatcher(repo, users, dedup, clk, email, logger)
}

func newPublisher(m *metricsvc.Metrics, dispatcher *notification.Dispatcher) Publisher {
	return Publisher{Events: m.Publisher(dispatcher)}
}

func newApplicationService(
	repo application.Repository,
	proposals proposal.Repository,
	tx core.Transactor,
	clk *clock.Service,
	events event.Publisher,
) *application.Service {
	return application.NewService(repo, proposals, tx, clk, events)
}

func newProposalService(
	repo proposal.Repository,
	apps *application.Service,
	tx core.Transactor,
	clk *clock.Service,
	events event.Publisher,
) *proposal.Service {
	return proposal.NewService(repo, apps, tx, clk, events)
}

func newStartRequestService(
	repo startrequest.Repository,
	users *user.Service,
	tx core.Transactor,
	clk *clock.Service,
	events event.Publisher,
) *startrequest.Service {
	return startrequest.NewService(repo, users, tx, clk, events)
}

func newSweeperService(
	proposals proposal.Repository,
	apps *application.Service,
	tx core.Transactor,
	clk *clock.Service,
	events event.Publisher,
	logger core.Logger,
) *sweeper.Service {
	svc := sweeper.NewService(proposals, apps, tx, clk, events, logger)
	clk.SetSweeper(svc)
	return svc
}

func newScheduler(conf *core.Config, svc *sweeper.Service, logger core.Logger) (*sweeper.Scheduler, error) {
	return sweeper.NewScheduler(svc, conf.Sweeper.Schedule, conf.Sweeper.Location(), logger)
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newServer(p ServerParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:          p.Conf,
		Logger:        p.Logger,
		Metrics:       p.Metrics,
		Validate:      p.Validate,
		Translator:    p.Translator,
		Proposals:     p.Proposals,
		Applications:  p.Applications,
		StartRequests: p.StartRequests,
		Notifications: p.Notifications,
		Clock:         p.Clock,
		Sweeper:       p.Sweeper,
	})
}

// New returns a new dependency injection dig.Container
func New(opts Options) *dig.Container {
	if opts.LoggerPrefix == "" {
		opts.LoggerPrefix = "API"
	}
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLoggerFunc(opts.LoggerPrefix)))
	must(c.Provide(newLoggerFunc("DB"), dig.Name("dbLogger")))
	must(c.Provide(newStorageFunc(opts)))
	must(c.Provide(user.NewService))
	must(c.Provide(newClockService))
	must(c.Provide(newDeduper))
	must(c.Provide(newEmailService))
	must(c.Provide(metricsvc.New))
	must(c.Provide(newDispatcher))
	must(c.Provide(newPublisher))
	must(c.Provide(newApplicationService))
	must(c.Provide(newProposalService))
	must(c.Provide(newStartRequestService))
	must(c.Provide(notification.NewService))
	must(c.Provide(newSweeperService))
	must(c.Provide(newScheduler))
	must(c.Provide(validator.New))
	must(c.Provide(newTranslator))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
