package dig_container

import (
	"context"
	"fmt"
	"log"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"
	"go.uber.org/zap"

	echoapi "github.com/bob-rietveld/unheard-v2-sub001/apps/api/echo"
	"github.com/bob-rietveld/unheard-v2-sub001/core"
	"github.com/bob-rietveld/unheard-v2-sub001/core/experiment"
	"github.com/bob-rietveld/unheard-v2-sub001/core/persona"
	"github.com/bob-rietveld/unheard-v2-sub001/core/response"
	logsvc "github.com/bob-rietveld/unheard-v2-sub001/services/logger"
	"github.com/bob-rietveld/unheard-v2-sub001/storage/database"
	"github.com/bob-rietveld/unheard-v2-sub001/storage/database/sqlxrepos"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newZapLogger(conf *core.Config) *zap.Logger {
	zl, err := logsvc.NewZapLogger(conf)
	if err != nil {
		log.Fatalf("building zap logger: %v", err)
	}
	return zl
}

func newLogger(zl *zap.Logger, conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(zl.Named("API"), conf)
	logger.Enable(rollbarEnabled(conf))
	return logger
}

// rollbarEnabled reports whether the API logger forwards to Rollbar.
func rollbarEnabled(conf *core.Config) bool {
	return conf.RollbarToken != "" && !conf.Debug && !conf.TestMode
}

func newDBLogger(zl *zap.Logger, conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(zl.Named("DB"), conf)
}

func newDB(conf *core.Config, zl *zap.Logger, loggerParam DBLoggerParam) (*sqlx.DB, core.DB) {
	database.SetMigrationLogger(zl)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := database.Setup(ctx, conf)
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db, db
}

// repositories exposes the sqlx repositories under their domain interfaces.
type repositories struct {
	dig.Out
	Personas    persona.Repository
	Experiments experiment.Repository
	Responses   response.Repository
	Summaries   experiment.ResponseStore
}

func newRepositories(db *sqlx.DB) repositories {
	responses := sqlxrepos.NewResponseRepository(db)
	return repositories{
		Personas:    sqlxrepos.NewPersonaRepository(db),
		Experiments: sqlxrepos.NewExperimentRepository(db),
		Responses:   responses,
		Summaries:   responses,
	}
}

func newValidator() (*validator.Validate, ut.Translator) {
	validate, translator := core.NewValidator()
	response.InitValidators(validate, translator)
	return validate, translator
}

func newServerDeps(
	db *sqlx.DB,
	translator ut.Translator,
	prsSvc *persona.Service,
	expSvc *experiment.Service,
	respSvc *response.Service,
) *echoapi.Deps {
	return &echoapi.Deps{
		DB:            db.DB,
		Translator:    translator,
		PersonaSvc:    prsSvc,
		ExperimentSvc: expSvc,
		ResponseSvc:   respSvc,
	}
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newZapLogger))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newRepositories))
	must(c.Provide(newValidator))
	must(c.Provide(persona.NewService))
	must(c.Provide(func(svc *persona.Service) experiment.PersonaStore { return svc }))
	must(c.Provide(experiment.NewService))
	must(c.Provide(func(svc *experiment.Service) response.ExperimentGetter { return svc }))
	must(c.Provide(func(svc *persona.Service) response.PersonaGetter { return svc }))
	must(c.Provide(response.NewService))
	must(c.Provide(newServerDeps))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
