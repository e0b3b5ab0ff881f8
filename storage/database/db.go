package database

import (
	"context"
	"database/sql"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/bob-rietveld/unheard-v2-sub001/core"
	"github.com/bob-rietveld/unheard-v2-sub001/fs"
)

const (
	EnginePostgres = "postgres"
	EngineSQLite   = "sqlite"
)

var (
	errUnknownEngine = errors.New("unknown database engine")

	gooseRunFunc = goose.Run // mockable
)

func postgresDSN(dbName string, conf *core.Config) string {
	sslMode := "require"
	if conf.Database.DisableTLS {
		sslMode = "disable"
	}
	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   EnginePostgres,
		User:     url.UserPassword(conf.Database.User, conf.Database.Password),
		Host:     conf.Database.Address(),
		Path:     dbName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// SQLiteDSN returns the DSN of the sqlite database at `path` with foreign keys enforced.
func SQLiteDSN(path string) string {
	q := make(url.Values)
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	return "file:" + path + "?" + q.Encode()
}

// Open opens the configured database. It does not check the connection.
func Open(conf *core.Config) (*sqlx.DB, error) {
	switch conf.Database.Engine {
	case EnginePostgres:
		return sqlx.Open(EnginePostgres, postgresDSN(conf.Database.Name, conf))
	case EngineSQLite:
		return OpenSQLite(conf.Database.Path)
	default:
		return nil, errors.Wrap(errUnknownEngine, conf.Database.Engine)
	}
}

// OpenSQLite opens the sqlite database file at `path`.
func OpenSQLite(path string) (*sqlx.DB, error) {
	db, err := sqlx.Open(EngineSQLite, SQLiteDSN(path))
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)
	return db, nil
}

// Ping waits for the database to be ready. Waits 100ms longer between each attempt.
func Ping(ctx context.Context, db core.DB, maxAttempts int) error {
	var err error
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "DB ping canceled")
		case <-time.After(time.Duration(attempts) * 100 * time.Millisecond):
		}
	}
	return errors.Wrap(err, "DB ping timeout")
}

// CreateIfNotExist creates the postgres application database if it does not exist yet.
// It is a noop for sqlite which creates its file on open.
func CreateIfNotExist(ctx context.Context, conf *core.Config) error {
	if conf.Database.Engine != EnginePostgres {
		return nil
	}

	db, err := sqlx.Open(EnginePostgres, postgresDSN("postgres", conf))
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = db.Close() }()

	if err = Ping(ctx, db, 30); err != nil {
		return errors.Wrap(err, "pinging database")
	}

	var exists bool
	err = db.GetContext(ctx, &exists, "SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", conf.Database.Name)
	if err != nil {
		return errors.Wrap(err, "checking DB")
	}
	if !exists {
		if _, err = db.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(conf.Database.Name)); err != nil {
			return errors.Wrap(err, "creating database")
		}
	}
	return nil
}

// gooseLogger writes goose's progress lines through zap.
type gooseLogger struct {
	log *zap.SugaredLogger
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.log.Infof(strings.TrimSuffix(format, "\n"), v...)
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) {
	l.log.Fatalf(strings.TrimSuffix(format, "\n"), v...)
}

// SetMigrationLogger routes migration output to zl.
func SetMigrationLogger(zl *zap.Logger) {
	goose.SetLogger(gooseLogger{log: zl.Named("MIGRATE").Sugar()})
}

func gooseSetup(engine string) (string, error) {
	dialect := engine
	switch engine {
	case EnginePostgres:
	case EngineSQLite:
		dialect = "sqlite3"
	default:
		return "", errors.Wrap(errUnknownEngine, engine)
	}

	goose.SetBaseFS(appfs.FS)
	if err := goose.SetDialect(dialect); err != nil {
		return "", errors.Wrap(err, "setting migrations dialect")
	}
	return path.Join("migrations", engine), nil
}

// RunMigrations runs a goose command (up, down, status, redo, ...) against db.
func RunMigrations(command string, db *sql.DB, engine string, args ...string) error {
	dir, err := gooseSetup(engine)
	if err != nil {
		return err
	}
	return gooseRunFunc(command, db, dir, args...)
}

// Migrate applies all pending migrations.
func Migrate(db *sqlx.DB) error {
	if err := RunMigrations("up", db.DB, db.DriverName()); err != nil {
		return errors.Wrap(err, "migrating database")
	}
	return nil
}

// Setup creates (postgres), opens, pings and migrates the configured database.
func Setup(ctx context.Context, conf *core.Config) (*sqlx.DB, error) {
	if err := CreateIfNotExist(ctx, conf); err != nil {
		return nil, err
	}

	db, err := Open(conf)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if err = Ping(ctx, db, 30); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err = Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
