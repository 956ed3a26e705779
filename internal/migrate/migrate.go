package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/glebarez/go-sqlite"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
)

//go:embed migrations
var embedMigrations embed.FS

func configureGoose(driver string, log logrus.FieldLogger) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetTableName("schema_migrations")
	if log != nil {
		goose.SetLogger(gooseLogger{log})
	}

	switch driver {
	case "sqlite", "sqlite3":
		return goose.SetDialect("sqlite3")
	case "postgres", "pgx":
		return goose.SetDialect("postgres")
	}
	return fmt.Errorf("unsupported driver for goose: %s", driver)
}

func migrationDir(driver string) string {
	if driver == "postgres" || driver == "pgx" {
		return "migrations/postgres"
	}
	return "migrations/sqlite"
}

func openDB(driver, dsn string) (*sql.DB, error) {
	if dsn == "" {
		dsn = "utilityrates.db"
	}
	switch driver {
	case "postgres", "pgx":
		return sql.Open("pgx", dsn)
	default:
		// glebarez/go-sqlite registers itself as "sqlite"
		return sql.Open("sqlite", dsn)
	}
}

func run(ctx context.Context, driver, dsn string, log logrus.FieldLogger, fn func(*sql.DB, string) error) error {
	if driver == "" {
		driver = "sqlite"
	}
	if err := configureGoose(driver, log); err != nil {
		return err
	}
	db, err := openDB(driver, dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("migrate: connect: %w", err)
	}
	return fn(db, migrationDir(driver))
}

func Up(ctx context.Context, driver, dsn string, log logrus.FieldLogger) error {
	return run(ctx, driver, dsn, log, func(db *sql.DB, dir string) error {
		return goose.UpContext(ctx, db, dir)
	})
}

func Down(ctx context.Context, driver, dsn string, log logrus.FieldLogger) error {
	return run(ctx, driver, dsn, log, func(db *sql.DB, dir string) error {
		return goose.DownContext(ctx, db, dir)
	})
}

func Status(ctx context.Context, driver, dsn string, log logrus.FieldLogger) error {
	return run(ctx, driver, dsn, log, func(db *sql.DB, dir string) error {
		return goose.StatusContext(ctx, db, dir)
	})
}

// Version reports the current schema version.
func Version(ctx context.Context, driver, dsn string) (int64, error) {
	var v int64
	err := run(ctx, driver, dsn, nil, func(db *sql.DB, dir string) error {
		var err error
		v, err = goose.GetDBVersionContext(ctx, db)
		return err
	})
	return v, err
}

type gooseLogger struct {
	log logrus.FieldLogger
}

func (g gooseLogger) Printf(format string, v ...interface{}) {
	g.log.WithField("component", "goose").Infof(format, v...)
}

func (g gooseLogger) Fatalf(format string, v ...interface{}) {
	g.log.WithField("component", "goose").Fatalf(format, v...)
}
