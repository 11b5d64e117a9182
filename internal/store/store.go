// Package store persists caseload entities with gorm and implements the
// collaborator interfaces of the notes and status packages.
package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	appLog "caseload/internal/log"
)

// ErrNotFound is returned (wrapped) when a looked-up row does not exist.
var ErrNotFound = errors.New("not found")

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Options configures Open.
type Options struct {
	Driver string
	DSN    string
	// Location is the zone times are returned in. Rows are stored in UTC.
	Location *time.Location
	// Debug logs every SQL statement.
	Debug bool
}

// Store is the gorm-backed repository.
type Store struct {
	db  *gorm.DB
	loc *time.Location
}

// Open connects, migrates the schema and returns a ready Store.
func Open(opts Options) (*Store, error) {
	var dialector gorm.Dialector
	switch opts.Driver {
	case DriverPostgres:
		dialector = postgres.Open(opts.DSN)
	case DriverSQLite, "":
		dialector = sqlite.Open(opts.DSN)
	default:
		return nil, errors.Errorf("unsupported database driver %q", opts.Driver)
	}

	logLevel := gormlogger.Silent
	if opts.Debug {
		logLevel = gormlogger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  gormlogger.Default.LogMode(logLevel),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}

	if opts.Driver != DriverPostgres {
		// SQLite allows one writer; a single connection also keeps an
		// in-memory database alive and shared across goroutines.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, errors.Wrap(err, "opening database")
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(allRows...); err != nil {
		return nil, errors.Wrap(err, "migrating database")
	}

	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	appLog.Info("store opened", "driver", dialector.Name())
	return &Store{db: db, loc: loc}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// scoped limits q to one school; an empty id means every school.
func scoped(q *gorm.DB, schoolID string) *gorm.DB {
	if schoolID == "" {
		return q
	}
	return q.Where("school_id = ?", schoolID)
}

func notFound(err error, what, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.Wrapf(ErrNotFound, "%s %s", what, id)
	}
	return errors.Wrapf(err, "loading %s %s", what, id)
}

func (s *Store) local(t time.Time) time.Time {
	return t.In(s.loc)
}

func (s *Store) localPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.In(s.loc)
	return &v
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
