package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayush/course-assistant/internal/models"
)

// Store is the relational persistence used by the web handlers. PostgreSQL
// and SQLite both implement it.
type Store interface {
	CreateUser(ctx context.Context, u *models.User) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	UpdateProfile(ctx context.Context, id int64, p models.Profile) error

	CreateCourse(ctx context.Context, c *models.Course) (*models.Course, error)
	GetCourse(ctx context.Context, id int64) (*models.Course, error)
	ListCourses(ctx context.Context, userID int64, semester int) ([]models.Course, error)
	ListAllCourses(ctx context.Context, userID int64) ([]models.Course, error)
	UpdateCourse(ctx context.Context, c *models.Course) error
	DeleteCourse(ctx context.Context, id int64) error

	Ping(ctx context.Context) error
	Close()
}

// Open connects to PostgreSQL for postgres:// URLs and to a SQLite file for
// anything else.
func Open(ctx context.Context, dsn string) (Store, error) {
	if !IsPostgresURL(dsn) {
		return OpenSQLite(ctx, dsn)
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return NewPostgresStore(pool), nil
}

// IsPostgresURL reports whether dsn points at a PostgreSQL server.
func IsPostgresURL(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// sqliteDSN turns a path (optionally prefixed with sqlite://) into a
// go-sqlite3 DSN with foreign keys enforced.
func sqliteDSN(dsn string) string {
	dsn = strings.TrimPrefix(dsn, "sqlite://")
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=on&_busy_timeout=5000"
}
