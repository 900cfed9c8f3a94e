package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ayush/course-assistant/internal/models"
)

const pgUniqueViolation = "23505"

// pgxDB is the subset of *pgxpool.Pool used by PostgresStore.
type pgxDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore handles user and course CRUD against PostgreSQL.
type PostgresStore struct {
	pool pgxDB
}

func NewPostgresStore(pool pgxDB) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *PostgresStore) Close() { s.pool.Close() }

func (s *PostgresStore) CreateUser(ctx context.Context, u *models.User) (*models.User, error) {
	created := *u
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (email, password_hash, college, degree, years)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		u.Email, u.PasswordHash, u.College, u.Degree, u.Years,
	).Scan(&created.ID)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", mapPgError(err))
	}
	return &created, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, `WHERE email = $1`, email)
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return s.getUser(ctx, `WHERE id = $1`, id)
}

func (s *PostgresStore) getUser(ctx context.Context, where string, arg any) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, COALESCE(college, ''), COALESCE(degree, ''), COALESCE(years, '')
		 FROM users `+where, arg,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.College, &u.Degree, &u.Years)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", mapPgError(err))
	}
	return &u, nil
}

func (s *PostgresStore) UpdateProfile(ctx context.Context, id int64, p models.Profile) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET college = $1, degree = $2, years = $3 WHERE id = $4`,
		p.College, p.Degree, p.Years, id,
	)
	if err != nil {
		return fmt.Errorf("update profile: %w", mapPgError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update profile: %w", ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) CreateCourse(ctx context.Context, c *models.Course) (*models.Course, error) {
	created := *c
	err := s.pool.QueryRow(ctx,
		`INSERT INTO courses (user_id, semester, name, description, credits)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		c.UserID, c.Semester, c.Name, c.Description, c.Credits,
	).Scan(&created.ID)
	if err != nil {
		return nil, fmt.Errorf("create course: %w", mapPgError(err))
	}
	return &created, nil
}

func (s *PostgresStore) GetCourse(ctx context.Context, id int64) (*models.Course, error) {
	var c models.Course
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, semester, name, COALESCE(description, ''), credits
		 FROM courses WHERE id = $1`, id,
	).Scan(&c.ID, &c.UserID, &c.Semester, &c.Name, &c.Description, &c.Credits)
	if err != nil {
		return nil, fmt.Errorf("get course: %w", mapPgError(err))
	}
	return &c, nil
}

func (s *PostgresStore) ListCourses(ctx context.Context, userID int64, semester int) ([]models.Course, error) {
	return s.listCourses(ctx,
		`WHERE user_id = $1 AND semester = $2 ORDER BY id`, userID, semester)
}

func (s *PostgresStore) ListAllCourses(ctx context.Context, userID int64) ([]models.Course, error) {
	return s.listCourses(ctx, `WHERE user_id = $1 ORDER BY semester, id`, userID)
}

func (s *PostgresStore) listCourses(ctx context.Context, where string, args ...any) ([]models.Course, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, semester, name, COALESCE(description, ''), credits
		 FROM courses `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	defer rows.Close()

	var courses []models.Course
	for rows.Next() {
		var c models.Course
		if err := rows.Scan(&c.ID, &c.UserID, &c.Semester, &c.Name, &c.Description, &c.Credits); err != nil {
			return nil, fmt.Errorf("list courses: %w", err)
		}
		courses = append(courses, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

func (s *PostgresStore) UpdateCourse(ctx context.Context, c *models.Course) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE courses SET name = $1, description = $2, credits = $3 WHERE id = $4`,
		c.Name, c.Description, c.Credits, c.ID,
	)
	if err != nil {
		return fmt.Errorf("update course: %w", mapPgError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update course: %w", ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) DeleteCourse(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete course: %w", ErrNotFound)
	}
	return nil
}

// mapPgError translates driver errors into store sentinels.
func mapPgError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, pgErr.ConstraintName)
	}
	return err
}
