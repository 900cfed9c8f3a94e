package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/ayush/course-assistant/internal/models"
)

// SQLiteStore is the file-backed Store used when no DATABASE_URL points at
// PostgreSQL.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the SQLite database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	// one writer at a time; avoids "database is locked" under concurrent requests
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLiteStore) Close() { _ = s.db.Close() }

func (s *SQLiteStore) CreateUser(ctx context.Context, u *models.User) (*models.User, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (email, password_hash, college, degree, years) VALUES (?, ?, ?, ?, ?)`,
		u.Email, u.PasswordHash, u.College, u.Degree, u.Years,
	)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", mapSQLiteError(err))
	}
	created := *u
	if created.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &created, nil
}

func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, `WHERE email = ?`, email)
}

func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return s.getUser(ctx, `WHERE id = ?`, id)
}

func (s *SQLiteStore) getUser(ctx context.Context, where string, arg any) (*models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, COALESCE(college, ''), COALESCE(degree, ''), COALESCE(years, '')
		 FROM users `+where, arg,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.College, &u.Degree, &u.Years)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", mapSQLiteError(err))
	}
	return &u, nil
}

func (s *SQLiteStore) UpdateProfile(ctx context.Context, id int64, p models.Profile) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET college = ?, degree = ?, years = ? WHERE id = ?`,
		p.College, p.Degree, p.Years, id,
	)
	return checkAffected("update profile", res, err)
}

func (s *SQLiteStore) CreateCourse(ctx context.Context, c *models.Course) (*models.Course, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO courses (user_id, semester, name, description, credits) VALUES (?, ?, ?, ?, ?)`,
		c.UserID, c.Semester, c.Name, c.Description, c.Credits,
	)
	if err != nil {
		return nil, fmt.Errorf("create course: %w", mapSQLiteError(err))
	}
	created := *c
	if created.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("create course: %w", err)
	}
	return &created, nil
}

func (s *SQLiteStore) GetCourse(ctx context.Context, id int64) (*models.Course, error) {
	var c models.Course
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, semester, name, COALESCE(description, ''), credits
		 FROM courses WHERE id = ?`, id,
	).Scan(&c.ID, &c.UserID, &c.Semester, &c.Name, &c.Description, &c.Credits)
	if err != nil {
		return nil, fmt.Errorf("get course: %w", mapSQLiteError(err))
	}
	return &c, nil
}

func (s *SQLiteStore) ListCourses(ctx context.Context, userID int64, semester int) ([]models.Course, error) {
	return s.listCourses(ctx, `WHERE user_id = ? AND semester = ? ORDER BY id`, userID, semester)
}

func (s *SQLiteStore) ListAllCourses(ctx context.Context, userID int64) ([]models.Course, error) {
	return s.listCourses(ctx, `WHERE user_id = ? ORDER BY semester, id`, userID)
}

func (s *SQLiteStore) listCourses(ctx context.Context, where string, args ...any) ([]models.Course, error) {
	rows, err := s.db.QueryContext(ctx,
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

func (s *SQLiteStore) UpdateCourse(ctx context.Context, c *models.Course) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE courses SET name = ?, description = ?, credits = ? WHERE id = ?`,
		c.Name, c.Description, c.Credits, c.ID,
	)
	return checkAffected("update course", res, err)
}

func (s *SQLiteStore) DeleteCourse(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM courses WHERE id = ?`, id)
	return checkAffected("delete course", res, err)
}

func checkAffected(op string, res sql.Result, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, mapSQLiteError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

func mapSQLiteError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var se sqlite3.Error
	if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, se.Error())
	}
	return err
}
