package courses

import (
	"context"
	"errors"
	"fmt"

	"github.com/ayush/course-assistant/internal/models"
)

// ErrForbidden is returned when a user touches a course they do not own.
var ErrForbidden = errors.New("forbidden")

// CourseStore defines the interface for course persistence.
type CourseStore interface {
	CreateCourse(ctx context.Context, c *models.Course) (*models.Course, error)
	GetCourse(ctx context.Context, id int64) (*models.Course, error)
	ListCourses(ctx context.Context, userID int64, semester int) ([]models.Course, error)
	ListAllCourses(ctx context.Context, userID int64) ([]models.Course, error)
	UpdateCourse(ctx context.Context, c *models.Course) error
	DeleteCourse(ctx context.Context, id int64) error
}

// Service applies ownership rules on top of CourseStore. Every method takes
// the acting user's id explicitly.
type Service struct {
	store CourseStore
}

func NewService(store CourseStore) *Service {
	return &Service{store: store}
}

// Add creates a course in semester for userID.
func (s *Service) Add(ctx context.Context, userID int64, semester int, form models.CourseForm) (*models.Course, error) {
	if !models.ValidSemester(semester) {
		return nil, fmt.Errorf("semester %d out of range", semester)
	}
	return s.store.CreateCourse(ctx, &models.Course{
		UserID:      userID,
		Semester:    semester,
		Name:        form.Name,
		Description: form.Description,
		Credits:     form.Credits,
	})
}

// List returns the user's courses for one semester.
func (s *Service) List(ctx context.Context, userID int64, semester int) ([]models.Course, error) {
	return s.store.ListCourses(ctx, userID, semester)
}

// ListAll returns every course of the user ordered by semester.
func (s *Service) ListAll(ctx context.Context, userID int64) ([]models.Course, error) {
	return s.store.ListAllCourses(ctx, userID)
}

// Get returns a course owned by userID.
func (s *Service) Get(ctx context.Context, userID, courseID int64) (*models.Course, error) {
	c, err := s.store.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if c.UserID != userID {
		return nil, ErrForbidden
	}
	return c, nil
}

// Update replaces name, description and credits of a course owned by userID.
func (s *Service) Update(ctx context.Context, userID, courseID int64, form models.CourseForm) (*models.Course, error) {
	c, err := s.Get(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}
	c.Name = form.Name
	c.Description = form.Description
	c.Credits = form.Credits
	if err := s.store.UpdateCourse(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Delete removes a course owned by userID and returns what was removed.
func (s *Service) Delete(ctx context.Context, userID, courseID int64) (*models.Course, error) {
	c, err := s.Get(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}
	if err := s.store.DeleteCourse(ctx, c.ID); err != nil {
		return nil, err
	}
	return c, nil
}

// TotalCredits sums the credits of courses.
func TotalCredits(courses []models.Course) int {
	total := 0
	for _, c := range courses {
		total += c.Credits
	}
	return total
}
