package models

import (
	"math"
	"strconv"
	"strings"
)

const (
	MinSemester    = 1
	MaxSemester    = 8
	DefaultCredits = 3
	// MaxCredits matches the INTEGER credits column.
	MaxCredits = math.MaxInt32
)

// Course represents a row in the courses table. Every course belongs to
// exactly one user.
type Course struct {
	ID          int64  `json:"id"`
	UserID      int64  `json:"user_id"`
	Semester    int    `json:"semester"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Credits     int    `json:"credits"`
}

// CourseForm is the form body for adding or editing a course.
type CourseForm struct {
	Name        string `validate:"required,max=256"`
	Description string
	Credits     int `validate:"min=0,max=2147483647"`
}

// Semesters returns the semester numbers shown on the dashboard.
func Semesters() []int {
	s := make([]int, 0, MaxSemester)
	for i := MinSemester; i <= MaxSemester; i++ {
		s = append(s, i)
	}
	return s
}

// ValidSemester reports whether n is a semester number.
func ValidSemester(n int) bool {
	return n >= MinSemester && n <= MaxSemester
}

// ParseSemester converts a path or form value into a semester number.
func ParseSemester(raw string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || !ValidSemester(n) {
		return 0, false
	}
	return n, true
}

// ParseCredits converts the credits form value. Empty, non-numeric,
// negative and out of range input fall back to DefaultCredits.
func ParseCredits(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultCredits
	}
	n, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || n < 0 || n > MaxCredits {
		return DefaultCredits
	}
	return int(n)
}
