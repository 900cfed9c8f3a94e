package courses

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ayush/course-assistant/internal/auth"
	"github.com/ayush/course-assistant/internal/models"
	"github.com/ayush/course-assistant/internal/store"
	"github.com/ayush/course-assistant/internal/web"
)

const msgNotAuthorized = "Not authorized"

// UserLoader loads the signed-in user for the dashboard header.
type UserLoader interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// Handler holds dashboard and course HTTP handlers.
type Handler struct {
	courses  *Service
	users    UserLoader
	views    *web.Renderer
	validate *validator.Validate
}

func NewHandler(courses *Service, users UserLoader, views *web.Renderer, validate *validator.Validate) *Handler {
	return &Handler{courses: courses, users: users, views: views, validate: validate}
}

type semesterPage struct {
	Semester     int
	Courses      []models.Course
	TotalCredits int
}

// Dashboard lists semesters 1 to 8.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	user, err := h.users.GetUserByID(r.Context(), userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		h.views.ServerError(w, r, err)
		return
	}
	if user == nil {
		user = &models.User{ID: userID}
	}
	h.views.Render(w, r, http.StatusOK, "dashboard", user)
}

// Semester lists the user's courses for one semester.
func (h *Handler) Semester(w http.ResponseWriter, r *http.Request) {
	sem, ok := models.ParseSemester(chi.URLParam(r, "sem"))
	if !ok {
		h.views.NotFound(w, r)
		return
	}
	userID, _ := auth.UserID(r.Context())
	list, err := h.courses.List(r.Context(), userID, sem)
	if err != nil {
		h.views.ServerError(w, r, err)
		return
	}
	h.views.Render(w, r, http.StatusOK, "semester", semesterPage{
		Semester:     sem,
		Courses:      list,
		TotalCredits: TotalCredits(list),
	})
}

// AddCourse creates a course in the semester from the path.
func (h *Handler) AddCourse(w http.ResponseWriter, r *http.Request) {
	sem, ok := models.ParseSemester(chi.URLParam(r, "sem"))
	if !ok {
		h.views.NotFound(w, r)
		return
	}
	back := semesterURL(sem)

	form := courseFormFromRequest(r)
	if err := h.validate.Struct(form); err != nil {
		web.Redirect(w, r, back, courseMessage(err))
		return
	}

	userID, _ := auth.UserID(r.Context())
	if _, err := h.courses.Add(r.Context(), userID, sem, form); err != nil {
		h.views.ServerError(w, r, err)
		return
	}
	web.Redirect(w, r, back, "Course added")
}

// EditCoursePage shows the edit form for a course the user owns.
func (h *Handler) EditCoursePage(w http.ResponseWriter, r *http.Request) {
	courseID, ok := courseIDParam(r)
	if !ok {
		h.views.NotFound(w, r)
		return
	}
	userID, _ := auth.UserID(r.Context())
	c, err := h.courses.Get(r.Context(), userID, courseID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.views.Render(w, r, http.StatusOK, "edit_course", c)
}

// EditCourse saves changes to a course the user owns.
func (h *Handler) EditCourse(w http.ResponseWriter, r *http.Request) {
	courseID, ok := courseIDParam(r)
	if !ok {
		h.views.NotFound(w, r)
		return
	}
	userID, _ := auth.UserID(r.Context())

	form := courseFormFromRequest(r)
	if err := h.validate.Struct(form); err != nil {
		c, getErr := h.courses.Get(r.Context(), userID, courseID)
		if getErr != nil {
			h.fail(w, r, getErr)
			return
		}
		h.views.RenderFlash(w, r, http.StatusBadRequest, "edit_course", courseMessage(err), c)
		return
	}

	c, err := h.courses.Update(r.Context(), userID, courseID, form)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	web.Redirect(w, r, semesterURL(c.Semester), "Course updated")
}

// DeleteCourse removes a course the user owns.
func (h *Handler) DeleteCourse(w http.ResponseWriter, r *http.Request) {
	courseID, ok := courseIDParam(r)
	if !ok {
		h.views.NotFound(w, r)
		return
	}
	userID, _ := auth.UserID(r.Context())
	c, err := h.courses.Delete(r.Context(), userID, courseID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	web.Redirect(w, r, semesterURL(c.Semester), "Course deleted")
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrForbidden):
		web.Redirect(w, r, "/dashboard", msgNotAuthorized)
	case errors.Is(err, store.ErrNotFound):
		h.views.NotFound(w, r)
	default:
		h.views.ServerError(w, r, err)
	}
}

func courseFormFromRequest(r *http.Request) models.CourseForm {
	return models.CourseForm{
		Name:        strings.TrimSpace(r.PostFormValue("name")),
		Description: strings.TrimSpace(r.PostFormValue("description")),
		Credits:     models.ParseCredits(r.PostFormValue("credits")),
	}
}

func courseIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func semesterURL(sem int) string {
	return fmt.Sprintf("/semester/%d", sem)
}

func courseMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Field() == "Name" {
		if verrs[0].Tag() == "required" {
			return "Course name is required"
		}
		return "Course name is too long"
	}
	return "Invalid course details"
}
