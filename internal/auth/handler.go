package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/ayush/course-assistant/internal/models"
	"github.com/ayush/course-assistant/internal/store"
	"github.com/ayush/course-assistant/internal/web"
)

const (
	msgInvalidCredentials = "Invalid credentials"
	msgEmailTaken         = "Email already registered"
	msgPasswordTooLong    = "Password is too long"
)

// UserStore defines the interface for user persistence.
type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	UpdateProfile(ctx context.Context, id int64, p models.Profile) error
}

// Handler holds account-related HTTP handlers.
type Handler struct {
	users    UserStore
	sessions SessionStore
	views    *web.Renderer
	validate *validator.Validate
	log      zerolog.Logger
}

func NewHandler(users UserStore, sessions SessionStore, views *web.Renderer, validate *validator.Validate, log zerolog.Logger) *Handler {
	return &Handler{users: users, sessions: sessions, views: views, validate: validate, log: log}
}

// Index shows the landing page, or the dashboard for signed-in users.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	if IsAuthenticated(r) {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	h.views.Render(w, r, http.StatusOK, "index", nil)
}

func (h *Handler) SignupPage(w http.ResponseWriter, r *http.Request) {
	h.views.Render(w, r, http.StatusOK, "signup", nil)
}

// Signup registers a user and signs them in.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	form := models.SignupForm{
		Email:    normalizeEmail(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
		Profile:  profileFromRequest(r),
	}
	// the password is never echoed back into the form
	refill := form
	refill.Password = ""

	if err := h.validate.Struct(form); err != nil {
		h.views.RenderFlash(w, r, http.StatusBadRequest, "signup", signupMessage(err), refill)
		return
	}

	_, err := h.users.GetUserByEmail(r.Context(), form.Email)
	switch {
	case err == nil:
		h.views.RenderFlash(w, r, http.StatusConflict, "signup", msgEmailTaken, refill)
		return
	case !errors.Is(err, store.ErrNotFound):
		h.views.ServerError(w, r, err)
		return
	}

	u := &models.User{
		Email:   form.Email,
		College: form.College,
		Degree:  form.Degree,
		Years:   form.Years,
	}
	if err := SetPassword(u, form.Password); err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			h.views.RenderFlash(w, r, http.StatusBadRequest, "signup", msgPasswordTooLong, refill)
			return
		}
		h.views.ServerError(w, r, err)
		return
	}

	created, err := h.users.CreateUser(r.Context(), u)
	if errors.Is(err, store.ErrDuplicateKey) {
		h.views.RenderFlash(w, r, http.StatusConflict, "signup", msgEmailTaken, refill)
		return
	}
	if err != nil {
		h.views.ServerError(w, r, err)
		return
	}

	h.log.Info().Int64("user_id", created.ID).Msg("user signed up")
	h.startSession(w, r, created.ID)
}

func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.views.Render(w, r, http.StatusOK, "login", nil)
}

// Login authenticates a user and creates a session. Unknown emails and wrong
// passwords produce the same message.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	form := models.LoginForm{
		Email:    normalizeEmail(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}
	refill := models.LoginForm{Email: form.Email}
	if err := h.validate.Struct(form); err != nil {
		h.views.RenderFlash(w, r, http.StatusBadRequest, "login", msgInvalidCredentials, refill)
		return
	}

	user, err := h.users.GetUserByEmail(r.Context(), form.Email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		h.views.ServerError(w, r, err)
		return
	}
	if err != nil || !CheckPassword(user, form.Password) {
		h.views.RenderFlash(w, r, http.StatusUnauthorized, "login", msgInvalidCredentials, refill)
		return
	}

	h.startSession(w, r, user.ID)
}

// Logout destroys the current session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		if err := h.sessions.Destroy(r.Context(), cookie.Value); err != nil {
			h.log.Warn().Err(err).Msg("session destroy failed")
		}
	}
	clearSessionCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// ProfilePage shows the current user's profile form.
func (h *Handler) ProfilePage(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserID(r.Context())
	user, err := h.users.GetUserByID(r.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		clearSessionCookie(w)
		web.Redirect(w, r, "/login", "Please log in again")
		return
	}
	if err != nil {
		h.views.ServerError(w, r, err)
		return
	}
	h.views.Render(w, r, http.StatusOK, "profile", user)
}

// UpdateProfile saves college, degree and years for the current user.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserID(r.Context())
	p := profileFromRequest(r)
	if err := h.validate.Struct(p); err != nil {
		web.Redirect(w, r, "/profile", "Profile fields are too long")
		return
	}
	if err := h.users.UpdateProfile(r.Context(), userID, p); err != nil {
		h.views.ServerError(w, r, err)
		return
	}
	web.Redirect(w, r, "/dashboard", "Profile updated")
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, userID int64) {
	token, err := h.sessions.Create(r.Context(), userID)
	if err != nil {
		h.views.ServerError(w, r, err)
		return
	}
	setSessionCookie(w, token)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func profileFromRequest(r *http.Request) models.Profile {
	return models.Profile{
		College: strings.TrimSpace(r.PostFormValue("college")),
		Degree:  strings.TrimSpace(r.PostFormValue("degree")),
		Years:   strings.TrimSpace(r.PostFormValue("years")),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func signupMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid signup form"
	}
	fe := verrs[0]
	switch {
	case fe.Tag() == "required":
		return "Email and password are required"
	case fe.Field() == "Email":
		return "Please enter a valid email address"
	case fe.Field() == "Password":
		return msgPasswordTooLong
	default:
		return fe.Field() + " is too long"
	}
}
