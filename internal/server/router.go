package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/ayush/course-assistant/internal/assistant"
	"github.com/ayush/course-assistant/internal/auth"
	"github.com/ayush/course-assistant/internal/courses"
	"github.com/ayush/course-assistant/internal/middleware"
	"github.com/ayush/course-assistant/internal/store"
	"github.com/ayush/course-assistant/internal/web"
)

// Deps are the collaborators the router dispatches to. History and Archive
// are optional.
type Deps struct {
	Store       store.Store
	Sessions    auth.SessionStore
	Backend     assistant.Backend
	History     assistant.HistoryStore
	Archive     assistant.SummaryArchive
	CORSOrigins []string
	Log         zerolog.Logger
}

// NewRouter builds the full HTTP surface.
func NewRouter(d Deps) (http.Handler, error) {
	views, err := web.NewRenderer(d.Log, auth.IsAuthenticated)
	if err != nil {
		return nil, err
	}
	validate := validator.New()

	authHandler := auth.NewHandler(d.Store, d.Sessions, views, validate, d.Log)
	courseHandler := courses.NewHandler(courses.NewService(d.Store), d.Store, views, validate)
	aiHandler := assistant.NewHandler(d.Backend, d.Store, d.History, d.Archive, views, d.Log)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(d.Log))
	r.Use(chimw.Recoverer)
	r.Use(middleware.LoadSession(d.Sessions, d.Log))

	r.NotFound(views.NotFound)

	// Health check
	r.Get("/health", health(d.Store))

	// Public pages
	r.Get("/", authHandler.Index)
	r.Get("/signup", authHandler.SignupPage)
	r.Post("/signup", authHandler.Signup)
	r.Get("/login", authHandler.LoginPage)
	r.Post("/login", authHandler.Login)
	r.Get("/logout", authHandler.Logout)
	r.Post("/logout", authHandler.Logout)

	// Protected pages
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/profile", authHandler.ProfilePage)
		r.Post("/profile", authHandler.UpdateProfile)
		r.Get("/dashboard", courseHandler.Dashboard)
		r.Get("/semester/{sem}", courseHandler.Semester)
		r.Post("/semester/{sem}/add", courseHandler.AddCourse)
		r.Get("/semester/{sem}/summary", aiHandler.DownloadSummary)
		r.Get("/course/{id}/edit", courseHandler.EditCoursePage)
		r.Post("/course/{id}/edit", courseHandler.EditCourse)
		r.Post("/course/{id}/delete", courseHandler.DeleteCourse)
	})

	// AI routes (protected)
	r.Route("/ai", func(r chi.Router) {
		if len(d.CORSOrigins) > 0 {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins:   d.CORSOrigins,
				AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
				AllowedHeaders:   []string{"Accept", "Content-Type"},
				AllowCredentials: true,
				MaxAge:           300,
			}))
		}
		r.Use(middleware.RequireAuth)
		r.Post("/summarize", aiHandler.Summarize)
		r.Post("/search", aiHandler.Search)
		r.Get("/history", aiHandler.History)
	})

	return r, nil
}

func health(db store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status, body := http.StatusOK, map[string]string{"status": "ok"}
		if err := db.Ping(ctx); err != nil {
			status, body = http.StatusServiceUnavailable, map[string]string{"status": "unavailable"}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
