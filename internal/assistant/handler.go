package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ayush/course-assistant/internal/auth"
	"github.com/ayush/course-assistant/internal/models"
	"github.com/ayush/course-assistant/internal/store"
	"github.com/ayush/course-assistant/internal/web"
)

const (
	historyLimit    = 20
	emptyQueryMsg   = "Please enter a question."
	summaryMimeType = "text/plain; charset=utf-8"
)

// CourseLister reads the courses used as prompt context.
type CourseLister interface {
	ListCourses(ctx context.Context, userID int64, semester int) ([]models.Course, error)
	ListAllCourses(ctx context.Context, userID int64) ([]models.Course, error)
}

// HistoryStore records answered AI requests.
type HistoryStore interface {
	Insert(ctx context.Context, it *models.Interaction) error
	ListByUser(ctx context.Context, userID int64, limit int64) ([]models.Interaction, error)
}

// SummaryArchive keeps the latest summary of each semester.
type SummaryArchive interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Download(ctx context.Context, key string) ([]byte, string, error)
}

// Handler holds the AI HTTP handlers. history and archive may be nil, which
// disables recording and downloads.
type Handler struct {
	backend Backend
	courses CourseLister
	history HistoryStore
	archive SummaryArchive
	views   *web.Renderer
	log     zerolog.Logger
}

func NewHandler(backend Backend, courses CourseLister, history HistoryStore, archive SummaryArchive, views *web.Renderer, log zerolog.Logger) *Handler {
	return &Handler{backend: backend, courses: courses, history: history, archive: archive, views: views, log: log}
}

type answerResponse struct {
	Answer    string     `json:"answer"`
	Resources []Resource `json:"resources"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, text)
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// Summarize answers with an overview of one semester's courses.
func (h *Handler) Summarize(w http.ResponseWriter, r *http.Request) {
	sem, ok := models.ParseSemester(r.PostFormValue("semester"))
	if !ok {
		writeText(w, http.StatusBadRequest, "Invalid semester")
		return
	}
	userID, _ := auth.UserID(r.Context())

	list, err := h.courses.ListCourses(r.Context(), userID, sem)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", userID).Msg("list courses for summary")
		writeText(w, http.StatusInternalServerError, "Could not load your courses.")
		return
	}
	if len(list) == 0 {
		h.reply(w, r, NoCoursesMessage(sem), nil)
		return
	}

	answer := h.answer(w, r, SummaryPrompt(sem, list), SummaryMaxTokens, nil)
	if answer == "" || r.Context().Err() != nil {
		return
	}
	h.record(r.Context(), &models.Interaction{
		UserID:   userID,
		Kind:     models.KindSummary,
		Semester: sem,
		Answer:   answer,
	})
	if !failed(answer) {
		h.saveSummary(r.Context(), userID, sem, answer)
	}
}

// Search answers a free-text question using the user's courses as context.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.PostFormValue("query"))
	if query == "" {
		h.reply(w, r, emptyQueryMsg, nil)
		return
	}
	userID, _ := auth.UserID(r.Context())

	all, err := h.courses.ListAllCourses(r.Context(), userID)
	if err != nil {
		// The question can still be answered without course context.
		h.log.Warn().Err(err).Int64("user_id", userID).Msg("list courses for search")
		all = nil
	}

	answer := h.answer(w, r, SearchPrompt(query, all), SearchMaxTokens, SearchResources(query))
	if answer == "" || r.Context().Err() != nil {
		return
	}
	h.record(r.Context(), &models.Interaction{
		UserID: userID,
		Kind:   models.KindSearch,
		Query:  query,
		Answer: answer,
	})
}

// History lists the user's most recent AI answers.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	data := struct {
		Enabled bool
		Items   []models.Interaction
	}{Enabled: h.history != nil}

	if h.history != nil {
		userID, _ := auth.UserID(r.Context())
		items, err := h.history.ListByUser(r.Context(), userID, historyLimit)
		if err != nil {
			h.views.ServerError(w, r, err)
			return
		}
		data.Items = items
	}
	h.views.Render(w, r, http.StatusOK, "history", data)
}

// DownloadSummary serves the last saved summary of a semester.
func (h *Handler) DownloadSummary(w http.ResponseWriter, r *http.Request) {
	sem, ok := models.ParseSemester(chi.URLParam(r, "sem"))
	if !ok || h.archive == nil {
		h.views.NotFound(w, r)
		return
	}
	userID, _ := auth.UserID(r.Context())

	data, ct, err := h.archive.Download(r.Context(), SummaryKey(userID, sem))
	if errors.Is(err, store.ErrNotFound) {
		h.views.NotFound(w, r)
		return
	}
	if err != nil {
		h.views.ServerError(w, r, err)
		return
	}
	if ct == "" {
		ct = summaryMimeType
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=semester-%d-summary.txt", sem))
	_, _ = w.Write(data)
}

// SummaryKey is the object key of a user's saved semester summary.
func SummaryKey(userID int64, semester int) string {
	return fmt.Sprintf("users/%d/semester-%d/summary.txt", userID, semester)
}

// reply sends a fixed answer without contacting the backend.
func (h *Handler) reply(w http.ResponseWriter, r *http.Request, text string, resources []Resource) {
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, answerResponse{Answer: text, Resources: resources})
		return
	}
	writeText(w, http.StatusOK, text)
}

// answer runs prompt against the backend and returns the full text sent to
// the client. JSON clients get the blocking completion; everyone else gets
// the fragments flushed as they arrive.
func (h *Handler) answer(w http.ResponseWriter, r *http.Request, prompt string, maxTokens int, resources []Resource) string {
	if wantsJSON(r) {
		text := h.backend.Complete(r.Context(), prompt, maxTokens)
		writeJSON(w, http.StatusOK, answerResponse{Answer: text, Resources: resources})
		return text
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	rc := http.NewResponseController(w)
	_ = rc.Flush()

	var full strings.Builder
	for fragment := range h.backend.Stream(r.Context(), prompt, maxTokens) {
		full.WriteString(fragment)
		if _, err := io.WriteString(w, fragment); err != nil {
			break
		}
		_ = rc.Flush()
	}
	return full.String()
}

func (h *Handler) record(ctx context.Context, it *models.Interaction) {
	if h.history == nil {
		return
	}
	it.Backend = h.backend.Name()
	if err := h.history.Insert(ctx, it); err != nil {
		h.log.Warn().Err(err).Str("kind", it.Kind).Msg("record ai history")
	}
}

func (h *Handler) saveSummary(ctx context.Context, userID int64, sem int, answer string) {
	if h.archive == nil {
		return
	}
	if err := h.archive.Upload(ctx, SummaryKey(userID, sem), []byte(answer), summaryMimeType); err != nil {
		h.log.Warn().Err(err).Int("semester", sem).Msg("save summary")
	}
}

// failed reports whether answer is a backend fallback rather than real text.
func failed(answer string) bool {
	if strings.Contains(answer, errorFragmentPrefix) {
		return true
	}
	for _, prefix := range []string{"AI response timed out", "Cannot connect to Ollama", "AI service error:"} {
		if strings.HasPrefix(answer, prefix) {
			return true
		}
	}
	return false
}
