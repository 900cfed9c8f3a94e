package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ayush/course-assistant/internal/auth"
	"github.com/ayush/course-assistant/internal/models"
	"github.com/ayush/course-assistant/internal/store"
	"github.com/ayush/course-assistant/internal/web"
)

const testUserID int64 = 7

type fakeBackend struct {
	CompleteFn func(prompt string, maxTokens int) string
	StreamFn   func(prompt string, maxTokens int) []string
	calls      int
	lastPrompt string
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Complete(_ context.Context, prompt string, maxTokens int) string {
	f.calls++
	f.lastPrompt = prompt
	return f.CompleteFn(prompt, maxTokens)
}

func (f *fakeBackend) Stream(_ context.Context, prompt string, maxTokens int) iter.Seq[string] {
	f.calls++
	f.lastPrompt = prompt
	return func(yield func(string) bool) {
		for _, s := range f.StreamFn(prompt, maxTokens) {
			if !yield(s) {
				return
			}
		}
	}
}

type fakeCourses struct {
	courses []models.Course
	err     error
}

func (f *fakeCourses) ListCourses(_ context.Context, userID int64, semester int) ([]models.Course, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Course
	for _, c := range f.courses {
		if c.UserID == userID && c.Semester == semester {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCourses) ListAllCourses(_ context.Context, userID int64) ([]models.Course, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Course
	for _, c := range f.courses {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeHistory struct {
	items []models.Interaction
}

func (f *fakeHistory) Insert(_ context.Context, it *models.Interaction) error {
	if it.CreatedAt.IsZero() {
		it.CreatedAt = time.Date(2024, 1, 2, 3, 4, 0, 0, time.UTC)
	}
	f.items = append(f.items, *it)
	return nil
}

func (f *fakeHistory) ListByUser(_ context.Context, userID int64, limit int64) ([]models.Interaction, error) {
	var out []models.Interaction
	for i := len(f.items) - 1; i >= 0 && int64(len(out)) < limit; i-- {
		if f.items[i].UserID == userID {
			out = append(out, f.items[i])
		}
	}
	return out, nil
}

type fakeArchive struct {
	objects map[string][]byte
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{objects: map[string][]byte{}}
}

func (f *fakeArchive) Upload(_ context.Context, key string, data []byte, _ string) error {
	f.objects[key] = append([]byte(nil), data...)
	return nil
}

func (f *fakeArchive) Download(_ context.Context, key string) ([]byte, string, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, "", store.ErrNotFound
	}
	return data, "text/plain; charset=utf-8", nil
}

func streaming(fragments ...string) *fakeBackend {
	return &fakeBackend{
		StreamFn:   func(string, int) []string { return fragments },
		CompleteFn: func(string, int) string { return strings.Join(fragments, "") },
	}
}

func newTestHandler(t *testing.T, backend Backend, courses CourseLister, history HistoryStore, archive SummaryArchive) *Handler {
	t.Helper()
	views, err := web.NewRenderer(zerolog.Nop(), auth.IsAuthenticated)
	require.NoError(t, err)
	return NewHandler(backend, courses, history, archive, views, zerolog.Nop())
}

func aiRequest(target string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req.WithContext(auth.WithUserID(req.Context(), testUserID))
}

func semesterCourses() *fakeCourses {
	return &fakeCourses{courses: []models.Course{
		{ID: 1, UserID: testUserID, Semester: 3, Name: "Algorithms", Credits: 4},
		{ID: 2, UserID: testUserID, Semester: 1, Name: "Calculus", Credits: 3},
		{ID: 3, UserID: 99, Semester: 3, Name: "Not mine", Credits: 3},
	}}
}

func TestSummarizeWithoutCoursesSkipsBackend(t *testing.T) {
	backend := streaming("should not be used")
	history := &fakeHistory{}
	h := newTestHandler(t, backend, semesterCourses(), history, nil)

	rec := httptest.NewRecorder()
	h.Summarize(rec, aiRequest("/ai/summarize", url.Values{"semester": {"2"}}))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "No courses found for Semester 2. Add some courses first!", rec.Body.String())
	require.Zero(t, backend.calls)
	require.Empty(t, history.items)
}

func TestSummarizeStreamsAndRecords(t *testing.T) {
	backend := streaming("Heavy ", "theory ", "semester.")
	history := &fakeHistory{}
	archive := newFakeArchive()
	h := newTestHandler(t, backend, semesterCourses(), history, archive)

	rec := httptest.NewRecorder()
	h.Summarize(rec, aiRequest("/ai/summarize", url.Values{"semester": {"3"}}))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	require.Equal(t, "Heavy theory semester.", rec.Body.String())
	require.True(t, rec.Flushed)

	require.Contains(t, backend.lastPrompt, "Algorithms (4 credits)")
	require.NotContains(t, backend.lastPrompt, "Not mine")
	require.NotContains(t, backend.lastPrompt, "Calculus")

	require.Len(t, history.items, 1)
	require.Equal(t, models.KindSummary, history.items[0].Kind)
	require.Equal(t, 3, history.items[0].Semester)
	require.Equal(t, "fake", history.items[0].Backend)
	require.Equal(t, "Heavy theory semester.", string(archive.objects["users/7/semester-3/summary.txt"]))
}

func TestSummarizeFailureIsNotArchived(t *testing.T) {
	backend := streaming("Partial", "[AI error: boom]")
	archive := newFakeArchive()
	h := newTestHandler(t, backend, semesterCourses(), nil, archive)

	rec := httptest.NewRecorder()
	h.Summarize(rec, aiRequest("/ai/summarize", url.Values{"semester": {"3"}}))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Partial[AI error: boom]", rec.Body.String())
	require.Empty(t, archive.objects)
}

func TestSummarizeJSON(t *testing.T) {
	backend := streaming("Summary text")
	h := newTestHandler(t, backend, semesterCourses(), nil, nil)

	req := aiRequest("/ai/summarize", url.Values{"semester": {"3"}})
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	h.Summarize(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var resp answerResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "Summary text", resp.Answer)
	require.Empty(t, resp.Resources)
}

func TestSummarizeBadInput(t *testing.T) {
	backend := streaming("x")
	h := newTestHandler(t, backend, semesterCourses(), nil, nil)

	for _, sem := range []string{"", "0", "9", "abc"} {
		rec := httptest.NewRecorder()
		h.Summarize(rec, aiRequest("/ai/summarize", url.Values{"semester": {sem}}))
		require.Equal(t, http.StatusBadRequest, rec.Code, sem)
	}
	require.Zero(t, backend.calls)
}

func TestSummarizeStoreError(t *testing.T) {
	backend := streaming("x")
	h := newTestHandler(t, backend, &fakeCourses{err: errors.New("db down")}, nil, nil)

	rec := httptest.NewRecorder()
	h.Summarize(rec, aiRequest("/ai/summarize", url.Values{"semester": {"3"}}))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Zero(t, backend.calls)
}

func TestSearchEmptyQuerySkipsBackend(t *testing.T) {
	backend := streaming("x")
	h := newTestHandler(t, backend, semesterCourses(), nil, nil)

	rec := httptest.NewRecorder()
	h.Search(rec, aiRequest("/ai/search", url.Values{"query": {"   "}}))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, emptyQueryMsg, rec.Body.String())
	require.Zero(t, backend.calls)
}

func TestSearchUsesAllCoursesAsContext(t *testing.T) {
	backend := streaming("Use ", "graphs.")
	history := &fakeHistory{}
	h := newTestHandler(t, backend, semesterCourses(), history, nil)

	rec := httptest.NewRecorder()
	h.Search(rec, aiRequest("/ai/search", url.Values{"query": {"What next?"}}))

	require.Equal(t, "Use graphs.", rec.Body.String())
	require.Contains(t, backend.lastPrompt, "Semester 1: Calculus (3 credits)")
	require.Contains(t, backend.lastPrompt, "Semester 3: Algorithms (4 credits)")
	require.Contains(t, backend.lastPrompt, "User Question: What next?")
	require.NotContains(t, backend.lastPrompt, "Not mine")

	require.Len(t, history.items, 1)
	require.Equal(t, models.KindSearch, history.items[0].Kind)
	require.Equal(t, "What next?", history.items[0].Query)
}

func TestSearchJSONIncludesResources(t *testing.T) {
	backend := streaming("Short answer.")
	h := newTestHandler(t, backend, &fakeCourses{}, nil, nil)

	req := aiRequest("/ai/search", url.Values{"query": {"linked list"}})
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	h.Search(rec, req)

	var resp answerResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "Short answer.", resp.Answer)
	require.Len(t, resp.Resources, 3)
	require.Equal(t, "https://en.wikipedia.org/wiki/linked_list", resp.Resources[0].URL)
	require.True(t, strings.HasPrefix(backend.lastPrompt, "Answer briefly: linked list"))
}

func TestSearchBackendTimeoutIsNotServerError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		block(r)
	}))
	defer upstream.Close()

	backend := newGroq(upstream.URL, 100*time.Millisecond, 100*time.Millisecond)
	h := newTestHandler(t, backend, semesterCourses(), nil, nil)

	rec := httptest.NewRecorder()
	h.Search(rec, aiRequest("/ai/search", url.Values{"query": {"What is a heap?"}}))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "timed out")

	req := aiRequest("/ai/search", url.Values{"query": {"What is a heap?"}})
	req.Header.Set("Accept", "application/json")
	rec = httptest.NewRecorder()
	h.Search(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), groqTimeoutMsg)
}

func TestHistoryPage(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		h := newTestHandler(t, streaming(), &fakeCourses{}, nil, nil)
		rec := httptest.NewRecorder()
		h.History(rec, aiRequest("/ai/history", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), "History is not enabled")
	})

	t.Run("lists own entries", func(t *testing.T) {
		history := &fakeHistory{}
		require.NoError(t, history.Insert(context.Background(), &models.Interaction{UserID: testUserID, Kind: models.KindSearch, Query: "What is DP?", Answer: "Caching subproblems."}))
		require.NoError(t, history.Insert(context.Background(), &models.Interaction{UserID: 99, Kind: models.KindSearch, Query: "Other user", Answer: "hidden"}))

		h := newTestHandler(t, streaming(), &fakeCourses{}, history, nil)
		rec := httptest.NewRecorder()
		h.History(rec, aiRequest("/ai/history", nil))

		body := rec.Body.String()
		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, body, "What is DP?")
		require.Contains(t, body, "Caching subproblems.")
		require.NotContains(t, body, "Other user")
	})
}

func TestDownloadSummary(t *testing.T) {
	archive := newFakeArchive()
	archive.objects[SummaryKey(testUserID, 4)] = []byte("Saved summary")

	route := func(h *Handler, target string) *httptest.ResponseRecorder {
		r := chi.NewRouter()
		r.Get("/semester/{sem}/summary", h.DownloadSummary)
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req = req.WithContext(auth.WithUserID(req.Context(), testUserID))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	h := newTestHandler(t, streaming(), &fakeCourses{}, nil, archive)

	rec := route(h, "/semester/4/summary")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Saved summary", rec.Body.String())
	require.Equal(t, "attachment; filename=semester-4-summary.txt", rec.Header().Get("Content-Disposition"))

	require.Equal(t, http.StatusNotFound, route(h, "/semester/5/summary").Code)
	require.Equal(t, http.StatusNotFound, route(h, "/semester/12/summary").Code)

	disabled := newTestHandler(t, streaming(), &fakeCourses{}, nil, nil)
	require.Equal(t, http.StatusNotFound, route(disabled, "/semester/4/summary").Code)
}
