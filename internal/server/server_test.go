package server

import (
	"context"
	"encoding/json"
	"io"
	"iter"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ayush/course-assistant/internal/auth"
	"github.com/ayush/course-assistant/internal/config"
	"github.com/ayush/course-assistant/internal/store"
)

type stubBackend struct {
	calls int
}

func (b *stubBackend) Name() string { return "stub" }

func (b *stubBackend) Complete(context.Context, string, int) string {
	b.calls++
	return "stub answer"
}

func (b *stubBackend) Stream(context.Context, string, int) iter.Seq[string] {
	b.calls++
	return func(yield func(string) bool) {
		for _, s := range []string{"stub ", "answer"} {
			if !yield(s) {
				return
			}
		}
	}
}

type testApp struct {
	srv     *httptest.Server
	backend *stubBackend
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cms.db")
	require.NoError(t, store.RunMigrations(path))
	db, err := store.Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	backend := &stubBackend{}
	handler, err := NewRouter(Deps{
		Store:    db,
		Sessions: auth.NewTokenSessionStore("test-secret"),
		Backend:  backend,
		Log:      zerolog.Nop(),
	})
	require.NoError(t, err)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &testApp{srv: srv, backend: backend}
}

func (a *testApp) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func (a *testApp) post(t *testing.T, c *http.Client, path string, form url.Values) (*http.Response, string) {
	t.Helper()
	resp, err := c.PostForm(a.srv.URL+path, form)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func (a *testApp) get(t *testing.T, c *http.Client, path string) (*http.Response, string) {
	t.Helper()
	resp, err := c.Get(a.srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func (a *testApp) signup(t *testing.T, c *http.Client, email, password string) {
	t.Helper()
	resp, _ := a.post(t, c, "/signup", url.Values{"email": {email}, "password": {password}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "/dashboard", resp.Request.URL.Path)
}

func TestSignupAddCourseAndListSemester(t *testing.T) {
	app := newTestApp(t)
	c := app.client(t)

	app.signup(t, c, "a@x.com", "p1")

	resp, _ := app.post(t, c, "/semester/3/add", url.Values{"name": {"Algorithms"}, "credits": {"4"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "/semester/3", resp.Request.URL.Path)

	resp, body := app.get(t, c, "/semester/3")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 1, strings.Count(body, `<tr class="course">`))
	require.Contains(t, body, `<td class="course-name">Algorithms</td>`)
	require.Contains(t, body, `<td class="course-credits">4</td>`)

	_, body = app.get(t, c, "/semester/4")
	require.NotContains(t, body, "Algorithms")
}

func TestOversizedCreditsAreStoredAsDefault(t *testing.T) {
	app := newTestApp(t)
	c := app.client(t)
	app.signup(t, c, "a@x.com", "p1")

	resp, body := app.post(t, c, "/semester/1/add", url.Values{"name": {"Calculus"}, "credits": {"3000000000"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "/semester/1", resp.Request.URL.Path)
	require.Contains(t, body, `<td class="course-credits">3</td>`)
	require.NotContains(t, body, "3000000000")
}

func TestProtectedRoutesRedirectToLogin(t *testing.T) {
	app := newTestApp(t)
	c := app.client(t)

	for _, path := range []string{"/dashboard", "/semester/1", "/profile", "/ai/history"} {
		resp, _ := app.get(t, c, path)
		require.Equal(t, "/login", resp.Request.URL.Path, path)
	}

	resp, body := app.post(t, c, "/ai/search", url.Values{"query": {"hi"}})
	require.Equal(t, "/login", resp.Request.URL.Path)
	require.NotContains(t, body, "stub answer")
	require.Zero(t, app.backend.calls)
}

func TestLoginLogout(t *testing.T) {
	app := newTestApp(t)
	c := app.client(t)
	app.signup(t, c, "a@x.com", "p1")

	resp, _ := app.get(t, c, "/logout")
	require.Equal(t, "/", resp.Request.URL.Path)
	resp, _ = app.get(t, c, "/dashboard")
	require.Equal(t, "/login", resp.Request.URL.Path)

	resp, body := app.post(t, c, "/login", url.Values{"email": {"a@x.com"}, "password": {"wrong"}})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Contains(t, body, "Invalid credentials")

	resp, _ = app.post(t, c, "/login", url.Values{"email": {"a@x.com"}, "password": {"p1"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "/dashboard", resp.Request.URL.Path)
}

func TestOtherUsersCannotTouchCourses(t *testing.T) {
	app := newTestApp(t)
	owner, other := app.client(t), app.client(t)
	app.signup(t, owner, "owner@x.com", "p1")
	app.signup(t, other, "other@x.com", "p2")

	app.post(t, owner, "/semester/2/add", url.Values{"name": {"Physics"}, "credits": {"3"}})

	resp, body := app.post(t, other, "/course/1/edit", url.Values{"name": {"Hacked"}})
	require.Equal(t, "/dashboard", resp.Request.URL.Path)
	require.Contains(t, body, "Not authorized")

	resp, _ = app.post(t, other, "/course/1/delete", nil)
	require.Equal(t, "/dashboard", resp.Request.URL.Path)

	_, body = app.get(t, owner, "/semester/2")
	require.Contains(t, body, `<td class="course-name">Physics</td>`)

	resp, _ = app.post(t, owner, "/course/1/delete", nil)
	require.Equal(t, "/semester/2", resp.Request.URL.Path)
	_, body = app.get(t, owner, "/semester/2")
	require.NotContains(t, body, "Physics")
}

func TestAIRoutes(t *testing.T) {
	app := newTestApp(t)
	c := app.client(t)
	app.signup(t, c, "a@x.com", "p1")

	resp, body := app.post(t, c, "/ai/summarize", url.Values{"semester": {"2"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "No courses found for Semester 2. Add some courses first!", body)
	require.Zero(t, app.backend.calls)

	app.post(t, c, "/semester/2/add", url.Values{"name": {"Physics"}})
	resp, body = app.post(t, c, "/ai/summarize", url.Values{"semester": {"2"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))
	require.Equal(t, "stub answer", body)

	resp, body = app.post(t, c, "/ai/search", url.Values{"query": {"What is torque?"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "stub answer", body)
	require.Equal(t, 2, app.backend.calls)

	resp, body = app.get(t, c, "/ai/history")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "History is not enabled")

	resp, _ = app.get(t, c, "/semester/2/summary")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthAndNotFound(t *testing.T) {
	app := newTestApp(t)
	c := app.client(t)

	resp, body := app.get(t, c, "/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	require.Equal(t, "ok", got["status"])

	resp, _ = app.get(t, c, "/no/such/page")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	app.signup(t, c, "a@x.com", "p1")
	resp, _ = app.get(t, c, "/semester/9")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServerLifecycle(t *testing.T) {
	cfg := config.Default()
	cfg.DatabaseURL = filepath.Join(t.TempDir(), "cms.db")
	cfg.Port = "0"

	s, err := New(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Run(ctx))
}
