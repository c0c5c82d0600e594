package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"learnpath/internal/auth"
	"learnpath/internal/metrics"
	"learnpath/internal/repository/sqlite"
	"learnpath/internal/service"
	"learnpath/internal/storage"
)

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string]string
}

func newFakeStorage() *fakeStorage { return &fakeStorage{objects: map[string]string{}} }

func (f *fakeStorage) Put(_ context.Context, key string, body io.Reader, _ string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = string(data)
	return nil
}

func (f *fakeStorage) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://objects.example/" + key + "?sig=x", nil
}

func (f *fakeStorage) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *fakeStorage) DeletePrefix(_ context.Context, prefix string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			delete(f.objects, k)
		}
	}
	return nil
}

func (f *fakeStorage) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

type testServer struct {
	router  *gin.Engine
	storage *fakeStorage
}

func newTestServer(t *testing.T, withStorage bool) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	users := sqlite.NewUserRepository(db)
	sessions := sqlite.NewRefreshTokenRepository(db)
	roadmaps := sqlite.NewRoadmapRepository(db)
	milestones := sqlite.NewMilestoneRepository(db)
	tasks := sqlite.NewTaskRepository(db)
	timeLogs := sqlite.NewTimeLogRepository(db)
	resources := sqlite.NewResourceRepository(db)
	tags := sqlite.NewTagRepository(db)
	skills := sqlite.NewSkillRepository(db)
	achievements := sqlite.NewAchievementRepository(db)
	settings := sqlite.NewSettingsRepository(db)
	progress := sqlite.NewProgressRepository(db)
	stats := sqlite.NewStatsRepository(db)
	require.NoError(t, sqlite.InitAll(ctx,
		users, sessions, roadmaps, milestones, tasks, timeLogs, resources,
		tags, skills, achievements, settings, progress, stats,
	))

	logger, _ := logtest.NewNullLogger()
	tokens, err := auth.NewTokenService(auth.TokenConfig{Secret: "api-test-secret"})
	require.NoError(t, err)
	authSvc, err := service.NewAuthService(users, sessions, auth.NewPasswordHasher(bcrypt.MinCost), tokens, logger)
	require.NoError(t, err)
	statsSvc := service.NewStatsService(stats, tasks, logger)

	ts := &testServer{router: gin.New()}
	var store storage.Service
	if withStorage {
		ts.storage = newFakeStorage()
		store = ts.storage
	}

	h := NewHandler(authSvc, statsSvc, Stores{
		Roadmaps:     roadmaps,
		Milestones:   milestones,
		Tasks:        tasks,
		TimeLogs:     timeLogs,
		Resources:    resources,
		Tags:         tags,
		Skills:       skills,
		Achievements: achievements,
		Settings:     settings,
		Progress:     progress,
		Stats:        stats,
	}, store, Options{
		AllowedOrigins: []string{"http://app.example"},
		KeyPrefix:      "attachments",
		Logger:         logger,
		Metrics:        metrics.New(prometheus.NewRegistry()),
	})
	h.RegisterRoutes(ts.router)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

// login registers the user when needed and returns an access token and
// the refresh cookie.
func (ts *testServer) login(t *testing.T, email string) (string, *http.Cookie) {
	t.Helper()
	creds := map[string]string{"email": email, "password": "pw123456"}
	ts.do(t, http.MethodPost, "/api/auth/register", "", creds)

	w := ts.do(t, http.MethodPost, "/api/auth/login", "", creds)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		AccessToken string `json:"accessToken"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.AccessToken, refreshCookie(w)
}

func refreshCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == refreshCookieName {
			return c
		}
	}
	return nil
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, w)["error"]
}

func TestRegisterLoginProfile(t *testing.T) {
	ts := newTestServer(t, false)
	creds := map[string]string{"email": "a@x.com", "password": "pw123456"}

	w := ts.do(t, http.MethodPost, "/api/auth/register", "", creds)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "password")

	w = ts.do(t, http.MethodPost, "/api/auth/login", "", creds)
	require.Equal(t, http.StatusOK, w.Code)
	login := decode[map[string]any](t, w)
	token, _ := login["accessToken"].(string)
	require.NotEmpty(t, token)

	cookie := refreshCookie(w)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, refreshCookiePath, cookie.Path)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assert.InDelta(t, (7 * 24 * time.Hour).Seconds(), cookie.MaxAge, 5)

	w = ts.do(t, http.MethodGet, "/api/auth/profile", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	profile := decode[map[string]any](t, w)
	assert.Equal(t, "a@x.com", profile["email"])
	assert.NotEmpty(t, profile["id"])
	assert.NotContains(t, w.Body.String(), "password")

	w = ts.do(t, http.MethodGet, "/api/auth/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthorized", errorMessage(t, w))
}

func TestRegisterValidationAndConflict(t *testing.T) {
	ts := newTestServer(t, false)

	w := ts.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"email": "a@x.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, errorMessage(t, w), "password is required")

	w = ts.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"email": "not-an-email", "password": "pw123456"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, errorMessage(t, w), "email must be a valid email address")

	w = ts.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"email": "a@x.com", "password": "short"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	creds := map[string]string{"email": "a@x.com", "password": "pw123456"}
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/auth/register", "", creds).Code)
	w = ts.do(t, http.MethodPost, "/api/auth/register", "", creds)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "email already registered", errorMessage(t, w))

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid request body", errorMessage(t, rec))
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ts := newTestServer(t, false)
	ts.login(t, "a@x.com")

	w := ts.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "a@x.com", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Nil(t, refreshCookie(w))
}

func TestAuthGateRejectsBadTokens(t *testing.T) {
	ts := newTestServer(t, false)
	_, cookie := ts.login(t, "a@x.com")

	for name, header := range map[string]string{
		"garbage":       "Bearer not-a-jwt",
		"wrong scheme":  "Basic abc",
		"refresh token": "Bearer " + cookie.Value,
		"empty bearer":  "Bearer ",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/roadmaps", nil)
			req.Header.Set("Authorization", header)
			w := httptest.NewRecorder()
			ts.router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "unauthorized", errorMessage(t, w))
		})
	}
}

func TestRefreshRotatesCookie(t *testing.T) {
	ts := newTestServer(t, false)
	_, cookie := ts.login(t, "a@x.com")
	require.NotNil(t, cookie)

	refresh := func(c *http.Cookie) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
		if c != nil {
			req.AddCookie(c)
		}
		w := httptest.NewRecorder()
		ts.router.ServeHTTP(w, req)
		return w
	}

	w := refresh(cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	token := decode[map[string]string](t, w)["accessToken"]
	assert.NotEmpty(t, token)
	rotated := refreshCookie(w)
	require.NotNil(t, rotated)
	assert.NotEqual(t, cookie.Value, rotated.Value)

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/auth/profile", token, nil).Code)

	// replaying the old cookie revokes the rotated one as well
	w = refresh(cookie)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, http.StatusUnauthorized, refresh(rotated).Code)

	assert.Equal(t, http.StatusUnauthorized, refresh(nil).Code)
}

func TestLogout(t *testing.T) {
	ts := newTestServer(t, false)
	token, cookie := ts.login(t, "a@x.com")

	w := ts.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	cleared := refreshCookie(w)
	require.NotNil(t, cleared)
	assert.Equal(t, "", cleared.Value)
	assert.Equal(t, refreshCookiePath, cleared.Path)
	assert.True(t, cleared.MaxAge < 0)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/auth/logout", "", nil).Code)
}

func TestProfileUpdateAndPasswordChange(t *testing.T) {
	ts := newTestServer(t, false)
	token, _ := ts.login(t, "a@x.com")

	w := ts.do(t, http.MethodPut, "/api/auth/profile", token, map[string]string{"name": "Ada"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Ada", decode[map[string]any](t, w)["name"])

	w = ts.do(t, http.MethodPut, "/api/auth/password", token, map[string]string{"currentPassword": "nope", "newPassword": "another-pass"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPut, "/api/auth/password", token, map[string]string{"currentPassword": "pw123456", "newPassword": "another-pass"})
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "a@x.com", "password": "another-pass"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRoadmapOwnership(t *testing.T) {
	ts := newTestServer(t, false)
	alice, _ := ts.login(t, "alice@x.com")
	bob, _ := ts.login(t, "bob@x.com")

	w := ts.do(t, http.MethodPost, "/api/roadmaps", alice, map[string]any{"title": "Go"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decode[map[string]any](t, w)["id"].(string)

	for _, tc := range []struct {
		method string
		body   any
	}{
		{http.MethodGet, nil},
		{http.MethodPut, map[string]any{"title": "mine now"}},
		{http.MethodDelete, nil},
	} {
		w = ts.do(t, tc.method, "/api/roadmaps/"+id, bob, tc.body)
		assert.Equal(t, http.StatusNotFound, w.Code, tc.method)
		assert.Equal(t, "not found", errorMessage(t, w))
	}

	w = ts.do(t, http.MethodGet, "/api/roadmaps/does-not-exist", bob, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not found", errorMessage(t, w))

	w = ts.do(t, http.MethodGet, "/api/roadmaps/"+id, alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Go", decode[map[string]any](t, w)["title"])

	w = ts.do(t, http.MethodGet, "/api/roadmaps", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]map[string]any](t, w))

	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/roadmaps/"+id+"/milestones", bob, nil).Code)
	assert.Equal(t, http.StatusNoContent, ts.do(t, http.MethodDelete, "/api/roadmaps/"+id, alice, nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/roadmaps/"+id, alice, nil).Code)
}

func TestTaskPartialUpdateKeepsStatus(t *testing.T) {
	ts := newTestServer(t, false)
	token, _ := ts.login(t, "a@x.com")

	w := ts.do(t, http.MethodPost, "/api/tasks", token, map[string]any{"title": "read", "status": "in_progress", "priority": "high"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decode[map[string]any](t, w)["id"].(string)

	w = ts.do(t, http.MethodPut, "/api/tasks/"+id, token, map[string]any{"title": "read more"})
	require.Equal(t, http.StatusOK, w.Code)
	task := decode[map[string]any](t, w)
	assert.Equal(t, "read more", task["title"])
	assert.Equal(t, "in_progress", task["status"])
	assert.Equal(t, "high", task["priority"])

	w = ts.do(t, http.MethodPut, "/api/tasks/"+id, token, map[string]any{"status": "finished"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, errorMessage(t, w), "status must be one of")
}

func TestTaskCompletionFeedsStats(t *testing.T) {
	ts := newTestServer(t, false)
	token, _ := ts.login(t, "a@x.com")

	w := ts.do(t, http.MethodPost, "/api/tasks", token, map[string]any{"title": "ship"})
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[map[string]any](t, w)["id"].(string)

	w = ts.do(t, http.MethodPut, "/api/tasks/"+id, token, map[string]any{"status": "done"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decode[map[string]any](t, w)["completedAt"])

	w = ts.do(t, http.MethodPost, "/api/timelogs", token, map[string]any{"taskId": id, "minutes": 45})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = ts.do(t, http.MethodGet, "/api/learning-stats", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[map[string]any](t, w)
	assert.Equal(t, float64(45), stats["totalMinutes"])
	assert.Equal(t, float64(1), stats["currentStreak"])
	assert.Equal(t, float64(1), stats["tasksCompleted"])

	w = ts.do(t, http.MethodGet, "/api/achievements", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	achievements := decode[[]map[string]any](t, w)
	require.Len(t, achievements, 1)
	assert.Equal(t, "first-log", achievements[0]["code"])

	w = ts.do(t, http.MethodGet, "/api/tasks/"+id+"/timelogs", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]map[string]any](t, w), 1)

	w = ts.do(t, http.MethodGet, "/api/progress/summary", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	summary := decode[map[string]any](t, w)
	assert.Equal(t, float64(1), summary["completedTasks"])
	assert.Equal(t, float64(45), summary["minutesLogged"])
}

func TestNestedCreateRequiresOwnedParent(t *testing.T) {
	ts := newTestServer(t, false)
	alice, _ := ts.login(t, "alice@x.com")
	bob, _ := ts.login(t, "bob@x.com")

	w := ts.do(t, http.MethodPost, "/api/roadmaps", alice, map[string]any{"title": "Go"})
	require.Equal(t, http.StatusCreated, w.Code)
	roadmapID := decode[map[string]any](t, w)["id"].(string)

	w = ts.do(t, http.MethodPost, "/api/milestones", bob, map[string]any{"roadmapId": roadmapID, "title": "sneaky"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodPost, "/api/tasks", bob, map[string]any{"title": "x", "roadmapId": roadmapID})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodPost, "/api/milestones", alice, map[string]any{"roadmapId": roadmapID, "title": "basics", "status": "completed"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotEmpty(t, decode[map[string]any](t, w)["completedAt"])

	w = ts.do(t, http.MethodGet, "/api/milestones?roadmapId="+roadmapID, alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]map[string]any](t, w), 1)

	w = ts.do(t, http.MethodGet, "/api/roadmaps/"+roadmapID+"/milestones", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]map[string]any](t, w), 1)
}

func TestNestedWritesRequireOwnedParent(t *testing.T) {
	ts := newTestServer(t, false)
	alice, _ := ts.login(t, "alice@x.com")
	bob, _ := ts.login(t, "bob@x.com")

	w := ts.do(t, http.MethodPost, "/api/roadmaps", alice, map[string]any{"title": "Go"})
	require.Equal(t, http.StatusCreated, w.Code)
	roadmapID := decode[map[string]any](t, w)["id"].(string)

	w = ts.do(t, http.MethodPost, "/api/milestones", alice, map[string]any{"roadmapId": roadmapID, "title": "basics"})
	require.Equal(t, http.StatusCreated, w.Code)
	milestoneID := decode[map[string]any](t, w)["id"].(string)

	w = ts.do(t, http.MethodPost, "/api/tasks", alice, map[string]any{"title": "practice", "roadmapId": roadmapID})
	require.Equal(t, http.StatusCreated, w.Code)
	aliceTaskID := decode[map[string]any](t, w)["id"].(string)

	w = ts.do(t, http.MethodPost, "/api/timelogs", alice, map[string]any{"taskId": aliceTaskID, "minutes": 20})
	require.Equal(t, http.StatusCreated, w.Code)
	logID := decode[map[string]any](t, w)["id"].(string)

	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodPut, "/api/milestones/"+milestoneID, bob, map[string]any{"title": "mine"}).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodDelete, "/api/milestones/"+milestoneID, bob, nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodPut, "/api/timelogs/"+logID, bob, map[string]any{"minutes": 600}).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodDelete, "/api/timelogs/"+logID, bob, nil).Code)

	w = ts.do(t, http.MethodPost, "/api/tasks", bob, map[string]any{"title": "mine"})
	require.Equal(t, http.StatusCreated, w.Code)
	bobTaskID := decode[map[string]any](t, w)["id"].(string)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodPut, "/api/tasks/"+bobTaskID, bob, map[string]any{"roadmapId": roadmapID}).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodPut, "/api/tasks/"+bobTaskID, bob, map[string]any{"milestoneId": milestoneID}).Code)

	w = ts.do(t, http.MethodPut, "/api/tasks/"+aliceTaskID, alice, map[string]any{"roadmapId": ""})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, decode[map[string]any](t, w), "roadmapId")

	w = ts.do(t, http.MethodGet, "/api/timelogs/"+logID, alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(20), decode[map[string]any](t, w)["minutes"])
}

func TestTimeLogEditsKeepStatsInSync(t *testing.T) {
	ts := newTestServer(t, false)
	token, _ := ts.login(t, "a@x.com")

	w := ts.do(t, http.MethodPost, "/api/tasks", token, map[string]any{"title": "practice"})
	require.Equal(t, http.StatusCreated, w.Code)
	taskID := decode[map[string]any](t, w)["id"].(string)

	w = ts.do(t, http.MethodPost, "/api/timelogs", token, map[string]any{"taskId": taskID, "minutes": 30})
	require.Equal(t, http.StatusCreated, w.Code)
	logID := decode[map[string]any](t, w)["id"].(string)
	w = ts.do(t, http.MethodPost, "/api/timelogs", token, map[string]any{"taskId": taskID, "minutes": 10})
	require.Equal(t, http.StatusCreated, w.Code)

	totals := func() (float64, float64) {
		w := ts.do(t, http.MethodGet, "/api/learning-stats", token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		stats := decode[map[string]any](t, w)
		w = ts.do(t, http.MethodGet, "/api/progress/summary", token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		summary := decode[map[string]any](t, w)
		return stats["totalMinutes"].(float64), summary["minutesLogged"].(float64)
	}

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPut, "/api/timelogs/"+logID, token, map[string]any{"minutes": 50}).Code)
	total, logged := totals()
	assert.Equal(t, float64(60), total)
	assert.Equal(t, logged, total)

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPut, "/api/timelogs/"+logID, token, map[string]any{"note": "focus"}).Code)
	total, _ = totals()
	assert.Equal(t, float64(60), total)

	require.Equal(t, http.StatusNoContent, ts.do(t, http.MethodDelete, "/api/timelogs/"+logID, token, nil).Code)
	total, logged = totals()
	assert.Equal(t, float64(10), total)
	assert.Equal(t, logged, total)
}

func TestMilestoneCompletionStampedOnce(t *testing.T) {
	ts := newTestServer(t, false)
	token, _ := ts.login(t, "a@x.com")

	w := ts.do(t, http.MethodPost, "/api/roadmaps", token, map[string]any{"title": "Go"})
	require.Equal(t, http.StatusCreated, w.Code)
	roadmapID := decode[map[string]any](t, w)["id"].(string)

	w = ts.do(t, http.MethodPost, "/api/milestones", token, map[string]any{"roadmapId": roadmapID, "title": "basics"})
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[map[string]any](t, w)["id"].(string)

	w = ts.do(t, http.MethodPut, "/api/milestones/"+id, token, map[string]any{"status": "completed"})
	require.Equal(t, http.StatusOK, w.Code)
	stamped, _ := decode[map[string]any](t, w)["completedAt"].(string)
	require.NotEmpty(t, stamped)

	time.Sleep(5 * time.Millisecond)
	w = ts.do(t, http.MethodPut, "/api/milestones/"+id, token, map[string]any{"status": "completed", "title": "basics done"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, stamped, decode[map[string]any](t, w)["completedAt"])

	w = ts.do(t, http.MethodPut, "/api/milestones/"+id, token, map[string]any{"status": "in_progress"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, decode[map[string]any](t, w), "completedAt")
}

func TestListFilters(t *testing.T) {
	ts := newTestServer(t, false)
	token, _ := ts.login(t, "a@x.com")

	ts.do(t, http.MethodPost, "/api/resources", token, map[string]any{"title": "Tour", "type": "course", "isCompleted": true})
	ts.do(t, http.MethodPost, "/api/resources", token, map[string]any{"title": "Language reference", "type": "documentation"})

	w := ts.do(t, http.MethodGet, "/api/resources?isCompleted=true", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]map[string]any](t, w)
	require.Len(t, list, 1)
	assert.Equal(t, "Tour", list[0]["title"])

	w = ts.do(t, http.MethodGet, "/api/resources?type=documentation", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]map[string]any](t, w), 1)

	w = ts.do(t, http.MethodGet, "/api/resources?isCompleted=maybe", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTagConflict(t *testing.T) {
	ts := newTestServer(t, false)
	token, _ := ts.login(t, "a@x.com")

	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/tags", token, map[string]any{"name": "go", "color": "#00ADD8"}).Code)
	w := ts.do(t, http.MethodPost, "/api/tags", token, map[string]any{"name": "go"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "tag already exists", errorMessage(t, w))
}

func TestSkillsSharedAcrossUsers(t *testing.T) {
	ts := newTestServer(t, false)
	alice, _ := ts.login(t, "alice@x.com")
	bob, _ := ts.login(t, "bob@x.com")

	w := ts.do(t, http.MethodPost, "/api/skills", alice, map[string]any{"name": "Testing"})
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[map[string]any](t, w)["id"].(string)

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/skills/"+id, bob, nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodPut, "/api/skills/"+id, bob, map[string]any{"name": "x"}).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodDelete, "/api/skills/"+id, bob, nil).Code)
	assert.Equal(t, http.StatusNoContent, ts.do(t, http.MethodDelete, "/api/skills/"+id, alice, nil).Code)
}

func TestSingletonRoutes(t *testing.T) {
	ts := newTestServer(t, false)
	token, _ := ts.login(t, "a@x.com")

	w := ts.do(t, http.MethodGet, "/api/settings", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "system", decode[map[string]any](t, w)["theme"])

	w = ts.do(t, http.MethodPut, "/api/settings", token, map[string]any{"theme": "dark", "dailyGoalMinutes": 45})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	settings := decode[map[string]any](t, w)
	assert.Equal(t, "dark", settings["theme"])
	assert.Equal(t, float64(45), settings["dailyGoalMinutes"])
	assert.Equal(t, "UTC", settings["timezone"])

	w = ts.do(t, http.MethodPut, "/api/settings", token, map[string]any{"theme": "neon"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPut, "/api/progress", token, map[string]any{"currentFocus": "generics"})
	require.Equal(t, http.StatusOK, w.Code)
	progress := decode[map[string]any](t, w)
	assert.Equal(t, "generics", progress["currentFocus"])
	assert.Equal(t, float64(1), progress["level"])

	w = ts.do(t, http.MethodPut, "/api/learning-stats", token, map[string]any{})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAttachments(t *testing.T) {
	ts := newTestServer(t, true)
	alice, _ := ts.login(t, "alice@x.com")
	bob, _ := ts.login(t, "bob@x.com")

	w := ts.do(t, http.MethodPost, "/api/resources", alice, map[string]any{"title": "Notes"})
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[map[string]any](t, w)["id"].(string)

	upload := func(token string) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		part, err := mw.CreateFormFile("file", "notes.txt")
		require.NoError(t, err)
		_, _ = part.Write([]byte("hello"))
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPut, "/api/resources/"+id+"/attachment", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		ts.router.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNotFound, upload(bob).Code)
	assert.Equal(t, 0, ts.storage.count())

	w = upload(alice)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	key, _ := decode[map[string]any](t, w)["attachmentKey"].(string)
	assert.True(t, strings.HasPrefix(key, "attachments/"))
	assert.True(t, strings.HasSuffix(key, "/"+id+"/notes.txt"))
	assert.Equal(t, 1, ts.storage.count())

	w = ts.do(t, http.MethodGet, "/api/resources/"+id+"/attachment", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode[map[string]any](t, w)["url"], key)

	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/resources/"+id+"/attachment", bob, nil).Code)

	assert.Equal(t, http.StatusNoContent, ts.do(t, http.MethodDelete, "/api/resources/"+id, alice, nil).Code)
	assert.Equal(t, 0, ts.storage.count())
}

func TestAttachmentsWithoutStorage(t *testing.T) {
	ts := newTestServer(t, false)
	token, _ := ts.login(t, "a@x.com")

	w := ts.do(t, http.MethodGet, "/api/resources/anything/attachment", token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t, false)

	req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "http://app.example")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://app.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t, false)

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/health", "", nil).Code)

	w := ts.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "learnpath_http_requests_total")
}
