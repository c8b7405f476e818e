package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"safereport/internal/models"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	citizenID = "0b8f8a52-2f0e-4d59-b3c4-0f1f6a9f6a10"
	staffID   = "5d0c1c3e-7a9b-4a0e-8e3f-6c2b9d1e4f20"
	reportID  = "9a7b6c5d-4e3f-4a1b-9c8d-7e6f5a4b3c2d"
)

var (
	citizenUser = &models.User{ID: citizenID, Username: "alice", Role: models.RoleCitizen, CredibilityScore: 1}
	staffUser   = &models.User{ID: staffID, Username: "duty-officer", Role: models.RoleAgency, CredibilityScore: 1}
)

type routerFixture struct {
	router  *gin.Engine
	users   *MockUserService
	reports *MockReportService
	triage  *MockTriageService
	scoring *MockScoringService
	db      *MockPinger
	store   *MockMediaStore
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	f := &routerFixture{
		users:   new(MockUserService),
		reports: new(MockReportService),
		triage:  new(MockTriageService),
		scoring: new(MockScoringService),
		db:      new(MockPinger),
		store:   new(MockMediaStore),
	}
	f.router = NewRouter(RouterDeps{
		Config:        testConfig(),
		Logger:        createTestLogger(),
		DB:            f.db,
		UserService:   f.users,
		ReportService: f.reports,
		TriageService: f.triage,
		Scoring:       f.scoring,
		Store:         f.store,
	})
	t.Cleanup(func() {
		f.reports.AssertExpectations(t)
		f.triage.AssertExpectations(t)
	})
	return f
}

// login signs user in through the real login route and returns the session cookie
func (f *routerFixture) login(t *testing.T, user *models.User) *http.Cookie {
	t.Helper()
	f.users.On("AuthenticateUser", mock.Anything, user.Username, "correct-horse").Return(user, nil).Once()
	f.users.On("GetUserByID", mock.Anything, user.ID).Return(user, nil).Maybe()

	w := f.do(jsonRequest(t, http.MethodPost, "/v1/auth/login", map[string]string{
		"username": user.Username,
		"password": "correct-horse",
	}), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies[0]
}

func (f *routerFixture) do(req *http.Request, sessionCookie *http.Cookie) *httptest.ResponseRecorder {
	if sessionCookie != nil {
		req.AddCookie(sessionCookie)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func jsonRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

// newSessionRouter is a bare router with only the session middleware, for testing one handler
func newSessionRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(sessions.Sessions("test-session", cookie.NewStore([]byte("test-secret"))))
	return router
}
