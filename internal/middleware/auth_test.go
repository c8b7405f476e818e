package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"safereport/internal/config"
	"safereport/internal/models"
	"safereport/internal/observability"
	contextutils "safereport/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUserID = "6f1c2a5e-8d1b-4c57-9a0e-3d2f1b7c9e42"

type mockUserLookup struct {
	user      *models.User
	err       error
	callCount int
	lastID    string
}

func (m *mockUserLookup) GetUserByID(_ context.Context, id string) (*models.User, error) {
	m.callCount++
	m.lastID = id
	return m.user, m.err
}

func createTestLogger() *observability.Logger {
	return observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
}

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	store := cookie.NewStore([]byte("test-secret"))
	router.Use(sessions.Sessions("test-session", store))
	return router
}

func setSessionCookie(t *testing.T, router *gin.Engine, values map[string]interface{}) *http.Cookie {
	setupPath := "/setup-session-" + t.Name()
	router.GET(setupPath, func(c *gin.Context) {
		session := sessions.Default(c)
		for k, v := range values {
			session.Set(k, v)
		}
		require.NoError(t, session.Save())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest("GET", setupPath, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies[0]
}

func serve(router *gin.Engine, path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRequireAuth(t *testing.T) {
	router := newTestRouter()
	router.GET("/resource", RequireAuth(), func(c *gin.Context) {
		assert.Equal(t, testUserID, CurrentUserID(c))
		assert.Equal(t, "alice", c.GetString(UsernameKey))
		assert.Equal(t, testUserID, contextutils.GetUserIDFromContext(c.Request.Context()))
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	t.Run("no session", func(t *testing.T) {
		w := serve(router, "/resource", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
	})

	t.Run("valid session", func(t *testing.T) {
		cookie := setSessionCookie(t, router, map[string]interface{}{UserIDKey: testUserID, UsernameKey: "alice"})
		w := serve(router, "/resource", cookie)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("numeric id from an old cookie", func(t *testing.T) {
		cookie := setSessionCookie(t, router, map[string]interface{}{UserIDKey: 42, UsernameKey: "alice"})
		w := serve(router, "/resource", cookie)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("missing username", func(t *testing.T) {
		cookie := setSessionCookie(t, router, map[string]interface{}{UserIDKey: testUserID})
		w := serve(router, "/resource", cookie)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestOptionalAuth(t *testing.T) {
	router := newTestRouter()
	router.GET("/submit", OptionalAuth(), func(c *gin.Context) {
		c.String(http.StatusOK, CurrentUserID(c))
	})

	w := serve(router, "/submit", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())

	cookie := setSessionCookie(t, router, map[string]interface{}{UserIDKey: testUserID, UsernameKey: "alice"})
	w = serve(router, "/submit", cookie)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, testUserID, w.Body.String())
}

func TestRequireStaff(t *testing.T) {
	tests := []struct {
		name     string
		lookup   *mockUserLookup
		expected int
	}{
		{"agency", &mockUserLookup{user: &models.User{ID: testUserID, Role: models.RoleAgency}}, http.StatusOK},
		{"admin", &mockUserLookup{user: &models.User{ID: testUserID, Role: models.RoleAdmin}}, http.StatusOK},
		{"citizen", &mockUserLookup{user: &models.User{ID: testUserID, Role: models.RoleCitizen}}, http.StatusForbidden},
		{"deleted account", &mockUserLookup{}, http.StatusUnauthorized},
		{"not found error", &mockUserLookup{err: contextutils.WrapError(contextutils.ErrRecordNotFound, "user not found")}, http.StatusUnauthorized},
		{"lookup failure", &mockUserLookup{err: errors.New("connection reset")}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter()
			router.GET("/queue", RequireStaff(tt.lookup), func(c *gin.Context) {
				user := CurrentUser(c)
				require.NotNil(t, user)
				assert.True(t, user.IsStaff())
				c.Status(http.StatusOK)
			})

			cookie := setSessionCookie(t, router, map[string]interface{}{UserIDKey: testUserID, UsernameKey: "staff"})
			w := serve(router, "/queue", cookie)
			assert.Equal(t, tt.expected, w.Code)
			assert.Equal(t, 1, tt.lookup.callCount)
			assert.Equal(t, testUserID, tt.lookup.lastID)
		})
	}
}

func TestRequireRole_NoSessionSkipsLookup(t *testing.T) {
	lookup := &mockUserLookup{user: &models.User{ID: testUserID, Role: models.RoleAdmin}}
	router := newTestRouter()
	router.GET("/queue", RequireStaff(lookup), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := serve(router, "/queue", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Zero(t, lookup.callCount)
}

func TestRequireRole_AnyRole(t *testing.T) {
	lookup := &mockUserLookup{user: &models.User{ID: testUserID, Role: models.RoleCitizen}}
	router := newTestRouter()
	router.GET("/reports/x", RequireRole(lookup), func(c *gin.Context) {
		assert.Equal(t, models.RoleCitizen, CurrentUser(c).Role)
		c.Status(http.StatusOK)
	})

	cookie := setSessionCookie(t, router, map[string]interface{}{UserIDKey: testUserID, UsernameKey: "alice"})
	w := serve(router, "/reports/x", cookie)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireRole_PanicsWithoutLookup(t *testing.T) {
	assert.Panics(t, func() { RequireRole(nil) })
}
