// Package middleware provides session authentication, role gates, rate limiting and panic recovery for gin.
package middleware

import (
	"context"
	"errors"
	"net/http"

	"safereport/internal/models"
	contextutils "safereport/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// Session and context keys for storing user information
const (
	// UserIDKey is the key used to store user ID in session
	UserIDKey = "user_id"
	// UsernameKey is the key used to store username in session
	UsernameKey = "username"
	// UserKey holds the *models.User loaded by RequireRole
	UserKey = "user"
)

// UserLookup is the part of the user service the role gate needs
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// sessionIdentity reads the signed-in user from the session. ok is false when the
// session is missing either value or holds something other than strings.
func sessionIdentity(c *gin.Context) (userID, username string, ok bool) {
	session := sessions.Default(c)
	userID, idOK := session.Get(UserIDKey).(string)
	username, nameOK := session.Get(UsernameKey).(string)
	if !idOK || !nameOK || userID == "" || username == "" {
		return "", "", false
	}
	return userID, username, true
}

func setIdentity(c *gin.Context, userID, username string) {
	c.Set(UserIDKey, userID)
	c.Set(UsernameKey, username)
	c.Request = c.Request.WithContext(contextutils.WithUserID(c.Request.Context(), userID))
}

func abortWith(c *gin.Context, status int, appErr *contextutils.AppError) {
	c.AbortWithStatusJSON(status, appErr.ToJSON())
}

// RequireAuth returns a middleware that requires a signed-in session
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, username, ok := sessionIdentity(c)
		if !ok {
			abortWith(c, http.StatusUnauthorized, contextutils.ErrUnauthorized)
			return
		}

		setIdentity(c, userID, username)
		c.Next()
	}
}

// OptionalAuth records the session user when there is one and never rejects the request
func OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID, username, ok := sessionIdentity(c); ok {
			setIdentity(c, userID, username)
		}
		c.Next()
	}
}

// RequireRole requires a signed-in user whose current role is one of roles. The role is
// read from the user store on every request; nothing in the cookie is trusted for it.
// With no roles any signed-in user passes, which still loads the user for the handler.
func RequireRole(users UserLookup, roles ...models.UserRole) gin.HandlerFunc {
	if users == nil {
		panic("RequireRole requires a user lookup")
	}

	return func(c *gin.Context) {
		userID, username, ok := sessionIdentity(c)
		if !ok {
			abortWith(c, http.StatusUnauthorized, contextutils.ErrUnauthorized)
			return
		}

		user, err := users.GetUserByID(c.Request.Context(), userID)
		if err != nil && !errors.Is(err, contextutils.ErrRecordNotFound) {
			abortWith(c, http.StatusInternalServerError,
				contextutils.NewAppError(contextutils.ErrorCodeInternalError, contextutils.SeverityError, "Failed to check user role", ""))
			return
		}
		if user == nil {
			// Account removed since the cookie was issued
			session := sessions.Default(c)
			session.Clear()
			_ = session.Save()
			abortWith(c, http.StatusUnauthorized, contextutils.ErrUnauthorized)
			return
		}

		if len(roles) > 0 && !hasRole(user.Role, roles) {
			abortWith(c, http.StatusForbidden, contextutils.ErrForbidden)
			return
		}

		setIdentity(c, userID, username)
		c.Set(UserKey, user)
		c.Next()
	}
}

// RequireStaff gates agency endpoints to agency and admin accounts
func RequireStaff(users UserLookup) gin.HandlerFunc {
	return RequireRole(users, models.RoleAgency, models.RoleAdmin)
}

func hasRole(role models.UserRole, allowed []models.UserRole) bool {
	for _, r := range allowed {
		if role == r {
			return true
		}
	}
	return false
}

// CurrentUserID returns the signed-in user id set by one of the auth middlewares, or ""
func CurrentUserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}

// CurrentUser returns the user loaded by RequireRole, or nil
func CurrentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(UserKey); ok {
		if user, ok := v.(*models.User); ok {
			return user
		}
	}
	return nil
}
