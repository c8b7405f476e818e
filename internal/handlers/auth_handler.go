package handlers

import (
	"net/http"

	"safereport/internal/config"
	"safereport/internal/middleware"
	"safereport/internal/models"
	"safereport/internal/observability"
	"safereport/internal/services"
	contextutils "safereport/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// AuthHandler handles authentication related HTTP requests
type AuthHandler struct {
	userService services.UserServiceInterface
	config      *config.Config
	logger      *observability.Logger
}

// NewAuthHandler creates a new AuthHandler instance
func NewAuthHandler(userService services.UserServiceInterface, cfg *config.Config, logger *observability.Logger) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		config:      cfg,
		logger:      logger,
	}
}

func (h *AuthHandler) startSession(c *gin.Context, user *models.User) error {
	session := sessions.Default(c)
	session.Clear()
	session.Set(middleware.UserIDKey, user.ID)
	session.Set(middleware.UsernameKey, user.Username)
	return session.Save()
}

// bindCredentials decodes and validates a JSON auth body, writing the error response on failure
func bindCredentials(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		HandleAppError(c, contextutils.NewAppErrorWithCause(contextutils.ErrorCodeInvalidInput,
			contextutils.SeverityWarn, "Invalid request body", "", err))
		return false
	}
	if appErr := contextutils.ValidateStruct(req); appErr != nil {
		HandleAppError(c, appErr)
		return false
	}
	return true
}

// Signup creates a citizen account and signs it in
func (h *AuthHandler) Signup(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "signup")
	defer observability.FinishSpan(span, nil)

	if h.config.IsSignupDisabled() {
		HandleAppError(c, contextutils.NewAppError(contextutils.ErrorCodeForbidden, contextutils.SeverityInfo, "Signups are disabled", ""))
		return
	}

	var req models.SignupRequest
	if !bindCredentials(c, &req) {
		return
	}

	span.SetAttributes(
		attribute.String("auth.username", req.Username),
		attribute.Bool("auth.email_provided", req.Email != ""),
	)

	// Public signup only ever creates citizens; staff accounts come from adm
	user, err := h.userService.CreateUser(ctx, req.Username, req.Email, req.Password, models.RoleCitizen)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	if err := h.startSession(c, user); err != nil {
		h.logger.Error(ctx, "Failed to save session", err, map[string]interface{}{"user_id": user.ID})
		HandleAppError(c, contextutils.WrapError(err, "failed to create session"))
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"user":    user,
	})
}

// Login handles user login requests
func (h *AuthHandler) Login(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "login")
	defer observability.FinishSpan(span, nil)

	var req models.LoginRequest
	if !bindCredentials(c, &req) {
		return
	}

	span.SetAttributes(
		attribute.String("auth.username", req.Username),
		attribute.Bool("auth.password_provided", req.Password != ""),
	)

	user, err := h.userService.AuthenticateUser(ctx, req.Username, req.Password)
	if err != nil || user == nil {
		h.logger.Warn(ctx, "Authentication failed for user", map[string]interface{}{"username": req.Username})
		HandleAppError(c, contextutils.ErrInvalidCredentials)
		return
	}

	span.SetAttributes(
		attribute.String("user.id", user.ID),
		attribute.String("user.role", string(user.Role)),
	)

	if err := h.startSession(c, user); err != nil {
		h.logger.Error(ctx, "Failed to save session", err, map[string]interface{}{"user_id": user.ID})
		HandleAppError(c, contextutils.WrapError(err, "failed to create session"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Login successful",
		"user":    user,
	})
}

// Logout handles user logout requests
func (h *AuthHandler) Logout(c *gin.Context) {
	_, span := observability.TraceHandlerFunction(c.Request.Context(), "logout")
	defer observability.FinishSpan(span, nil)

	span.SetAttributes(attribute.String("user.id", middleware.CurrentUserID(c)))

	session := sessions.Default(c)
	session.Clear()
	if err := session.Save(); err != nil {
		HandleAppError(c, contextutils.WrapError(err, "failed to clear session"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Logout successful",
	})
}

// Status returns the current authentication status
func (h *AuthHandler) Status(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "status")
	defer observability.FinishSpan(span, nil)

	session := sessions.Default(c)
	userID, _ := session.Get(middleware.UserIDKey).(string)
	if userID == "" {
		span.SetAttributes(attribute.Bool("auth.authenticated", false))
		c.JSON(http.StatusOK, gin.H{"authenticated": false, "user": nil})
		return
	}

	user, err := h.userService.GetUserByID(ctx, userID)
	if err != nil {
		h.logger.Error(ctx, "Error getting user by ID", err, map[string]interface{}{"user_id": userID})
		HandleAppError(c, contextutils.ErrInternalError)
		return
	}

	if user == nil {
		// User not found, clear session
		session.Clear()
		if err := session.Save(); err != nil {
			h.logger.Error(ctx, "Error saving session", err, map[string]interface{}{"user_id": userID})
		}
		span.SetAttributes(attribute.Bool("auth.user_found", false))
		c.JSON(http.StatusOK, gin.H{"authenticated": false, "user": nil})
		return
	}

	span.SetAttributes(
		attribute.Bool("auth.authenticated", true),
		attribute.String("user.id", user.ID),
		attribute.String("user.role", string(user.Role)),
	)
	c.JSON(http.StatusOK, gin.H{"authenticated": true, "user": user})
}
