// Package services provides the business logic of the report triage service.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"safereport/internal/config"
	"safereport/internal/database"
	"safereport/internal/models"
	"safereport/internal/observability"
	contextutils "safereport/internal/utils"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/crypto/bcrypt"
)

// UserServiceInterface defines the interface for user-related operations.
// This allows for easier mocking in tests.
type UserServiceInterface interface {
	CreateUser(ctx context.Context, username, email, password string, role models.UserRole) (*models.User, error)
	AuthenticateUser(ctx context.Context, username, password string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetCredibility(ctx context.Context, id string) (*float64, error)
	SetCredibility(ctx context.Context, id string, score float64) error
	SetRole(ctx context.Context, id string, role models.UserRole) error
	ListUsers(ctx context.Context) ([]models.User, error)
	EnsureAdminUserExists(ctx context.Context, adminUsername, adminPassword string) error
}

// UserService provides methods for user management.
type UserService struct {
	db     *sql.DB
	cfg    *config.Config
	logger *observability.Logger
}

var _ UserServiceInterface = (*UserService)(nil)

const userSelectFields = `id, username, email, password_hash, role, credibility_score, agency_id, created_at, updated_at`

// NewUserServiceWithLogger creates a new UserService instance with logger
func NewUserServiceWithLogger(db *sql.DB, cfg *config.Config, logger *observability.Logger) *UserService {
	if db == nil {
		panic("UserService requires a non-nil database connection")
	}
	return &UserService{
		db:     db,
		cfg:    cfg,
		logger: logger,
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	var role string
	err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash, &role,
		&user.CredibilityScore, &user.AgencyID, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.Role = models.UserRole(role)
	return user, nil
}

// getUserByQuery returns nil without error when no user matches
func (s *UserService) getUserByQuery(ctx context.Context, query string, args ...interface{}) (*models.User, error) {
	return database.Operation(ctx, func(ctx context.Context) (*models.User, error) {
		user, err := scanUser(s.db.QueryRowContext(ctx, query, args...))
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return user, err
	})
}

// CreateUser creates an account with a bcrypt-hashed password
func (s *UserService) CreateUser(ctx context.Context, username, email, password string, role models.UserRole) (result0 *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "create_user",
		attribute.String("user.username", username),
		attribute.String("user.role", string(role)),
	)
	defer observability.FinishSpan(span, &err)

	username = strings.TrimSpace(username)
	if username == "" {
		return nil, contextutils.WrapError(contextutils.ErrInvalidInput, "username cannot be empty")
	}
	if len(password) < 8 {
		return nil, contextutils.WrapError(contextutils.ErrInvalidInput, "password must be at least 8 characters")
	}
	if _, ok := models.ParseUserRole(string(role)); !ok {
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "unknown role %q", role)
	}
	email = strings.TrimSpace(email)
	if email != "" && !contextutils.IsValidEmail(email) {
		return nil, contextutils.WrapError(contextutils.ErrInvalidInput, "invalid email address")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to hash password")
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:               uuid.NewString(),
		Username:         username,
		Email:            models.NullString(email),
		PasswordHash:     sql.NullString{String: string(hashedPassword), Valid: true},
		Role:             role,
		CredibilityScore: models.DefaultCredibility,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	query := `INSERT INTO users (id, username, email, password_hash, role, credibility_score, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	err = database.WithRetry(ctx, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, query, user.ID, user.Username, user.Email, user.PasswordHash,
			string(user.Role), user.CredibilityScore, now, now)
		return err
	})
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, contextutils.WrapError(contextutils.ErrRecordExists, "username or email is already taken")
		}
		return nil, contextutils.WrapError(err, "failed to create user")
	}

	s.logger.Info(ctx, "Created user", map[string]interface{}{
		"user_id":  user.ID,
		"username": user.Username,
		"role":     string(user.Role),
	})
	return user, nil
}

// AuthenticateUser verifies user credentials and returns the user if valid
func (s *UserService) AuthenticateUser(ctx context.Context, username, password string) (result0 *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "authenticate_user", attribute.String("user.username", username))
	defer observability.FinishSpan(span, &err)

	user, err := s.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.PasswordHash.Valid {
		return nil, contextutils.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash.String), []byte(password)); err != nil {
		return nil, contextutils.ErrInvalidCredentials
	}

	return user, nil
}

// GetUserByID retrieves a user by their ID, nil when it does not exist
func (s *UserService) GetUserByID(ctx context.Context, id string) (result0 *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "get_user_by_id", observability.AttributeUserID(id))
	defer observability.FinishSpan(span, &err)

	if _, parseErr := uuid.Parse(id); parseErr != nil {
		return nil, nil
	}

	user, err := s.getUserByQuery(ctx, fmt.Sprintf("SELECT %s FROM users WHERE id = $1", userSelectFields), id)
	if err != nil {
		s.logger.Error(ctx, "Database error retrieving user", err, map[string]interface{}{"user_id": id})
		return nil, contextutils.WrapError(err, "failed to get user")
	}
	return user, nil
}

// GetUserByUsername retrieves a user by their username, nil when it does not exist
func (s *UserService) GetUserByUsername(ctx context.Context, username string) (result0 *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "get_user_by_username", attribute.String("user.username", username))
	defer observability.FinishSpan(span, &err)

	user, err := s.getUserByQuery(ctx, fmt.Sprintf("SELECT %s FROM users WHERE username = $1", userSelectFields), username)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get user")
	}
	return user, nil
}

// GetCredibility returns the stored credibility of a reporter, nil when the user is unknown
func (s *UserService) GetCredibility(ctx context.Context, id string) (result0 *float64, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "get_credibility", observability.AttributeUserID(id))
	defer observability.FinishSpan(span, &err)

	if _, parseErr := uuid.Parse(id); parseErr != nil {
		return nil, nil
	}

	return database.Operation(ctx, func(ctx context.Context) (*float64, error) {
		var score float64
		err := s.db.QueryRowContext(ctx, `SELECT credibility_score FROM users WHERE id = $1`, id).Scan(&score)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, contextutils.WrapError(err, "failed to read credibility")
		}
		return &score, nil
	})
}

// SetCredibility stores a reporter credibility score in [0, 5]
func (s *UserService) SetCredibility(ctx context.Context, id string, score float64) (err error) {
	ctx, span := observability.TraceUserFunction(ctx, "set_credibility",
		observability.AttributeUserID(id),
		attribute.Float64("user.credibility", score),
	)
	defer observability.FinishSpan(span, &err)

	if score < 0 || score > models.MaxCredibilityScore {
		return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "credibility must be between 0 and %.0f", models.MaxCredibilityScore)
	}

	return s.updateUser(ctx, `UPDATE users SET credibility_score = $1, updated_at = $2 WHERE id = $3`, score, time.Now().UTC(), id)
}

// SetRole changes the role of an account
func (s *UserService) SetRole(ctx context.Context, id string, role models.UserRole) (err error) {
	ctx, span := observability.TraceUserFunction(ctx, "set_role",
		observability.AttributeUserID(id),
		attribute.String("user.role", string(role)),
	)
	defer observability.FinishSpan(span, &err)

	if _, ok := models.ParseUserRole(string(role)); !ok {
		return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "unknown role %q", role)
	}

	return s.updateUser(ctx, `UPDATE users SET role = $1, updated_at = $2 WHERE id = $3`, string(role), time.Now().UTC(), id)
}

func (s *UserService) updateUser(ctx context.Context, query string, args ...interface{}) error {
	var affected int64
	err := database.WithRetry(ctx, func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return contextutils.WrapError(err, "failed to update user")
	}
	if affected == 0 {
		return contextutils.ErrRecordNotFound
	}
	return nil
}

// ListUsers returns every account ordered by username
func (s *UserService) ListUsers(ctx context.Context) (result0 []models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "list_users")
	defer observability.FinishSpan(span, &err)

	query := fmt.Sprintf("SELECT %s FROM users ORDER BY username", userSelectFields)
	return database.Operation(ctx, func(ctx context.Context) ([]models.User, error) {
		rows, err := s.db.QueryContext(ctx, query)
		if err != nil {
			return nil, contextutils.WrapError(err, "failed to list users")
		}
		defer func() {
			if closeErr := rows.Close(); closeErr != nil {
				s.logger.Warn(ctx, "Failed to close user rows", map[string]interface{}{"error": closeErr.Error()})
			}
		}()

		users := []models.User{}
		for rows.Next() {
			user, err := scanUser(rows)
			if err != nil {
				return nil, contextutils.WrapError(err, "failed to scan user")
			}
			users = append(users, *user)
		}
		if err := rows.Err(); err != nil {
			return nil, contextutils.WrapError(err, "failed to list users")
		}
		return users, nil
	})
}

// EnsureAdminUserExists creates the bootstrap admin account or resets its password and role
func (s *UserService) EnsureAdminUserExists(ctx context.Context, adminUsername, adminPassword string) (err error) {
	ctx, span := observability.TraceUserFunction(ctx, "ensure_admin_user_exists", attribute.String("admin.username", adminUsername))
	defer observability.FinishSpan(span, &err)

	if adminUsername == "" {
		return contextutils.ErrorWithContextf("admin username cannot be empty")
	}
	if adminPassword == "" {
		return contextutils.ErrorWithContextf("admin password cannot be empty")
	}

	existingUser, err := s.GetUserByUsername(ctx, adminUsername)
	if err != nil {
		return contextutils.WrapError(err, "failed to check if admin user exists")
	}

	if existingUser == nil {
		if _, err := s.CreateUser(ctx, adminUsername, "", adminPassword, models.RoleAdmin); err != nil {
			return contextutils.WrapError(err, "failed to create admin user")
		}
		s.logger.Info(ctx, "Admin user created", map[string]interface{}{"username": adminUsername})
		return nil
	}

	if existingUser.Role != models.RoleAdmin {
		if err := s.SetRole(ctx, existingUser.ID, models.RoleAdmin); err != nil {
			return contextutils.WrapError(err, "failed to assign admin role")
		}
	}

	if existingUser.PasswordHash.Valid &&
		bcrypt.CompareHashAndPassword([]byte(existingUser.PasswordHash.String), []byte(adminPassword)) == nil {
		s.logger.Info(ctx, "Admin user already exists with correct password", map[string]interface{}{"username": adminUsername})
		return nil
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		return contextutils.WrapError(err, "failed to hash admin password")
	}
	if err := s.updateUser(ctx, `UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`,
		string(hashedPassword), time.Now().UTC(), existingUser.ID); err != nil {
		return contextutils.WrapError(err, "failed to update admin user password")
	}

	s.logger.Info(ctx, "Admin user password updated", map[string]interface{}{"username": adminUsername})
	return nil
}

// isDuplicateKeyError checks if the error is a duplicate key constraint violation
func isDuplicateKeyError(err error) bool {
	var pqErr *pq.Error
	// 23505 is unique_violation
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
