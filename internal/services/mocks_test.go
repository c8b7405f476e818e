package services

import (
	"context"
	"io"

	"safereport/internal/models"

	"github.com/stretchr/testify/mock"
)

// MockScoringService is a mock implementation of ScoringServiceInterface for testing
type MockScoringService struct {
	mock.Mock
}

func (m *MockScoringService) Analyze(ctx context.Context, req ScoringRequest) *models.Analysis {
	args := m.Called(ctx, req)
	return args.Get(0).(*models.Analysis)
}

func (m *MockScoringService) BreakerState() string {
	return m.Called().String(0)
}

// MockMediaStore is a mock implementation of storage.MediaStore for testing
type MockMediaStore struct {
	mock.Mock
}

func (m *MockMediaStore) Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	args := m.Called(ctx, key, r, size, contentType)
	return args.String(0), args.Error(1)
}

func (m *MockMediaStore) Delete(ctx context.Context, path string) error {
	return m.Called(ctx, path).Error(0)
}

func (m *MockMediaStore) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockMediaStore) Backend() string {
	return "mock"
}

// MockAlertService is a mock implementation of AlertServiceInterface for testing
type MockAlertService struct {
	mock.Mock
}

func (m *MockAlertService) NotifyHighPriority(ctx context.Context, report *models.ReportDetail) error {
	return m.Called(ctx, report).Error(0)
}

func (m *MockAlertService) ShouldNotify(report *models.ReportDetail) bool {
	return m.Called(report).Bool(0)
}

func (m *MockAlertService) IsEnabled() bool {
	return m.Called().Bool(0)
}

// MockUserService is a mock implementation of UserServiceInterface for testing
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) CreateUser(ctx context.Context, username, email, password string, role models.UserRole) (*models.User, error) {
	args := m.Called(ctx, username, email, password, role)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *MockUserService) AuthenticateUser(ctx context.Context, username, password string) (*models.User, error) {
	args := m.Called(ctx, username, password)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *MockUserService) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *MockUserService) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *MockUserService) GetCredibility(ctx context.Context, id string) (*float64, error) {
	args := m.Called(ctx, id)
	cred, _ := args.Get(0).(*float64)
	return cred, args.Error(1)
}

func (m *MockUserService) SetCredibility(ctx context.Context, id string, score float64) error {
	return m.Called(ctx, id, score).Error(0)
}

func (m *MockUserService) SetRole(ctx context.Context, id string, role models.UserRole) error {
	return m.Called(ctx, id, role).Error(0)
}

func (m *MockUserService) ListUsers(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	users, _ := args.Get(0).([]models.User)
	return users, args.Error(1)
}

func (m *MockUserService) EnsureAdminUserExists(ctx context.Context, adminUsername, adminPassword string) error {
	return m.Called(ctx, adminUsername, adminPassword).Error(0)
}
