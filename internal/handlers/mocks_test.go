package handlers

import (
	"context"
	"io"

	"safereport/internal/config"
	"safereport/internal/models"
	"safereport/internal/observability"
	"safereport/internal/services"

	"github.com/stretchr/testify/mock"
)

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

type MockReportService struct {
	mock.Mock
}

func (m *MockReportService) SubmitReport(ctx context.Context, userID *string, sub *models.ReportSubmission, media []services.MediaUpload) (*models.ReportDetail, error) {
	args := m.Called(ctx, userID, sub, media)
	detail, _ := args.Get(0).(*models.ReportDetail)
	return detail, args.Error(1)
}

func (m *MockReportService) GetReport(ctx context.Context, id string, viewer *models.User) (*models.ReportDetail, error) {
	args := m.Called(ctx, id, viewer)
	detail, _ := args.Get(0).(*models.ReportDetail)
	return detail, args.Error(1)
}

func (m *MockReportService) ListReportsByUser(ctx context.Context, userID string, page, pageSize int) ([]models.Report, int, error) {
	args := m.Called(ctx, userID, page, pageSize)
	reports, _ := args.Get(0).([]models.Report)
	return reports, args.Int(1), args.Error(2)
}

func (m *MockReportService) UpdateStatus(ctx context.Context, id string, status models.ReportStatus, note, actorID string) (*models.StatusChange, error) {
	args := m.Called(ctx, id, status, note, actorID)
	change, _ := args.Get(0).(*models.StatusChange)
	return change, args.Error(1)
}

func (m *MockReportService) ListActivity(ctx context.Context, id string) ([]models.ActivityLog, error) {
	args := m.Called(ctx, id)
	entries, _ := args.Get(0).([]models.ActivityLog)
	return entries, args.Error(1)
}

type MockTriageService struct {
	mock.Mock
}

func (m *MockTriageService) GetQueue(ctx context.Context, filter models.QueueFilter) ([]models.TriageEntry, error) {
	args := m.Called(ctx, filter)
	entries, _ := args.Get(0).([]models.TriageEntry)
	return entries, args.Error(1)
}

func (m *MockTriageService) GetQueueStats(ctx context.Context) (*models.QueueStats, error) {
	args := m.Called(ctx)
	stats, _ := args.Get(0).(*models.QueueStats)
	return stats, args.Error(1)
}

type MockScoringService struct {
	mock.Mock
}

func (m *MockScoringService) Analyze(ctx context.Context, req services.ScoringRequest) *models.Analysis {
	analysis, _ := m.Called(ctx, req).Get(0).(*models.Analysis)
	return analysis
}

func (m *MockScoringService) BreakerState() string {
	return m.Called().String(0)
}

type MockPinger struct {
	mock.Mock
}

func (m *MockPinger) PingContext(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

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

func createTestLogger() *observability.Logger {
	return observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{SessionSecret: "test-secret"},
		Intake: config.IntakeConfig{
			MaxMediaFiles:        5,
			MaxMediaBytes:        1 << 20,
			MinDescriptionLength: config.DefaultMinDescriptionLength,
			MaxDescriptionLength: config.DefaultMaxDescriptionLength,
		},
		Triage: config.TriageConfig{DefaultLimit: config.DefaultTriageLimit, MaxLimit: config.MaxTriageLimit},
	}
}
