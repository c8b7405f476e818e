package services

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"safereport/internal/config"
	"safereport/internal/database"
	"safereport/internal/models"
	contextutils "safereport/internal/utils"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var reporterColumns = []string{"u_id", "username", "credibility_score"}

func newTestTriageService(t *testing.T) (*TriageService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	previous := database.DefaultRetryPolicy
	database.DefaultRetryPolicy = database.RetryPolicy{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond, MaxElapsedTime: time.Second}
	t.Cleanup(func() { database.DefaultRetryPolicy = previous })

	cfg := &config.Config{
		Triage: config.TriageConfig{DefaultLimit: 20, MaxLimit: 100},
		Alerts: config.AlertsConfig{Threshold: 6},
	}
	return NewTriageService(db, cfg, createTestLogger()), mock
}

func queueRow(id string, userID driver.Value, anonymous bool, score driver.Value, reporter ...driver.Value) []driver.Value {
	created := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	row := []driver.Value{
		id, userID, "cyber", "Phishing texts impersonating the city water utility",
		nil, nil, nil, anonymous, score, "pending", nil, nil, false, created, created,
	}
	if score != nil {
		row = append(row, "a-"+id, id, 6.0, 0.0, 2.0, 0.05, score, "", false, created)
	} else {
		row = append(row, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil)
	}
	if len(reporter) == 0 {
		return append(row, nil, nil, nil)
	}
	return append(row, reporter...)
}

func queueColumns() []string {
	cols := append([]string{}, reportColumns...)
	cols = append(cols, analysisColumns...)
	return append(cols, reporterColumns...)
}

func TestTriageService_ClampLimit(t *testing.T) {
	service, _ := newTestTriageService(t)

	assert.Equal(t, 20, service.ClampLimit(0))
	assert.Equal(t, 20, service.ClampLimit(-3))
	assert.Equal(t, 1, service.ClampLimit(1))
	assert.Equal(t, 55, service.ClampLimit(55))
	assert.Equal(t, 100, service.ClampLimit(1000))
}

func TestTriageService_GetQueue(t *testing.T) {
	service, mock := newTestTriageService(t)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY r.emergency_score DESC NULLS LAST, r.created_at ASC, r.id ASC")).
		WithArgs("", 20).
		WillReturnRows(sqlmock.NewRows(queueColumns()).
			AddRow(queueRow("r-high", testOwnerID, false, 7.9, testOwnerID, "sam", 3.5)...).
			AddRow(queueRow("r-anon", nil, true, 4.2)...).
			AddRow(queueRow("r-unscored", testOwnerID, false, nil, testOwnerID, "sam", 3.5)...))

	entries, err := service.GetQueue(context.Background(), models.QueueFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "r-high", entries[0].ID)
	require.NotNil(t, entries[0].Reporter)
	assert.Equal(t, "sam", entries[0].Reporter.Username)
	assert.Equal(t, 3.5, entries[0].Reporter.CredibilityScore)
	require.NotNil(t, entries[0].Analysis)
	assert.Equal(t, 7.9, entries[0].Analysis.EmergencyScore)

	assert.Nil(t, entries[1].Reporter)
	assert.Nil(t, entries[1].UserID)

	assert.Nil(t, entries[2].EmergencyScore)
	assert.Nil(t, entries[2].Analysis)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTriageService_GetQueue_FilterAndLimit(t *testing.T) {
	service, mock := newTestTriageService(t)

	mock.ExpectQuery(regexp.QuoteMeta("r.incident_type::text = $1")).
		WithArgs("cyber", 100).
		WillReturnRows(sqlmock.NewRows(queueColumns()))

	entries, err := service.GetQueue(context.Background(), models.QueueFilter{Limit: 250, IncidentType: models.IncidentCyber})
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTriageService_GetQueue_InvalidType(t *testing.T) {
	service, mock := newTestTriageService(t)

	_, err := service.GetQueue(context.Background(), models.QueueFilter{IncidentType: "fire"})
	assert.Equal(t, contextutils.ErrorCodeValidationFailed, contextutils.GetErrorCode(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTriageService_GetQueue_DatabaseError(t *testing.T) {
	service, mock := newTestTriageService(t)

	mock.ExpectQuery("SELECT").WillReturnError(errors.New("syntax error"))

	_, err := service.GetQueue(context.Background(), models.QueueFilter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load triage queue")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTriageService_GetQueueStats(t *testing.T) {
	service, mock := newTestTriageService(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM reports WHERE status NOT IN ('resolved', 'closed')")).
		WithArgs(6.0).
		WillReturnRows(sqlmock.NewRows([]string{"pending", "reviewing", "assigned", "spam", "high", "unscored", "total"}).
			AddRow(4, 2, 1, 3, 2, 1, 7))

	stats, err := service.GetQueueStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.QueueStats{Pending: 4, Reviewing: 2, Assigned: 1, Spam: 3, HighPriority: 2, Unscored: 1, TotalOpen: 7}, *stats)
	assert.NoError(t, mock.ExpectationsWereMet())
}
