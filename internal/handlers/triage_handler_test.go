package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"safereport/internal/models"
	contextutils "safereport/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestTriageHandler_GetQueue(t *testing.T) {
	f := newRouterFixture(t)
	cookie := f.login(t, staffUser)

	high, low := 8.4, 3.1
	entries := []models.TriageEntry{
		{Report: models.Report{ID: "r1", IncidentType: models.IncidentCyber, EmergencyScore: &high, Status: models.StatusPending}},
		{Report: models.Report{ID: "r2", IncidentType: models.IncidentCyber, EmergencyScore: &low, Status: models.StatusReviewing}},
	}
	f.triage.On("GetQueue", mock.Anything, models.QueueFilter{Limit: 5, IncidentType: models.IncidentCyber}).Return(entries, nil).Once()

	w := f.do(httptest.NewRequest(http.MethodGet, "/v1/triage/queue?limit=5&incidentType=Cyber", nil), cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decodeBody(t, w)
	assert.Equal(t, float64(2), body["count"])
	reports := body["reports"].([]interface{})
	require.Len(t, reports, 2)
	assert.Equal(t, "r1", reports[0].(map[string]interface{})["id"])
}

func TestTriageHandler_GetQueue_DefaultsAndErrors(t *testing.T) {
	f := newRouterFixture(t)
	cookie := f.login(t, staffUser)

	t.Run("malformed limit is passed as zero", func(t *testing.T) {
		f.triage.On("GetQueue", mock.Anything, models.QueueFilter{}).Return([]models.TriageEntry{}, nil).Once()

		w := f.do(httptest.NewRequest(http.MethodGet, "/v1/triage/queue?limit=lots", nil), cookie)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, float64(0), decodeBody(t, w)["count"])
	})

	t.Run("unknown incident type", func(t *testing.T) {
		f.triage.On("GetQueue", mock.Anything, models.QueueFilter{IncidentType: "arson"}).
			Return(nil, contextutils.NewValidationError(map[string]string{"incidentType": "must be one of physical cyber harassment other"})).Once()

		w := f.do(httptest.NewRequest(http.MethodGet, "/v1/triage/queue?incidentType=arson", nil), cookie)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("database unavailable", func(t *testing.T) {
		f.triage.On("GetQueue", mock.Anything, models.QueueFilter{Limit: 10}).
			Return(nil, contextutils.WrapError(contextutils.ErrDatabaseQuery, "failed to load triage queue")).Once()

		w := f.do(httptest.NewRequest(http.MethodGet, "/v1/triage/queue?limit=10", nil), cookie)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestTriageHandler_Access(t *testing.T) {
	f := newRouterFixture(t)

	w := f.do(httptest.NewRequest(http.MethodGet, "/v1/triage/queue", nil), nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	cookie := f.login(t, citizenUser)
	w = f.do(httptest.NewRequest(http.MethodGet, "/v1/triage/queue", nil), cookie)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(httptest.NewRequest(http.MethodGet, "/v1/triage/stats", nil), cookie)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestTriageHandler_GetStats(t *testing.T) {
	f := newRouterFixture(t)
	cookie := f.login(t, staffUser)

	f.triage.On("GetQueueStats", mock.Anything).Return(&models.QueueStats{
		Pending:      4,
		Reviewing:    2,
		Assigned:     1,
		Spam:         3,
		HighPriority: 2,
		Unscored:     1,
		TotalOpen:    7,
	}, nil).Once()

	w := f.do(httptest.NewRequest(http.MethodGet, "/v1/triage/stats", nil), cookie)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, float64(4), body["pending"])
	assert.Equal(t, float64(7), body["totalOpen"])
	assert.Equal(t, float64(2), body["highPriority"])
}
