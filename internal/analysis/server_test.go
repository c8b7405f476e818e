package analysis

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"safereport/internal/config"
	"safereport/internal/observability"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(apiKey string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
	return NewServer(fixedEngine(""), apiKey, logger)
}

func postAnalyze(router http.Handler, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestServer_Health(t *testing.T) {
	router := newTestServer("")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status string          `json:"status"`
		Models map[string]bool `json:"models"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.True(t, body.Models["text_analyzer"])
}

func TestServer_Analyze(t *testing.T) {
	router := newTestServer("secret")
	payload := `{"reportId":"r1","text":"Someone shot at me with a gun","mediaFiles":[],"userCredibility":3,"reportHistory":[]}`

	t.Run("scores report", func(t *testing.T) {
		w := postAnalyze(router, payload, "secret")
		require.Equal(t, http.StatusOK, w.Code)

		var resp Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.InDelta(t, 1.2, resp.TextSeverityScore, 1e-9)
		assert.Equal(t, 3.0, resp.UserCredibilityScore)
		assert.InDelta(t, 0.4*1.2+0.1*3, resp.EmergencyScore, 1e-9)
		assert.False(t, resp.IsSpam)
	})

	t.Run("missing token", func(t *testing.T) {
		w := postAnalyze(router, payload, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("wrong token", func(t *testing.T) {
		w := postAnalyze(router, payload, "guess")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		w := postAnalyze(router, `{"text":`, "secret")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("nothing to analyze", func(t *testing.T) {
		w := postAnalyze(router, `{"reportId":"r1","text":"   "}`, "secret")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "No text or media provided for analysis")
	})

	t.Run("oversized body", func(t *testing.T) {
		big := `{"text":"` + strings.Repeat("a", MaxRequestBytes) + `"}`
		w := postAnalyze(router, big, "secret")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestServer_AnalyzeWithoutKey(t *testing.T) {
	router := newTestServer("")
	body, err := json.Marshal(Request{Text: "We had an argument"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/analyze", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
