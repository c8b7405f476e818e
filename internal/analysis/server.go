package analysis

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"safereport/internal/observability"

	"github.com/gin-gonic/gin"
)

// MaxRequestBytes bounds an /analyze body; media travel by path, not inline
const MaxRequestBytes = 1 << 20

// NewServer builds the oracle's HTTP router. A non-empty apiKey is required as a bearer token on /analyze.
func NewServer(engine *Engine, apiKey string, logger *observability.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(observability.GinMiddleware("safereport-oracle"))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"models":    engine.ModelStatus(),
		})
	})

	router.POST("/analyze", requireBearer(apiKey), func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxRequestBytes)

		var req Request
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "message": err.Error()})
			return
		}
		if strings.TrimSpace(req.Text) == "" && len(req.MediaFiles) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No text or media provided for analysis"})
			return
		}

		resp := engine.Analyze(req)
		logger.Info(c.Request.Context(), "Report analyzed", map[string]interface{}{
			"report_id":        req.ReportID,
			"emergency_score":  resp.EmergencyScore,
			"spam_probability": resp.SpamProbability,
			"media_files":      len(req.MediaFiles),
		})
		c.JSON(http.StatusOK, resp)
	})

	return router
}

func requireBearer(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.Next()
			return
		}
		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing API key"})
			return
		}
		c.Next()
	}
}
