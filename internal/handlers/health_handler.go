package handlers

import (
	"context"
	"net/http"
	"time"

	"safereport/internal/config"
	"safereport/internal/observability"
	"safereport/internal/services"
	"safereport/internal/storage"
	"safereport/internal/version"

	"github.com/gin-gonic/gin"
	"github.com/sony/gobreaker"
)

// Pinger is satisfied by *sql.DB
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler reports on the API process and what it depends on
type HealthHandler struct {
	db      Pinger
	scoring services.ScoringServiceInterface
	store   storage.MediaStore
	config  *config.Config
	logger  *observability.Logger
}

// NewHealthHandler creates a new HealthHandler instance
func NewHealthHandler(db Pinger, scoring services.ScoringServiceInterface, store storage.MediaStore, cfg *config.Config, logger *observability.Logger) *HealthHandler {
	return &HealthHandler{db: db, scoring: scoring, store: store, config: cfg, logger: logger}
}

// Health answers 503 only when the database is unreachable. An open oracle breaker or a
// failing media store degrades the service but intake keeps working through the fallback.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), config.HealthCheckTimeout)
	defer cancel()

	status := "ok"
	code := http.StatusOK
	checks := gin.H{}

	if err := h.db.PingContext(ctx); err != nil {
		h.logger.Error(ctx, "Health check database ping failed", err, nil)
		checks["database"] = gin.H{"status": "down", "error": err.Error()}
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	} else {
		checks["database"] = gin.H{"status": "up"}
	}

	breaker := h.scoring.BreakerState()
	checks["oracle"] = gin.H{"breaker": breaker}
	if breaker == gobreaker.StateOpen.String() && status == "ok" {
		status = "degraded"
	}

	if h.store != nil {
		if err := h.store.Ping(ctx); err != nil {
			h.logger.Warn(ctx, "Health check storage ping failed", map[string]interface{}{"error": err.Error(), "backend": h.store.Backend()})
			checks["storage"] = gin.H{"status": "down", "backend": h.store.Backend(), "error": err.Error()}
			if status == "ok" {
				status = "degraded"
			}
		} else {
			checks["storage"] = gin.H{"status": "up", "backend": h.store.Backend()}
		}
	}

	c.JSON(code, gin.H{
		"status":    status,
		"service":   "safereport-api",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}

// Version returns build information and the intake limits clients should validate against
func (h *HealthHandler) Version(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"backend": version.Get("safereport-api"),
		"limits": gin.H{
			"maxMediaFiles":        h.config.Intake.MaxMediaFiles,
			"maxMediaBytes":        h.config.Intake.MaxMediaBytes,
			"maxRequestBytes":      h.config.Intake.MaxRequestBytes(),
			"minDescriptionLength": h.config.Intake.MinDescriptionLength,
			"maxDescriptionLength": h.config.Intake.MaxDescriptionLength,
			"maxTriageLimit":       h.config.Triage.MaxLimit,
		},
	})
}
