package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"safereport/internal/models"
	"safereport/internal/observability"
	"safereport/internal/services"

	"github.com/gin-gonic/gin"
)

// TriageHandler serves the agency work queue
type TriageHandler struct {
	triageService services.TriageServiceInterface
	logger        *observability.Logger
}

// NewTriageHandler creates a new TriageHandler instance
func NewTriageHandler(triageService services.TriageServiceInterface, logger *observability.Logger) *TriageHandler {
	return &TriageHandler{triageService: triageService, logger: logger}
}

// GetQueue returns open, non-spam reports ordered by emergency score.
// A missing or malformed limit falls back to the configured default.
func (h *TriageHandler) GetQueue(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_triage_queue")
	defer observability.FinishSpan(span, nil)

	filters := ParseFilters(c, "limit", "incidentType")
	limit, _ := strconv.Atoi(filters["limit"])

	entries, err := h.triageService.GetQueue(ctx, models.QueueFilter{
		Limit:        limit,
		IncidentType: models.IncidentType(strings.ToLower(filters["incidentType"])),
	})
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reports": entries, "count": len(entries)})
}

// GetStats returns per-status counts of the open work
func (h *TriageHandler) GetStats(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_triage_stats")
	defer observability.FinishSpan(span, nil)

	stats, err := h.triageService.GetQueueStats(ctx)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
