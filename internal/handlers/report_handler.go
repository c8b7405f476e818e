package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"safereport/internal/config"
	"safereport/internal/middleware"
	"safereport/internal/models"
	"safereport/internal/observability"
	"safereport/internal/services"
	contextutils "safereport/internal/utils"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// multipartMemory is how much of a submission is buffered in memory before spilling to temp files
const multipartMemory = 8 << 20

// ReportHandler serves report intake, reads and status changes
type ReportHandler struct {
	reportService services.ReportServiceInterface
	config        *config.Config
	logger        *observability.Logger
}

// NewReportHandler creates a new ReportHandler instance
func NewReportHandler(reportService services.ReportServiceInterface, cfg *config.Config, logger *observability.Logger) *ReportHandler {
	return &ReportHandler{
		reportService: reportService,
		config:        cfg,
		logger:        logger,
	}
}

// statusUpdateRequest is the body of PUT /v1/reports/:id/status
type statusUpdateRequest struct {
	Status string `json:"status" binding:"required"`
	Note   string `json:"note"`
}

// SubmitReport accepts a multipart report submission. A session is optional.
func (h *ReportHandler) SubmitReport(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "submit_report")
	defer observability.FinishSpan(span, nil)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.config.Intake.MaxRequestBytes())
	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			HandleAppError(c, contextutils.NewAppError(contextutils.ErrorCodePayloadTooLarge, contextutils.SeverityWarn,
				"Request too large", "submission exceeds "+strconv.FormatInt(h.config.Intake.MaxRequestBytes(), 10)+" bytes"))
			return
		}
		HandleAppError(c, contextutils.NewAppErrorWithCause(contextutils.ErrorCodeInvalidInput, contextutils.SeverityWarn,
			"Invalid multipart form", "", err))
		return
	}
	defer func() {
		if c.Request.MultipartForm != nil {
			_ = c.Request.MultipartForm.RemoveAll()
		}
	}()

	sub, err := parseSubmission(c.Request.MultipartForm)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	media := mediaUploads(c.Request.MultipartForm.File["media"])

	var userID *string
	if id := middleware.CurrentUserID(c); id != "" {
		userID = &id
	}

	span.SetAttributes(
		attribute.String("report.incident_type", string(sub.IncidentType)),
		attribute.Bool("report.anonymous", sub.IsAnonymous),
		attribute.Bool("report.has_session", userID != nil),
		attribute.Int("report.media_count", len(media)),
	)

	detail, err := h.reportService.SubmitReport(ctx, userID, sub, media)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, detail)
}

// parseSubmission decodes the form fields. JSON fields that do not parse are reported per field.
func parseSubmission(form *multipart.Form) (*models.ReportSubmission, error) {
	value := func(key string) string {
		if vals := form.Value[key]; len(vals) > 0 {
			return vals[0]
		}
		return ""
	}

	fields := map[string]string{}
	sub := &models.ReportSubmission{
		IncidentType: models.IncidentType(strings.ToLower(strings.TrimSpace(value("incidentType")))),
		Description:  value("description"),
	}

	if raw := strings.TrimSpace(value("isAnonymous")); raw != "" {
		anon, err := strconv.ParseBool(raw)
		if err != nil {
			fields["isAnonymous"] = "must be true or false"
		}
		sub.IsAnonymous = anon
	}

	if raw := strings.TrimSpace(value("location")); raw != "" {
		var loc models.Location
		if err := json.Unmarshal([]byte(raw), &loc); err != nil {
			fields["location"] = "must be a JSON object with lat, lng and address"
		} else {
			sub.Location = &loc
		}
	}

	if raw := strings.TrimSpace(value("contactInfo")); raw != "" && !sub.IsAnonymous {
		var contact models.ContactInfo
		if err := json.Unmarshal([]byte(raw), &contact); err != nil {
			fields["contactInfo"] = "must be a JSON object with name, email and phone"
		} else {
			sub.ContactInfo = &contact
		}
	}

	if len(fields) > 0 {
		return nil, contextutils.NewValidationError(fields)
	}
	return sub, nil
}

func mediaUploads(files []*multipart.FileHeader) []services.MediaUpload {
	uploads := make([]services.MediaUpload, 0, len(files))
	for _, fh := range files {
		uploads = append(uploads, services.MediaUpload{
			Filename:    fh.Filename,
			Size:        fh.Size,
			ContentType: fh.Header.Get("Content-Type"),
			Open: func() (io.ReadCloser, error) {
				return fh.Open()
			},
		})
	}
	return uploads
}

// GetReport returns one report to its owner or to agency staff
func (h *ReportHandler) GetReport(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_report",
		observability.AttributeReportID(c.Param("id")))
	defer observability.FinishSpan(span, nil)

	detail, err := h.reportService.GetReport(ctx, c.Param("id"), middleware.CurrentUser(c))
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// ListMyReports pages through the signed-in reporter's own reports, newest first
func (h *ReportHandler) ListMyReports(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "list_my_reports")
	defer observability.FinishSpan(span, nil)

	page, pageSize := ParsePagination(c, 1, h.config.Triage.DefaultLimit, h.config.Triage.MaxLimit)
	reports, total, err := h.reportService.ListReportsByUser(ctx, middleware.CurrentUserID(c), page, pageSize)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	WritePaginated(c, "reports", reports, NewPagination(page, pageSize, total), nil)
}

// ListActivity returns the audit trail of a report
func (h *ReportHandler) ListActivity(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "list_activity",
		observability.AttributeReportID(c.Param("id")))
	defer observability.FinishSpan(span, nil)

	entries, err := h.reportService.ListActivity(ctx, c.Param("id"))
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"activity": entries})
}

// UpdateStatus moves a report forward in its lifecycle
func (h *ReportHandler) UpdateStatus(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "update_status",
		observability.AttributeReportID(c.Param("id")))
	defer observability.FinishSpan(span, nil)

	var req statusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleAppError(c, contextutils.NewValidationError(map[string]string{"status": "is required"}))
		return
	}

	status, _ := models.ParseReportStatus(req.Status)
	span.SetAttributes(observability.AttributeStatus(string(status)))

	change, err := h.reportService.UpdateStatus(ctx, c.Param("id"), status, req.Note, middleware.CurrentUserID(c))
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, change)
}
