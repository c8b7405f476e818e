package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"safereport/internal/config"
	"safereport/internal/database"
	"safereport/internal/models"
	"safereport/internal/observability"
	"safereport/internal/storage"
	contextutils "safereport/internal/utils"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel/attribute"
)

// MaxStatusNoteLength bounds the free-text note attached to a status change
const MaxStatusNoteLength = 1000

// ReportServiceInterface covers intake, reads and status changes of reports
type ReportServiceInterface interface {
	SubmitReport(ctx context.Context, userID *string, sub *models.ReportSubmission, media []MediaUpload) (*models.ReportDetail, error)
	GetReport(ctx context.Context, id string, viewer *models.User) (*models.ReportDetail, error)
	ListReportsByUser(ctx context.Context, userID string, page, pageSize int) ([]models.Report, int, error)
	UpdateStatus(ctx context.Context, id string, status models.ReportStatus, note, actorID string) (*models.StatusChange, error)
	ListActivity(ctx context.Context, id string) ([]models.ActivityLog, error)
}

// ReportService persists reports together with their media, analysis and activity
type ReportService struct {
	db      *sql.DB
	cfg     *config.Config
	logger  *observability.Logger
	store   storage.MediaStore
	scoring ScoringServiceInterface
	users   UserServiceInterface
	alerts  AlertServiceInterface
	metrics *observability.ReportMetrics

	alertsWG sync.WaitGroup
}

var _ ReportServiceInterface = (*ReportService)(nil)

// NewReportService creates a new ReportService instance
func NewReportService(
	db *sql.DB,
	cfg *config.Config,
	logger *observability.Logger,
	store storage.MediaStore,
	scoring ScoringServiceInterface,
	users UserServiceInterface,
	alerts AlertServiceInterface,
	metrics *observability.ReportMetrics,
) *ReportService {
	if db == nil {
		panic("ReportService requires a non-nil database connection")
	}
	if store == nil || scoring == nil {
		panic("ReportService requires a media store and a scoring service")
	}
	return &ReportService{
		db:      db,
		cfg:     cfg,
		logger:  logger,
		store:   store,
		scoring: scoring,
		users:   users,
		alerts:  alerts,
		metrics: metrics,
	}
}

// SubmitReport validates and stores a report, scores it and returns the stored result.
// Scoring problems never fail the submission; storage and database problems do, and leave nothing behind.
func (s *ReportService) SubmitReport(ctx context.Context, userID *string, sub *models.ReportSubmission, media []MediaUpload) (result0 *models.ReportDetail, err error) {
	ctx, span := observability.TraceReportFunction(ctx, "submit_report", observability.AttributeMediaCount(len(media)))
	defer observability.FinishSpan(span, &err)

	prepared, err := ValidateSubmission(sub, media, s.cfg.Intake)
	if err != nil {
		return nil, err
	}

	// Anonymous reports never record who sent them
	var ownerID *string
	var credibility *float64
	if !sub.IsAnonymous && userID != nil && *userID != "" {
		ownerID, credibility = s.resolveReporter(ctx, *userID)
	}

	reportID := uuid.NewString()
	span.SetAttributes(
		observability.AttributeReportID(reportID),
		observability.AttributeIncidentType(string(sub.IncidentType)),
		attribute.Bool("report.anonymous", sub.IsAnonymous),
	)

	scoringReq := ScoringRequest{ReportID: reportID, Text: sub.Description, UserID: ownerID}
	if ownerID != nil {
		scoringReq.Credibility = credibility
		scoringReq.History = s.recentDescriptions(ctx, *ownerID)
	}

	attachments, err := s.storeMedia(ctx, reportID, prepared)
	if err != nil {
		return nil, err
	}
	for _, a := range attachments {
		scoringReq.MediaFiles = append(scoringReq.MediaFiles, a.FilePath)
	}

	// Scored before the transaction so no connection is held while the oracle runs.
	// Values are cut to column precision up front; the response then matches a later read.
	analysis := s.scoring.Analyze(ctx, scoringReq)
	analysis.ID = uuid.NewString()
	analysis.ReportID = reportID
	analysis.CreatedAt = time.Now()
	analysis.Normalize()

	now := models.StoredTime(time.Now())
	if sub.Location != nil {
		sub.Location.Normalize()
	}
	report := models.Report{
		ID:           reportID,
		UserID:       ownerID,
		IncidentType: sub.IncidentType,
		Description:  sub.Description,
		Location:     sub.Location,
		IsAnonymous:  sub.IsAnonymous,
		Status:       models.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = database.RunInTx(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		if err := insertReport(ctx, tx, &report); err != nil {
			return contextutils.WrapError(err, "failed to insert report")
		}
		if sub.ContactInfo != nil {
			if err := insertContact(ctx, tx, reportID, sub.ContactInfo); err != nil {
				return contextutils.WrapError(err, "failed to insert report contact")
			}
		}
		for i := range attachments {
			if err := insertMedia(ctx, tx, &attachments[i]); err != nil {
				return contextutils.WrapError(err, "failed to insert media attachment")
			}
		}
		if err := insertActivity(ctx, tx, &models.ActivityLog{
			ID:        uuid.NewString(),
			ReportID:  reportID,
			UserID:    ownerID,
			Action:    models.ActivityCreated,
			ToStatus:  statusPtr(models.StatusPending),
			CreatedAt: now,
		}); err != nil {
			return contextutils.WrapError(err, "failed to insert activity")
		}

		if err := insertAnalysis(ctx, tx, analysis); err != nil {
			return contextutils.WrapError(err, "failed to insert analysis")
		}

		_, err := tx.ExecContext(ctx, `UPDATE reports SET emergency_score = $1, is_spam = $2 WHERE id = $3`,
			analysis.EmergencyScore, analysis.IsSpam(), reportID)
		if err != nil {
			return contextutils.WrapError(err, "failed to record emergency score")
		}
		return nil
	})
	if err != nil {
		s.discardMedia(ctx, attachments)
		s.logger.Error(ctx, "Report submission failed", err, map[string]interface{}{
			"report_id": reportID,
		})
		return nil, contextutils.WrapError(err, "failed to submit report")
	}

	score := analysis.EmergencyScore
	report.EmergencyScore = &score
	report.IsSpam = analysis.IsSpam()

	detail := &models.ReportDetail{
		Report:      report,
		ContactInfo: sub.ContactInfo,
		Analysis:    analysis,
		Media:       attachments,
	}

	s.metrics.RecordSubmission(ctx, string(report.IncidentType))
	fields := map[string]interface{}{
		"report_id":       reportID,
		"incident_type":   string(report.IncidentType),
		"anonymous":       report.IsAnonymous,
		"media_count":     len(attachments),
		"emergency_score": score,
		"is_spam":         report.IsSpam,
		"fallback":        analysis.Fallback,
	}
	if sub.ContactInfo != nil {
		fields["contact_email"] = contextutils.MaskEmail(sub.ContactInfo.Email)
		fields["contact_phone"] = contextutils.MaskPhone(sub.ContactInfo.Phone)
	}
	s.logger.Info(ctx, "Report submitted", fields)

	s.notifyIfUrgent(ctx, detail)
	return detail, nil
}

// notifyIfUrgent mails duty staff in the background; failures are only logged
func (s *ReportService) notifyIfUrgent(ctx context.Context, detail *models.ReportDetail) {
	if s.alerts == nil || !s.alerts.ShouldNotify(detail) {
		return
	}
	alertCtx := context.WithoutCancel(ctx)
	s.alertsWG.Add(1)
	go func() {
		defer s.alertsWG.Done()
		if err := s.alerts.NotifyHighPriority(alertCtx, detail); err != nil {
			s.logger.Warn(alertCtx, "High priority alert failed", map[string]interface{}{
				"report_id": detail.ID,
				"error":     err.Error(),
			})
		}
	}()
}

// resolveReporter looks up the session user. A session whose account no longer
// exists submits without an owner rather than failing on the foreign key after
// media upload and scoring. A failed lookup keeps the owner with default credibility.
func (s *ReportService) resolveReporter(ctx context.Context, userID string) (*string, *float64) {
	if s.users == nil {
		return &userID, nil
	}
	cred, err := s.users.GetCredibility(ctx, userID)
	if err != nil {
		s.logger.Warn(ctx, "Failed to read reporter credibility, using default", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		return &userID, nil
	}
	if cred == nil {
		s.logger.Warn(ctx, "Session user no longer exists, submitting without owner", map[string]interface{}{
			"user_id": userID,
		})
		return nil, nil
	}
	return &userID, cred
}

// recentDescriptions feeds the oracle's duplicate and flood detection
func (s *ReportService) recentDescriptions(ctx context.Context, userID string) []string {
	limit := s.cfg.Oracle.HistorySize
	if limit <= 0 {
		return nil
	}

	history, err := database.Operation(ctx, func(ctx context.Context) ([]string, error) {
		rows, err := s.db.QueryContext(ctx,
			`SELECT description FROM reports WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
		if err != nil {
			return nil, err
		}
		defer func() { _ = rows.Close() }()

		var out []string
		for rows.Next() {
			var d string
			if err := rows.Scan(&d); err != nil {
				return nil, err
			}
			out = append(out, d)
		}
		return out, rows.Err()
	})
	if err != nil {
		s.logger.Warn(ctx, "Failed to load report history for scoring", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		return nil
	}
	return history
}

// storeMedia writes the uploads concurrently. On any failure the files already written are removed.
func (s *ReportService) storeMedia(ctx context.Context, reportID string, prepared []preparedMedia) (result0 []models.MediaAttachment, err error) {
	if len(prepared) == 0 {
		return []models.MediaAttachment{}, nil
	}
	ctx, span := observability.TraceStorageFunction(ctx, "store_media",
		observability.AttributeReportID(reportID),
		observability.AttributeMediaCount(len(prepared)),
	)
	defer observability.FinishSpan(span, &err)

	type stored struct {
		index      int
		attachment models.MediaAttachment
	}

	p := pool.NewWithResults[stored]().
		WithContext(ctx).
		WithMaxGoroutines(max(1, s.cfg.Intake.UploadConcurrency)).
		WithCancelOnError().
		WithFirstError()

	for i, m := range prepared {
		p.Go(func(ctx context.Context) (stored, error) {
			f, err := m.upload.Open()
			if err != nil {
				return stored{}, contextutils.WrapError(contextutils.ErrStorageFailed, fmt.Sprintf("failed to open %s: %v", m.upload.Filename, err))
			}
			defer func() { _ = f.Close() }()

			path, err := s.store.Save(ctx, storage.ReportMediaKey(reportID, m.upload.Filename), f, m.upload.Size, m.mimeType)
			if err != nil {
				return stored{}, err
			}
			return stored{index: i, attachment: models.MediaAttachment{
				ID:           uuid.NewString(),
				ReportID:     reportID,
				Category:     m.category,
				FilePath:     path,
				OriginalName: m.upload.Filename,
				MIMEType:     m.mimeType,
				SizeBytes:    m.upload.Size,
				CreatedAt:    models.StoredTime(time.Now()),
			}}, nil
		})
	}

	results, err := p.Wait()
	sort.Slice(results, func(a, b int) bool { return results[a].index < results[b].index })

	attachments := make([]models.MediaAttachment, 0, len(results))
	for _, r := range results {
		attachments = append(attachments, r.attachment)
	}

	if err != nil {
		s.discardMedia(ctx, attachments)
		return nil, contextutils.WrapError(err, "failed to store media")
	}
	return attachments, nil
}

// discardMedia removes stored objects after a failed submission, best effort
func (s *ReportService) discardMedia(ctx context.Context, attachments []models.MediaAttachment) {
	cleanupCtx := context.WithoutCancel(ctx)
	for _, a := range attachments {
		if err := s.store.Delete(cleanupCtx, a.FilePath); err != nil {
			s.logger.Warn(cleanupCtx, "Failed to remove media after aborted submission", map[string]interface{}{
				"report_id": a.ReportID,
				"path":      a.FilePath,
				"error":     err.Error(),
			})
		}
	}
}

func insertReport(ctx context.Context, tx *sql.Tx, r *models.Report) error {
	var lat, lng, address interface{}
	if r.Location != nil {
		lat, lng = r.Location.Lat, r.Location.Lng
		if r.Location.Address != "" {
			address = r.Location.Address
		}
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO reports
		(id, user_id, incident_type, description, location_lat, location_lng, location_address, is_anonymous, status, is_spam, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		r.ID, nullableString(r.UserID), string(r.IncidentType), r.Description, lat, lng, address,
		r.IsAnonymous, string(r.Status), false, r.CreatedAt, r.UpdatedAt)
	return err
}

func insertContact(ctx context.Context, tx *sql.Tx, reportID string, c *models.ContactInfo) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO report_contacts (report_id, name, email, phone) VALUES ($1, $2, $3, $4)`,
		reportID, c.Name, c.Email, c.Phone)
	return err
}

func insertMedia(ctx context.Context, tx *sql.Tx, m *models.MediaAttachment) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO media_attachments
		(id, report_id, category, file_path, original_name, mime_type, size_bytes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.ReportID, string(m.Category), m.FilePath, m.OriginalName, m.MIMEType, m.SizeBytes, m.CreatedAt)
	return err
}

func insertActivity(ctx context.Context, tx *sql.Tx, a *models.ActivityLog) error {
	var from, to interface{}
	if a.FromStatus != nil {
		from = string(*a.FromStatus)
	}
	if a.ToStatus != nil {
		to = string(*a.ToStatus)
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO activity_log
		(id, report_id, user_id, action, from_status, to_status, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.ReportID, nullableString(a.UserID), a.Action, from, to, a.Note, a.CreatedAt)
	return err
}

func insertAnalysis(ctx context.Context, tx *sql.Tx, a *models.Analysis) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO report_analysis
		(id, report_id, text_severity_score, media_severity_score, user_credibility_score, spam_probability, emergency_score, ai_notes, is_fallback, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, a.ReportID, a.TextSeverityScore, a.MediaSeverityScore, a.UserCredibilityScore,
		a.SpamProbability, a.EmergencyScore, a.AINotes, a.Fallback, a.CreatedAt)
	return err
}

func statusPtr(s models.ReportStatus) *models.ReportStatus {
	return &s
}

// GetReport returns a report with its analysis, media and contact details.
// Staff see every report; citizens only see their own, anything else reads as not found.
func (s *ReportService) GetReport(ctx context.Context, id string, viewer *models.User) (result0 *models.ReportDetail, err error) {
	ctx, span := observability.TraceReportFunction(ctx, "get_report", observability.AttributeReportID(id))
	defer observability.FinishSpan(span, &err)

	if viewer == nil {
		return nil, contextutils.ErrUnauthorized
	}
	if _, parseErr := uuid.Parse(id); parseErr != nil {
		return nil, contextutils.ErrRecordNotFound
	}

	detail, err := database.Operation(ctx, func(ctx context.Context) (*models.ReportDetail, error) {
		var rr reportRow
		var ar analysisRow
		query := fmt.Sprintf(`SELECT %s, %s FROM reports r LEFT JOIN report_analysis a ON a.report_id = r.id WHERE r.id = $1`,
			reportSelectFields, analysisSelectFields)
		if err := s.db.QueryRowContext(ctx, query, id).Scan(append(rr.dest(), ar.dest()...)...); err != nil {
			return nil, err
		}
		return &models.ReportDetail{Report: rr.value(), Analysis: ar.value()}, nil
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, contextutils.ErrRecordNotFound
	}
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get report")
	}

	isOwner := detail.UserID != nil && *detail.UserID == viewer.ID
	if !viewer.IsStaff() && !isOwner {
		return nil, contextutils.ErrRecordNotFound
	}

	detail.Media, err = s.listMedia(ctx, id)
	if err != nil {
		return nil, err
	}

	if !detail.IsAnonymous {
		detail.ContactInfo, err = s.getContact(ctx, id)
		if err != nil {
			return nil, err
		}
	}

	return detail, nil
}

func (s *ReportService) listMedia(ctx context.Context, reportID string) ([]models.MediaAttachment, error) {
	media, err := database.Operation(ctx, func(ctx context.Context) ([]models.MediaAttachment, error) {
		rows, err := s.db.QueryContext(ctx, `SELECT id, report_id, category, file_path, original_name, mime_type, size_bytes, created_at
			FROM media_attachments WHERE report_id = $1 ORDER BY created_at, id`, reportID)
		if err != nil {
			return nil, err
		}
		defer func() { _ = rows.Close() }()

		media := []models.MediaAttachment{}
		for rows.Next() {
			var m models.MediaAttachment
			var category string
			if err := rows.Scan(&m.ID, &m.ReportID, &category, &m.FilePath, &m.OriginalName, &m.MIMEType, &m.SizeBytes, &m.CreatedAt); err != nil {
				return nil, err
			}
			m.Category = models.MediaCategory(category)
			media = append(media, m)
		}
		return media, rows.Err()
	})
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to list media")
	}
	return media, nil
}

func (s *ReportService) getContact(ctx context.Context, reportID string) (*models.ContactInfo, error) {
	contact, err := database.Operation(ctx, func(ctx context.Context) (*models.ContactInfo, error) {
		var c models.ContactInfo
		err := s.db.QueryRowContext(ctx, `SELECT name, email, phone FROM report_contacts WHERE report_id = $1`, reportID).
			Scan(&c.Name, &c.Email, &c.Phone)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return &c, nil
	})
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get report contact")
	}
	return contact, nil
}

// ListReportsByUser returns a reporter's own reports, newest first, with the total count
func (s *ReportService) ListReportsByUser(ctx context.Context, userID string, page, pageSize int) (result0 []models.Report, result1 int, err error) {
	ctx, span := observability.TraceReportFunction(ctx, "list_reports_by_user",
		observability.AttributeUserID(userID),
		observability.AttributePage(page),
		observability.AttributePageSize(pageSize),
	)
	defer observability.FinishSpan(span, &err)

	page, pageSize = normalizePage(page, pageSize)

	var total int
	err = database.WithRetry(ctx, func(ctx context.Context) error {
		return s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reports WHERE user_id = $1`, userID).Scan(&total)
	})
	if err != nil {
		return nil, 0, contextutils.WrapError(err, "failed to count reports")
	}

	query := fmt.Sprintf(`SELECT %s FROM reports r WHERE r.user_id = $1 ORDER BY r.created_at DESC, r.id DESC LIMIT $2 OFFSET $3`, reportSelectFields)
	reports, err := database.Operation(ctx, func(ctx context.Context) ([]models.Report, error) {
		rows, err := s.db.QueryContext(ctx, query, userID, pageSize, (page-1)*pageSize)
		if err != nil {
			return nil, err
		}
		defer func() { _ = rows.Close() }()

		reports := []models.Report{}
		for rows.Next() {
			var rr reportRow
			if err := rows.Scan(rr.dest()...); err != nil {
				return nil, err
			}
			reports = append(reports, rr.value())
		}
		return reports, rows.Err()
	})
	if err != nil {
		return nil, 0, contextutils.WrapError(err, "failed to list reports")
	}
	return reports, total, nil
}

// normalizePage applies the default page size of 20 and caps it at 100
func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = config.DefaultTriageLimit
	}
	if pageSize > config.MaxTriageLimit {
		pageSize = config.MaxTriageLimit
	}
	return page, pageSize
}

// UpdateStatus moves a report forward in its lifecycle and records who did it.
// Concurrent updates to one report are serialized by the row lock.
func (s *ReportService) UpdateStatus(ctx context.Context, id string, status models.ReportStatus, note, actorID string) (result0 *models.StatusChange, err error) {
	ctx, span := observability.TraceReportFunction(ctx, "update_status",
		observability.AttributeReportID(id),
		observability.AttributeStatus(string(status)),
		observability.AttributeUserID(actorID),
	)
	defer observability.FinishSpan(span, &err)

	if !status.IsValid() {
		return nil, contextutils.NewValidationError(map[string]string{"status": "must be one of pending reviewing assigned resolved closed"})
	}
	if len([]rune(note)) > MaxStatusNoteLength {
		return nil, contextutils.NewValidationError(map[string]string{"note": fmt.Sprintf("must be at most %d characters", MaxStatusNoteLength)})
	}
	if _, parseErr := uuid.Parse(id); parseErr != nil {
		return nil, contextutils.ErrRecordNotFound
	}

	var change *models.StatusChange
	err = database.RunInTx(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		var current string
		err := tx.QueryRowContext(ctx, `SELECT status FROM reports WHERE id = $1 FOR UPDATE`, id).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return contextutils.ErrRecordNotFound
		}
		if err != nil {
			return err
		}

		from := models.ReportStatus(current)
		if !from.CanTransitionTo(status) {
			return contextutils.WrapErrorf(contextutils.ErrInvalidStatusTransition, "cannot move report from %s to %s", from, status)
		}

		now := models.StoredTime(time.Now())
		if _, err := tx.ExecContext(ctx, `UPDATE reports SET status = $1, updated_at = $2 WHERE id = $3`, string(status), now, id); err != nil {
			return err
		}

		if err := insertActivity(ctx, tx, &models.ActivityLog{
			ID:         uuid.NewString(),
			ReportID:   id,
			UserID:     models.StringPtrOrNil(actorID),
			Action:     models.ActivityStatusChanged,
			FromStatus: statusPtr(from),
			ToStatus:   statusPtr(status),
			Note:       note,
			CreatedAt:  now,
		}); err != nil {
			return err
		}

		change = &models.StatusChange{ReportID: id, Status: status, PreviousStatus: from, UpdatedAt: now}
		return nil
	})
	if err != nil {
		var appErr *contextutils.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, contextutils.WrapError(err, "failed to update report status")
	}

	s.metrics.RecordStatusChange(ctx, string(status))
	s.logger.Info(ctx, "Report status changed", map[string]interface{}{
		"report_id": id,
		"from":      string(change.PreviousStatus),
		"to":        string(status),
		"actor_id":  actorID,
	})
	return change, nil
}

// ListActivity returns a report's history, oldest first
func (s *ReportService) ListActivity(ctx context.Context, id string) (result0 []models.ActivityLog, err error) {
	ctx, span := observability.TraceReportFunction(ctx, "list_activity", observability.AttributeReportID(id))
	defer observability.FinishSpan(span, &err)

	if _, parseErr := uuid.Parse(id); parseErr != nil {
		return nil, contextutils.ErrRecordNotFound
	}

	var exists bool
	err = database.WithRetry(ctx, func(ctx context.Context) error {
		return s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM reports WHERE id = $1)`, id).Scan(&exists)
	})
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to check report")
	}
	if !exists {
		return nil, contextutils.ErrRecordNotFound
	}

	entries, err := database.Operation(ctx, func(ctx context.Context) ([]models.ActivityLog, error) {
		rows, err := s.db.QueryContext(ctx, `SELECT id, report_id, user_id, action, from_status, to_status, note, created_at
			FROM activity_log WHERE report_id = $1 ORDER BY created_at, id`, id)
		if err != nil {
			return nil, err
		}
		defer func() { _ = rows.Close() }()

		entries := []models.ActivityLog{}
		for rows.Next() {
			var a models.ActivityLog
			var userID, from, to sql.NullString
			if err := rows.Scan(&a.ID, &a.ReportID, &userID, &a.Action, &from, &to, &a.Note, &a.CreatedAt); err != nil {
				return nil, err
			}
			a.UserID = nullStringPtr(userID)
			if from.Valid {
				a.FromStatus = statusPtr(models.ReportStatus(from.String))
			}
			if to.Valid {
				a.ToStatus = statusPtr(models.ReportStatus(to.String))
			}
			entries = append(entries, a)
		}
		return entries, rows.Err()
	})
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to list activity")
	}
	return entries, nil
}
