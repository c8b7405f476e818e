package services

import (
	"context"
	"database/sql"
	"fmt"

	"safereport/internal/config"
	"safereport/internal/database"
	"safereport/internal/models"
	"safereport/internal/observability"
	contextutils "safereport/internal/utils"
)

// TriageServiceInterface reads the agency work queue
type TriageServiceInterface interface {
	GetQueue(ctx context.Context, filter models.QueueFilter) ([]models.TriageEntry, error)
	GetQueueStats(ctx context.Context) (*models.QueueStats, error)
}

// TriageService orders open, non-spam reports for agency staff
type TriageService struct {
	db     *sql.DB
	cfg    *config.Config
	logger *observability.Logger
}

var _ TriageServiceInterface = (*TriageService)(nil)

// NewTriageService creates a new TriageService instance
func NewTriageService(db *sql.DB, cfg *config.Config, logger *observability.Logger) *TriageService {
	if db == nil {
		panic("TriageService requires a non-nil database connection")
	}
	return &TriageService{db: db, cfg: cfg, logger: logger}
}

// Highest score first; unscored reports sink to the bottom, older reports first on ties
const queueQuery = `SELECT %s, %s, u.id, u.username, u.credibility_score
	FROM reports r
	LEFT JOIN users u ON u.id = r.user_id AND r.is_anonymous = false
	LEFT JOIN report_analysis a ON a.report_id = r.id
	WHERE r.status IN ('pending', 'reviewing') AND r.is_spam = false
	  AND ($1 = '' OR r.incident_type::text = $1)
	ORDER BY r.emergency_score DESC NULLS LAST, r.created_at ASC, r.id ASC
	LIMIT $2`

// ClampLimit applies the configured default and ceiling to a requested queue size
func (s *TriageService) ClampLimit(limit int) int {
	def, ceiling := s.cfg.Triage.DefaultLimit, s.cfg.Triage.MaxLimit
	if def <= 0 {
		def = config.DefaultTriageLimit
	}
	if ceiling <= 0 {
		ceiling = config.MaxTriageLimit
	}
	switch {
	case limit <= 0:
		return min(def, ceiling)
	case limit > ceiling:
		return ceiling
	}
	return limit
}

// GetQueue returns the triage queue, annotated with reporter and analysis data
func (s *TriageService) GetQueue(ctx context.Context, filter models.QueueFilter) (result0 []models.TriageEntry, err error) {
	limit := s.ClampLimit(filter.Limit)
	ctx, span := observability.TraceTriageFunction(ctx, "get_queue",
		observability.AttributeLimit(limit),
		observability.AttributeIncidentType(string(filter.IncidentType)),
	)
	defer observability.FinishSpan(span, &err)

	if filter.IncidentType != "" && !filter.IncidentType.IsValid() {
		return nil, contextutils.NewValidationError(map[string]string{"type": "must be one of physical cyber harassment other"})
	}

	query := fmt.Sprintf(queueQuery, reportSelectFields, analysisSelectFields)
	entries, err := database.Operation(ctx, func(ctx context.Context) ([]models.TriageEntry, error) {
		rows, err := s.db.QueryContext(ctx, query, string(filter.IncidentType), limit)
		if err != nil {
			return nil, err
		}
		defer func() { _ = rows.Close() }()

		entries := []models.TriageEntry{}
		for rows.Next() {
			var rr reportRow
			var ar analysisRow
			var reporterID, reporterName sql.NullString
			var reporterCred sql.NullFloat64

			dest := append(rr.dest(), ar.dest()...)
			dest = append(dest, &reporterID, &reporterName, &reporterCred)
			if err := rows.Scan(dest...); err != nil {
				return nil, err
			}

			entry := models.TriageEntry{Report: rr.value(), Analysis: ar.value()}
			if reporterID.Valid && !entry.IsAnonymous {
				entry.Reporter = &models.ReporterSummary{
					ID:               reporterID.String,
					Username:         reporterName.String,
					CredibilityScore: reporterCred.Float64,
				}
			}
			entries = append(entries, entry)
		}
		return entries, rows.Err()
	})
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to load triage queue")
	}

	s.logger.Debug(ctx, "Triage queue loaded", map[string]interface{}{
		"limit":         limit,
		"incident_type": string(filter.IncidentType),
		"count":         len(entries),
	})
	return entries, nil
}

// GetQueueStats counts open reports for the dashboard header. Open means not yet resolved or closed.
func (s *TriageService) GetQueueStats(ctx context.Context) (result0 *models.QueueStats, err error) {
	ctx, span := observability.TraceTriageFunction(ctx, "get_queue_stats")
	defer observability.FinishSpan(span, &err)

	threshold := s.cfg.Alerts.Threshold
	if threshold <= 0 {
		threshold = config.DefaultAlertThreshold
	}

	stats, err := database.Operation(ctx, func(ctx context.Context) (*models.QueueStats, error) {
		var st models.QueueStats
		err := s.db.QueryRowContext(ctx, `SELECT
			COUNT(*) FILTER (WHERE status = 'pending' AND is_spam = false),
			COUNT(*) FILTER (WHERE status = 'reviewing' AND is_spam = false),
			COUNT(*) FILTER (WHERE status = 'assigned' AND is_spam = false),
			COUNT(*) FILTER (WHERE is_spam = true),
			COUNT(*) FILTER (WHERE is_spam = false AND emergency_score >= $1),
			COUNT(*) FILTER (WHERE is_spam = false AND emergency_score IS NULL),
			COUNT(*) FILTER (WHERE is_spam = false)
			FROM reports WHERE status NOT IN ('resolved', 'closed')`, threshold).
			Scan(&st.Pending, &st.Reviewing, &st.Assigned, &st.Spam, &st.HighPriority, &st.Unscored, &st.TotalOpen)
		if err != nil {
			return nil, err
		}
		return &st, nil
	})
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to load queue stats")
	}
	return stats, nil
}
