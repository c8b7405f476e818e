package services

import (
	"database/sql"

	"safereport/internal/models"
)

const reportSelectFields = `r.id, r.user_id, r.incident_type, r.description, r.location_lat, r.location_lng, r.location_address,
	r.is_anonymous, r.emergency_score, r.status, r.assigned_agency_id, r.assigned_staff_id, r.is_spam, r.created_at, r.updated_at`

const analysisSelectFields = `a.id, a.report_id, a.text_severity_score, a.media_severity_score, a.user_credibility_score,
	a.spam_probability, a.emergency_score, a.ai_notes, a.is_fallback, a.created_at`

// reportRow holds the nullable columns of one reports row while scanning
type reportRow struct {
	report       models.Report
	userID       sql.NullString
	incidentType string
	lat, lng     sql.NullFloat64
	address      sql.NullString
	score        sql.NullFloat64
	status       string
	agencyID     sql.NullString
	staffID      sql.NullString
}

func (rr *reportRow) dest() []interface{} {
	return []interface{}{
		&rr.report.ID, &rr.userID, &rr.incidentType, &rr.report.Description, &rr.lat, &rr.lng, &rr.address,
		&rr.report.IsAnonymous, &rr.score, &rr.status, &rr.agencyID, &rr.staffID, &rr.report.IsSpam,
		&rr.report.CreatedAt, &rr.report.UpdatedAt,
	}
}

func (rr *reportRow) value() models.Report {
	r := rr.report
	r.UserID = nullStringPtr(rr.userID)
	r.IncidentType = models.IncidentType(rr.incidentType)
	r.Status = models.ReportStatus(rr.status)
	r.AssignedAgencyID = nullStringPtr(rr.agencyID)
	r.AssignedStaffID = nullStringPtr(rr.staffID)
	if rr.score.Valid {
		score := rr.score.Float64
		r.EmergencyScore = &score
	}
	if rr.lat.Valid && rr.lng.Valid {
		r.Location = &models.Location{Lat: rr.lat.Float64, Lng: rr.lng.Float64, Address: rr.address.String}
	}
	return r
}

// analysisRow scans a possibly absent report_analysis row from a LEFT JOIN
type analysisRow struct {
	id, reportID      sql.NullString
	text, media, cred sql.NullFloat64
	spam, score       sql.NullFloat64
	notes             sql.NullString
	fallback          sql.NullBool
	createdAt         sql.NullTime
}

func (ar *analysisRow) dest() []interface{} {
	return []interface{}{
		&ar.id, &ar.reportID, &ar.text, &ar.media, &ar.cred, &ar.spam, &ar.score, &ar.notes, &ar.fallback, &ar.createdAt,
	}
}

func (ar *analysisRow) value() *models.Analysis {
	if !ar.id.Valid {
		return nil
	}
	return &models.Analysis{
		ID:                   ar.id.String,
		ReportID:             ar.reportID.String,
		TextSeverityScore:    ar.text.Float64,
		MediaSeverityScore:   ar.media.Float64,
		UserCredibilityScore: ar.cred.Float64,
		SpamProbability:      ar.spam.Float64,
		EmergencyScore:       ar.score.Float64,
		AINotes:              ar.notes.String,
		Fallback:             ar.fallback.Bool,
		CreatedAt:            ar.createdAt.Time,
	}
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullableString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}
