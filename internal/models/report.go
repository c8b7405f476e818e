// Package models defines the persisted and wire types of the report triage service.
package models

import (
	"strings"
	"time"
)

// IncidentType categorizes a submitted report
type IncidentType string

// Incident categories accepted by intake
const (
	IncidentPhysical   IncidentType = "physical"
	IncidentCyber      IncidentType = "cyber"
	IncidentHarassment IncidentType = "harassment"
	IncidentOther      IncidentType = "other"
)

// IncidentTypes lists every accepted category in display order
var IncidentTypes = []IncidentType{IncidentPhysical, IncidentCyber, IncidentHarassment, IncidentOther}

// IsValid reports whether t is one of the accepted categories
func (t IncidentType) IsValid() bool {
	for _, known := range IncidentTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ReportStatus is the lifecycle state of a report
type ReportStatus string

// Report lifecycle states, in forward order
const (
	StatusPending   ReportStatus = "pending"
	StatusReviewing ReportStatus = "reviewing"
	StatusAssigned  ReportStatus = "assigned"
	StatusResolved  ReportStatus = "resolved"
	StatusClosed    ReportStatus = "closed"
)

// ReportStatuses lists every status in lifecycle order
var ReportStatuses = []ReportStatus{StatusPending, StatusReviewing, StatusAssigned, StatusResolved, StatusClosed}

// TriageStatuses are the statuses that keep a report in the agency work queue
var TriageStatuses = []ReportStatus{StatusPending, StatusReviewing}

// ParseReportStatus normalizes and validates a status name
func ParseReportStatus(s string) (ReportStatus, bool) {
	status := ReportStatus(strings.ToLower(strings.TrimSpace(s)))
	return status, status.rank() >= 0
}

func (s ReportStatus) rank() int {
	for i, known := range ReportStatuses {
		if s == known {
			return i
		}
	}
	return -1
}

// IsValid reports whether s is a known status
func (s ReportStatus) IsValid() bool {
	return s.rank() >= 0
}

// IsTerminal reports whether no further transition is possible from s
func (s ReportStatus) IsTerminal() bool {
	return s == StatusClosed
}

// CanTransitionTo reports whether a report may move from s to next.
// Statuses only move forward; skipping intermediate states is allowed.
func (s ReportStatus) CanTransitionTo(next ReportStatus) bool {
	from, to := s.rank(), next.rank()
	if from < 0 || to < 0 {
		return false
	}
	return to > from
}

// Location is the optional geolocation attached to a report
type Location struct {
	Lat     float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng     float64 `json:"lng" validate:"gte=-180,lte=180"`
	Address string  `json:"address,omitempty" validate:"max=500"`
}

// Normalize rounds the coordinates to the scale the reports table stores
func (l *Location) Normalize() {
	l.Lat = RoundToScale(l.Lat, CoordinateScale)
	l.Lng = RoundToScale(l.Lng, CoordinateScale)
}

// ContactInfo is how agency staff can reach a non-anonymous reporter
type ContactInfo struct {
	Name  string `json:"name" validate:"required,max=200"`
	Email string `json:"email" validate:"required,email,max=320"`
	Phone string `json:"phone" validate:"required,phone"`
}

// ReportSubmission is the validated intake payload, decoded from the multipart form
type ReportSubmission struct {
	IncidentType IncidentType `json:"incidentType" validate:"required,oneof=physical cyber harassment other"`
	Description  string       `json:"description" validate:"required"`
	Location     *Location    `json:"location,omitempty" validate:"omitempty"`
	IsAnonymous  bool         `json:"isAnonymous"`
	ContactInfo  *ContactInfo `json:"contactInfo,omitempty" validate:"omitempty"`
}

// Report is one submitted incident
type Report struct {
	ID               string       `json:"id" db:"id"`
	UserID           *string      `json:"userId,omitempty" db:"user_id"`
	IncidentType     IncidentType `json:"incidentType" db:"incident_type"`
	Description      string       `json:"description" db:"description"`
	Location         *Location    `json:"location,omitempty"`
	IsAnonymous      bool         `json:"isAnonymous" db:"is_anonymous"`
	EmergencyScore   *float64     `json:"emergencyScore" db:"emergency_score"`
	Status           ReportStatus `json:"status" db:"status"`
	AssignedAgencyID *string      `json:"assignedAgencyId,omitempty" db:"assigned_agency_id"`
	AssignedStaffID  *string      `json:"assignedStaffId,omitempty" db:"assigned_staff_id"`
	IsSpam           bool         `json:"isSpam" db:"is_spam"`
	CreatedAt        time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time    `json:"updatedAt" db:"updated_at"`
}

// ReportDetail is a report with everything attached to it
type ReportDetail struct {
	Report
	ContactInfo *ContactInfo      `json:"contactInfo,omitempty"`
	Analysis    *Analysis         `json:"analysis,omitempty"`
	Media       []MediaAttachment `json:"media"`
}

// StatusChange is the result of a committed status transition
type StatusChange struct {
	ReportID       string       `json:"id"`
	Status         ReportStatus `json:"status"`
	PreviousStatus ReportStatus `json:"previousStatus"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}
