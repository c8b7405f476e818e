package models

import "time"

// Activity actions recorded against a report
const (
	ActivityCreated       = "created"
	ActivityStatusChanged = "status_changed"
)

// ActivityLog is one entry in a report's history
type ActivityLog struct {
	ID         string        `json:"id" db:"id"`
	ReportID   string        `json:"reportId" db:"report_id"`
	UserID     *string       `json:"userId,omitempty" db:"user_id"`
	Action     string        `json:"action" db:"action"`
	FromStatus *ReportStatus `json:"fromStatus,omitempty" db:"from_status"`
	ToStatus   *ReportStatus `json:"toStatus,omitempty" db:"to_status"`
	Note       string        `json:"note,omitempty" db:"note"`
	CreatedAt  time.Time     `json:"createdAt" db:"created_at"`
}
