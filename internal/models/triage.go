package models

// ReporterSummary is the reporter block shown to agency staff
type ReporterSummary struct {
	ID               string  `json:"id"`
	Username         string  `json:"username"`
	CredibilityScore float64 `json:"credibilityScore"`
}

// TriageEntry is one row of the agency work queue
type TriageEntry struct {
	Report
	Reporter *ReporterSummary `json:"reporter,omitempty"`
	Analysis *Analysis        `json:"analysis,omitempty"`
}

// QueueFilter narrows the triage queue
type QueueFilter struct {
	Limit        int
	IncidentType IncidentType
}

// QueueStats summarizes the open work for the dashboard header
type QueueStats struct {
	Pending      int `json:"pending"`
	Reviewing    int `json:"reviewing"`
	Assigned     int `json:"assigned"`
	Spam         int `json:"spam"`
	HighPriority int `json:"highPriority"`
	Unscored     int `json:"unscored"`
	TotalOpen    int `json:"totalOpen"`
}
