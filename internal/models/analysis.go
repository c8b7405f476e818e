package models

import (
	"fmt"
	"math"
	"time"
)

// Composite score weights and component ranges
const (
	TextSeverityWeight    = 0.4
	MediaSeverityWeight   = 0.5
	CredibilityWeight     = 0.1
	MaxSeverityScore      = 10.0
	MaxCredibilityScore   = 5.0
	DefaultCredibility    = 1.0
	SpamThreshold         = 0.8
	EmergencyScoreEpsilon = 1e-6
)

// Decimal places of the NUMERIC columns holding scores, probabilities and coordinates
const (
	ScoreScale           = 2
	SpamProbabilityScale = 4
	CoordinateScale      = 8
)

// RoundToScale rounds half away from zero to places decimals, the way a NUMERIC column stores v
func RoundToScale(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}

// StoredTime truncates t to the microsecond precision of a timestamptz column
func StoredTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// MaxEmergencyScore is the composite produced by maximal component scores
const MaxEmergencyScore = TextSeverityWeight*MaxSeverityScore + MediaSeverityWeight*MaxSeverityScore + CredibilityWeight*MaxCredibilityScore

// FallbackNotePrefix starts the notes of every substituted analysis
const FallbackNotePrefix = "AI analysis unavailable"

// Analysis is the scoring record attached to a report
type Analysis struct {
	ID                   string    `json:"id" db:"id"`
	ReportID             string    `json:"reportId" db:"report_id"`
	TextSeverityScore    float64   `json:"textSeverityScore" db:"text_severity_score"`
	MediaSeverityScore   float64   `json:"mediaSeverityScore" db:"media_severity_score"`
	UserCredibilityScore float64   `json:"userCredibilityScore" db:"user_credibility_score"`
	SpamProbability      float64   `json:"spamProbability" db:"spam_probability"`
	EmergencyScore       float64   `json:"emergencyScore" db:"emergency_score"`
	AINotes              string    `json:"aiNotes" db:"ai_notes"`
	Fallback             bool      `json:"fallback"`
	CreatedAt            time.Time `json:"createdAt" db:"created_at"`
}

// ComputeEmergencyScore combines the component scores into the composite used for triage ordering
func ComputeEmergencyScore(textSeverity, mediaSeverity, credibility float64) float64 {
	return TextSeverityWeight*textSeverity + MediaSeverityWeight*mediaSeverity + CredibilityWeight*credibility
}

// IsSpam reports whether a spam probability marks the report as spam
func IsSpam(spamProbability float64) bool {
	return spamProbability > SpamThreshold
}

// IsSpam reports whether the analysis marks its report as spam
func (a *Analysis) IsSpam() bool {
	return IsSpam(a.SpamProbability)
}

// Normalize rounds every score to its column scale and truncates CreatedAt, so
// the analysis equals what a later read of the row returns. Spam is decided on
// the rounded probability.
func (a *Analysis) Normalize() {
	a.TextSeverityScore = RoundToScale(a.TextSeverityScore, ScoreScale)
	a.MediaSeverityScore = RoundToScale(a.MediaSeverityScore, ScoreScale)
	a.UserCredibilityScore = RoundToScale(a.UserCredibilityScore, ScoreScale)
	a.SpamProbability = RoundToScale(a.SpamProbability, SpamProbabilityScale)
	a.EmergencyScore = RoundToScale(a.EmergencyScore, ScoreScale)
	a.CreatedAt = StoredTime(a.CreatedAt)
}

// ExpectedEmergencyScore is the composite the formula gives for the stored components
func (a *Analysis) ExpectedEmergencyScore() float64 {
	return ComputeEmergencyScore(a.TextSeverityScore, a.MediaSeverityScore, a.UserCredibilityScore)
}

// CompositeMatches reports whether the stored composite agrees with the formula
func (a *Analysis) CompositeMatches() bool {
	return math.Abs(a.EmergencyScore-a.ExpectedEmergencyScore()) <= EmergencyScoreEpsilon
}

// FallbackAnalysis is the record substituted when the oracle cannot produce one.
// credibility is the reporter's stored score, nil when anonymous or unknown.
func FallbackAnalysis(reportID string, credibility *float64, reason string) *Analysis {
	cred := DefaultCredibility
	if credibility != nil {
		cred = ClampCredibility(*credibility)
	}
	return &Analysis{
		ReportID:             reportID,
		UserCredibilityScore: cred,
		AINotes:              fmt.Sprintf("%s: %s", FallbackNotePrefix, reason),
		Fallback:             true,
	}
}

// ClampSeverity limits a text or media severity to [0, 10]
func ClampSeverity(v float64) float64 {
	return clamp(v, 0, MaxSeverityScore)
}

// ClampCredibility limits a credibility score to [0, 5]
func ClampCredibility(v float64) float64 {
	return clamp(v, 0, MaxCredibilityScore)
}

// ClampProbability limits a probability to [0, 1]
func ClampProbability(v float64) float64 {
	return clamp(v, 0, 1)
}

// ClampEmergencyScore limits a composite to [0, MaxEmergencyScore]
func ClampEmergencyScore(v float64) float64 {
	return clamp(v, 0, MaxEmergencyScore)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
