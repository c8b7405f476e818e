package analysis

import (
	"fmt"
	"strings"
	"time"

	"safereport/internal/models"
)

// HistoryItem is one earlier report by the same reporter
type HistoryItem struct {
	Text string `json:"text"`
}

// Request is the body of POST /analyze
type Request struct {
	ReportID        string        `json:"reportId"`
	Text            string        `json:"text"`
	UserID          *string       `json:"userId"`
	MediaFiles      []string      `json:"mediaFiles"`
	UserCredibility *float64      `json:"userCredibility"`
	ReportHistory   []HistoryItem `json:"reportHistory"`
}

// Response is the analysis returned to the intake service
type Response struct {
	TextSeverityScore    float64   `json:"textSeverityScore"`
	MediaSeverityScore   float64   `json:"mediaSeverityScore"`
	UserCredibilityScore float64   `json:"userCredibilityScore"`
	SpamProbability      float64   `json:"spamProbability"`
	EmergencyScore       float64   `json:"emergencyScore"`
	IsSpam               bool      `json:"isSpam"`
	AINotes              string    `json:"aiNotes"`
	AnalyzedAt           time.Time `json:"analyzedAt"`
}

// Engine combines the text, spam and image heuristics into one analysis
type Engine struct {
	text  *TextAnalyzer
	spam  *SpamDetector
	image *ImageAnalyzer
	now   func() time.Time
}

// NewEngine creates an Engine whose image analyzer only reads files under mediaRoot
func NewEngine(mediaRoot string) *Engine {
	return &Engine{
		text:  NewTextAnalyzer(),
		spam:  NewSpamDetector(),
		image: NewImageAnalyzer(mediaRoot),
		now:   time.Now,
	}
}

// Analyze scores a report. Likely spam skips the severity analyzers entirely.
func (e *Engine) Analyze(req Request) Response {
	credibility := models.DefaultCredibility
	if req.UserCredibility != nil {
		credibility = models.ClampCredibility(*req.UserCredibility)
	}

	history := make([]string, 0, len(req.ReportHistory))
	for _, h := range req.ReportHistory {
		history = append(history, h.Text)
	}

	resp := Response{
		UserCredibilityScore: credibility,
		SpamProbability:      e.spam.Predict(req.Text, history),
		AnalyzedAt:           e.now().UTC(),
	}
	resp.IsSpam = models.IsSpam(resp.SpamProbability)

	var notes []string
	if resp.IsSpam {
		notes = append(notes, fmt.Sprintf("flagged as likely spam (p=%.2f)", resp.SpamProbability))
	} else {
		resp.TextSeverityScore = e.text.Analyze(req.Text)
		resp.MediaSeverityScore = e.image.AnalyzeBatch(req.MediaFiles)
		notes = append(notes, fmt.Sprintf("text severity %.1f", resp.TextSeverityScore))
		if len(req.MediaFiles) > 0 {
			notes = append(notes, fmt.Sprintf("%d media file(s), max severity %.1f", len(req.MediaFiles), resp.MediaSeverityScore))
		}
	}
	resp.EmergencyScore = models.ComputeEmergencyScore(resp.TextSeverityScore, resp.MediaSeverityScore, resp.UserCredibilityScore)
	resp.AINotes = strings.Join(notes, "; ")
	return resp
}

// ModelStatus reports which analyzers are available for the health endpoint
func (e *Engine) ModelStatus() map[string]bool {
	return map[string]bool{
		"text_analyzer":  e.text != nil,
		"image_analyzer": e.image != nil,
		"spam_detector":  e.spam != nil,
	}
}
