// Package analysis implements the keyword and image heuristics served by the reference scoring oracle.
package analysis

import (
	"regexp"
	"strings"

	"safereport/internal/models"
)

var whitespace = regexp.MustCompile(`\s+`)

// Keyword tiers for text severity. A listed keyword counts once however often it
// appears in the text; "blood" is listed twice among the high keywords and scores double.
var (
	highSeverityKeywords = []string{
		"murder", "killing", "death", "gun", "shoot", "shot", "knife", "stab",
		"blood", "weapon", "attack", "kill", "die", "dead", "assault", "beaten",
		"injury", "injured", "wound", "wounded", "emergency", "urgent", "immediate",
		"severe", "serious", "critical", "life-threatening", "dangerous", "lethal",
		"firearm", "bleeding", "blood", "threat", "threatened", "suicide", "homicide",
	}
	mediumSeverityKeywords = []string{
		"fight", "hit", "punch", "kick", "beat", "assault", "abuse", "hurt",
		"pain", "suffer", "victim", "violent", "harassment", "stalking", "follow",
		"threaten", "intimidate", "fear", "scared", "afraid", "unsafe", "danger",
		"bruise", "harm", "damage", "physical", "attack", "aggressive", "aggression",
	}
	lowSeverityKeywords = []string{
		"argument", "dispute", "conflict", "disagreement", "verbal", "yell", "shout",
		"scream", "insult", "offensive", "inappropriate", "uncomfortable", "uneasy",
		"worried", "concern", "suspicious", "strange", "odd", "unusual", "disturbing",
		"cyber", "online", "message", "text", "social media", "post", "comment",
	}
)

// TextAnalyzer scores how violent or urgent a description reads, from 0 to 10
type TextAnalyzer struct{}

// NewTextAnalyzer creates a new TextAnalyzer instance
func NewTextAnalyzer() *TextAnalyzer {
	return &TextAnalyzer{}
}

// Analyze returns the text severity. Matching is by substring, so "shot" also hits "shotgun".
func (a *TextAnalyzer) Analyze(text string) float64 {
	text = normalizeText(text)
	if text == "" {
		return 0
	}

	score := 3*float64(countKeywords(text, highSeverityKeywords)) +
		1.5*float64(countKeywords(text, mediumSeverityKeywords)) +
		0.5*float64(countKeywords(text, lowSeverityKeywords))
	return min(score/5, models.MaxSeverityScore)
}

func normalizeText(text string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(strings.ToLower(text), " "))
}

func countKeywords(text string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			n++
		}
	}
	return n
}
