package analysis

import (
	"regexp"
	"strings"
	"unicode"

	"safereport/internal/models"
)

var (
	urlPattern  = regexp.MustCompile(`https?://\S+|www\.\S+`)
	htmlPattern = regexp.MustCompile(`<.*?>`)
)

var spamKeywords = []string{
	"viagra", "cialis", "casino", "lottery", "winner", "buy now", "free offer",
	"earn money", "work from home", "make money fast", "discount", "limited time",
	"click here", "subscribe", "unsubscribe", "nigerian prince", "investment opportunity",
	"bitcoin", "crypto", "prize", "congratulations", "claim your", "urgent", "warranty",
	"sex", "porn", "xxx", "dating", "singles", "meet women", "meet men", "enlargement",
	"weight loss", "diet", "pills", "medication", "prescription", "pharmacy",
	"test message", "testing", "asdf", "qwerty", "lorem ipsum", "hello world",
	"please ignore", "this is a test",
}

const (
	spamKeywordWeight   = 0.2
	spamKeywordCap      = 0.9
	shortTextLength     = 20
	floodHistorySize    = 10
	duplicateSimilarity = 0.8
	emptyTextSpamScore  = 0.5
)

// SpamDetector estimates the probability that a report is not a genuine incident
type SpamDetector struct{}

// NewSpamDetector creates a new SpamDetector instance
func NewSpamDetector() *SpamDetector {
	return &SpamDetector{}
}

// Predict returns a spam probability in [0, 1]. history holds earlier descriptions by the same reporter.
func (d *SpamDetector) Predict(text string, history []string) float64 {
	raw := stripMarkup(text)
	if raw == "" {
		return emptyTextSpamScore
	}
	lower := strings.ToLower(raw)

	score := 0.0
	for _, kw := range spamKeywords {
		if strings.Contains(lower, kw) {
			score += spamKeywordWeight
		}
	}
	score = min(score, spamKeywordCap)

	if len([]rune(raw)) < shortTextLength {
		score += 0.3
	}
	// Shouting is judged on the text as typed
	if capsRatio(raw) > 0.5 {
		score += 0.2
	}
	if hasRepeatedRun(lower, 5) {
		score += 0.2
	}

	if len(history) > floodHistorySize {
		score += 0.2
	}
	for _, previous := range history {
		if jaccard(lower, strings.ToLower(previous)) > duplicateSimilarity {
			score += 0.4
			break
		}
	}

	return models.ClampProbability(score)
}

func stripMarkup(text string) string {
	text = urlPattern.ReplaceAllString(text, "")
	text = htmlPattern.ReplaceAllString(text, "")
	return strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
}

func capsRatio(text string) float64 {
	runes := []rune(text)
	if len(runes) == 0 {
		return 0
	}
	upper := 0
	for _, r := range runes {
		if unicode.IsUpper(r) {
			upper++
		}
	}
	return float64(upper) / float64(len(runes))
}

// hasRepeatedRun reports whether any character occurs n or more times in a row
func hasRepeatedRun(text string, n int) bool {
	var prev rune
	run := 0
	for _, r := range text {
		if r == prev {
			run++
		} else {
			prev, run = r, 1
		}
		if run >= n {
			return true
		}
	}
	return false
}

// jaccard is the word-set similarity of two texts
func jaccard(a, b string) float64 {
	wa, wb := wordSet(a), wordSet(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	shared := 0
	for w := range wa {
		if wb[w] {
			shared++
		}
	}
	return float64(shared) / float64(len(wa)+len(wb)-shared)
}

func wordSet(text string) map[string]bool {
	set := map[string]bool{}
	for _, w := range strings.Fields(text) {
		set[w] = true
	}
	return set
}
