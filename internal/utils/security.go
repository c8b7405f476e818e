package contextutils

import (
	"strings"
)

// MaskAPIKey keeps the first and last four characters of a secret. Keys of eight
// characters or fewer are masked entirely.
func MaskAPIKey(apiKey string) string {
	if apiKey == "" {
		return "[EMPTY]"
	}

	if len(apiKey) <= 8 {
		return strings.Repeat("*", len(apiKey))
	}

	return apiKey[:4] + strings.Repeat("*", len(apiKey)-8) + apiKey[len(apiKey)-4:]
}

// MaskEmail keeps the first character of the local part and the domain
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "[REDACTED]"
	}
	return email[:1] + strings.Repeat("*", at-1) + email[at:]
}

// MaskPhone keeps only the last two digits of a phone number
func MaskPhone(phone string) string {
	digits := make([]rune, 0, len(phone))
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	if len(digits) < 4 {
		return "[REDACTED]"
	}
	return strings.Repeat("*", len(digits)-2) + string(digits[len(digits)-2:])
}
