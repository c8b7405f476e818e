package contextutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidEmail(t *testing.T) {
	// Test valid emails
	assert.True(t, IsValidEmail("user@example.com"))
	assert.True(t, IsValidEmail("user.name@example.com"))
	assert.True(t, IsValidEmail("user+tag@example.com"))
	assert.True(t, IsValidEmail("user@example.co.uk"))
	assert.True(t, IsValidEmail("user@subdomain.example.com"))

	// Test invalid emails
	assert.False(t, IsValidEmail(""))
	assert.False(t, IsValidEmail("invalid-email"))
	assert.False(t, IsValidEmail("@example.com"))
	assert.False(t, IsValidEmail("user@"))
	assert.False(t, IsValidEmail("user@.com"))
	assert.False(t, IsValidEmail("user@example"))
	assert.False(t, IsValidEmail("user@example."))
	assert.False(t, IsValidEmail("user name@example.com"))

	assert.False(t, IsValidEmail("user@example..com"))
}

func TestIsValidPhone(t *testing.T) {
	assert.True(t, IsValidPhone("+1 (555) 123-4567"))
	assert.True(t, IsValidPhone("0123456789"))
	assert.True(t, IsValidPhone("  555 1234 567 "))

	assert.False(t, IsValidPhone(""))
	assert.False(t, IsValidPhone("12345"))
	assert.False(t, IsValidPhone("555-CALL-NOW"))
	assert.False(t, IsValidPhone("1+5551234567"))
	assert.False(t, IsValidPhone("(((((((-)))"))
}

type sampleLocation struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
}

type sampleSubmission struct {
	Kind     string          `json:"incidentType" validate:"required,oneof=physical cyber"`
	Text     string          `json:"description" validate:"min=20"`
	Phone    string          `json:"phone" validate:"omitempty,phone"`
	Location *sampleLocation `json:"location" validate:"omitempty"`
}

func TestValidateStruct(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		assert.Nil(t, ValidateStruct(&sampleSubmission{
			Kind: "physical",
			Text: "a sufficiently long description",
		}))
	})

	t.Run("field errors keyed by json path", func(t *testing.T) {
		appErr := ValidateStruct(&sampleSubmission{
			Kind:     "fire",
			Text:     "short",
			Phone:    "abc",
			Location: &sampleLocation{Lat: 91},
		})

		if assert.NotNil(t, appErr) {
			assert.Equal(t, ErrorCodeValidationFailed, appErr.Code)
			assert.Equal(t, "must be one of physical cyber", appErr.Fields["incidentType"])
			assert.Equal(t, "must be at least 20 characters", appErr.Fields["description"])
			assert.Equal(t, "must be a valid phone number", appErr.Fields["phone"])
			assert.Equal(t, "must be less than or equal to 90", appErr.Fields["location.lat"])
		}
	})
}
