package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type samplePayload struct {
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phone" validate:"omitempty,phone_e164"`
	Email string `json:"email" validate:"omitempty,email"`
}

func TestValidate_ReportsJSONFieldNames(t *testing.T) {
	err := Validate(samplePayload{Phone: "+18505551234"})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "field 'name' failed validation: is required")
}

func TestValidate_PhoneE164Tag(t *testing.T) {
	assert.NoError(t, Validate(samplePayload{Name: "Jane", Phone: "+18505551234"}))
	assert.NoError(t, Validate(samplePayload{Name: "Jane"}))

	err := Validate(samplePayload{Name: "Jane", Phone: "850-555-1234"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "must be an E.164 phone number")
}

func TestValidateVar(t *testing.T) {
	assert.NoError(t, ValidateVar("+448505551234", "phone_e164"))
	assert.Error(t, ValidateVar("not a number", "phone_e164"))
}
