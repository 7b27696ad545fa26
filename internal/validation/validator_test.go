package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type registerRequest struct {
	Fingerprint string `json:"fingerprint" validate:"required,max=256"`
}

type pageRequest struct {
	Name     string   `json:"name" validate:"required"`
	Duration *int     `json:"transitionDuration,omitempty" validate:"min=1000,max=60000"`
	Effect   string   `json:"transitionEffect" validate:"oneof=fade slide zoom"`
	Opacity  *float64 `json:"overlayOpacity" validate:"min=0,max=1"`
	IDs      []string `json:"deviceIds" validate:"required"`
	Internal string
}

func intPtr(v int) *int { return &v }

func TestValidateRequired(t *testing.T) {
	v := NewValidator()

	err := v.Validate(&registerRequest{Fingerprint: "   "})
	var ferr *FieldError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, "fingerprint", ferr.Field)

	assert.NoError(t, v.Validate(registerRequest{Fingerprint: "abc"}))
}

func TestValidateRules(t *testing.T) {
	v := NewValidator()
	opacity := 1.5

	tests := []struct {
		name  string
		req   pageRequest
		field string
	}{
		{"missing name", pageRequest{IDs: []string{}}, "name"},
		{"nil device ids", pageRequest{Name: "a"}, "deviceIds"},
		{"duration below min", pageRequest{Name: "a", IDs: []string{}, Duration: intPtr(999)}, "transitionDuration"},
		{"duration above max", pageRequest{Name: "a", IDs: []string{}, Duration: intPtr(60001)}, "transitionDuration"},
		{"unknown effect", pageRequest{Name: "a", IDs: []string{}, Effect: "spin"}, "transitionEffect"},
		{"opacity above max", pageRequest{Name: "a", IDs: []string{}, Opacity: &opacity}, "overlayOpacity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(&tt.req)
			var ferr *FieldError
			require.ErrorAs(t, err, &ferr)
			assert.Equal(t, tt.field, ferr.Field)
		})
	}
}

func TestValidateAcceptsOptionalFields(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.Validate(&pageRequest{Name: "a", IDs: []string{}}))
	assert.NoError(t, v.Validate(&pageRequest{Name: "a", IDs: []string{}, Duration: intPtr(1000), Effect: "fade"}))
}

func TestValidateRejectsNonStruct(t *testing.T) {
	assert.Error(t, NewValidator().Validate("nope"))
}
