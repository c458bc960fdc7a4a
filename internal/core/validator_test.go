package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studiopulse/internal/types"
)

type sampleRequest struct {
	UserID      string `json:"user_id" validate:"required"`
	Content     string `json:"content" validate:"required"`
	MaxAttempts int    `json:"max_attempts" validate:"omitempty,min=1,max=10"`
}

func TestValidator_ValidStructPasses(t *testing.T) {
	v := NewValidator()
	err := v.ValidateStruct(sampleRequest{UserID: "u1", Content: "hello"})
	assert.NoError(t, err)
}

func TestValidator_ReportsJSONFieldNames(t *testing.T) {
	v := NewValidator()
	err := v.ValidateStruct(sampleRequest{Content: "hello"})
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeValidationField, appErr.Code)
	assert.Equal(t, "is required", appErr.Details["user_id"])
}

func TestValidator_RangeRules(t *testing.T) {
	v := NewValidator()
	err := v.ValidateStruct(sampleRequest{UserID: "u1", Content: "hello", MaxAttempts: 99})
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "must be at most 10", appErr.Details["max_attempts"])
}
