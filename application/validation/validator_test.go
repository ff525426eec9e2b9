package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rstudio/rstudio-launcher-plugin-sdk/application/schema"
)

type jobConfig struct {
	Queue    string `json:"queue,omitempty"`
	Priority int    `json:"priority,omitempty" jsonschema:"minimum=0,maximum=99"`
}

func newValidator(t *testing.T) *ConfigValidator {
	t.Helper()
	schemaJSON, err := schema.GenerateSchema(&jobConfig{})
	require.NoError(t, err)

	v, err := NewConfigValidator("job-config.json", schemaJSON)
	require.NoError(t, err)
	return v
}

func TestConfigValidator_Valid(t *testing.T) {
	v := newValidator(t)

	result := v.Validate(map[string]any{"queue": "default", "priority": 10})
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
}

func TestConfigValidator_InvalidType(t *testing.T) {
	v := newValidator(t)

	result := v.Validate(map[string]any{"queue": 12})
	require.False(t, result.Valid)
	require.NotEmpty(t, result.Errors)

	found := false
	for _, e := range result.Errors {
		if strings.Contains(e.Field, "queue") {
			found = true
		}
	}
	assert.True(t, found, "expected an error for the queue field, got %v", result.Errors)
}

func TestConfigValidator_OutOfRange(t *testing.T) {
	v := newValidator(t)

	result := v.Validate(map[string]any{"priority": 200})
	assert.False(t, result.Valid)
	assert.NotEmpty(t, result.Errors)
}

func TestNewConfigValidator_BadSchema(t *testing.T) {
	_, err := NewConfigValidator("bad.json", []byte("{"))
	assert.Error(t, err)
}
