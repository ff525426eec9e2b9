// Package validation validates plugin-defined job configuration against the
// plugin's generated config schema before a job is accepted.
package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/rstudio/rstudio-launcher-plugin-sdk/domain/entities"
)

// ConfigValidator validates job config maps against a compiled JSON schema.
type ConfigValidator struct {
	schema *jsonschema.Schema
}

// NewConfigValidator compiles the given schema document. The name is used as
// the schema's resource URL in validation errors.
func NewConfigValidator(name string, schemaJSON []byte) (*ConfigValidator, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource for %s: %w", name, err)
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("invalid schema for %s: %w", name, err)
	}
	return &ConfigValidator{schema: schema}, nil
}

// Validate checks the config document against the schema.
func (v *ConfigValidator) Validate(config map[string]any) *entities.ValidationResult {
	result := &entities.ValidationResult{Valid: true}

	// Round-trip through JSON so values are in the shapes the validator
	// expects (json.Number-free, plain maps and slices).
	b, err := json.Marshal(config)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, entities.ValidationError{
			Message: fmt.Sprintf("failed to prepare validation object: %v", err),
		})
		return result
	}
	var obj any
	if err := json.Unmarshal(b, &obj); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, entities.ValidationError{
			Message: fmt.Sprintf("failed to prepare validation object: %v", err),
		})
		return result
	}

	if err := v.schema.Validate(obj); err != nil {
		result.Valid = false
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			for _, cause := range ve.BasicOutput().Errors {
				if cause.Error == "" {
					continue
				}
				result.Errors = append(result.Errors, entities.ValidationError{
					Field:   cause.InstanceLocation,
					Message: cause.Error,
				})
			}
		}
		if len(result.Errors) == 0 {
			result.Errors = append(result.Errors, entities.ValidationError{Message: err.Error()})
		}
	}

	return result
}
