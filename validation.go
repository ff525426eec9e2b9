package sdk

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"

	"github.com/rstudio/rstudio-launcher-plugin-sdk/domain/errors"
)

// validate is shared across calls; the validator caches struct metadata.
var validate = validator.New()

// ValidateConfig decodes a Config map into the plugin's config struct and
// checks it against the struct's validate tags. Failures come back as a
// ConfigError, which the API reports to the launcher as an invalid request.
func ValidateConfig(config Config, targetStruct any) error {
	jsonBytes, err := json.Marshal(config)
	if err != nil {
		return &errors.ConfigError{Err: err}
	}

	if err := json.Unmarshal(jsonBytes, targetStruct); err != nil {
		return &errors.ConfigError{Err: err}
	}

	if err := validate.Struct(targetStruct); err != nil {
		return &errors.ConfigError{Err: err}
	}

	return nil
}
