// Package schema generates the JSON schema a plugin publishes for its custom
// job configuration.
package schema

import (
	"encoding/json"

	"github.com/invopop/jsonschema"

	"github.com/rstudio/rstudio-launcher-plugin-sdk/domain/errors"
)

// GenerateSchema reflects a JSON Schema (Draft 2020-12) from a plugin's
// config struct. The schema is inlined rather than split into $defs, so a
// plugin manifest can embed it as a single document. Job config values are
// optional unless a field is tagged required, since the launcher only sends
// the values a session sets.
func GenerateSchema(v any) ([]byte, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct:             true,
		RequiredFromJSONSchemaTags: true,
	}
	schema := reflector.Reflect(v)

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, &errors.ConfigError{Err: err, Field: "config-schema"}
	}
	return data, nil
}
