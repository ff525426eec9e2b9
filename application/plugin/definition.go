package plugin

import (
	"encoding/json"

	sdk "github.com/rstudio/rstudio-launcher-plugin-sdk"
	"github.com/rstudio/rstudio-launcher-plugin-sdk/application/schema"
	"github.com/rstudio/rstudio-launcher-plugin-sdk/domain/entities"
)

// Def declares a plugin's identity and configuration.
type Def struct {
	Name        string
	Version     string
	Description string

	// Config is a struct value used to generate the plugin's configuration
	// schema. May be nil for plugins with no configuration.
	Config any
}

// Definition holds a parsed plugin definition and its generated config
// schema.
type Definition struct {
	def          Def
	configSchema json.RawMessage
}

// Define creates a plugin definition, generating the JSON schema for its
// configuration struct. Call this once at package level in your plugin; it
// panics if the schema cannot be generated, which is a programming error.
func Define(def Def) *Definition {
	configSchema := json.RawMessage("{}")
	if def.Config != nil {
		generated, err := schema.GenerateSchema(def.Config)
		if err != nil {
			panic("failed to generate config schema: " + err.Error())
		}
		configSchema = generated
	}

	return &Definition{
		def:          def,
		configSchema: configSchema,
	}
}

// ConfigSchema returns the generated JSON schema for the plugin's
// configuration.
func (d *Definition) ConfigSchema() json.RawMessage {
	return d.configSchema
}

// Manifest returns the plugin manifest.
func (d *Definition) Manifest() *entities.Manifest {
	return &entities.Manifest{
		Name:            d.def.Name,
		Version:         d.def.Version,
		Description:     d.def.Description,
		SDKVersion:      sdk.Version,
		ProtocolVersion: entities.APIVersion(),
		ConfigSchema:    d.configSchema,
	}
}
