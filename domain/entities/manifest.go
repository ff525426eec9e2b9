package entities

import "encoding/json"

// Manifest describes a plugin to the SDK and to tooling: its identity, the
// protocol version it was built against, and the JSON schema of its custom
// job configuration.
type Manifest struct {
	Name            string          `json:"name"`
	Version         string          `json:"version"`
	Description     string          `json:"description,omitempty"`
	SDKVersion      string          `json:"sdk_version"`
	ProtocolVersion Version         `json:"protocol_version"`
	ConfigSchema    json.RawMessage `json:"config_schema,omitempty"`
}
