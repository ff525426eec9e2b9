// Package sdk is the top-level entry point for building launcher plugins.
// A plugin implements plugin.Main, is driven by the launcher over a framed
// JSON protocol on stdio, and sources jobs through application/api.JobSource.
package sdk

import "github.com/rstudio/rstudio-launcher-plugin-sdk/domain/entities"

// Config represents a plugin's custom configuration as decoded from a job's
// config values or a config file.
type Config map[string]any

// ErrorDetail is re-exported from entities for convenience.
type ErrorDetail = entities.ErrorDetail

const (
	// Version of the SDK.
	Version = "1.0.0"
)

// ProtocolVersion returns the launcher protocol version this SDK implements.
func ProtocolVersion() entities.Version {
	return entities.APIVersion()
}
