// Package entities provides the core domain entities for the SDK: jobs,
// protocol versions, results and structured errors. These are general-purpose
// types used across all SDK operations; plugin-specific configuration types
// belong in the plugins themselves.
package entities
