// Package plugin ties the SDK together into a runnable launcher plugin. A
// plugin implements Main and hands it to Run from its main function; Run owns
// the process lifecycle from option parsing to orderly shutdown.
package plugin

import (
	"github.com/rstudio/rstudio-launcher-plugin-sdk/application/api"
	"github.com/rstudio/rstudio-launcher-plugin-sdk/domain/entities"
	"github.com/rstudio/rstudio-launcher-plugin-sdk/jobs"
)

// Main is the entry point a plugin implements.
type Main interface {
	// PluginName returns the plugin's name, in lower camel case. It names
	// the plugin's config file and log files.
	PluginName() string

	// Initialize performs plugin-specific startup. It runs before the
	// launcher connection is established; a returned error result aborts
	// startup.
	Initialize() entities.Result

	// CreateJobSource creates the plugin's job source. The repository and
	// notifier are the SDK-managed job store and status fan-out for this
	// plugin instance.
	CreateJobSource(repo *jobs.Repository, notifier *jobs.Notifier) (api.JobSource, error)
}
