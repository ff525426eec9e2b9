// Package options loads launcher plugin options from the command line and a
// YAML config file. Command line values win over file values, which win over
// defaults.
package options

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	domainerrors "github.com/rstudio/rstudio-launcher-plugin-sdk/domain/errors"
)

// validate is shared across Load calls; validator instances cache struct
// metadata and are intended to be reused.
var validate = validator.New()

// Options holds every setting common to all launcher plugins.
type Options struct {
	EnableDebugLogging       bool   `yaml:"enable-debug-logging"`
	JobExpiryHours           uint   `yaml:"job-expiry-hours" validate:"gt=0"`
	HeartbeatIntervalSeconds uint   `yaml:"heartbeat-interval-seconds"`
	LauncherConfigFile       string `yaml:"launcher-config-file"`
	LogLevel                 string `yaml:"log-level" validate:"oneof=DEBUG INFO WARN ERROR"`
	MaxMessageSize           int    `yaml:"max-message-size" validate:"gt=0"`
	PluginName               string `yaml:"plugin-name"`
	ScratchPath              string `yaml:"scratch-path" validate:"required"`
	ServerUser               string `yaml:"server-user" validate:"required"`
	ThreadPoolSize           int    `yaml:"thread-pool-size" validate:"gte=1"`
	Unprivileged             bool   `yaml:"unprivileged"`

	// ConfigFile is where the file-based values came from. Not itself a
	// file-configurable option.
	ConfigFile string `yaml:"-"`
}

// Defaults returns the default options for the named plugin.
func Defaults(pluginName string) Options {
	threads := runtime.NumCPU()
	if threads < 4 {
		threads = 4
	}
	return Options{
		JobExpiryHours:           24,
		HeartbeatIntervalSeconds: 5,
		LogLevel:                 "WARN",
		MaxMessageSize:           5242880,
		PluginName:               pluginName,
		ScratchPath:              "/var/lib/launcher",
		ServerUser:               "launcher-server",
		ThreadPoolSize:           threads,
		ConfigFile:               DefaultConfigFile(pluginName),
	}
}

// DefaultConfigFile returns the conventional config file location for the
// named plugin.
func DefaultConfigFile(pluginName string) string {
	return "/etc/launcher/" + pluginName + ".conf"
}

// Load parses options for the named plugin from the given command line
// arguments (excluding the program name). A missing config file at the
// default location is not an error; a missing file passed explicitly via
// --config-file is.
func Load(pluginName string, args []string) (*Options, error) {
	opts := Defaults(pluginName)

	fs := pflag.NewFlagSet(pluginName, pflag.ContinueOnError)
	fs.SortFlags = false

	configFile := fs.String("config-file", opts.ConfigFile, "path to the plugin configuration file")
	fs.Bool("enable-debug-logging", opts.EnableDebugLogging, "enable debug logging regardless of log-level")
	fs.Uint("job-expiry-hours", opts.JobExpiryHours, "hours before completed jobs are pruned")
	fs.Uint("heartbeat-interval-seconds", opts.HeartbeatIntervalSeconds, "interval between heartbeats, 0 to disable")
	fs.String("launcher-config-file", opts.LauncherConfigFile, "path to the launcher config file")
	fs.String("log-level", opts.LogLevel, "maximum level of log messages to write (DEBUG, INFO, WARN, ERROR)")
	fs.Int("max-message-size", opts.MaxMessageSize, "maximum allowable size of a protocol message")
	fs.String("plugin-name", opts.PluginName, "name of this plugin")
	fs.String("scratch-path", opts.ScratchPath, "directory for plugin state and log files")
	fs.String("server-user", opts.ServerUser, "user the plugin serves")
	fs.Int("thread-pool-size", opts.ThreadPoolSize, "number of request worker threads")
	fs.Bool("unprivileged", opts.Unprivileged, "run without root privileges")

	if err := fs.Parse(args); err != nil {
		return nil, &domainerrors.ConfigError{Err: err}
	}

	explicitConfig := fs.Changed("config-file")
	if err := opts.readConfigFile(*configFile, explicitConfig); err != nil {
		return nil, err
	}

	// Re-apply flags the caller actually set, so the command line wins over
	// the config file.
	var flagErr error
	fs.Visit(func(f *pflag.Flag) {
		if err := opts.applyFlag(fs, f.Name); err != nil && flagErr == nil {
			flagErr = err
		}
	})
	if flagErr != nil {
		return nil, &domainerrors.ConfigError{Err: flagErr}
	}

	if err := validate.Struct(&opts); err != nil {
		return nil, &domainerrors.ConfigError{Err: err}
	}

	return &opts, nil
}

func (o *Options) readConfigFile(path string, explicit bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return nil
		}
		return &domainerrors.ConfigError{Err: err, Field: "config-file"}
	}
	if err := yaml.Unmarshal(data, o); err != nil {
		return &domainerrors.ConfigError{Err: err, Field: "config-file"}
	}
	o.ConfigFile = path
	return nil
}

func (o *Options) applyFlag(fs *pflag.FlagSet, name string) error {
	var err error
	switch name {
	case "enable-debug-logging":
		o.EnableDebugLogging, err = fs.GetBool(name)
	case "job-expiry-hours":
		o.JobExpiryHours, err = fs.GetUint(name)
	case "heartbeat-interval-seconds":
		o.HeartbeatIntervalSeconds, err = fs.GetUint(name)
	case "launcher-config-file":
		o.LauncherConfigFile, err = fs.GetString(name)
	case "log-level":
		o.LogLevel, err = fs.GetString(name)
	case "max-message-size":
		o.MaxMessageSize, err = fs.GetInt(name)
	case "plugin-name":
		o.PluginName, err = fs.GetString(name)
	case "scratch-path":
		o.ScratchPath, err = fs.GetString(name)
	case "server-user":
		o.ServerUser, err = fs.GetString(name)
	case "thread-pool-size":
		o.ThreadPoolSize, err = fs.GetInt(name)
	case "unprivileged":
		o.Unprivileged, err = fs.GetBool(name)
	case "config-file":
		// Already consumed before the file was read.
	default:
		err = fmt.Errorf("unknown option %q", name)
	}
	return err
}

// SlogLevel maps the configured log level to a slog.Level.
// EnableDebugLogging forces DEBUG.
func (o *Options) SlogLevel() slog.Level {
	if o.EnableDebugLogging {
		return slog.LevelDebug
	}
	switch o.LogLevel {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
