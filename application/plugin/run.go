package plugin

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rstudio/rstudio-launcher-plugin-sdk/application/api"
	"github.com/rstudio/rstudio-launcher-plugin-sdk/application/options"
	"github.com/rstudio/rstudio-launcher-plugin-sdk/comms"
	"github.com/rstudio/rstudio-launcher-plugin-sdk/domain/entities"
	"github.com/rstudio/rstudio-launcher-plugin-sdk/jobs"
	"github.com/rstudio/rstudio-launcher-plugin-sdk/log"
)

// pruneInterval is how often completed jobs are checked against the
// configured expiry.
const pruneInterval = time.Minute

// RunOption adjusts how Run wires the plugin to its environment. The defaults
// serve a real plugin process; tests override them.
type RunOption func(*runConfig)

type runConfig struct {
	in        io.Reader
	out       io.Writer
	logWriter io.Writer
	signals   bool
}

// WithIO connects the launcher protocol to the given streams instead of the
// process's stdin and stdout.
func WithIO(in io.Reader, out io.Writer) RunOption {
	return func(c *runConfig) {
		c.in = in
		c.out = out
	}
}

// WithLogWriter directs log output to the given writer instead of a file
// under the scratch path.
func WithLogWriter(w io.Writer) RunOption {
	return func(c *runConfig) {
		c.logWriter = w
	}
}

// WithoutSignals disables SIGINT/SIGTERM handling, leaving shutdown to the
// launcher closing the input stream.
func WithoutSignals() RunOption {
	return func(c *runConfig) {
		c.signals = false
	}
}

// Run executes the plugin's lifecycle and returns the process exit code.
// args is the full command line including the program name, passed through
// unmodified from the entry point.
func Run(m Main, args []string, runOpts ...RunOption) int {
	cfg := runConfig{
		in:      os.Stdin,
		out:     os.Stdout,
		signals: true,
	}
	for _, opt := range runOpts {
		opt(&cfg)
	}

	pluginName := m.PluginName()
	programID := pluginName + "-launcher"

	// Initialize runs before anything else, while stdout is still free for
	// the plugin's own output and before any option is read.
	if result := m.Initialize(); result.IsError() {
		os.Stderr.WriteString(programID + ": plugin initialization failed: " + resultError(result).Error() + "\n")
		return 1
	}

	var flagArgs []string
	if len(args) > 1 {
		flagArgs = args[1:]
	}
	opts, err := options.Load(pluginName, flagArgs)
	if err != nil {
		// No logger yet; this message goes to stderr raw.
		os.Stderr.WriteString(programID + ": " + err.Error() + "\n")
		return 1
	}

	if err := os.MkdirAll(opts.ScratchPath, 0o755); err != nil {
		os.Stderr.WriteString(programID + ": failed to create scratch path: " + err.Error() + "\n")
		return 1
	}

	logWriter := cfg.logWriter
	var logFile io.Closer
	if logWriter == nil {
		file, err := log.FileDestination(opts.ScratchPath, programID)
		if err != nil {
			logWriter = os.Stderr
		} else {
			logWriter = file
			logFile = file
		}
	}
	logger := log.NewLogger(
		log.WithLevel(opts.SlogLevel()),
		log.WithProgramID(programID),
		log.WithWriter(logWriter),
	)
	if logFile != nil {
		defer logFile.Close()
	}

	logger.Info("starting plugin", "plugin", pluginName, "configFile", opts.ConfigFile)

	repo := jobs.NewRepository()
	notifier := jobs.NewNotifier(repo)
	source, err := m.CreateJobSource(repo, notifier)
	if err != nil {
		logger.Error("failed to create job source", "error", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// A fatal stream error ends the plugin. EOF is the launcher's normal way
	// of stopping us and is not a failure.
	commErrs := make(chan error, 1)
	comm := comms.NewStdioCommunicator(cfg.in, cfg.out, opts.MaxMessageSize, func(err error) {
		select {
		case commErrs <- err:
		default:
		}
		cancel()
	})

	pluginAPI := api.New(comm, source, repo, notifier, logger)
	if err := comm.Start(ctx, pluginAPI.HandleRequest); err != nil {
		logger.Error("failed to start communicator", "error", err)
		return 1
	}

	pluginAPI.StartHeartbeats(ctx, time.Duration(opts.HeartbeatIntervalSeconds)*time.Second)

	pruner := jobs.NewPruner(repo, time.Duration(opts.JobExpiryHours)*time.Hour, logger)
	go pruner.Run(ctx, pruneInterval)

	if cfg.signals {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down", "signal", sig.String())
		case <-ctx.Done():
		}
	} else {
		<-ctx.Done()
	}

	cancel()
	comm.Stop()
	comm.WaitForExit()

	select {
	case err := <-commErrs:
		if errors.Is(err, io.EOF) {
			logger.Info("launcher closed the connection")
			return 0
		}
		logger.Error("communication with the launcher failed", "error", err)
		return 1
	default:
	}

	logger.Info("plugin stopped")
	return 0
}

// resultError extracts the error detail of a result, never returning nil.
func resultError(result entities.Result) *entities.ErrorDetail {
	if result.Error != nil {
		return result.Error
	}
	return entities.NewErrorDetail("internal", result.Message)
}
