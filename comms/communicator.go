// Package comms carries the launcher protocol between the plugin process and
// the launcher. The launcher owns the plugin's stdin/stdout; requests arrive
// framed on stdin and responses leave framed on stdout.
package comms

import (
	"context"

	"github.com/rstudio/rstudio-launcher-plugin-sdk/wireformat"
)

// RequestHandler is invoked for each request decoded from the launcher.
// Handlers run on the communicator's reader goroutine; anything slow should
// be dispatched elsewhere by the handler.
type RequestHandler func(req *wireformat.Request)

// ErrorHandler is invoked when communication with the launcher fails in a
// way the communicator cannot recover from (malformed framing, oversized
// messages, broken pipe). The plugin is expected to shut down.
type ErrorHandler func(err error)

// LauncherCommunicator sends responses to and receives requests from the
// launcher.
type LauncherCommunicator interface {
	// Start begins reading requests. It returns immediately; requests are
	// delivered to the handler until the context is canceled, the stream
	// ends, or a protocol error occurs.
	Start(ctx context.Context, handler RequestHandler) error

	// SendResponse frames and writes a response. Safe for concurrent use.
	SendResponse(resp wireformat.Response) error

	// Stop stops reading and releases the input stream if it can be closed.
	Stop()

	// WaitForExit blocks until the reader has finished.
	WaitForExit()
}
