package comms

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	domainerrors "github.com/rstudio/rstudio-launcher-plugin-sdk/domain/errors"
	"github.com/rstudio/rstudio-launcher-plugin-sdk/wireformat"
)

const readBufferSize = 4096

// StdioCommunicator implements LauncherCommunicator over a byte stream pair,
// normally the process's stdin and stdout.
type StdioCommunicator struct {
	in      io.Reader
	out     io.Writer
	decoder *wireformat.Decoder
	onError ErrorHandler

	writeMu sync.Mutex
	wg      sync.WaitGroup

	stopOnce sync.Once
	stopped  chan struct{}
}

// NewStdioCommunicator creates a communicator over the given streams.
// The onError handler may be nil; errors are then discarded.
func NewStdioCommunicator(in io.Reader, out io.Writer, maxMessageSize int, onError ErrorHandler) *StdioCommunicator {
	if onError == nil {
		onError = func(error) {}
	}
	return &StdioCommunicator{
		in:      in,
		out:     out,
		decoder: wireformat.NewDecoder(maxMessageSize),
		onError: onError,
		stopped: make(chan struct{}),
	}
}

// Start begins the reader goroutine.
func (c *StdioCommunicator) Start(ctx context.Context, handler RequestHandler) error {
	if handler == nil {
		return errors.New("comms: request handler must not be nil")
	}

	c.wg.Add(1)
	go c.readLoop(ctx, handler)
	return nil
}

func (c *StdioCommunicator) readLoop(ctx context.Context, handler RequestHandler) {
	defer c.wg.Done()

	buf := make([]byte, readBufferSize)
	for {
		n, err := c.in.Read(buf)
		if n > 0 {
			payloads, decErr := c.decoder.Write(buf[:n])
			for _, payload := range payloads {
				c.dispatch(payload, handler)
			}
			if decErr != nil {
				c.fail(ctx, decErr)
				return
			}
		}

		if err != nil {
			// EOF means the launcher went away; the plugin has nothing left
			// to serve either way.
			c.fail(ctx, err)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-c.stopped:
			return
		default:
		}
	}
}

func (c *StdioCommunicator) dispatch(payload []byte, handler RequestHandler) {
	var req wireformat.Request
	if err := json.Unmarshal(payload, &req); err != nil {
		c.onError(&domainerrors.WireFormatError{Err: err, Operation: "decode", Type: "request"})
		return
	}
	handler(&req)
}

// fail reports a fatal stream error unless the communicator is already
// shutting down.
func (c *StdioCommunicator) fail(ctx context.Context, err error) {
	select {
	case <-ctx.Done():
		return
	case <-c.stopped:
		return
	default:
	}
	c.onError(err)
}

// SendResponse frames and writes a single response. Writes are serialized so
// frames from concurrent senders never interleave.
func (c *StdioCommunicator) SendResponse(resp wireformat.Response) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return &domainerrors.WireFormatError{Err: err, Operation: "encode", Type: "response"}
	}

	framed := wireformat.FrameMessage(payload)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.out.Write(framed); err != nil {
		return &domainerrors.WireFormatError{Err: err, Operation: "write", Type: "response"}
	}
	return nil
}

// Stop ends the read loop. If the input stream is closable it is closed to
// unblock a pending Read.
func (c *StdioCommunicator) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopped)
		if closer, ok := c.in.(io.Closer); ok {
			_ = closer.Close()
		}
	})
}

// WaitForExit blocks until the reader goroutine has returned.
func (c *StdioCommunicator) WaitForExit() {
	c.wg.Wait()
}
