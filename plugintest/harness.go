// Package plugintest runs a plugin in-process against an in-memory launcher
// connection, so integration tests can exercise the full request path without
// spawning a child process.
package plugintest

import (
	"encoding/binary"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rstudio/rstudio-launcher-plugin-sdk/application/plugin"
	"github.com/rstudio/rstudio-launcher-plugin-sdk/domain/entities"
	"github.com/rstudio/rstudio-launcher-plugin-sdk/wireformat"
)

// defaultTimeout bounds every wait in the harness so a broken plugin fails
// the test instead of hanging it.
const defaultTimeout = 5 * time.Second

// Response is the decoded envelope of any plugin-to-launcher message. Only
// the fields for the actual message type are populated.
type Response struct {
	MessageType wireformat.ResponseType `json:"messageType"`
	RequestID   uint64                  `json:"requestId"`

	ErrorCode    *wireformat.ErrorCode `json:"errorCode,omitempty"`
	ErrorMessage string                `json:"errorMessage,omitempty"`

	Version *entities.Version `json:"version,omitempty"`
	Jobs    []*entities.Job   `json:"jobs,omitempty"`

	JobID  string            `json:"id,omitempty"`
	Status entities.JobState `json:"status,omitempty"`

	StatusMessage     string `json:"statusMessage,omitempty"`
	OperationComplete bool   `json:"operationComplete"`

	Queues               []string                       `json:"queues,omitempty"`
	Config               []entities.JobConfig           `json:"config,omitempty"`
	ResourceLimits       []entities.ResourceLimit       `json:"resourceLimits,omitempty"`
	PlacementConstraints []entities.PlacementConstraint `json:"placementConstraints,omitempty"`
	SupportsContainers   bool                           `json:"supportsContainers"`
}

// Harness drives a running plugin over an in-memory launcher connection.
type Harness struct {
	t *testing.T

	toPlugin  io.WriteCloser
	responses chan Response

	exit   chan int
	nextID uint64
}

// Start runs the plugin's lifecycle in a goroutine, connected to in-memory
// pipes. extraArgs are appended to the plugin's command line; the harness
// always sets a temporary scratch path and disables heartbeats unless the
// extra arguments override them.
func Start(t *testing.T, m plugin.Main, extraArgs ...string) *Harness {
	t.Helper()

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()

	args := []string{
		m.PluginName(),
		"--scratch-path", t.TempDir(),
		"--heartbeat-interval-seconds", "0",
	}
	args = append(args, extraArgs...)

	h := &Harness{
		t:         t,
		toPlugin:  inW,
		responses: make(chan Response, 16),
		exit:      make(chan int, 1),
	}

	go func() {
		h.exit <- plugin.Run(m, args,
			plugin.WithIO(inR, outW),
			plugin.WithoutSignals(),
			plugin.WithLogWriter(io.Discard),
		)
		outW.Close()
	}()
	go h.readResponses(outR)

	return h
}

// readResponses pumps framed responses from the plugin into the response
// channel until the stream ends.
func (h *Harness) readResponses(r io.Reader) {
	defer close(h.responses)

	header := make([]byte, wireformat.HeaderSize)
	for {
		if _, err := io.ReadFull(r, header); err != nil {
			return
		}
		payload := make([]byte, binary.BigEndian.Uint32(header))
		if _, err := io.ReadFull(r, payload); err != nil {
			return
		}

		var resp Response
		if err := json.Unmarshal(payload, &resp); err != nil {
			h.t.Errorf("plugin sent undecodable response: %v", err)
			return
		}
		h.responses <- resp
	}
}

// Send writes a request to the plugin. The request ID is assigned by the
// harness and returned.
func (h *Harness) Send(req wireformat.Request) uint64 {
	h.t.Helper()

	h.nextID++
	req.RequestID = h.nextID

	payload, err := json.Marshal(&req)
	require.NoError(h.t, err)

	_, err = h.toPlugin.Write(wireformat.FrameMessage(payload))
	require.NoError(h.t, err)
	return req.RequestID
}

// Expect returns the next response of the given type, skipping
// plugin-initiated messages (heartbeats and job status updates) unless one of
// those is what is expected. Any other intervening response fails the test.
func (h *Harness) Expect(messageType wireformat.ResponseType) Response {
	h.t.Helper()

	deadline := time.After(defaultTimeout)
	for {
		select {
		case resp, ok := <-h.responses:
			if !ok {
				h.t.Fatalf("plugin closed the connection while waiting for response type %d", messageType)
			}
			pluginInitiated := resp.MessageType == wireformat.ResponseTypeHeartbeat ||
				resp.MessageType == wireformat.ResponseTypeJobStatus
			if pluginInitiated && resp.MessageType != messageType {
				continue
			}
			if resp.MessageType != messageType {
				h.t.Fatalf("expected response type %d, got %d (error message: %q)",
					messageType, resp.MessageType, resp.ErrorMessage)
			}
			return resp
		case <-deadline:
			h.t.Fatalf("timed out waiting for response type %d", messageType)
		}
	}
}

// Bootstrap performs the protocol handshake and asserts it succeeds.
func (h *Harness) Bootstrap() Response {
	h.t.Helper()

	version := entities.APIVersion()
	id := h.Send(wireformat.Request{
		MessageType: wireformat.RequestTypeBootstrap,
		Version:     &version,
	})
	resp := h.Expect(wireformat.ResponseTypeBootstrap)
	require.Equal(h.t, id, resp.RequestID)
	return resp
}

// Close ends the connection, waits for the plugin to stop, and returns its
// exit code.
func (h *Harness) Close() int {
	h.t.Helper()

	h.toPlugin.Close()
	select {
	case code := <-h.exit:
		return code
	case <-time.After(defaultTimeout):
		h.t.Fatal("timed out waiting for the plugin to stop")
		return -1
	}
}
