// Command smoke-test drives a launcher plugin binary the way the launcher
// would: it spawns the plugin, bootstraps it over its stdin/stdout, submits a
// job, and prints every decoded response. Exit status is non-zero if any
// exchange fails.
package main

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/user"
	"time"

	"github.com/spf13/pflag"

	"github.com/rstudio/rstudio-launcher-plugin-sdk/domain/entities"
	"github.com/rstudio/rstudio-launcher-plugin-sdk/wireformat"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := pflag.NewFlagSet("smoke-test", pflag.ContinueOnError)
	username := fs.String("user", "", "user to send requests as (defaults to the current user)")
	timeout := fs.Duration("timeout", 10*time.Second, "how long to wait for each response")
	scratchPath := fs.String("scratch-path", "", "scratch path to pass to the plugin")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: smoke-test [flags] <plugin-binary>")
		return 1
	}

	if *username == "" {
		current, err := user.Current()
		if err != nil {
			fmt.Fprintln(os.Stderr, "cannot determine current user:", err)
			return 1
		}
		*username = current.Username
	}

	pluginArgs := []string{"--heartbeat-interval-seconds", "0"}
	if *scratchPath != "" {
		pluginArgs = append(pluginArgs, "--scratch-path", *scratchPath)
	}

	cmd := exec.Command(fs.Arg(0), pluginArgs...)
	cmd.Stderr = os.Stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to open plugin stdin:", err)
		return 1
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to open plugin stdout:", err)
		return 1
	}
	if err := cmd.Start(); err != nil {
		fmt.Fprintln(os.Stderr, "failed to start plugin:", err)
		return 1
	}

	d := newDriver(stdin, stdout, *username, *timeout)
	failed := d.runSequence()

	stdin.Close()
	if err := cmd.Wait(); err != nil {
		fmt.Fprintln(os.Stderr, "plugin exited with error:", err)
		failed = true
	}
	if failed {
		return 1
	}
	return 0
}

type driver struct {
	in        io.Writer
	responses <-chan []byte
	readErrs  <-chan error
	username  string
	timeout   time.Duration
	nextID    uint64
}

// newDriver starts a goroutine that reads framed messages off the plugin's
// stdout, so waiting for a response can time out even while a read is in
// flight.
func newDriver(in io.Writer, out io.Reader, username string, timeout time.Duration) *driver {
	responses := make(chan []byte, 16)
	readErrs := make(chan error, 1)
	go readResponses(out, responses, readErrs)

	return &driver{
		in:        in,
		responses: responses,
		readErrs:  readErrs,
		username:  username,
		timeout:   timeout,
	}
}

func readResponses(r io.Reader, responses chan<- []byte, readErrs chan<- error) {
	for {
		header := make([]byte, wireformat.HeaderSize)
		if _, err := io.ReadFull(r, header); err != nil {
			readErrs <- fmt.Errorf("reading response header: %w", err)
			return
		}
		payload := make([]byte, binary.BigEndian.Uint32(header))
		if _, err := io.ReadFull(r, payload); err != nil {
			readErrs <- fmt.Errorf("reading response payload: %w", err)
			return
		}
		responses <- payload
	}
}

// runSequence exercises the request types every plugin must support.
func (d *driver) runSequence() (failed bool) {
	version := entities.APIVersion()
	steps := []struct {
		name string
		req  wireformat.Request
	}{
		{"bootstrap", wireformat.Request{
			MessageType: wireformat.RequestTypeBootstrap,
			Version:     &version,
		}},
		{"cluster info", wireformat.Request{
			MessageType: wireformat.RequestTypeGetClusterInfo,
			Username:    d.username,
		}},
		{"submit job", wireformat.Request{
			MessageType: wireformat.RequestTypeSubmitJob,
			Username:    d.username,
			Job: &entities.Job{
				Name:    "smoke-test-job",
				Command: "echo",
				Args:    []string{"hello, world"},
			},
		}},
		{"get all jobs", wireformat.Request{
			MessageType: wireformat.RequestTypeGetJob,
			Username:    d.username,
			JobID:       "*",
		}},
	}

	for _, step := range steps {
		fmt.Printf("=== %s\n", step.name)
		if err := d.exchange(step.req); err != nil {
			fmt.Fprintf(os.Stderr, "%s failed: %v\n", step.name, err)
			failed = true
		}
	}
	return failed
}

// exchange sends one request and prints the matching response.
func (d *driver) exchange(req wireformat.Request) error {
	d.nextID++
	req.RequestID = d.nextID

	payload, err := json.Marshal(&req)
	if err != nil {
		return err
	}
	if _, err := d.in.Write(wireformat.FrameMessage(payload)); err != nil {
		return err
	}

	deadline := time.NewTimer(d.timeout)
	defer deadline.Stop()

	for {
		var resp []byte
		select {
		case resp = <-d.responses:
		case err := <-d.readErrs:
			return err
		case <-deadline.C:
			return fmt.Errorf("timed out waiting for a response to request %d", req.RequestID)
		}

		var envelope struct {
			MessageType  wireformat.ResponseType `json:"messageType"`
			RequestID    uint64                  `json:"requestId"`
			ErrorCode    *wireformat.ErrorCode   `json:"errorCode"`
			ErrorMessage string                  `json:"errorMessage"`
		}
		if err := json.Unmarshal(resp, &envelope); err != nil {
			return fmt.Errorf("undecodable response: %w", err)
		}

		// Plugin-initiated messages (heartbeats, status updates) and
		// responses to earlier requests may interleave.
		if envelope.RequestID != req.RequestID {
			continue
		}

		pretty, err := json.MarshalIndent(json.RawMessage(resp), "", "  ")
		if err != nil {
			pretty = resp
		}
		fmt.Println(string(pretty))

		if envelope.MessageType == wireformat.ResponseTypeError {
			return fmt.Errorf("plugin returned error %d: %s", *envelope.ErrorCode, envelope.ErrorMessage)
		}
		return nil
	}
}
