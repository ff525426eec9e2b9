package entities

import (
	"fmt"
	"strings"
	"time"
)

// JobState represents the lifecycle state of a job, as it appears on the
// wire. The string values are fixed by the launcher protocol.
type JobState string

const (
	// JobStateCanceled indicates the job was canceled by the user.
	JobStateCanceled JobState = "Canceled"

	// JobStateFailed indicates the job failed to launch.
	JobStateFailed JobState = "Failed"

	// JobStateFinished indicates the job finished running, successfully or not.
	JobStateFinished JobState = "Finished"

	// JobStateKilled indicates the job was killed.
	JobStateKilled JobState = "Killed"

	// JobStatePending indicates the job has been submitted but is not running yet.
	JobStatePending JobState = "Pending"

	// JobStateRunning indicates the job is currently running.
	JobStateRunning JobState = "Running"

	// JobStateSuspended indicates the job has been suspended.
	JobStateSuspended JobState = "Suspended"

	// JobStateUnknown indicates the state of the job is not known.
	JobStateUnknown JobState = ""
)

// JobStateFromString parses a job state from its wire representation.
// Surrounding whitespace is ignored.
func JobStateFromString(s string) (JobState, error) {
	switch state := JobState(strings.TrimSpace(s)); state {
	case JobStateCanceled, JobStateFailed, JobStateFinished, JobStateKilled,
		JobStatePending, JobStateRunning, JobStateSuspended:
		return state, nil
	default:
		return JobStateUnknown, fmt.Errorf("invalid job state %q", s)
	}
}

// IsComplete returns true if the state is terminal: the job has stopped
// running and will not resume.
func (s JobState) IsComplete() bool {
	switch s {
	case JobStateCanceled, JobStateFailed, JobStateFinished, JobStateKilled:
		return true
	default:
		return false
	}
}

// EnvironmentVariable is a single name/value pair in a job's environment.
// Order is preserved, so the environment is a list rather than a map.
type EnvironmentVariable struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ExposedPort describes a network port exposed by a job.
type ExposedPort struct {
	TargetPort    int    `json:"targetPort"`
	PublishedPort *int   `json:"publishedPort,omitempty"`
	Protocol      string `json:"protocol,omitempty"`
}

// ResourceLimit describes a resource limit type supported by a plugin, or a
// limit value requested for a job.
type ResourceLimit struct {
	Type    string `json:"type"`
	Value   string `json:"value,omitempty"`
	Default string `json:"defaultValue,omitempty"`
	Max     string `json:"maxValue,omitempty"`
}

// Resource limit types understood by the launcher.
const (
	ResourceLimitCPUCount   = "cpuCount"
	ResourceLimitCPUTime    = "cpuTime"
	ResourceLimitMemory     = "memory"
	ResourceLimitMemorySwap = "memorySwap"
)

// PlacementConstraint restricts where a job may be scheduled.
type PlacementConstraint struct {
	Name  string `json:"name"`
	Value string `json:"value,omitempty"`
}

// JobConfig is a custom, plugin-defined job configuration value.
type JobConfig struct {
	Name      string `json:"name"`
	Value     string `json:"value,omitempty"`
	ValueType string `json:"valueType,omitempty"`
}

// ContainerConfiguration describes a plugin's container support.
type ContainerConfiguration struct {
	SupportsContainers bool     `json:"supportsContainers"`
	AllowUnknownImages bool     `json:"allowUnknownImages,omitempty"`
	Images             []string `json:"images,omitempty"`
	DefaultImage       string   `json:"defaultImage,omitempty"`
}

// Job is the launcher's representation of a unit of work. Field names match
// the wire contract and must not change.
type Job struct {
	ID                   string                `json:"id,omitempty"`
	Name                 string                `json:"name"`
	User                 string                `json:"user,omitempty"`
	Command              string                `json:"command,omitempty"`
	Exe                  string                `json:"exe,omitempty"`
	Args                 []string              `json:"args,omitempty"`
	Environment          []EnvironmentVariable `json:"environment,omitempty"`
	WorkingDirectory     string                `json:"workingDirectory,omitempty"`
	StdoutFile           string                `json:"stdoutFile,omitempty"`
	StderrFile           string                `json:"stderrFile,omitempty"`
	Queues               []string              `json:"queues,omitempty"`
	Tags                 []string              `json:"tags,omitempty"`
	Config               []JobConfig           `json:"config,omitempty"`
	ExposedPorts         []ExposedPort         `json:"exposedPorts,omitempty"`
	ResourceLimits       []ResourceLimit       `json:"resourceLimits,omitempty"`
	PlacementConstraints []PlacementConstraint `json:"placementConstraints,omitempty"`
	Host                 string                `json:"host,omitempty"`
	Pid                  *int                  `json:"pid,omitempty"`
	ExitCode             *int                  `json:"exitCode,omitempty"`
	Status               JobState              `json:"status,omitempty"`
	StatusMessage        string                `json:"statusMessage,omitempty"`
	SubmissionTime       time.Time             `json:"submissionTime,omitzero"`
	LastUpdateTime       *time.Time            `json:"lastUpdateTime,omitempty"`
}

// MatchesTags returns true if the job carries every one of the given tags.
func (j *Job) MatchesTags(tags []string) bool {
	for _, want := range tags {
		found := false
		for _, have := range j.Tags {
			if have == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// GetEnv returns the value of the named environment variable, or "" if it is
// not set. The last occurrence wins, matching launcher behavior.
func (j *Job) GetEnv(name string) string {
	value := ""
	for _, ev := range j.Environment {
		if ev.Name == name {
			value = ev.Value
		}
	}
	return value
}
