// Package api implements the plugin side of the launcher protocol: it
// decodes requests, applies the protocol's validation rules, and delegates
// cluster-specific work to the plugin's JobSource.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rstudio/rstudio-launcher-plugin-sdk/comms"
	"github.com/rstudio/rstudio-launcher-plugin-sdk/domain/entities"
	"github.com/rstudio/rstudio-launcher-plugin-sdk/jobs"
	"github.com/rstudio/rstudio-launcher-plugin-sdk/wireformat"
)

// ClusterConfiguration describes the capabilities a plugin advertises in
// response to a cluster info request.
type ClusterConfiguration struct {
	Queues               []string
	Config               []entities.JobConfig
	ResourceLimits       []entities.ResourceLimit
	PlacementConstraints []entities.PlacementConstraint
	Containers           entities.ContainerConfiguration
}

// JobSource is the cluster-specific half of a plugin: everything the SDK
// cannot do generically. Implementations are driven from the communicator's
// reader goroutine and must be safe for that.
type JobSource interface {
	// Initialize prepares the job source. Called once, on bootstrap.
	Initialize() error

	// Configuration reports the cluster's capabilities for the given user.
	Configuration(username string) (ClusterConfiguration, error)

	// Submit launches the job, assigning its ID and initial status. A false
	// invalidRequest with a non-nil error indicates an internal failure; a
	// true invalidRequest blames the request itself.
	Submit(job *entities.Job) (invalidRequest bool, err error)

	// Control applies a control operation to the job. complete reports
	// whether the operation finished synchronously.
	Control(job *entities.Job, op wireformat.ControlOperation) (complete bool, statusMessage string, err error)
}

// PluginAPI dispatches launcher requests for a single plugin.
type PluginAPI struct {
	comm   comms.LauncherCommunicator
	source JobSource
	repo   *jobs.Repository
	log    *slog.Logger
}

// New creates a PluginAPI. It subscribes to the notifier so every status
// transition a plugin reports is forwarded to the launcher as a job status
// update.
func New(comm comms.LauncherCommunicator, source JobSource, repo *jobs.Repository, notifier *jobs.Notifier, logger *slog.Logger) *PluginAPI {
	if logger == nil {
		logger = slog.Default()
	}
	a := &PluginAPI{
		comm:   comm,
		source: source,
		repo:   repo,
		log:    logger,
	}
	if notifier != nil {
		notifier.Subscribe(func(job *entities.Job) {
			a.send(wireformat.NewJobStatusResponse(job))
		})
	}
	return a
}

// StartHeartbeats sends a heartbeat immediately and then at the given
// interval until the context is canceled. A non-positive interval disables
// heartbeats.
func (a *PluginAPI) StartHeartbeats(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		a.sendHeartbeat()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.sendHeartbeat()
			}
		}
	}()
}

func (a *PluginAPI) sendHeartbeat() {
	if err := a.comm.SendResponse(wireformat.NewHeartbeatResponse()); err != nil {
		a.log.Error("failed to send heartbeat", "error", err)
	}
}

// HandleRequest dispatches a single request from the launcher.
func (a *PluginAPI) HandleRequest(req *wireformat.Request) {
	switch req.MessageType {
	case wireformat.RequestTypeHeartbeat:
		// Nothing to do: if the launcher dies the plugin dies with it.
		a.log.Debug("received heartbeat from launcher")
	case wireformat.RequestTypeBootstrap:
		a.handleBootstrap(req)
	case wireformat.RequestTypeSubmitJob:
		a.handleSubmitJob(req)
	case wireformat.RequestTypeGetJob:
		a.handleGetJob(req)
	case wireformat.RequestTypeControlJob:
		a.handleControlJob(req)
	case wireformat.RequestTypeGetClusterInfo:
		a.handleGetClusterInfo(req)
	default:
		a.sendError(req.RequestID, wireformat.ErrorCodeNotSupported,
			fmt.Sprintf("request type %d is not supported by this plugin", req.MessageType))
	}
}

func (a *PluginAPI) handleBootstrap(req *wireformat.Request) {
	if req.Version == nil {
		a.sendError(req.RequestID, wireformat.ErrorCodeInvalidRequest, "bootstrap request is missing the launcher version")
		return
	}

	if req.Version.Major != entities.APIVersionMajor {
		a.sendError(req.RequestID, wireformat.ErrorCodeUnsupportedVersion,
			fmt.Sprintf("the plugin supports API version %d.X.X; the launcher's API version is %s",
				entities.APIVersionMajor, req.Version))
		return
	}

	if err := a.source.Initialize(); err != nil {
		a.sendError(req.RequestID, wireformat.ErrorCodeUnknown, err.Error())
		return
	}
	if err := a.repo.Initialize(); err != nil {
		a.sendError(req.RequestID, wireformat.ErrorCodeUnknown, err.Error())
		return
	}

	a.send(wireformat.NewBootstrapResponse(req.RequestID))
}

func (a *PluginAPI) handleSubmitJob(req *wireformat.Request) {
	if req.Job == nil {
		a.sendError(req.RequestID, wireformat.ErrorCodeInvalidRequest, "submit request is missing the job")
		return
	}

	job := req.Job
	if req.Username != jobs.AllUsers && job.User == "" {
		job.User = req.Username
	}
	if job.User == "" {
		a.sendError(req.RequestID, wireformat.ErrorCodeInvalidRequest, "User must not be empty.")
		return
	}

	if job.SubmissionTime.IsZero() {
		job.SubmissionTime = time.Now()
	}

	invalidRequest, err := a.source.Submit(job)
	if err != nil {
		code := wireformat.ErrorCodeUnknown
		if invalidRequest {
			code = wireformat.ErrorCodeInvalidRequest
		}
		a.sendError(req.RequestID, code, err.Error())
		return
	}

	if err := a.repo.AddJob(job); err != nil {
		a.sendError(req.RequestID, wireformat.ErrorCodeUnknown, err.Error())
		return
	}

	a.send(wireformat.NewJobStateResponse(req.RequestID, []*entities.Job{job}))
}

func (a *PluginAPI) handleGetJob(req *wireformat.Request) {
	filter, errMsg := parseJobFilter(req)
	if errMsg != "" {
		a.sendError(req.RequestID, wireformat.ErrorCodeInvalidRequest, errMsg)
		return
	}

	a.log.Debug("received get job request",
		"user", req.Username,
		"jobId", req.JobID,
		"statuses", strings.Join(req.Statuses, ", "))

	var matched []*entities.Job
	if req.JobID == "*" || req.JobID == "" {
		for _, job := range a.repo.GetJobs(req.Username) {
			if filter.matches(job) {
				matched = append(matched, job)
			}
		}
	} else {
		// A specific job ID ignores the other filters.
		job, err := a.repo.GetJob(req.JobID, req.Username)
		if err != nil {
			a.sendError(req.RequestID, wireformat.ErrorCodeJobNotFound, err.Error())
			return
		}
		matched = append(matched, job)
	}

	a.send(wireformat.NewJobStateResponse(req.RequestID, matched))
}

func (a *PluginAPI) handleControlJob(req *wireformat.Request) {
	if req.JobID == "*" {
		a.sendError(req.RequestID, wireformat.ErrorCodeInvalidRequest,
			"Cannot control all jobs simultaneously. Please specify a single Job ID.")
		return
	}
	if req.Operation == nil || !req.Operation.Valid() {
		op := -1
		if req.Operation != nil {
			op = int(*req.Operation)
		}
		a.sendError(req.RequestID, wireformat.ErrorCodeInvalidRequest,
			fmt.Sprintf("unknown control job operation (%d) for job %s", op, req.JobID))
		return
	}

	job, err := a.repo.GetJob(req.JobID, req.Username)
	if err != nil {
		a.sendError(req.RequestID, wireformat.ErrorCodeJobNotFound, err.Error())
		return
	}

	complete, statusMessage, err := a.source.Control(job, *req.Operation)
	if err != nil {
		a.sendError(req.RequestID, wireformat.ErrorCodeJobControlFailure, err.Error())
		return
	}

	a.send(wireformat.NewControlJobResponse(req.RequestID, statusMessage, complete))
}

func (a *PluginAPI) handleGetClusterInfo(req *wireformat.Request) {
	config, err := a.source.Configuration(req.Username)
	if err != nil {
		a.sendError(req.RequestID, wireformat.ErrorCodeUnknown, err.Error())
		return
	}

	resp := wireformat.NewClusterInfoResponse(req.RequestID)
	resp.Queues = config.Queues
	resp.Config = config.Config
	resp.ResourceLimits = config.ResourceLimits
	resp.PlacementConstraints = config.PlacementConstraints
	resp.SupportsContainers = config.Containers.SupportsContainers
	resp.AllowUnknownImages = config.Containers.AllowUnknownImages
	resp.Images = config.Containers.Images
	resp.DefaultImage = config.Containers.DefaultImage

	a.send(resp)
}

func (a *PluginAPI) send(resp wireformat.Response) {
	if err := a.comm.SendResponse(resp); err != nil {
		a.log.Error("failed to send response", "type", int(resp.ResponseType()), "error", err)
	}
}

func (a *PluginAPI) sendError(requestID uint64, code wireformat.ErrorCode, message string) {
	a.send(wireformat.NewErrorResponse(requestID, code, message))
}
