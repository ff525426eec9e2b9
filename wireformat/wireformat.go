// Package wireformat defines the JSON wire format for communication between
// the launcher and its plugins, and the byte framing used to carry it over
// stdio. These types must remain stable and backward compatible as they
// define the protocol contract.
package wireformat

import "github.com/rstudio/rstudio-launcher-plugin-sdk/domain/entities"

// RequestType identifies a request sent by the launcher to a plugin.
type RequestType int

const (
	RequestTypeHeartbeat          RequestType = 0
	RequestTypeBootstrap          RequestType = 1
	RequestTypeSubmitJob          RequestType = 2
	RequestTypeGetJob             RequestType = 3
	RequestTypeGetJobStatus       RequestType = 4
	RequestTypeControlJob         RequestType = 5
	RequestTypeGetJobOutput       RequestType = 6
	RequestTypeGetJobResourceUtil RequestType = 7
	RequestTypeGetJobNetwork      RequestType = 8
	RequestTypeGetClusterInfo     RequestType = 9
)

// ResponseType identifies a response sent by a plugin to the launcher.
type ResponseType int

const (
	ResponseTypeError           ResponseType = -1
	ResponseTypeHeartbeat       ResponseType = 0
	ResponseTypeBootstrap       ResponseType = 1
	ResponseTypeJobState        ResponseType = 2
	ResponseTypeJobStatus       ResponseType = 3
	ResponseTypeControlJob      ResponseType = 4
	ResponseTypeJobOutput       ResponseType = 5
	ResponseTypeJobResourceUtil ResponseType = 6
	ResponseTypeJobNetwork      ResponseType = 7
	ResponseTypeClusterInfo     ResponseType = 8
)

// ErrorCode categorizes an error response.
type ErrorCode int

const (
	ErrorCodeUnknown            ErrorCode = 0
	ErrorCodeNotSupported       ErrorCode = 1
	ErrorCodeInvalidRequest     ErrorCode = 2
	ErrorCodeJobNotFound        ErrorCode = 3
	ErrorCodePluginRestarted    ErrorCode = 4
	ErrorCodeTimeout            ErrorCode = 5
	ErrorCodeJobNotRunning      ErrorCode = 6
	ErrorCodeJobOutputNotFound  ErrorCode = 7
	ErrorCodeInvalidJobState    ErrorCode = 8
	ErrorCodeJobControlFailure  ErrorCode = 9
	ErrorCodeUnsupportedVersion ErrorCode = 10
)

// ControlOperation identifies the operation of a ControlJob request.
type ControlOperation int

const (
	ControlOperationSuspend ControlOperation = 0
	ControlOperationResume  ControlOperation = 1
	ControlOperationStop    ControlOperation = 2
	ControlOperationKill    ControlOperation = 3
	ControlOperationCancel  ControlOperation = 4
)

// Valid reports whether the operation is one the protocol defines.
func (op ControlOperation) Valid() bool {
	return op >= ControlOperationSuspend && op <= ControlOperationCancel
}

// String returns the operation name for logging.
func (op ControlOperation) String() string {
	switch op {
	case ControlOperationSuspend:
		return "suspend"
	case ControlOperationResume:
		return "resume"
	case ControlOperationStop:
		return "stop"
	case ControlOperationKill:
		return "kill"
	case ControlOperationCancel:
		return "cancel"
	default:
		return "invalid"
	}
}

// Request is the envelope for every launcher-to-plugin message. All requests
// share the messageType and requestId fields; the remaining fields are
// populated per request type.
type Request struct {
	MessageType RequestType `json:"messageType"`
	RequestID   uint64      `json:"requestId"`

	// Username is the user the request applies to; "*" means all users.
	Username        string `json:"username,omitempty"`
	RequestUsername string `json:"requestUsername,omitempty"`

	// JobID targets a single job, or "*" for all visible jobs.
	JobID        string `json:"jobId,omitempty"`
	EncodedJobID string `json:"encodedJobId,omitempty"`

	// Version is the launcher's protocol version (Bootstrap only).
	Version *entities.Version `json:"version,omitempty"`

	// Job is the job to launch (SubmitJob only).
	Job *entities.Job `json:"job,omitempty"`

	// GetJob filters.
	Fields    []string `json:"fields,omitempty"`
	StartTime string   `json:"startTime,omitempty"`
	EndTime   string   `json:"endTime,omitempty"`
	Statuses  []string `json:"statuses,omitempty"`
	Tags      []string `json:"tags,omitempty"`

	// Operation is the job control verb (ControlJob only).
	Operation *ControlOperation `json:"operation,omitempty"`
}

// Response is implemented by every plugin-to-launcher message.
type Response interface {
	// ResponseType returns the wire message type of the response.
	ResponseType() ResponseType
}

// ErrorResponse reports a failed request back to the launcher.
type ErrorResponse struct {
	MessageType  ResponseType `json:"messageType"`
	RequestID    uint64       `json:"requestId"`
	ErrorCode    ErrorCode    `json:"errorCode"`
	ErrorMessage string       `json:"errorMessage"`
}

// NewErrorResponse creates an error response for the given request.
func NewErrorResponse(requestID uint64, code ErrorCode, message string) ErrorResponse {
	return ErrorResponse{
		MessageType:  ResponseTypeError,
		RequestID:    requestID,
		ErrorCode:    code,
		ErrorMessage: message,
	}
}

func (r ErrorResponse) ResponseType() ResponseType { return ResponseTypeError }

// HeartbeatResponse is sent periodically so the launcher knows the plugin is
// alive. Heartbeats are plugin-initiated and carry request ID 0.
type HeartbeatResponse struct {
	MessageType ResponseType `json:"messageType"`
	RequestID   uint64       `json:"requestId"`
}

// NewHeartbeatResponse creates a heartbeat response.
func NewHeartbeatResponse() HeartbeatResponse {
	return HeartbeatResponse{MessageType: ResponseTypeHeartbeat}
}

func (r HeartbeatResponse) ResponseType() ResponseType { return ResponseTypeHeartbeat }

// BootstrapResponse acknowledges a bootstrap request and reports the plugin's
// protocol version.
type BootstrapResponse struct {
	MessageType ResponseType     `json:"messageType"`
	RequestID   uint64           `json:"requestId"`
	Version     entities.Version `json:"version"`
}

// NewBootstrapResponse creates a bootstrap response for the given request.
func NewBootstrapResponse(requestID uint64) BootstrapResponse {
	return BootstrapResponse{
		MessageType: ResponseTypeBootstrap,
		RequestID:   requestID,
		Version:     entities.APIVersion(),
	}
}

func (r BootstrapResponse) ResponseType() ResponseType { return ResponseTypeBootstrap }

// JobStateResponse reports the state of one or more jobs.
type JobStateResponse struct {
	MessageType ResponseType    `json:"messageType"`
	RequestID   uint64          `json:"requestId"`
	Jobs        []*entities.Job `json:"jobs"`
}

// NewJobStateResponse creates a job state response for the given request.
func NewJobStateResponse(requestID uint64, jobs []*entities.Job) JobStateResponse {
	return JobStateResponse{
		MessageType: ResponseTypeJobState,
		RequestID:   requestID,
		Jobs:        jobs,
	}
}

func (r JobStateResponse) ResponseType() ResponseType { return ResponseTypeJobState }

// JobStatusResponse reports a single job's state transition. Status updates
// are plugin-initiated and carry request ID 0.
type JobStatusResponse struct {
	MessageType   ResponseType      `json:"messageType"`
	RequestID     uint64            `json:"requestId"`
	JobID         string            `json:"id"`
	Name          string            `json:"name,omitempty"`
	Status        entities.JobState `json:"status"`
	StatusMessage string            `json:"statusMessage,omitempty"`
}

// NewJobStatusResponse creates a status update for the job's current state.
func NewJobStatusResponse(job *entities.Job) JobStatusResponse {
	return JobStatusResponse{
		MessageType:   ResponseTypeJobStatus,
		JobID:         job.ID,
		Name:          job.Name,
		Status:        job.Status,
		StatusMessage: job.StatusMessage,
	}
}

func (r JobStatusResponse) ResponseType() ResponseType { return ResponseTypeJobStatus }

// ControlJobResponse reports the outcome of a job control operation.
type ControlJobResponse struct {
	MessageType       ResponseType `json:"messageType"`
	RequestID         uint64       `json:"requestId"`
	StatusMessage     string       `json:"statusMessage,omitempty"`
	OperationComplete bool         `json:"operationComplete"`
}

// NewControlJobResponse creates a control job response for the given request.
func NewControlJobResponse(requestID uint64, statusMessage string, complete bool) ControlJobResponse {
	return ControlJobResponse{
		MessageType:       ResponseTypeControlJob,
		RequestID:         requestID,
		StatusMessage:     statusMessage,
		OperationComplete: complete,
	}
}

func (r ControlJobResponse) ResponseType() ResponseType { return ResponseTypeControlJob }

// ClusterInfoResponse reports the capabilities of the cluster behind the
// plugin: queues, custom configuration, limits and container support.
type ClusterInfoResponse struct {
	MessageType          ResponseType                   `json:"messageType"`
	RequestID            uint64                         `json:"requestId"`
	Queues               []string                       `json:"queues,omitempty"`
	Config               []entities.JobConfig           `json:"config,omitempty"`
	ResourceLimits       []entities.ResourceLimit       `json:"resourceLimits,omitempty"`
	PlacementConstraints []entities.PlacementConstraint `json:"placementConstraints,omitempty"`
	SupportsContainers   bool                           `json:"supportsContainers"`
	AllowUnknownImages   bool                           `json:"allowUnknownImages,omitempty"`
	Images               []string                       `json:"images,omitempty"`
	DefaultImage         string                         `json:"defaultImage,omitempty"`
}

// NewClusterInfoResponse creates a cluster info response for the given request.
func NewClusterInfoResponse(requestID uint64) ClusterInfoResponse {
	return ClusterInfoResponse{
		MessageType: ResponseTypeClusterInfo,
		RequestID:   requestID,
	}
}

func (r ClusterInfoResponse) ResponseType() ResponseType { return ResponseTypeClusterInfo }
