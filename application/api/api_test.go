package api

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rstudio/rstudio-launcher-plugin-sdk/comms"
	"github.com/rstudio/rstudio-launcher-plugin-sdk/domain/entities"
	"github.com/rstudio/rstudio-launcher-plugin-sdk/internal/testutil"
	"github.com/rstudio/rstudio-launcher-plugin-sdk/jobs"
	"github.com/rstudio/rstudio-launcher-plugin-sdk/wireformat"
)

// fakeComm records every response sent through it.
type fakeComm struct {
	mu        sync.Mutex
	responses []wireformat.Response
}

func (c *fakeComm) Start(context.Context, comms.RequestHandler) error { return nil }

func (c *fakeComm) SendResponse(resp wireformat.Response) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses = append(c.responses, resp)
	return nil
}

func (c *fakeComm) Stop()        {}
func (c *fakeComm) WaitForExit() {}

func (c *fakeComm) last(t *testing.T) wireformat.Response {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.responses, "no response was sent")
	return c.responses[len(c.responses)-1]
}

func (c *fakeComm) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.responses)
}

// fakeSource is a scriptable JobSource.
type fakeSource struct {
	initErr     error
	config      ClusterConfiguration
	configErr   error
	submitBad   bool
	submitErr   error
	controlErr  error
	controlMsg  string
	initialized bool
}

func (s *fakeSource) Initialize() error {
	s.initialized = true
	return s.initErr
}

func (s *fakeSource) Configuration(string) (ClusterConfiguration, error) {
	return s.config, s.configErr
}

func (s *fakeSource) Submit(job *entities.Job) (bool, error) {
	if s.submitErr != nil {
		return s.submitBad, s.submitErr
	}
	job.ID = "assigned-1"
	job.Status = entities.JobStateRunning
	return false, nil
}

func (s *fakeSource) Control(*entities.Job, wireformat.ControlOperation) (bool, string, error) {
	if s.controlErr != nil {
		return false, "", s.controlErr
	}
	return true, s.controlMsg, nil
}

func newTestAPI(source *fakeSource) (*PluginAPI, *fakeComm, *jobs.Repository) {
	comm := &fakeComm{}
	repo := jobs.NewRepository()
	return New(comm, source, repo, jobs.NewNotifier(repo), nil), comm, repo
}

func errorResponse(t *testing.T, resp wireformat.Response) wireformat.ErrorResponse {
	t.Helper()
	errResp, ok := resp.(wireformat.ErrorResponse)
	require.True(t, ok, "expected an error response, got %T", resp)
	return errResp
}

func bootstrap(t *testing.T, a *PluginAPI) {
	t.Helper()
	version := entities.APIVersion()
	a.HandleRequest(&wireformat.Request{
		MessageType: wireformat.RequestTypeBootstrap,
		RequestID:   1,
		Version:     &version,
	})
}

func TestHandleBootstrap(t *testing.T) {
	source := &fakeSource{}
	a, comm, _ := newTestAPI(source)

	bootstrap(t, a)

	resp, ok := comm.last(t).(wireformat.BootstrapResponse)
	require.True(t, ok)
	assert.Equal(t, uint64(1), resp.RequestID)
	assert.Equal(t, 2, resp.Version.Major)
	assert.True(t, source.initialized)
}

func TestHandleBootstrap_VersionMismatch(t *testing.T) {
	source := &fakeSource{}
	a, comm, _ := newTestAPI(source)

	a.HandleRequest(&wireformat.Request{
		MessageType: wireformat.RequestTypeBootstrap,
		RequestID:   1,
		Version:     &entities.Version{Major: 1, Minor: 9, Patch: 2},
	})

	errResp := errorResponse(t, comm.last(t))
	assert.Equal(t, wireformat.ErrorCodeUnsupportedVersion, errResp.ErrorCode)
	assert.Contains(t, errResp.ErrorMessage, "1.9.2")
	assert.False(t, source.initialized)
}

func TestHandleBootstrap_MissingVersion(t *testing.T) {
	a, comm, _ := newTestAPI(&fakeSource{})

	a.HandleRequest(&wireformat.Request{MessageType: wireformat.RequestTypeBootstrap, RequestID: 1})

	errResp := errorResponse(t, comm.last(t))
	assert.Equal(t, wireformat.ErrorCodeInvalidRequest, errResp.ErrorCode)
}

func TestHandleBootstrap_SourceInitFails(t *testing.T) {
	a, comm, _ := newTestAPI(&fakeSource{initErr: errors.New("backend unavailable")})

	bootstrap(t, a)

	errResp := errorResponse(t, comm.last(t))
	assert.Equal(t, wireformat.ErrorCodeUnknown, errResp.ErrorCode)
	assert.Contains(t, errResp.ErrorMessage, "backend unavailable")
}

func TestHandleSubmitJob(t *testing.T) {
	a, comm, repo := newTestAPI(&fakeSource{})

	a.HandleRequest(&wireformat.Request{
		MessageType: wireformat.RequestTypeSubmitJob,
		RequestID:   2,
		Username:    "bob",
		Job:         &entities.Job{Name: "hello"},
	})

	resp, ok := comm.last(t).(wireformat.JobStateResponse)
	require.True(t, ok)
	require.Len(t, resp.Jobs, 1)
	assert.Equal(t, "assigned-1", resp.Jobs[0].ID)
	assert.Equal(t, "bob", resp.Jobs[0].User, "user defaults from the request")
	assert.False(t, resp.Jobs[0].SubmissionTime.IsZero())

	stored, err := repo.GetJob("assigned-1", "bob")
	require.NoError(t, err)
	assert.Equal(t, entities.JobStateRunning, stored.Status)
}

func TestHandleSubmitJob_EmptyUser(t *testing.T) {
	a, comm, _ := newTestAPI(&fakeSource{})

	a.HandleRequest(&wireformat.Request{
		MessageType: wireformat.RequestTypeSubmitJob,
		RequestID:   2,
		Username:    jobs.AllUsers,
		Job:         &entities.Job{Name: "hello"},
	})

	errResp := errorResponse(t, comm.last(t))
	assert.Equal(t, wireformat.ErrorCodeInvalidRequest, errResp.ErrorCode)
	assert.Equal(t, "User must not be empty.", errResp.ErrorMessage)
}

func TestHandleSubmitJob_MissingJob(t *testing.T) {
	a, comm, _ := newTestAPI(&fakeSource{})

	a.HandleRequest(&wireformat.Request{
		MessageType: wireformat.RequestTypeSubmitJob,
		RequestID:   2,
		Username:    "bob",
	})

	errResp := errorResponse(t, comm.last(t))
	assert.Equal(t, wireformat.ErrorCodeInvalidRequest, errResp.ErrorCode)
}

func TestHandleSubmitJob_SourceRejects(t *testing.T) {
	t.Run("InvalidRequest", func(t *testing.T) {
		a, comm, _ := newTestAPI(&fakeSource{submitBad: true, submitErr: errors.New("bad config")})

		a.HandleRequest(&wireformat.Request{
			MessageType: wireformat.RequestTypeSubmitJob,
			RequestID:   2,
			Username:    "bob",
			Job:         &entities.Job{Name: "hello"},
		})

		errResp := errorResponse(t, comm.last(t))
		assert.Equal(t, wireformat.ErrorCodeInvalidRequest, errResp.ErrorCode)
	})

	t.Run("InternalFailure", func(t *testing.T) {
		a, comm, _ := newTestAPI(&fakeSource{submitErr: errors.New("cluster down")})

		a.HandleRequest(&wireformat.Request{
			MessageType: wireformat.RequestTypeSubmitJob,
			RequestID:   2,
			Username:    "bob",
			Job:         &entities.Job{Name: "hello"},
		})

		errResp := errorResponse(t, comm.last(t))
		assert.Equal(t, wireformat.ErrorCodeUnknown, errResp.ErrorCode)
	})
}

func TestHandleGetJob_SingleJob(t *testing.T) {
	a, comm, repo := newTestAPI(&fakeSource{})
	require.NoError(t, repo.AddJob(testutil.NewJob("7", "bob", entities.JobStateRunning)))

	a.HandleRequest(&wireformat.Request{
		MessageType: wireformat.RequestTypeGetJob,
		RequestID:   3,
		Username:    "bob",
		JobID:       "7",
	})

	resp, ok := comm.last(t).(wireformat.JobStateResponse)
	require.True(t, ok)
	require.Len(t, resp.Jobs, 1)
	assert.Equal(t, "7", resp.Jobs[0].ID)
}

func TestHandleGetJob_NotFound(t *testing.T) {
	a, comm, _ := newTestAPI(&fakeSource{})

	a.HandleRequest(&wireformat.Request{
		MessageType: wireformat.RequestTypeGetJob,
		RequestID:   3,
		Username:    "bob",
		JobID:       "missing",
	})

	errResp := errorResponse(t, comm.last(t))
	assert.Equal(t, wireformat.ErrorCodeJobNotFound, errResp.ErrorCode)
	assert.Contains(t, errResp.ErrorMessage, "missing")
}

func TestHandleGetJob_AllJobsFiltered(t *testing.T) {
	a, comm, repo := newTestAPI(&fakeSource{})

	running := testutil.NewJob("1", "bob", entities.JobStateRunning)
	finished := testutil.NewJob("2", "bob", entities.JobStateFinished)
	tagged := testutil.NewJob("3", "bob", entities.JobStateRunning)
	tagged.Tags = []string{"gpu"}
	for _, j := range []*entities.Job{running, finished, tagged} {
		require.NoError(t, repo.AddJob(j))
	}

	t.Run("ByStatus", func(t *testing.T) {
		a.HandleRequest(&wireformat.Request{
			MessageType: wireformat.RequestTypeGetJob,
			RequestID:   4,
			Username:    "bob",
			JobID:       "*",
			Statuses:    []string{"Running"},
		})

		resp, ok := comm.last(t).(wireformat.JobStateResponse)
		require.True(t, ok)
		assert.Len(t, resp.Jobs, 2)
	})

	t.Run("ByTag", func(t *testing.T) {
		a.HandleRequest(&wireformat.Request{
			MessageType: wireformat.RequestTypeGetJob,
			RequestID:   5,
			Username:    "bob",
			JobID:       "*",
			Tags:        []string{"gpu"},
		})

		resp, ok := comm.last(t).(wireformat.JobStateResponse)
		require.True(t, ok)
		require.Len(t, resp.Jobs, 1)
		assert.Equal(t, "3", resp.Jobs[0].ID)
	})

	t.Run("ByStartTime", func(t *testing.T) {
		a.HandleRequest(&wireformat.Request{
			MessageType: wireformat.RequestTypeGetJob,
			RequestID:   6,
			Username:    "bob",
			JobID:       "*",
			StartTime:   time.Now().Add(time.Hour).Format(time.RFC3339),
		})

		resp, ok := comm.last(t).(wireformat.JobStateResponse)
		require.True(t, ok)
		assert.Empty(t, resp.Jobs)
	})

	t.Run("InvalidStartTime", func(t *testing.T) {
		a.HandleRequest(&wireformat.Request{
			MessageType: wireformat.RequestTypeGetJob,
			RequestID:   7,
			Username:    "bob",
			JobID:       "*",
			StartTime:   "yesterday",
		})

		errResp := errorResponse(t, comm.last(t))
		assert.Equal(t, wireformat.ErrorCodeInvalidRequest, errResp.ErrorCode)
		assert.Contains(t, errResp.ErrorMessage, "Invalid start time")
	})

	t.Run("InvalidStatus", func(t *testing.T) {
		a.HandleRequest(&wireformat.Request{
			MessageType: wireformat.RequestTypeGetJob,
			RequestID:   8,
			Username:    "bob",
			JobID:       "*",
			Statuses:    []string{"Zombified"},
		})

		errResp := errorResponse(t, comm.last(t))
		assert.Equal(t, wireformat.ErrorCodeInvalidRequest, errResp.ErrorCode)
	})
}

func TestHandleControlJob(t *testing.T) {
	source := &fakeSource{controlMsg: "Job 7 is now Killed"}
	a, comm, repo := newTestAPI(source)
	require.NoError(t, repo.AddJob(testutil.NewJob("7", "bob", entities.JobStateRunning)))

	op := wireformat.ControlOperationKill
	a.HandleRequest(&wireformat.Request{
		MessageType: wireformat.RequestTypeControlJob,
		RequestID:   9,
		Username:    "bob",
		JobID:       "7",
		Operation:   &op,
	})

	resp, ok := comm.last(t).(wireformat.ControlJobResponse)
	require.True(t, ok)
	assert.True(t, resp.OperationComplete)
	assert.Equal(t, "Job 7 is now Killed", resp.StatusMessage)
}

func TestHandleControlJob_AllJobsRejected(t *testing.T) {
	a, comm, _ := newTestAPI(&fakeSource{})

	op := wireformat.ControlOperationStop
	a.HandleRequest(&wireformat.Request{
		MessageType: wireformat.RequestTypeControlJob,
		RequestID:   9,
		Username:    "bob",
		JobID:       "*",
		Operation:   &op,
	})

	errResp := errorResponse(t, comm.last(t))
	assert.Equal(t, wireformat.ErrorCodeInvalidRequest, errResp.ErrorCode)
	assert.Equal(t, "Cannot control all jobs simultaneously. Please specify a single Job ID.", errResp.ErrorMessage)
}

func TestHandleControlJob_InvalidOperation(t *testing.T) {
	a, comm, repo := newTestAPI(&fakeSource{})
	require.NoError(t, repo.AddJob(testutil.NewJob("7", "bob", entities.JobStateRunning)))

	op := wireformat.ControlOperation(42)
	a.HandleRequest(&wireformat.Request{
		MessageType: wireformat.RequestTypeControlJob,
		RequestID:   9,
		Username:    "bob",
		JobID:       "7",
		Operation:   &op,
	})

	errResp := errorResponse(t, comm.last(t))
	assert.Equal(t, wireformat.ErrorCodeInvalidRequest, errResp.ErrorCode)
}

func TestHandleControlJob_SourceFails(t *testing.T) {
	a, comm, repo := newTestAPI(&fakeSource{controlErr: errors.New("cannot signal job")})
	require.NoError(t, repo.AddJob(testutil.NewJob("7", "bob", entities.JobStateRunning)))

	op := wireformat.ControlOperationStop
	a.HandleRequest(&wireformat.Request{
		MessageType: wireformat.RequestTypeControlJob,
		RequestID:   9,
		Username:    "bob",
		JobID:       "7",
		Operation:   &op,
	})

	errResp := errorResponse(t, comm.last(t))
	assert.Equal(t, wireformat.ErrorCodeJobControlFailure, errResp.ErrorCode)
}

func TestHandleGetClusterInfo(t *testing.T) {
	a, comm, _ := newTestAPI(&fakeSource{
		config: ClusterConfiguration{
			Queues: []string{"default"},
			Containers: entities.ContainerConfiguration{
				SupportsContainers: true,
				DefaultImage:       "ubuntu:24.04",
			},
		},
	})

	a.HandleRequest(&wireformat.Request{
		MessageType: wireformat.RequestTypeGetClusterInfo,
		RequestID:   10,
		Username:    "bob",
	})

	resp, ok := comm.last(t).(wireformat.ClusterInfoResponse)
	require.True(t, ok)
	assert.Equal(t, []string{"default"}, resp.Queues)
	assert.True(t, resp.SupportsContainers)
	assert.Equal(t, "ubuntu:24.04", resp.DefaultImage)
}

func TestHandleRequest_UnsupportedTypes(t *testing.T) {
	a, comm, _ := newTestAPI(&fakeSource{})

	for _, reqType := range []wireformat.RequestType{
		wireformat.RequestTypeGetJobStatus,
		wireformat.RequestTypeGetJobOutput,
		wireformat.RequestTypeGetJobResourceUtil,
		wireformat.RequestTypeGetJobNetwork,
		wireformat.RequestType(99),
	} {
		a.HandleRequest(&wireformat.Request{MessageType: reqType, RequestID: 11})

		errResp := errorResponse(t, comm.last(t))
		assert.Equal(t, wireformat.ErrorCodeNotSupported, errResp.ErrorCode, "request type %d", reqType)
	}
}

func TestStatusUpdatesForwardedToLauncher(t *testing.T) {
	comm := &fakeComm{}
	repo := jobs.NewRepository()
	notifier := jobs.NewNotifier(repo)
	New(comm, &fakeSource{}, repo, notifier, nil)

	job := testutil.NewJob("7", "bob", entities.JobStatePending)
	require.NoError(t, repo.AddJob(job))

	notifier.UpdateJobStatus(job, entities.JobStateRunning, "started")

	resp, ok := comm.last(t).(wireformat.JobStatusResponse)
	require.True(t, ok)
	assert.Equal(t, uint64(0), resp.RequestID, "status updates are plugin-initiated")
	assert.Equal(t, "7", resp.JobID)
	assert.Equal(t, entities.JobStateRunning, resp.Status)
	assert.Equal(t, "started", resp.StatusMessage)
}

func TestHandleRequest_HeartbeatSendsNothing(t *testing.T) {
	a, comm, _ := newTestAPI(&fakeSource{})

	a.HandleRequest(&wireformat.Request{MessageType: wireformat.RequestTypeHeartbeat})
	assert.Zero(t, comm.count())
}

func TestStartHeartbeats(t *testing.T) {
	a, comm, _ := newTestAPI(&fakeSource{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.StartHeartbeats(ctx, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return comm.count() >= 2
	}, 5*time.Second, 5*time.Millisecond)

	_, ok := comm.last(t).(wireformat.HeartbeatResponse)
	assert.True(t, ok)
}

func TestStartHeartbeats_Disabled(t *testing.T) {
	a, comm, _ := newTestAPI(&fakeSource{})

	a.StartHeartbeats(context.Background(), 0)
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, comm.count())
}
