// Package jobs tracks the jobs a plugin has accepted: an in-memory
// repository with per-user visibility, a status notifier for fan-out of
// state changes, and a pruner that expires completed jobs.
package jobs

import (
	"sort"
	"sync"
	"time"

	"github.com/rstudio/rstudio-launcher-plugin-sdk/domain/entities"
	"github.com/rstudio/rstudio-launcher-plugin-sdk/domain/errors"
)

// AllUsers is the username wildcard: requests made as AllUsers see every job.
const AllUsers = "*"

// Repository stores the jobs known to this plugin. All methods are safe for
// concurrent use.
type Repository struct {
	mu   sync.RWMutex
	jobs map[string]*entities.Job
}

// NewRepository creates an empty Repository.
func NewRepository() *Repository {
	return &Repository{jobs: make(map[string]*entities.Job)}
}

// Initialize loads preexisting jobs. The base repository has nothing to
// load; plugins with durable job stores populate the repository here.
func (r *Repository) Initialize() error {
	return nil
}

// AddJob registers a job. The job must already carry a plugin-assigned ID.
func (r *Repository) AddJob(job *entities.Job) error {
	if job.ID == "" {
		return &errors.ConfigError{Err: errJobMissingID, Field: "id"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = job
	return nil
}

// GetJob returns the job with the given ID if it is visible to the user, or
// a JobNotFoundError.
func (r *Repository) GetJob(id, username string) (*entities.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok || !visibleTo(job, username) {
		return nil, &errors.JobNotFoundError{JobID: id, Username: username}
	}
	return job, nil
}

// GetJobs returns every job visible to the user, ordered by submission time
// and then by ID for stability.
func (r *Repository) GetJobs(username string) []*entities.Job {
	r.mu.RLock()
	defer r.mu.RUnlock()

	jobs := make([]*entities.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		if visibleTo(job, username) {
			jobs = append(jobs, job)
		}
	}

	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].SubmissionTime.Equal(jobs[j].SubmissionTime) {
			return jobs[i].ID < jobs[j].ID
		}
		return jobs[i].SubmissionTime.Before(jobs[j].SubmissionTime)
	})
	return jobs
}

// RemoveJob deletes the job with the given ID, if present.
func (r *Repository) RemoveJob(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, id)
}

// UpdateStatus records a state transition on the job. The repository lock
// guards the job's mutable fields, so transitions are safe against readers
// on other goroutines such as the pruner.
func (r *Repository) UpdateStatus(job *entities.Job, state entities.JobState, statusMessage string) {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	job.Status = state
	job.StatusMessage = statusMessage
	job.LastUpdateTime = &now
}

// RemoveExpired deletes every completed job whose last update (falling back
// to its submission time) is before the cutoff, and returns the number
// removed. The status and timestamp reads happen under the repository lock.
func (r *Repository) RemoveExpired(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, job := range r.jobs {
		if !job.Status.IsComplete() {
			continue
		}
		updated := job.SubmissionTime
		if job.LastUpdateTime != nil {
			updated = *job.LastUpdateTime
		}
		if updated.Before(cutoff) {
			delete(r.jobs, id)
			removed++
		}
	}
	return removed
}

func visibleTo(job *entities.Job, username string) bool {
	return username == AllUsers || job.User == username
}

var errJobMissingID = &entities.ErrorDetail{
	Type:    "job",
	Message: "job has no ID",
}
