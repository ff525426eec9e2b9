package jobs

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rstudio/rstudio-launcher-plugin-sdk/domain/entities"
	"github.com/rstudio/rstudio-launcher-plugin-sdk/internal/testutil"
)

func TestNotifier_UpdateJobStatus(t *testing.T) {
	n := NewNotifier(NewRepository())
	job := testutil.NewJob("1", "bob", entities.JobStatePending)

	var seen []entities.JobState
	n.Subscribe(func(j *entities.Job) {
		seen = append(seen, j.Status)
	})

	n.UpdateJobStatus(job, entities.JobStateRunning, "started")

	assert.Equal(t, entities.JobStateRunning, job.Status)
	assert.Equal(t, "started", job.StatusMessage)
	require.NotNil(t, job.LastUpdateTime)
	assert.Equal(t, []entities.JobState{entities.JobStateRunning}, seen)
}

func TestNotifier_Unsubscribe(t *testing.T) {
	n := NewNotifier(NewRepository())
	job := testutil.NewJob("1", "bob", entities.JobStatePending)

	calls := 0
	unsubscribe := n.Subscribe(func(*entities.Job) { calls++ })

	n.UpdateJobStatus(job, entities.JobStateRunning, "")
	unsubscribe()
	n.UpdateJobStatus(job, entities.JobStateFinished, "")

	assert.Equal(t, 1, calls)
}

func TestNotifier_MultipleSubscribers(t *testing.T) {
	n := NewNotifier(NewRepository())
	job := testutil.NewJob("1", "bob", entities.JobStatePending)

	first, second := 0, 0
	n.Subscribe(func(*entities.Job) { first++ })
	n.Subscribe(func(*entities.Job) { second++ })

	n.UpdateJobStatus(job, entities.JobStateRunning, "")

	assert.Equal(t, 1, first)
	assert.Equal(t, 1, second)
}

// Status updates and pruner sweeps run on different goroutines in a live
// plugin. This must stay race-free under go test -race.
func TestNotifier_ConcurrentUpdatesAndSweeps(t *testing.T) {
	repo := NewRepository()
	n := NewNotifier(repo)
	p := NewPruner(repo, 24*time.Hour, nil)

	job := testutil.NewJob("1", "bob", entities.JobStatePending)
	require.NoError(t, repo.AddJob(job))

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			n.UpdateJobStatus(job, entities.JobStateRunning, "running")
			n.UpdateJobStatus(job, entities.JobStateFinished, "done")
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			p.Sweep()
		}
	}()
	wg.Wait()

	assert.Equal(t, entities.JobStateFinished, job.Status)
}
