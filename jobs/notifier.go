package jobs

import (
	"sync"

	"github.com/rstudio/rstudio-launcher-plugin-sdk/domain/entities"
)

// StatusHandler is invoked with a job after its status has changed.
type StatusHandler func(job *entities.Job)

// Notifier fans job status changes out to subscribers. Plugins report state
// transitions through the notifier; the API subscribes to forward each
// transition to the launcher.
type Notifier struct {
	repo *Repository

	mu     sync.RWMutex
	subs   map[int]StatusHandler
	nextID int
}

// NewNotifier creates a Notifier with no subscribers. Status updates are
// recorded through the repository so its lock covers the job's fields.
func NewNotifier(repo *Repository) *Notifier {
	return &Notifier{repo: repo, subs: make(map[int]StatusHandler)}
}

// Subscribe registers a handler and returns a function that removes it.
func (n *Notifier) Subscribe(handler StatusHandler) (unsubscribe func()) {
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.subs[id] = handler
	n.mu.Unlock()

	return func() {
		n.mu.Lock()
		delete(n.subs, id)
		n.mu.Unlock()
	}
}

// UpdateJobStatus records a state transition on the job and notifies every
// subscriber. Handlers run synchronously on the caller's goroutine.
func (n *Notifier) UpdateJobStatus(job *entities.Job, state entities.JobState, statusMessage string) {
	n.repo.UpdateStatus(job, state, statusMessage)

	n.mu.RLock()
	handlers := make([]StatusHandler, 0, len(n.subs))
	for _, h := range n.subs {
		handlers = append(handlers, h)
	}
	n.mu.RUnlock()

	for _, h := range handlers {
		h(job)
	}
}
