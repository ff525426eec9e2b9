package jobs

import (
	"context"
	"log/slog"
	"time"
)

// Pruner removes completed jobs from the repository once they have been in a
// terminal state longer than the configured expiry.
type Pruner struct {
	repo   *Repository
	expiry time.Duration
	log    *slog.Logger
	now    func() time.Time
}

// NewPruner creates a Pruner over the given repository.
func NewPruner(repo *Repository, expiry time.Duration, logger *slog.Logger) *Pruner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{
		repo:   repo,
		expiry: expiry,
		log:    logger,
		now:    time.Now,
	}
}

// Sweep removes every expired job and returns the number removed. The
// expiry check runs under the repository lock so it cannot observe a job
// mid-transition.
func (p *Pruner) Sweep() int {
	cutoff := p.now().Add(-p.expiry)

	removed := p.repo.RemoveExpired(cutoff)
	if removed > 0 {
		p.log.Debug("pruned expired jobs", "count", removed)
	}
	return removed
}

// Run sweeps periodically until the context is canceled. The interval is
// decoupled from the expiry so tests can drive it quickly.
func (p *Pruner) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Sweep()
		}
	}
}
