package api

import (
	"time"

	"github.com/rstudio/rstudio-launcher-plugin-sdk/domain/entities"
	"github.com/rstudio/rstudio-launcher-plugin-sdk/wireformat"
)

// jobFilter narrows the result of an all-jobs request. Every populated
// criterion must match.
type jobFilter struct {
	startTime *time.Time
	endTime   *time.Time
	statuses  []entities.JobState
	tags      []string
}

// parseJobFilter validates and extracts the filter fields of a get job
// request. A non-empty errMsg reports the first invalid field.
func parseJobFilter(req *wireformat.Request) (jobFilter, string) {
	var f jobFilter

	if req.StartTime != "" {
		t, err := time.Parse(time.RFC3339, req.StartTime)
		if err != nil {
			return f, "Invalid start time: " + req.StartTime
		}
		f.startTime = &t
	}
	if req.EndTime != "" {
		t, err := time.Parse(time.RFC3339, req.EndTime)
		if err != nil {
			return f, "Invalid end time: " + req.EndTime
		}
		f.endTime = &t
	}

	for _, s := range req.Statuses {
		state, err := entities.JobStateFromString(s)
		if err != nil {
			return f, "Invalid status: " + s
		}
		f.statuses = append(f.statuses, state)
	}

	f.tags = req.Tags
	return f, ""
}

func (f jobFilter) matches(job *entities.Job) bool {
	if f.startTime != nil && job.SubmissionTime.Before(*f.startTime) {
		return false
	}
	if f.endTime != nil && job.SubmissionTime.After(*f.endTime) {
		return false
	}
	if len(f.statuses) > 0 {
		found := false
		for _, s := range f.statuses {
			if job.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.tags) > 0 && !job.MatchesTags(f.tags) {
		return false
	}
	return true
}
