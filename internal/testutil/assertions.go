// Package testutil provides common assertions and fixtures for SDK tests.
package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rstudio/rstudio-launcher-plugin-sdk/domain/entities"
)

// AssertResultSuccess asserts that the result reports success.
func AssertResultSuccess(t *testing.T, result entities.Result, msgAndArgs ...interface{}) {
	t.Helper()
	assert.True(t, result.IsSuccess(), msgAndArgs...)
	assert.Nil(t, result.Error, msgAndArgs...)
}

// NewJob creates a job fixture in the given state, submitted now.
func NewJob(id, user string, state entities.JobState) *entities.Job {
	return &entities.Job{
		ID:             id,
		Name:           "job-" + id,
		User:           user,
		Command:        "echo",
		Args:           []string{"hello"},
		Status:         state,
		SubmissionTime: time.Now(),
	}
}
