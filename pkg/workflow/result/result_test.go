package result

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAggregate_SucceedsWhenNoFailures(t *testing.T) {
	br := BlockResult{StepResults: []StepResult{
		{Status: StatusSucceeded}, {Status: StatusSkipped},
	}}
	br.Aggregate()
	assert.Equal(t, StatusSucceeded, br.Status)
	assert.Equal(t, 1, br.SucceededCount)
	assert.Equal(t, 1, br.SkippedCount)
}

func TestAggregate_FailsWhenAnyChildFails(t *testing.T) {
	br := BlockResult{StepResults: []StepResult{
		{Status: StatusSucceeded}, {Status: StatusFailed},
	}}
	br.Aggregate()
	assert.Equal(t, StatusFailed, br.Status)
	assert.Equal(t, 1, br.FailedCount)
}

func TestAggregate_PreservesTimedOutOverFailed(t *testing.T) {
	br := BlockResult{Status: StatusTimedOut, StepResults: []StepResult{
		{Status: StatusSucceeded}, {Status: StatusFailed},
	}}
	br.Aggregate()
	assert.Equal(t, StatusTimedOut, br.Status)
}

func TestDuration_ZeroWhenIncomplete(t *testing.T) {
	var sr StepResult
	assert.Equal(t, int64(0), sr.Duration().Nanoseconds())
}
