package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunStatusTransitions(t *testing.T) {
	cases := []struct {
		from    RunStatus
		to      RunStatus
		allowed bool
	}{
		{RunQueued, RunRunning, true},
		{RunQueued, RunDone, false},
		{RunQueued, RunFailed, false},
		{RunRunning, RunDone, true},
		{RunRunning, RunFailed, true},
		{RunRunning, RunQueued, false},
		{RunDone, RunRunning, false},
		{RunDone, RunFailed, false},
		{RunFailed, RunRunning, false},
		{RunFailed, RunDone, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransition(tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestRunStatusTerminal(t *testing.T) {
	assert.False(t, RunQueued.Terminal())
	assert.False(t, RunRunning.Terminal())
	assert.True(t, RunDone.Terminal())
	assert.True(t, RunFailed.Terminal())
}

func TestStepStatusTerminal(t *testing.T) {
	assert.False(t, StepPending.Terminal())
	assert.False(t, StepRunning.Terminal())
	assert.True(t, StepComplete.Terminal())
	assert.True(t, StepFailed.Terminal())
}
