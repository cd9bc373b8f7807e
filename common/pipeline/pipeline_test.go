package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnapshotOrder(t *testing.T) {
	assert.Equal(t, []string{
		StepIngest,
		StepExtractEXIF,
		StepUtilityGate,
		StepAssetDetection,
		StepConditionAssessment,
		StepSummary,
	}, Snapshot())
	assert.Equal(t, 6, Len())
}

func TestSnapshotIsACopy(t *testing.T) {
	first := Snapshot()
	first[0] = "mutated"

	assert.Equal(t, StepIngest, Snapshot()[0])
}
