package pipeline

// Step names in canonical execution order. The worker maps each name to
// an executor; the API snapshots this list into step rows at run
// creation, so edits here never touch runs that already exist.
const (
	StepIngest              = "ingest"
	StepExtractEXIF         = "extract_exif"
	StepUtilityGate         = "utility_gate"
	StepAssetDetection      = "asset_detection"
	StepConditionAssessment = "condition_assessment"
	StepSummary             = "summary"
)

var definition = []string{
	StepIngest,
	StepExtractEXIF,
	StepUtilityGate,
	StepAssetDetection,
	StepConditionAssessment,
	StepSummary,
}

// Snapshot returns the ordered step name list for a new run. The result
// is a copy; callers may not mutate the canonical definition.
func Snapshot() []string {
	out := make([]string, len(definition))
	copy(out, definition)
	return out
}

// Len returns the number of steps in the canonical definition
func Len() int {
	return len(definition)
}
