package steps

import (
	"context"
	"fmt"
	"time"

	"github.com/gridlens/inspector/common/pipeline"
)

// SummaryResult is the summary step payload, the single document a UI
// shows first.
type SummaryResult struct {
	Headline       string           `json:"headline"`
	GPS            *GPSCoord        `json:"gps,omitempty"`
	Timestamp      *time.Time       `json:"timestamp,omitempty"`
	DetectedCounts map[string]int   `json:"detected_counts"`
	Condition      *ConditionResult `json:"condition"`
}

// summary folds the prior step results into one document
func (r *Registry) summary(ctx context.Context, sc *StepContext) (any, error) {
	var exifResult ExifResult
	if err := sc.PriorAs(pipeline.StepExtractEXIF, &exifResult); err != nil {
		return nil, err
	}

	var gate GateResult
	if err := sc.PriorAs(pipeline.StepUtilityGate, &gate); err != nil {
		return nil, err
	}

	var det DetectionResult
	if err := sc.PriorAs(pipeline.StepAssetDetection, &det); err != nil {
		return nil, err
	}

	var cond ConditionResult
	if err := sc.PriorAs(pipeline.StepConditionAssessment, &cond); err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, d := range det.Detections {
		counts[d.Label]++
	}

	headline := "No utility infrastructure identified"
	if gate.IsUtilityInfrastructure && det.Count > 0 {
		headline = fmt.Sprintf("Utility infrastructure: %d asset(s), condition %s", det.Count, cond.Overall)
	} else if gate.IsUtilityInfrastructure {
		headline = "Likely utility infrastructure, no assets detected"
	}

	return &SummaryResult{
		Headline:       headline,
		GPS:            exifResult.GPS,
		Timestamp:      exifResult.Timestamp,
		DetectedCounts: counts,
		Condition:      &cond,
	}, nil
}
