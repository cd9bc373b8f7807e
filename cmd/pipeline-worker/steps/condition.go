package steps

import (
	"context"

	"github.com/gridlens/inspector/common/pipeline"
)

// ConditionResult is the condition_assessment step payload
type ConditionResult struct {
	Overall    string   `json:"overall"`
	Confidence float64  `json:"confidence"`
	Reasons    []string `json:"reasons"`
}

// conditionAssessment scores the detected assets. The heuristic is
// intentionally coarse until a dedicated condition model lands: strong
// detections read as serviceable, weak ones as needing review.
func (r *Registry) conditionAssessment(ctx context.Context, sc *StepContext) (any, error) {
	var det DetectionResult
	if err := sc.PriorAs(pipeline.StepAssetDetection, &det); err != nil {
		return nil, err
	}

	if det.Count == 0 {
		return &ConditionResult{
			Overall:    "unknown",
			Confidence: 0.42,
			Reasons:    []string{"no assets detected"},
		}, nil
	}

	var sum float64
	weak := 0
	for _, d := range det.Detections {
		sum += d.Confidence
		if d.Confidence < 0.5 {
			weak++
		}
	}
	mean := sum / float64(len(det.Detections))

	result := &ConditionResult{Confidence: mean}
	switch {
	case weak > len(det.Detections)/2:
		result.Overall = "needs_review"
		result.Reasons = []string{"majority of detections below confidence threshold"}
	default:
		result.Overall = "serviceable"
		result.Reasons = []string{"detections above confidence threshold"}
	}

	return result, nil
}
