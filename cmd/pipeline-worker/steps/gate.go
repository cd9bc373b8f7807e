package steps

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/gridlens/inspector/common/pipeline"
)

// GateResult is the utility_gate step payload
type GateResult struct {
	IsUtilityInfrastructure bool    `json:"is_utility_infrastructure"`
	Confidence              float64 `json:"confidence"`
	Rule                    string  `json:"rule"`
}

// GateEvaluator evaluates the configured gate rule with CEL. The program
// compiles once at worker startup and is safe for concurrent Eval.
type GateEvaluator struct {
	rule    string
	program cel.Program
}

// NewGateEvaluator compiles the CEL rule expression
func NewGateEvaluator(rule string) (*GateEvaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("input", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("create CEL env: %w", err)
	}

	ast, iss := env.Compile(rule)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("compile rule %q: %w", rule, iss.Err())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build rule program: %w", err)
	}

	return &GateEvaluator{rule: rule, program: program}, nil
}

// Eval runs the rule against the gate input facts
func (e *GateEvaluator) Eval(input map[string]any) (bool, error) {
	out, _, err := e.program.Eval(map[string]any{"input": input})
	if err != nil {
		return false, fmt.Errorf("CEL evaluation error: %w", err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("gate rule did not return boolean, got %T", out.Value())
	}

	return result, nil
}

// utilityGate decides whether the photo plausibly shows utility
// infrastructure before the expensive detection step runs.
func (r *Registry) utilityGate(ctx context.Context, sc *StepContext) (any, error) {
	var ingested IngestResult
	if err := sc.PriorAs(pipeline.StepIngest, &ingested); err != nil {
		return nil, err
	}

	var exifResult ExifResult
	if err := sc.PriorAs(pipeline.StepExtractEXIF, &exifResult); err != nil {
		return nil, err
	}

	input := map[string]any{
		"filename":     sc.Photo.Filename,
		"content_type": ingested.ContentType,
		"size_bytes":   ingested.SizeBytes,
		"has_exif":     exifResult.Error == "" && len(exifResult.Tags) > 0,
		"has_gps":      exifResult.GPS != nil,
	}

	pass, err := r.gate.Eval(input)
	if err != nil {
		return nil, err
	}

	return &GateResult{
		IsUtilityInfrastructure: pass,
		Confidence:              0.73,
		Rule:                    r.gate.rule,
	}, nil
}
