package stages

import (
	"context"
	"encoding/json"
	"fmt"

	"clinsight.com/cra/llm"
	"clinsight.com/cra/types"
)

// Evaluator derives a non-diagnostic clinical assessment from the merged
// profile. Purely derivational: the profile is its only input.
type Evaluator struct {
	llm llm.Client
}

func NewEvaluator(client llm.Client) *Evaluator {
	return &Evaluator{llm: client}
}

func (e *Evaluator) Evaluate(ctx context.Context, profile types.ClinicalProfile) (types.ClinicalAssessment, error) {
	profileJSON, err := json.Marshal(profile)
	if err != nil {
		return types.ClinicalAssessment{}, fmt.Errorf("failed to marshal clinical profile: %w", err)
	}
	raw, err := e.llm.Complete(ctx, evaluatorRole, evaluationInstructions, string(profileJSON))
	if err != nil {
		return types.ClinicalAssessment{}, &GenerationError{Err: err}
	}
	assessment, err := types.DecodeClinicalAssessment(raw)
	if err != nil {
		return types.ClinicalAssessment{}, err
	}

	// Summary identity fields mirror the profile; only the analysis is new.
	assessment.PatientSummary.Name = profile.PatientInfo.Name
	assessment.PatientSummary.Age = profile.PatientInfo.Age
	assessment.PatientSummary.Gender = profile.PatientInfo.Gender
	assessment.PatientSummary.CurrentSymptoms = profile.PatientInfo.CurrentSymptoms

	if err := assessment.Validate(); err != nil {
		return types.ClinicalAssessment{}, &types.SchemaError{Schema: "ClinicalAssessment", RawText: raw, Err: err}
	}
	return assessment, nil
}
