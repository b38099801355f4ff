package stages

import (
	"context"

	"clinsight.com/cra/llm"
	"clinsight.com/cra/types"
)

// Extractor normalizes the raw intake record into a StructuredPatient. The
// model proposes medically phrased symptoms; the terminology dictionary then
// pins every known phrase to its standardized term so extraction stays
// deterministic where a mapping exists.
type Extractor struct {
	llm   llm.Client
	terms *types.Terminology
}

func NewExtractor(client llm.Client, terms *types.Terminology) *Extractor {
	return &Extractor{llm: client, terms: terms}
}

func (e *Extractor) Extract(ctx context.Context, in types.PatientInput) (types.StructuredPatient, error) {
	raw, err := e.llm.Complete(ctx, extractorRole, extractionInstructions(in), "")
	if err != nil {
		return types.StructuredPatient{}, &GenerationError{Err: err}
	}
	patient, err := types.DecodeStructuredPatient(raw)
	if err != nil {
		return types.StructuredPatient{}, err
	}

	// Identity fields come from the intake record, whatever the model said.
	patient.Name = in.Name
	patient.Age = in.Age
	patient.Gender = in.Gender

	patient.Symptoms = e.normalizeSymptoms(patient.Symptoms, in.RawSymptoms)
	if err := patient.Validate(); err != nil {
		return types.StructuredPatient{}, &types.SchemaError{Schema: "StructuredPatient", RawText: raw, Err: err}
	}
	return patient, nil
}

func (e *Extractor) normalizeSymptoms(proposed []string, rawSymptoms string) []string {
	if len(proposed) == 0 {
		proposed = e.terms.SplitSymptoms(rawSymptoms)
	}
	seen := make(map[string]bool)
	out := make([]string, 0, len(proposed))
	for _, s := range proposed {
		norm := e.terms.NormalizeSymptom(s)
		if norm == "" || seen[norm] {
			continue
		}
		seen[norm] = true
		out = append(out, norm)
	}
	return out
}
