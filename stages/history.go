package stages

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"clinsight.com/cra/llm"
	"clinsight.com/cra/records"
	"clinsight.com/cra/types"
)

// HistoryTool is the record-store lookup the aggregator depends on. It is
// injected rather than discovered at generation time so the stage contract is
// testable without a live backend.
type HistoryTool interface {
	ListHistory(nationalID string) ([]records.HistoryEntry, error)
}

// Aggregator merges the structured patient with everything the record store
// holds for that national id.
type Aggregator struct {
	llm     llm.Client
	history HistoryTool
	terms   *types.Terminology
}

func NewAggregator(client llm.Client, history HistoryTool, terms *types.Terminology) *Aggregator {
	return &Aggregator{llm: client, history: history, terms: terms}
}

func (a *Aggregator) Aggregate(ctx context.Context, patient types.StructuredPatient, nationalID string) (types.ClinicalProfile, error) {
	entries, err := a.history.ListHistory(nationalID)
	if err != nil {
		if errors.Is(err, records.ErrNotFound) {
			return types.ClinicalProfile{}, &ToolError{Op: "history lookup", Err: err, NotRegistered: true}
		}
		return types.ClinicalProfile{}, &ToolError{Op: "history lookup", Err: err}
	}

	historyText := FormatHistory(entries)
	patientJSON, err := json.Marshal(patient)
	if err != nil {
		return types.ClinicalProfile{}, fmt.Errorf("failed to marshal structured patient: %w", err)
	}

	raw, err := a.llm.Complete(ctx, historyRole, historyInstructions(nationalID, historyText), string(patientJSON))
	if err != nil {
		return types.ClinicalProfile{}, &GenerationError{Err: err}
	}
	profile, err := types.DecodeClinicalProfile(raw)
	if err != nil {
		return types.ClinicalProfile{}, err
	}

	// The prior stage's fields are authoritative; the model must not
	// re-derive them.
	profile.PatientInfo = types.ProfilePatientInfo{
		Name:            patient.Name,
		Age:             patient.Age,
		Gender:          patient.Gender,
		CurrentSymptoms: patient.Symptoms,
	}

	if len(entries) == 0 {
		// No history means empty lists; the model cannot invent events.
		profile.MedicalHistory = []types.HistoryEvent{}
		profile.ChronicConditions = []string{}
		profile.Allergies = []string{}
		return profile, nil
	}

	profile.ChronicConditions = mergeUnique(profile.ChronicConditions, a.terms.RecognizeConditions(historyText))
	profile.Allergies = mergeUnique(profile.Allergies, a.terms.RecognizeAllergies(historyText))
	profile.Normalize()
	if err := profile.Validate(); err != nil {
		return types.ClinicalProfile{}, &types.SchemaError{Schema: "ClinicalProfile", RawText: raw, Err: err}
	}
	return profile, nil
}

// FormatHistory renders store entries as the numbered plain-text block the
// history prompt consumes.
func FormatHistory(entries []records.HistoryEntry) string {
	if len(entries) == 0 {
		return "No medical history found for this patient."
	}
	var b strings.Builder
	b.WriteString("Medical History:\n")
	for i, entry := range entries {
		b.WriteString(fmt.Sprintf("%d. %s (Date: %s)\n", i+1, entry.Description, entry.Timestamp.Format("2006-01-02")))
	}
	return b.String()
}

func mergeUnique(base []string, extra []string) []string {
	seen := make(map[string]bool, len(base))
	out := make([]string, 0, len(base)+len(extra))
	for _, v := range append(base, extra...) {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, strings.TrimSpace(v))
	}
	return out
}
