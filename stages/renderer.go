package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"clinsight.com/cra/llm"
	"clinsight.com/cra/types"
)

// Renderer turns the assessment into a single self-contained styled HTML
// document. Every list entry from the assessment must survive into the
// report; truncation is a schema violation, not an editorial choice.
type Renderer struct {
	llm llm.Client
}

func NewRenderer(client llm.Client) *Renderer {
	return &Renderer{llm: client}
}

func (r *Renderer) Render(ctx context.Context, assessment types.ClinicalAssessment) (string, error) {
	assessmentJSON, err := json.Marshal(assessment)
	if err != nil {
		return "", fmt.Errorf("failed to marshal clinical assessment: %w", err)
	}
	raw, err := r.llm.Complete(ctx, rendererRole, renderInstructions, string(assessmentJSON))
	if err != nil {
		return "", &GenerationError{Err: err}
	}
	report := ExtractHTML(raw)
	if err := validateReport(report, assessment); err != nil {
		return "", &types.SchemaError{Schema: "Report", RawText: raw, Err: err}
	}
	return report, nil
}

// ExtractHTML unwraps markdown fences around the document, if any.
func ExtractHTML(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```html")
		s = strings.TrimPrefix(s, "```")
		if j := strings.LastIndex(s, "```"); j >= 0 {
			s = s[:j]
		}
	}
	return strings.TrimSpace(s)
}

func validateReport(report string, assessment types.ClinicalAssessment) error {
	if report == "" {
		return fmt.Errorf("report is empty")
	}
	if !strings.Contains(report, "<") || !strings.Contains(report, "</") {
		return fmt.Errorf("report does not look like an HTML document")
	}
	if strings.Contains(strings.ToLower(report), "<link") {
		return fmt.Errorf("report references an external stylesheet, it must be self-contained")
	}
	for _, list := range assessment.Lists() {
		for _, item := range list {
			if !containsText(report, item) {
				return fmt.Errorf("report is missing assessment entry %q", item)
			}
		}
	}
	return nil
}

// containsText matches the entry either raw or HTML-escaped.
func containsText(report string, item string) bool {
	item = strings.TrimSpace(item)
	if item == "" {
		return true
	}
	return strings.Contains(report, item) || strings.Contains(report, html.EscapeString(item))
}
